package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Fragment is one caption line of a transcript.
type Fragment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"` // seconds from video start
	Duration float64 `json:"duration,omitempty"`
}

// TranscriptSource returns the caption fragments of a video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) ([]Fragment, error)
}

// Embedder maps text to a fixed-length vector. Implementations must be safe
// for concurrent use and deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// UnavailableReason tells why a similarity could not be computed.
type UnavailableReason string

const (
	ReasonTranscriptUnavailable UnavailableReason = "transcript_unavailable"
	ReasonEmptyTranscript       UnavailableReason = "empty_transcript"
	ReasonEmbeddingFailure      UnavailableReason = "embedding_failure"
	ReasonCanceled              UnavailableReason = "canceled"
)

// SimilarityResult is the topic/transcript similarity of one candidate.
// When Available is false, Score is 0.
type SimilarityResult struct {
	CandidateID string            `json:"candidate_id"`
	Score       float64           `json:"score"`
	Available   bool              `json:"available"`
	Reason      UnavailableReason `json:"reason,omitempty"`
}

func unavailable(id string, reason UnavailableReason) SimilarityResult {
	return SimilarityResult{CandidateID: id, Reason: reason}
}

// Scorer computes topic-to-transcript similarity. It holds no mutable state
// and may be called concurrently.
type Scorer struct {
	transcripts TranscriptSource
	embedder    Embedder
	timeout     time.Duration
}

// NewScorer builds a Scorer. timeout bounds each Score call (0 = no bound).
func NewScorer(transcripts TranscriptSource, embedder Embedder, timeout time.Duration) *Scorer {
	return &Scorer{transcripts: transcripts, embedder: embedder, timeout: timeout}
}

// Score fetches the transcript of candidateID and compares it with topic.
// Failures are reported in the result, never as an error.
func (s *Scorer) Score(ctx context.Context, candidateID, topic string) SimilarityResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	frags, err := s.transcripts.Transcript(ctx, candidateID)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return unavailable(candidateID, ReasonCanceled)
		}
		slog.Debug("ranking: transcript unavailable",
			slog.String("id", candidateID), slog.Any("error", err))
		return unavailable(candidateID, ReasonTranscriptUnavailable)
	}
	return s.ScoreText(ctx, candidateID, topic, JoinFragments(frags))
}

// ScoreText compares topic with an already fetched transcript.
func (s *Scorer) ScoreText(ctx context.Context, candidateID, topic, transcript string) SimilarityResult {
	if strings.TrimSpace(transcript) == "" {
		return unavailable(candidateID, ReasonEmptyTranscript)
	}

	topicVec, err := s.embedder.Embed(ctx, topic)
	if err != nil {
		slog.Debug("ranking: topic embedding failed",
			slog.String("id", candidateID), slog.Any("error", err))
		return unavailable(candidateID, ReasonEmbeddingFailure)
	}
	textVec, err := s.embedder.Embed(ctx, transcript)
	if err != nil {
		slog.Debug("ranking: transcript embedding failed",
			slog.String("id", candidateID), slog.Any("error", err))
		return unavailable(candidateID, ReasonEmbeddingFailure)
	}

	sim, err := Cosine(topicVec, textVec)
	if err != nil {
		slog.Debug("ranking: cosine failed",
			slog.String("id", candidateID), slog.Any("error", err))
		return unavailable(candidateID, ReasonEmbeddingFailure)
	}
	return SimilarityResult{CandidateID: candidateID, Score: sim, Available: true}
}

// JoinFragments orders fragments by start offset and joins their text with
// single spaces. The input slice is not modified.
func JoinFragments(frags []Fragment) string {
	ordered := make([]Fragment, len(frags))
	copy(ordered, frags)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	var sb strings.Builder
	for _, f := range ordered {
		text := strings.Join(strings.Fields(f.Text), " ")
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
// A zero vector yields 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrEmbeddingFailure)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d != %d", ErrEmbeddingFailure, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if !isFinite(dot) || !isFinite(na) || !isFinite(nb) {
		return 0, fmt.Errorf("%w: non-finite vector component", ErrEmbeddingFailure)
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
