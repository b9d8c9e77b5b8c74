package engine

import "github.com/anatolykoptev/go_study/internal/engine/ranking"

// --- video_rank ---

type VideoRankInput struct {
	Subject     string `json:"subject" jsonschema:"Study topic, e.g. photosynthesis"`
	Subsections string `json:"subsections,omitempty" jsonschema:"Optional sub-topics to narrow the search, e.g. light reactions"`
	Mode        string `json:"mode" jsonschema:"Scoring mode: overview (short, popular), top_rated (most viewed and liked), detailed (long, in-depth)"`
	Language    string `json:"language,omitempty" jsonschema:"Language code for search and transcripts (default: en)"`
}

// RankedVideo is one entry of the ranked list.
type RankedVideo struct {
	Rank            int     `json:"rank"`
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Views           uint64  `json:"views"`
	Likes           uint64  `json:"likes"`
	DurationMinutes float64 `json:"duration_minutes"`
	EngagementScore float64 `json:"engagement_score"`
	Similarity      float64 `json:"similarity"`
	SimilarityNote  string  `json:"similarity_note,omitempty"`
	FinalScore      float64 `json:"final_score"`
}

type VideoRankOutput struct {
	RankingID   string            `json:"ranking_id"`
	Query       string            `json:"query"`
	Mode        string            `json:"mode"`
	Best        RankedVideo       `json:"best"`
	Breakdown   ranking.Breakdown `json:"breakdown"`
	Videos      []RankedVideo     `json:"videos"`
	Explanation string            `json:"explanation"`
	Coverage    int               `json:"similarity_coverage"`
	Skipped     int               `json:"skipped,omitempty"`
	Weights     ranking.Weights   `json:"weights"`
}

// NewVideoRankOutput flattens a ranking for tool output.
func NewVideoRankOutput(r *ranking.Ranking) VideoRankOutput {
	w, _ := r.Policy.Weights()
	out := VideoRankOutput{
		RankingID:   r.ID,
		Query:       r.Search,
		Mode:        r.Policy.String(),
		Best:        toRankedVideo(r.Best),
		Breakdown:   r.Best.Contributions(r.Policy),
		Videos:      make([]RankedVideo, len(r.Candidates)),
		Explanation: r.Explain(),
		Coverage:    r.SimilarityCoverage(),
		Skipped:     r.Skipped,
		Weights:     w,
	}
	for i, c := range r.Candidates {
		out.Videos[i] = toRankedVideo(c)
	}
	return out
}

func toRankedVideo(s ranking.ScoredCandidate) RankedVideo {
	return RankedVideo{
		Rank:            s.Rank,
		ID:              s.Candidate.ID,
		Title:           s.Candidate.Title,
		URL:             s.Candidate.URL(),
		Views:           s.Candidate.ViewCount,
		Likes:           s.Candidate.LikeCount,
		DurationMinutes: s.DurationScore,
		EngagementScore: s.EngagementScore,
		Similarity:      s.Similarity.Score,
		SimilarityNote:  string(s.Similarity.Reason),
		FinalScore:      s.FinalScore,
	}
}

// --- video_transcript ---

type VideoTranscriptInput struct {
	Video    string `json:"video" jsonschema:"YouTube video ID or URL"`
	Language string `json:"language,omitempty" jsonschema:"Preferred transcript language (default: en)"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"Max transcript characters (default: 20000)"`
}

// TranscriptSegment is a minute-sized slice of a transcript with a link
// that opens the video at its start.
type TranscriptSegment struct {
	Start     float64 `json:"start"`
	Timestamp string  `json:"timestamp"`
	Text      string  `json:"text"`
	URL       string  `json:"url"`
}

type VideoTranscriptOutput struct {
	VideoID         string              `json:"video_id"`
	URL             string              `json:"url"`
	Fragments       int                 `json:"fragments"`
	DurationSeconds float64             `json:"duration_seconds"`
	Transcript      string              `json:"transcript"`
	Truncated       bool                `json:"truncated,omitempty"`
	Segments        []TranscriptSegment `json:"segments,omitempty"`
}

// --- video_summary ---

type VideoSummaryInput struct {
	Video    string `json:"video" jsonschema:"YouTube video ID or URL"`
	Topic    string `json:"topic,omitempty" jsonschema:"Study topic the summary should focus on"`
	Language string `json:"language,omitempty" jsonschema:"Preferred transcript language (default: en)"`
}

type VideoSummaryOutput struct {
	VideoID    string   `json:"video_id"`
	URL        string   `json:"url"`
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points,omitempty"`
	Coverage   string   `json:"coverage,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// --- scoring_modes ---

type ScoringModesInput struct{}

type ScoringMode struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Weights     ranking.Weights `json:"weights"`
}

type ScoringModesOutput struct {
	Modes []ScoringMode `json:"modes"`
}
