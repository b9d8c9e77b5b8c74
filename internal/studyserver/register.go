package studyserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Ranker runs one ranking pass.
type Ranker interface {
	Rank(ctx context.Context, q ranking.Query, p ranking.Policy) (*ranking.Ranking, error)
}

// Transcripts fetches captions in a preferred language order.
type Transcripts interface {
	TranscriptIn(ctx context.Context, videoID string, langs []string) ([]ranking.Fragment, error)
}

// TextScorer compares a topic with transcript text.
type TextScorer interface {
	ScoreText(ctx context.Context, candidateID, topic, transcript string) ranking.SimilarityResult
}

// Deps are the collaborators the tools need. Scorer may be nil; summaries
// are then returned without a similarity figure.
type Deps struct {
	Ranker      Ranker
	Transcripts Transcripts
	Scorer      TextScorer
}

// RegisterTools registers the study tools on the given MCP server:
// video_rank, video_transcript, video_summary, scoring_modes.
func RegisterTools(server *mcp.Server, d Deps) {
	registerVideoRank(server, d)
	registerVideoTranscript(server, d)
	registerVideoSummary(server, d)
	registerScoringModes(server)
}

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 4

// userError maps ranking failures to messages a tool caller can act on.
func userError(err error) error {
	switch {
	case errors.Is(err, ranking.ErrNoCandidatesFound):
		return fmt.Errorf("no videos found for this topic, try broader wording: %w", err)
	case errors.Is(err, ranking.ErrUpstreamTimeout):
		return fmt.Errorf("YouTube search timed out, try again: %w", err)
	case errors.Is(err, ranking.ErrMalformedResponse):
		return fmt.Errorf("YouTube returned an unexpected response: %w", err)
	case errors.Is(err, ranking.ErrPolicyUnselected):
		return fmt.Errorf("select a scoring mode first: %w", err)
	case errors.Is(err, ranking.ErrTranscriptUnavailable):
		return fmt.Errorf("this video has no usable transcript: %w", err)
	}
	return err
}
