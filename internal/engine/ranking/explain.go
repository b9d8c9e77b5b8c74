package ranking

import (
	"fmt"
	"strings"
)

// Breakdown is the per-term contribution of a candidate's final score.
type Breakdown struct {
	Duration   float64 `json:"duration"`
	Engagement float64 `json:"engagement"`
	Likes      float64 `json:"likes"`
	Similarity float64 `json:"similarity"`
}

// Contributions splits FinalScore into its weighted terms under p.
func (s ScoredCandidate) Contributions(p Policy) Breakdown {
	w, ok := p.Weights()
	if !ok {
		return Breakdown{}
	}
	return Breakdown{
		Duration:   w.Duration * p.DurationTerm(s.DurationScore),
		Engagement: w.Engagement * s.EngagementScore,
		Likes:      w.Likes * s.LikesScore,
		Similarity: w.Similarity * s.Similarity.Score,
	}
}

// Explain renders a short markdown justification of the winner.
func (r *Ranking) Explain() string {
	best := r.Best
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n%s\n\n", best.Candidate.Title, best.Candidate.URL())
	fmt.Fprintf(&sb, "Mode: %s (%s)\n\n", r.Policy, r.Policy.Description())
	fmt.Fprintf(&sb, "- Views: %d\n", best.Candidate.ViewCount)
	fmt.Fprintf(&sb, "- Likes: %d\n", best.Candidate.LikeCount)
	fmt.Fprintf(&sb, "- Duration: %.1f min\n", best.DurationScore)
	fmt.Fprintf(&sb, "- Engagement score: %.3f\n", best.EngagementScore)
	if best.Similarity.Available {
		fmt.Fprintf(&sb, "- Topic similarity: %.3f\n", best.Similarity.Score)
	} else {
		fmt.Fprintf(&sb, "- Topic similarity: n/a (%s)\n", best.Similarity.Reason)
	}
	fmt.Fprintf(&sb, "- Final score: %.3f (rank 1 of %d)\n", best.FinalScore, len(r.Candidates))
	return sb.String()
}
