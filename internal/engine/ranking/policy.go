package ranking

import (
	"fmt"
	"strings"
)

// Policy is a named weighting scheme turning signals into one scalar.
type Policy int

const (
	// PolicyUnselected is the "no mode chosen yet" state. It scores everything 0.
	PolicyUnselected Policy = iota
	PolicyOverview
	PolicyTopRated
	PolicyDetailed
)

// Weights is the weight vector of a policy. Similarity is reported alongside
// the score but carries no weight in any built-in policy.
type Weights struct {
	Duration   float64 `json:"duration"`
	Engagement float64 `json:"engagement"`
	Likes      float64 `json:"likes"`
	Similarity float64 `json:"similarity"`
}

var policyWeights = map[Policy]Weights{
	PolicyOverview: {Duration: 0.2, Engagement: 0.4, Likes: 0.4},
	PolicyTopRated: {Duration: 0, Engagement: 0.6, Likes: 0.4},
	PolicyDetailed: {Duration: 0.6, Engagement: 0.3, Likes: 0.1},
}

// Policies lists the selectable policies in display order.
func Policies() []Policy {
	return []Policy{PolicyOverview, PolicyTopRated, PolicyDetailed}
}

func (p Policy) String() string {
	switch p {
	case PolicyOverview:
		return "overview"
	case PolicyTopRated:
		return "top_rated"
	case PolicyDetailed:
		return "detailed"
	default:
		return "unselected"
	}
}

// Description is a one-line, user-facing summary of the policy.
func (p Policy) Description() string {
	switch p {
	case PolicyOverview:
		return "Short videos with strong engagement: duration is inverted so shorter videos score higher."
	case PolicyTopRated:
		return "Most watched and most liked videos; duration is ignored."
	case PolicyDetailed:
		return "In-depth videos: longer duration dominates, engagement and likes break ties."
	default:
		return "No scoring mode selected."
	}
}

// Weights returns the weight vector; ok is false for PolicyUnselected.
func (p Policy) Weights() (Weights, bool) {
	w, ok := policyWeights[p]
	return w, ok
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePolicy maps a mode name to a Policy. Empty input and the "select"
// placeholder map to PolicyUnselected.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "", "select", "unselected", "none":
		return PolicyUnselected, nil
	case "overview":
		return PolicyOverview, nil
	case "top_rated", "toprated", "top":
		return PolicyTopRated, nil
	case "detailed", "detail":
		return PolicyDetailed, nil
	}
	return PolicyUnselected, fmt.Errorf("unknown scoring mode %q (want overview, top_rated or detailed)", s)
}

// DurationTerm applies the policy's duration transform to minutes.
func (p Policy) DurationTerm(minutes float64) float64 {
	switch p {
	case PolicyOverview:
		if minutes > 0 {
			return 1 / minutes
		}
		return 0
	case PolicyDetailed:
		return minutes
	default:
		return 0
	}
}

// Apply computes the final score. It is pure and never fails; an unselected
// policy yields 0 for every input.
func Apply(p Policy, engagement, likes, duration, similarity float64) float64 {
	w, ok := policyWeights[p]
	if !ok {
		return 0
	}
	score := w.Duration*p.DurationTerm(duration) +
		w.Engagement*engagement +
		w.Likes*likes
	// A zero-weight term must not let NaN or Inf leak into the score.
	if w.Similarity != 0 {
		score += w.Similarity * similarity
	}
	return score
}
