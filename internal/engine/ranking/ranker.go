package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxCandidates caps how many videos one ranking pass considers.
const MaxCandidates = 10

// SearchRequest is what the ranker asks of the search collaborator.
type SearchRequest struct {
	Query    string
	Language string
	Limit    int
}

// SearchSource returns raw video items (YouTube Data API videos resources)
// for a free-text query, in relevance order.
type SearchSource interface {
	SearchVideos(ctx context.Context, req SearchRequest) ([]json.RawMessage, error)
}

// SimilarityScorer scores one candidate against a topic.
type SimilarityScorer interface {
	Score(ctx context.Context, candidateID, topic string) SimilarityResult
}

// ScoredCandidate is a candidate with its derived scores. It only lives for
// the duration of one ranking pass.
type ScoredCandidate struct {
	Candidate       Candidate        `json:"candidate"`
	Similarity      SimilarityResult `json:"similarity"`
	EngagementScore float64          `json:"engagement_score"`
	LikesScore      float64          `json:"likes_score"`
	DurationScore   float64          `json:"duration_score"` // minutes, before the policy transform
	FinalScore      float64          `json:"final_score"`
	Rank            int              `json:"rank"`
}

// Ranking is the result of one pass: the winner plus the full ordered list.
type Ranking struct {
	ID         string            `json:"id"`
	Query      Query             `json:"query"`
	Search     string            `json:"search"`
	Policy     Policy            `json:"policy"`
	Best       ScoredCandidate   `json:"best"`
	Candidates []ScoredCandidate `json:"candidates"`
	Skipped    int               `json:"skipped,omitempty"` // malformed upstream items
}

// SimilarityCoverage counts candidates whose similarity was computed.
func (r *Ranking) SimilarityCoverage() int {
	n := 0
	for _, c := range r.Candidates {
		if c.Similarity.Available {
			n++
		}
	}
	return n
}

// Options tunes a Ranker.
type Options struct {
	Workers       int           // similarity worker pool size (default 10)
	SearchTimeout time.Duration // bound on the search call (default 15s)
	Limit         int           // candidates per pass (default and max MaxCandidates)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = MaxCandidates
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = 15 * time.Second
	}
	if o.Limit <= 0 || o.Limit > MaxCandidates {
		o.Limit = MaxCandidates
	}
	return o
}

// Ranker orchestrates search, metric extraction, similarity and scoring.
type Ranker struct {
	search SearchSource
	scorer SimilarityScorer
	opts   Options
}

// NewRanker wires a Ranker from its collaborators.
func NewRanker(search SearchSource, scorer SimilarityScorer, opts Options) *Ranker {
	return &Ranker{search: search, scorer: scorer, opts: opts.withDefaults()}
}

// Rank runs one ranking pass. Cancelling ctx abandons the pass; nothing
// partial is returned.
func (r *Ranker) Rank(ctx context.Context, q Query, p Policy) (*Ranking, error) {
	if _, ok := p.Weights(); !ok {
		return nil, ErrPolicyUnselected
	}
	search := q.SearchString()
	if search == "" {
		return nil, errors.New("topic is required")
	}

	raws, err := r.fetch(ctx, search, q.LanguageCode())
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		c, err := ExtractCandidate(raw)
		if err != nil {
			skipped++
			slog.Warn("ranking: skipping malformed item", slog.Any("error", err))
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		if skipped > 0 {
			return nil, fmt.Errorf("%w: all %d items unusable", ErrMalformedResponse, skipped)
		}
		return nil, ErrNoCandidatesFound
	}

	sims := r.scoreAll(ctx, candidates, q.Subject())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		sig := Normalize(c)
		scored[i] = ScoredCandidate{
			Candidate:       c,
			Similarity:      sims[i],
			EngagementScore: sig.Engagement,
			LikesScore:      sig.Likes,
			DurationScore:   sig.Duration,
			FinalScore:      Apply(p, sig.Engagement, sig.Likes, sig.Duration, sims[i].Score),
		}
	}
	SortScored(scored)

	return &Ranking{
		ID:         uuid.NewString(),
		Query:      q,
		Search:     search,
		Policy:     p,
		Best:       scored[0],
		Candidates: scored,
		Skipped:    skipped,
	}, nil
}

// SortScored orders candidates by FinalScore descending, keeping fetch order
// for ties, and assigns 1-based ranks.
func SortScored(scored []ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
}

func (r *Ranker) fetch(ctx context.Context, search, lang string) ([]json.RawMessage, error) {
	sctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()

	raws, err := r.search.SearchVideos(sctx, SearchRequest{Query: search, Language: lang, Limit: r.opts.Limit})
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || sctx.Err() == context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrUpstreamTimeout, r.opts.SearchTimeout)
		}
		return nil, fmt.Errorf("search videos: %w", err)
	}
	if len(raws) > r.opts.Limit {
		raws = raws[:r.opts.Limit]
	}
	return raws, nil
}

// scoreAll runs the similarity scorer on a bounded pool. Results are indexed
// like candidates; a failed candidate keeps an unavailable result.
func (r *Ranker) scoreAll(ctx context.Context, candidates []Candidate, topic string) []SimilarityResult {
	sims := make([]SimilarityResult, len(candidates))
	if r.scorer == nil {
		for i, c := range candidates {
			sims[i] = unavailable(c.ID, ReasonEmbeddingFailure)
		}
		return sims
	}

	var g errgroup.Group
	g.SetLimit(min(r.opts.Workers, len(candidates)))
	for i, c := range candidates {
		g.Go(func() error {
			sims[i] = r.scorer.Score(ctx, c.ID, topic)
			return nil
		})
	}
	_ = g.Wait()
	return sims
}
