package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	items []json.RawMessage
	err   error
	delay time.Duration
	got   SearchRequest
}

func (f *fakeSearch) SearchVideos(ctx context.Context, req SearchRequest) ([]json.RawMessage, error) {
	f.got = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

type fakeScorer struct {
	mu       sync.Mutex
	results  map[string]SimilarityResult
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeScorer) Score(_ context.Context, id, _ string) SimilarityResult {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[id]; ok {
		return r
	}
	return unavailable(id, ReasonTranscriptUnavailable)
}

func video(id string, views, likes int, dur string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id": %q, "snippet": {"title": "video %s"},
		"statistics": {"viewCount": "%d", "likeCount": "%d"},
		"contentDetails": {"duration": %q}}`, id, id, views, likes, dur))
}

func scenario() *fakeSearch {
	return &fakeSearch{items: []json.RawMessage{
		video("B", 1000, 900, "PT10M"),
		video("A", 5000, 200, "PT5M"),
	}}
}

func TestRankTopRated(t *testing.T) {
	r := NewRanker(scenario(), &fakeScorer{}, Options{})
	got, err := r.Rank(context.Background(), Query{Topic: "photosynthesis"}, PolicyTopRated)
	require.NoError(t, err)

	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "A", got.Best.Candidate.ID)
	assert.InDelta(t, 3.08, got.Candidates[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.96, got.Candidates[1].FinalScore, 1e-9)
	assert.Equal(t, 1, got.Candidates[0].Rank)
	assert.Equal(t, 2, got.Candidates[1].Rank)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "photosynthesis english", got.Search)
}

func TestRankOverview(t *testing.T) {
	r := NewRanker(scenario(), &fakeScorer{}, Options{})
	got, err := r.Rank(context.Background(), Query{Topic: "photosynthesis"}, PolicyOverview)
	require.NoError(t, err)

	assert.Equal(t, "A", got.Best.Candidate.ID)
	assert.InDelta(t, 2.12, got.Candidates[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.78, got.Candidates[1].FinalScore, 1e-9)
	assert.InDelta(t, 5.0, got.Best.DurationScore, 1e-9)
}

func TestRankTiesKeepFetchOrder(t *testing.T) {
	search := &fakeSearch{items: []json.RawMessage{
		video("first", 1000, 100, "PT1M"),
		video("second", 1000, 100, "PT1M"),
		video("third", 1000, 100, "PT1M"),
	}}
	r := NewRanker(search, &fakeScorer{}, Options{})

	for range 5 {
		got, err := r.Rank(context.Background(), Query{Topic: "t"}, PolicyDetailed)
		require.NoError(t, err)
		ids := []string{got.Candidates[0].Candidate.ID, got.Candidates[1].Candidate.ID, got.Candidates[2].Candidate.ID}
		assert.Equal(t, []string{"first", "second", "third"}, ids)
	}
}

func TestRankSimilarityFailuresDoNotAbort(t *testing.T) {
	scorer := &fakeScorer{}
	r := NewRanker(scenario(), scorer, Options{})
	got, err := r.Rank(context.Background(), Query{Topic: "t"}, PolicyTopRated)
	require.NoError(t, err)

	assert.Equal(t, int32(2), scorer.calls.Load())
	assert.Zero(t, got.SimilarityCoverage())
	for _, c := range got.Candidates {
		assert.False(t, c.Similarity.Available)
		assert.Equal(t, ReasonTranscriptUnavailable, c.Similarity.Reason)
	}
}

func TestRankSimilarityAttached(t *testing.T) {
	scorer := &fakeScorer{results: map[string]SimilarityResult{
		"A": {CandidateID: "A", Score: 0.8, Available: true},
	}}
	r := NewRanker(scenario(), scorer, Options{})
	got, err := r.Rank(context.Background(), Query{Topic: "t"}, PolicyTopRated)
	require.NoError(t, err)

	assert.Equal(t, 1, got.SimilarityCoverage())
	assert.InDelta(t, 0.8, got.Best.Similarity.Score, 1e-9)
	assert.Contains(t, got.Explain(), "Topic similarity: 0.800")
}

func TestRankWorkerBound(t *testing.T) {
	items := make([]json.RawMessage, 0, MaxCandidates)
	for i := range MaxCandidates {
		items = append(items, video(fmt.Sprintf("v%d", i), 100, 10, "PT1M"))
	}
	scorer := &fakeScorer{}
	r := NewRanker(&fakeSearch{items: items}, scorer, Options{Workers: 3})
	_, err := r.Rank(context.Background(), Query{Topic: "t"}, PolicyOverview)
	require.NoError(t, err)

	assert.Equal(t, int32(MaxCandidates), scorer.calls.Load())
	assert.LessOrEqual(t, scorer.peak.Load(), int32(3))
}

func TestRankTruncatesToLimit(t *testing.T) {
	items := make([]json.RawMessage, 0, 15)
	for i := range 15 {
		items = append(items, video(fmt.Sprintf("v%d", i), 100, 10, "PT1M"))
	}
	search := &fakeSearch{items: items}
	got, err := NewRanker(search, &fakeScorer{}, Options{}).Rank(context.Background(), Query{Topic: "t"}, PolicyOverview)
	require.NoError(t, err)
	assert.Len(t, got.Candidates, MaxCandidates)
	assert.Equal(t, MaxCandidates, search.got.Limit)
}

func TestRankErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unselected policy", func(t *testing.T) {
		_, err := NewRanker(scenario(), nil, Options{}).Rank(ctx, Query{Topic: "t"}, PolicyUnselected)
		assert.ErrorIs(t, err, ErrPolicyUnselected)
	})

	t.Run("empty topic", func(t *testing.T) {
		_, err := NewRanker(scenario(), nil, Options{}).Rank(ctx, Query{Topic: "  "}, PolicyOverview)
		assert.Error(t, err)
	})

	t.Run("no results", func(t *testing.T) {
		_, err := NewRanker(&fakeSearch{}, nil, Options{}).Rank(ctx, Query{Topic: "t"}, PolicyOverview)
		assert.ErrorIs(t, err, ErrNoCandidatesFound)
	})

	t.Run("all malformed", func(t *testing.T) {
		search := &fakeSearch{items: []json.RawMessage{json.RawMessage(`{"id": "x"}`)}}
		_, err := NewRanker(search, nil, Options{}).Rank(ctx, Query{Topic: "t"}, PolicyOverview)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("some malformed are skipped", func(t *testing.T) {
		search := &fakeSearch{items: []json.RawMessage{
			json.RawMessage(`{"id": "x"}`),
			video("ok", 10, 1, "PT1M"),
		}}
		got, err := NewRanker(search, nil, Options{}).Rank(ctx, Query{Topic: "t"}, PolicyOverview)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Skipped)
		assert.Equal(t, "ok", got.Best.Candidate.ID)
	})

	t.Run("search timeout", func(t *testing.T) {
		search := &fakeSearch{delay: time.Second}
		_, err := NewRanker(search, nil, Options{SearchTimeout: 10 * time.Millisecond}).Rank(ctx, Query{Topic: "t"}, PolicyOverview)
		assert.ErrorIs(t, err, ErrUpstreamTimeout)
	})

	t.Run("caller canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		search := &fakeSearch{delay: time.Second}
		_, err := NewRanker(search, nil, Options{}).Rank(cctx, Query{Topic: "t"}, PolicyOverview)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUpstreamTimeout)
	})
}

func TestQuery(t *testing.T) {
	q := Query{Topic: " Biology ", Subsections: "cell  division", Language: "fr"}
	assert.Equal(t, "Biology cell division", q.Subject())
	assert.Equal(t, "fr", q.LanguageCode())
	assert.Equal(t, "french", q.LanguageName())
	assert.Equal(t, "Biology cell division french", q.SearchString())

	assert.Equal(t, "en", Query{}.LanguageCode())
	assert.Equal(t, "english", Query{Language: "en-US"}.LanguageName())
	assert.Empty(t, Query{}.SearchString())
}
