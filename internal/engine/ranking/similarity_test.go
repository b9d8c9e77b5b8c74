package ranking

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscripts map[string][]Fragment

func (f fakeTranscripts) Transcript(ctx context.Context, id string) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frags, ok := f[id]
	if !ok {
		return nil, ErrTranscriptUnavailable
	}
	return frags, nil
}

// wordEmbedder maps text onto a small bag-of-words vector.
type wordEmbedder struct {
	vocab []string
	fail  bool
}

func (w wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if w.fail {
		return nil, errors.New("boom")
	}
	vec := make([]float64, len(w.vocab))
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		for i, v := range w.vocab {
			if tok == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-12)

	sim, err = Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-12)

	sim, err = Cosine([]float64{1, 2}, []float64{-1, -2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-12)

	sim, err = Cosine([]float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrEmbeddingFailure)

	_, err = Cosine(nil, nil)
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
}

func TestCosineNonFinite(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"inf component", []float64{math.Inf(1), 1}, []float64{1, 1}},
		{"nan component", []float64{1, math.NaN()}, []float64{1, 1}},
		{"overflowing norm", []float64{1e200, 1e200}, []float64{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := Cosine(tt.a, tt.b)
			assert.ErrorIs(t, err, ErrEmbeddingFailure)
			assert.Zero(t, sim)
		})
	}
}

type constEmbedder []float64

func (c constEmbedder) Embed(context.Context, string) ([]float64, error) { return c, nil }

func TestScoreTextNonFiniteVector(t *testing.T) {
	s := NewScorer(nil, constEmbedder{math.Inf(1), 1}, 0)
	res := s.ScoreText(context.Background(), "v1", "topic", "some transcript")
	assert.False(t, res.Available)
	assert.Equal(t, ReasonEmbeddingFailure, res.Reason)
	assert.Zero(t, res.Score)
}

func TestJoinFragments(t *testing.T) {
	frags := []Fragment{
		{Text: "world", Start: 2},
		{Text: "  hello\n", Start: 1},
		{Text: "", Start: 3},
		{Text: "again", Start: 2},
	}
	assert.Equal(t, "hello world again", JoinFragments(frags))
	assert.Equal(t, "world", frags[0].Text, "input must not be reordered")
	assert.Empty(t, JoinFragments(nil))
}

func TestScorerScore(t *testing.T) {
	emb := wordEmbedder{vocab: []string{"photosynthesis", "light", "guitar"}}
	ts := fakeTranscripts{
		"on":    {{Text: "photosynthesis uses light", Start: 0}},
		"off":   {{Text: "guitar guitar", Start: 0}},
		"empty": {{Text: "   ", Start: 0}},
	}
	s := NewScorer(ts, emb, 0)
	ctx := context.Background()

	on := s.Score(ctx, "on", "photosynthesis light")
	require.True(t, on.Available)
	assert.InDelta(t, 1.0, on.Score, 1e-9)

	off := s.Score(ctx, "off", "photosynthesis light")
	require.True(t, off.Available)
	assert.InDelta(t, 0.0, off.Score, 1e-9)

	missing := s.Score(ctx, "nope", "photosynthesis")
	assert.False(t, missing.Available)
	assert.Equal(t, ReasonTranscriptUnavailable, missing.Reason)
	assert.Zero(t, missing.Score)

	empty := s.Score(ctx, "empty", "photosynthesis")
	assert.Equal(t, ReasonEmptyTranscript, empty.Reason)

	failing := NewScorer(ts, wordEmbedder{fail: true}, 0).Score(ctx, "on", "photosynthesis")
	assert.Equal(t, ReasonEmbeddingFailure, failing.Reason)
}

func TestScorerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScorer(fakeTranscripts{"a": {{Text: "x"}}}, wordEmbedder{vocab: []string{"x"}}, 0)
	res := s.Score(ctx, "a", "x")
	assert.False(t, res.Available)
	assert.Equal(t, ReasonCanceled, res.Reason)
}
