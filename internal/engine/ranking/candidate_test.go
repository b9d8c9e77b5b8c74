package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"PT10M", 600, false},
		{"PT1H2M3S", 3723, false},
		{"PT45S", 45, false},
		{"pt3m", 180, false},
		{"P0D", 0, false},
		{"", 0, true},
		{"ten minutes", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExtractCandidate(t *testing.T) {
	t.Run("full item", func(t *testing.T) {
		raw := []byte(`{
			"id": "abc123",
			"snippet": {"title": "Photosynthesis explained", "description": "plants"},
			"statistics": {"viewCount": "5000", "likeCount": "200", "commentCount": "12"},
			"contentDetails": {"duration": "PT10M"}
		}`)
		c, err := ExtractCandidate(raw)
		require.NoError(t, err)
		assert.Equal(t, "abc123", c.ID)
		assert.Equal(t, "Photosynthesis explained", c.Title)
		assert.Equal(t, uint64(5000), c.ViewCount)
		assert.Equal(t, uint64(200), c.LikeCount)
		assert.Equal(t, uint64(12), c.CommentCount)
		assert.InDelta(t, 600, c.DurationSeconds, 1e-9)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc123", c.URL())

		sig := Normalize(c)
		assert.InDelta(t, 5.0, sig.Engagement, 1e-9)
		assert.InDelta(t, 0.2, sig.Likes, 1e-9)
		assert.InDelta(t, 10.0, sig.Duration, 1e-9)
	})

	t.Run("search shaped id", func(t *testing.T) {
		raw := []byte(`{"id": {"kind": "youtube#video", "videoId": "xyz"},
			"snippet": {"title": "t"}, "statistics": {}}`)
		c, err := ExtractCandidate(raw)
		require.NoError(t, err)
		assert.Equal(t, "xyz", c.ID)
	})

	t.Run("hidden likes default to zero", func(t *testing.T) {
		raw := []byte(`{"id": "a", "snippet": {"title": "t"},
			"statistics": {"viewCount": "10"}, "contentDetails": {"duration": "PT1M"}}`)
		c, err := ExtractCandidate(raw)
		require.NoError(t, err)
		assert.Zero(t, c.LikeCount)
		assert.Equal(t, uint64(10), c.ViewCount)
	})

	t.Run("bad duration degrades to zero", func(t *testing.T) {
		raw := []byte(`{"id": "a", "snippet": {"title": "t"},
			"statistics": {"viewCount": "10"}, "contentDetails": {"duration": "forever"}}`)
		c, err := ExtractCandidate(raw)
		require.NoError(t, err)
		assert.Zero(t, c.DurationSeconds)
	})

	t.Run("unparseable counters default to zero", func(t *testing.T) {
		raw := []byte(`{"id": "a", "snippet": {"title": "t"},
			"statistics": {"viewCount": "abc", "likeCount": "-3", "commentCount": "7"}}`)
		c, err := ExtractCandidate(raw)
		require.NoError(t, err)
		assert.Zero(t, c.ViewCount)
		assert.Zero(t, c.LikeCount)
		assert.Equal(t, uint64(7), c.CommentCount)
	})

	malformed := map[string]string{
		"not json":           `{"id": `,
		"missing id":         `{"snippet": {"title": "t"}, "statistics": {}}`,
		"missing title":      `{"id": "a", "statistics": {}}`,
		"missing statistics": `{"id": "a", "snippet": {"title": "t"}}`,
	}
	for name, raw := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractCandidate([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}
