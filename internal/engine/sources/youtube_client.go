package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// ytEducationCategory is the Data API category id of "Education".
const ytEducationCategory = "27"

// errKeyRejected marks a key-level failure (quota, invalid key) that is worth
// retrying with the fallback key.
var errKeyRejected = errors.New("api key rejected")

// YouTubeClient searches videos through the YouTube Data API v3 and returns
// full videos resources (snippet, statistics, contentDetails) in relevance
// order. It implements ranking.SearchSource.
type YouTubeClient struct {
	apiBase    string
	keys       []string
	categoryID string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// YouTubeOption configures a YouTubeClient.
type YouTubeOption func(*YouTubeClient)

// WithAPIBase overrides the Data API base URL.
func WithAPIBase(base string) YouTubeOption {
	return func(c *YouTubeClient) { c.apiBase = strings.TrimRight(base, "/") }
}

// WithCategory sets the videoCategoryId filter; "" disables it.
func WithCategory(id string) YouTubeOption {
	return func(c *YouTubeClient) { c.categoryID = id }
}

// WithRPS limits outgoing API calls per second (<= 0 = unlimited).
func WithRPS(rps float64) YouTubeOption {
	return func(c *YouTubeClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) YouTubeOption {
	return func(c *YouTubeClient) { c.httpClient = hc }
}

// NewYouTubeClient builds a client. Empty keys are dropped; the first key is
// primary and the rest are tried in order on quota errors.
func NewYouTubeClient(keys []string, opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		apiBase:    ytDataAPIBase,
		categoryID: ytEducationCategory,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		httpClient: http.DefaultClient,
	}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			c.keys = append(c.keys, k)
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewYouTubeClientFromConfig builds a client from engine.Cfg.
func NewYouTubeClientFromConfig() *YouTubeClient {
	return NewYouTubeClient(
		[]string{engine.Cfg.YouTubeAPIKey, engine.Cfg.YouTubeAPIKeyFallback},
		WithCategory(engine.Cfg.YouTubeCategoryID),
		WithRPS(engine.Cfg.YouTubeRPS),
		WithHTTPClient(engine.Cfg.HTTPClient),
	)
}

// SearchVideos runs search.list then a videos.list batch for the hits.
// Items come back in search order; ids the second call drops are skipped.
func (c *YouTubeClient) SearchVideos(ctx context.Context, req ranking.SearchRequest) ([]json.RawMessage, error) {
	if len(c.keys) == 0 {
		return nil, errors.New("youtube: no API key configured (set YOUTUBE_API_KEY)")
	}
	limit := req.Limit
	if limit <= 0 || limit > ranking.MaxCandidates {
		limit = ranking.MaxCandidates
	}

	ids, err := c.searchIDs(ctx, req.Query, req.Language, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.videos(ctx, ids)
}

func (c *YouTubeClient) searchIDs(ctx context.Context, query, language string, limit int) ([]string, error) {
	engine.IncrYouTubeSearch()

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("maxResults", strconv.Itoa(limit))
	if c.categoryID != "" {
		params.Set("videoCategoryId", c.categoryID)
	}
	if language != "" && language != "all" {
		params.Set("relevanceLanguage", language)
	}

	body, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: search.list returned invalid JSON", ranking.ErrMalformedResponse)
	}

	var ids []string
	seen := make(map[string]bool)
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id.videoId").String()
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return true
	})
	return ids, nil
}

func (c *YouTubeClient) videos(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	engine.IncrYouTubeVideos()

	params := url.Values{}
	params.Set("part", "statistics,snippet,contentDetails")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(len(ids)))

	body, err := c.get(ctx, "videos", params)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: videos.list returned invalid JSON", ranking.ErrMalformedResponse)
	}

	byID := make(map[string]json.RawMessage, len(ids))
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		if id := item.Get("id").String(); id != "" {
			byID[id] = json.RawMessage(item.Raw)
		}
		return true
	})

	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if raw, ok := byID[id]; ok {
			out = append(out, raw)
		} else {
			slog.Debug("youtube: video missing from videos.list", slog.String("id", id))
		}
	}
	return out, nil
}

// get calls a Data API endpoint, falling back to the next key when the
// current one is rejected (quota exceeded, key invalid).
func (c *YouTubeClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var lastErr error
	for i, key := range c.keys {
		body, err := c.getWithKey(ctx, endpoint, params, key)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errors.Is(err, errKeyRejected) {
			return nil, err
		}
		if i < len(c.keys)-1 {
			slog.Warn("youtube: API key rejected, trying fallback", slog.Any("error", err))
		}
	}
	return nil, lastErr
}

func (c *YouTubeClient) getWithKey(ctx context.Context, endpoint string, params url.Values, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early, before ctx expires, when the next token is past the deadline.
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			return nil, fmt.Errorf("youtube %s: %w: %v", endpoint, context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("youtube %s: %w", endpoint, err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", key)
	apiURL := c.apiBase + "/" + endpoint + "?" + q.Encode()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read youtube %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusBadRequest && isKeyError(body):
		return nil, fmt.Errorf("youtube %s %d: %s: %w", endpoint, resp.StatusCode, apiErrorMessage(body), errKeyRejected)
	default:
		return nil, fmt.Errorf("youtube %s %d: %s", endpoint, resp.StatusCode, apiErrorMessage(body))
	}
}

// apiErrorMessage extracts error.message from a Data API error body.
func apiErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	return engine.TruncateRunes(string(body), 256, "...")
}

func isKeyError(body []byte) bool {
	reason := gjson.GetBytes(body, "error.errors.0.reason").String()
	return reason == "keyInvalid" || reason == "keyExpired"
}
