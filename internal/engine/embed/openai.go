// Package embed turns text into vectors for topic/transcript similarity.
// Vectors come from an OpenAI-compatible /embeddings endpoint and are cached
// in memory and, optionally, in a SQLite store.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultModel    = "text-embedding-3-small"
	defaultMaxChars = 24000 // stays under the 8191-token input limit
	defaultTimeout  = 30 * time.Second
)

// OpenAIEmbedder implements ranking.Embedder. It is safe for concurrent use;
// identical inputs in flight at the same time share one remote call.
type OpenAIEmbedder struct {
	client   openai.Client
	model    string
	maxChars int
	timeout  time.Duration
	store    *Store
	breaker  *gobreaker.CircuitBreaker
	inflight singleflight.Group
	mem      sync.Map // text hash → []float64
}

type config struct {
	baseURL    string
	model      string
	maxChars   int
	timeout    time.Duration
	store      *Store
	httpClient *http.Client
}

// Option configures an OpenAIEmbedder.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible API.
func WithBaseURL(u string) Option { return func(c *config) { c.baseURL = u } }

// WithModel selects the embedding model.
func WithModel(m string) Option { return func(c *config) { c.model = m } }

// WithMaxChars caps the input length in runes.
func WithMaxChars(n int) Option { return func(c *config) { c.maxChars = n } }

// WithTimeout bounds one remote embedding call.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithStore enables the persistent vector cache.
func WithStore(s *Store) Option { return func(c *config) { c.store = s } }

// WithHTTPClient sets the HTTP client for API calls.
func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.httpClient = hc } }

// NewOpenAIEmbedder builds an embedder authenticated with apiKey.
func NewOpenAIEmbedder(apiKey string, opts ...Option) *OpenAIEmbedder {
	c := config{model: DefaultModel, maxChars: defaultMaxChars, timeout: defaultTimeout}
	for _, o := range opts {
		o(&c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}

	return &OpenAIEmbedder{
		client:   openai.NewClient(reqOpts...),
		model:    c.model,
		maxChars: c.maxChars,
		timeout:  c.timeout,
		store:    c.store,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embeddings",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("embed: breaker state change",
					slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
			},
		}),
	}
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed returns the vector of text after NFKC normalisation and truncation.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	text = engine.NormalizeText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ranking.ErrEmbeddingFailure)
	}
	text = engine.TruncateRunes(text, e.maxChars, "")
	key := hashText(text)

	if v, ok := e.mem.Load(key); ok {
		return v.([]float64), nil
	}
	if e.store != nil {
		vec, ok, err := e.store.Get(ctx, e.model, text)
		if err != nil {
			slog.Debug("embed: store get failed", slog.Any("error", err))
		} else if ok {
			engine.IncrEmbeddingStoreHits()
			e.mem.Store(key, vec)
			return vec, nil
		}
	}

	// The remote call runs detached from ctx so one caller giving up neither
	// fails the others waiting on the same text nor counts against the breaker.
	ch := e.inflight.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		v, err := e.breaker.Execute(func() (any, error) {
			return e.remote(rctx, text)
		})
		if err != nil {
			return nil, err
		}
		vec := v.([]float64)
		e.mem.Store(key, vec)
		if e.store != nil {
			if err := e.store.Put(rctx, e.model, text, vec); err != nil {
				slog.Warn("embed: store put failed", slog.Any("error", err))
			}
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ranking.ErrEmbeddingFailure, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			engine.IncrEmbeddingErrors()
			if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: service unavailable: %v", ranking.ErrEmbeddingFailure, res.Err)
			}
			return nil, fmt.Errorf("%w: %v", ranking.ErrEmbeddingFailure, res.Err)
		}
		return res.Val.([]float64), nil
	}
}

func (e *OpenAIEmbedder) remote(ctx context.Context, text string) ([]float64, error) {
	engine.IncrEmbeddingCalls()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}
