// go_study: YouTube study video ranking MCP server.
//
// Exposes four MCP tools: video_rank, video_transcript, video_summary, scoring_modes.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/embed"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/anatolykoptev/go_study/internal/engine/sources"
	"github.com/anatolykoptev/go_study/internal/studyserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	configureLogger(env.Str("LOG_LEVEL", "info"), env.Str("LOG_FORMAT", "text"))
	c := initEngine()

	deps, closeStore := buildDeps(c)
	defer closeStore()

	slog.Info("starting go_study",
		slog.String("port", mcpPort),
		slog.Bool("youtube_key", c.YouTubeAPIKey != ""),
		slog.Bool("embeddings", c.EmbedAPIKey != ""),
		slog.Bool("llm", c.LLMClient != nil),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_study",
		Version: version,
	}, nil)

	studyserver.RegisterTools(server, deps)
	slog.Info("tools registered", slog.Int("count", studyserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_study",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() engine.Config {
	c := engine.Config{
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		YouTubeRPS:            env.Float("YOUTUBE_RPS", 5),
		YouTubeCategoryID:     env.Str("YOUTUBE_CATEGORY_ID", "27"),
		SearchTimeout:         env.Duration("SEARCH_TIMEOUT", 15*time.Second),
		TranscriptTimeout:     env.Duration("TRANSCRIPT_TIMEOUT", 20*time.Second),
		TranscriptLangs:       env.List("TRANSCRIPT_LANGS", "en"),
		RankWorkers:           env.Int("RANK_WORKERS", 10),
		EmbedAPIKey:           env.Str("EMBED_API_KEY", ""),
		EmbedAPIBase:          env.Str("EMBED_API_BASE", "https://api.openai.com/v1/"),
		EmbedModel:            env.Str("EMBED_MODEL", embed.DefaultModel),
		EmbedCachePath:        env.Str("EMBED_CACHE_PATH", embed.DefaultStorePath()),
		LLMAPIKey:             env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:    env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:            env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:              env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:        env.Float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:          env.Int("LLM_MAX_TOKENS", 4096),
		MaxContentChars:       env.Int("MAX_CONTENT_CHARS", 12000),
		CacheMaxEntries:       env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval:  env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return c
}

// buildDeps wires search, transcripts and similarity into the tool
// collaborators. Without EMBED_API_KEY every similarity is reported unavailable.
func buildDeps(c engine.Config) (studyserver.Deps, func()) {
	transcripts := sources.NewTranscriptFetcher()
	deps := studyserver.Deps{Transcripts: transcripts}
	closeStore := func() {}

	var scorer ranking.SimilarityScorer
	if c.EmbedAPIKey != "" {
		embedOpts := []embed.Option{
			embed.WithBaseURL(c.EmbedAPIBase),
			embed.WithModel(c.EmbedModel),
			embed.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		}
		if c.EmbedCachePath != "" {
			store, err := embed.OpenStore(c.EmbedCachePath)
			if err != nil {
				slog.Warn("embedding store init failed, caching in memory only", slog.Any("error", err))
			} else {
				embedOpts = append(embedOpts, embed.WithStore(store))
				closeStore = func() { store.Close() }
				slog.Info("embedding store opened", slog.String("path", c.EmbedCachePath))
			}
		}
		s := ranking.NewScorer(transcripts, embed.NewOpenAIEmbedder(c.EmbedAPIKey, embedOpts...), c.TranscriptTimeout)
		scorer = s
		deps.Scorer = s
	}

	deps.Ranker = ranking.NewRanker(sources.NewYouTubeClientFromConfig(), scorer, ranking.Options{
		Workers:       c.RankWorkers,
		SearchTimeout: c.SearchTimeout,
		Limit:         ranking.MaxCandidates,
	})
	return deps, closeStore
}
