package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	RankRequests              atomic.Int64
	RankErrors                atomic.Int64
	YouTubeSearchRequests     atomic.Int64
	YouTubeVideosRequests     atomic.Int64
	YouTubeTranscriptRequests atomic.Int64
	YouTubeTranscriptErrors   atomic.Int64
	EmbeddingCalls            atomic.Int64
	EmbeddingErrors           atomic.Int64
	EmbeddingStoreHits        atomic.Int64
	LLMCalls                  atomic.Int64
	LLMErrors                 atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"rank_requests", "rank_errors",
	"youtube_search_requests", "youtube_videos_requests",
	"youtube_transcript_requests", "youtube_transcript_errors",
	"embedding_calls", "embedding_errors", "embedding_store_hits",
	"llm_calls", "llm_errors",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"rank_requests":               metrics.RankRequests.Load(),
		"rank_errors":                 metrics.RankErrors.Load(),
		"youtube_search_requests":     metrics.YouTubeSearchRequests.Load(),
		"youtube_videos_requests":     metrics.YouTubeVideosRequests.Load(),
		"youtube_transcript_requests": metrics.YouTubeTranscriptRequests.Load(),
		"youtube_transcript_errors":   metrics.YouTubeTranscriptErrors.Load(),
		"embedding_calls":             metrics.EmbeddingCalls.Load(),
		"embedding_errors":            metrics.EmbeddingErrors.Load(),
		"embedding_store_hits":        metrics.EmbeddingStoreHits.Load(),
		"llm_calls":                   metrics.LLMCalls.Load(),
		"llm_errors":                  metrics.LLMErrors.Load(),
		"cache_hits":                  hits,
		"cache_misses":                misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for studyserver.
func IncrRankRequests() { metrics.RankRequests.Add(1) }
func IncrRankErrors()   { metrics.RankErrors.Add(1) }

// Incrementors for sources/ sub-package.
func IncrYouTubeSearch()          { metrics.YouTubeSearchRequests.Add(1) }
func IncrYouTubeVideos()          { metrics.YouTubeVideosRequests.Add(1) }
func IncrYouTubeTranscript()      { metrics.YouTubeTranscriptRequests.Add(1) }
func IncrYouTubeTranscriptError() { metrics.YouTubeTranscriptErrors.Add(1) }

// Incrementors for embed/ sub-package.
func IncrEmbeddingCalls()     { metrics.EmbeddingCalls.Add(1) }
func IncrEmbeddingErrors()    { metrics.EmbeddingErrors.Add(1) }
func IncrEmbeddingStoreHits() { metrics.EmbeddingStoreHits.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
