package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	YouTubeRPS            float64
	YouTubeCategoryID     string // "" = no category filter
	SearchTimeout         time.Duration
	TranscriptTimeout     time.Duration
	TranscriptLangs       []string
	RankWorkers           int

	EmbedAPIKey    string
	EmbedAPIBase   string
	EmbedModel     string
	EmbedCachePath string // "" = in-memory only

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	MaxContentChars    int

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch page scraping uses HTTPClient
	LLMClient     *llm.Client    // nil = video_summary disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, embed).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if len(c.TranscriptLangs) == 0 {
		c.TranscriptLangs = []string{"en"}
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = 4096
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 12000
	}
	cfg = c
	Cfg = &cfg
}
