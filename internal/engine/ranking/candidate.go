package ranking

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sosodev/duration"
	"github.com/tidwall/gjson"
)

// Normalisation constants shared by every policy.
const (
	viewsPerUnit     = 1000.0
	likesPerUnit     = 1000.0
	secondsPerMinute = 60.0
)

// Candidate is a single video returned by the search collaborator.
// It is never mutated after extraction.
type Candidate struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	ViewCount       uint64  `json:"view_count"`
	LikeCount       uint64  `json:"like_count"`
	CommentCount    uint64  `json:"comment_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// URL returns the watch page of the candidate.
func (c Candidate) URL() string {
	return "https://www.youtube.com/watch?v=" + c.ID
}

// Signals holds the normalised metric terms fed to a Policy.
type Signals struct {
	Engagement float64 // views / 1000
	Likes      float64 // likes / 1000
	Duration   float64 // minutes
}

// Normalize converts raw counters into policy inputs.
func Normalize(c Candidate) Signals {
	return Signals{
		Engagement: float64(c.ViewCount) / viewsPerUnit,
		Likes:      float64(c.LikeCount) / likesPerUnit,
		Duration:   c.DurationSeconds / secondsPerMinute,
	}
}

var errEmptyDuration = errors.New("empty duration")

// ParseDuration converts an ISO-8601 duration ("PT10M", "PT1H2M3S") to seconds.
func ParseDuration(encoded string) (float64, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return 0, errEmptyDuration
	}
	d, err := duration.Parse(strings.ToUpper(encoded))
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", encoded, err)
	}
	secs := d.ToTimeDuration().Seconds()
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %q", encoded)
	}
	return secs, nil
}

// ExtractCandidate turns one YouTube Data API videos item into a Candidate.
// id, snippet.title and statistics are required; missing or unparseable
// counters default to zero and an unparseable duration degrades to zero seconds.
func ExtractCandidate(raw []byte) (Candidate, error) {
	if !gjson.ValidBytes(raw) {
		return Candidate{}, fmt.Errorf("%w: invalid JSON item", ErrMalformedResponse)
	}
	item := gjson.ParseBytes(raw)

	id := item.Get("id")
	if id.IsObject() {
		// search.list shape: {"kind": "...", "videoId": "..."}
		id = id.Get("videoId")
	}
	if id.String() == "" {
		return Candidate{}, fmt.Errorf("%w: missing id", ErrMalformedResponse)
	}

	title := item.Get("snippet.title")
	if !title.Exists() {
		return Candidate{}, fmt.Errorf("%w: video %s: missing snippet.title", ErrMalformedResponse, id.String())
	}

	stats := item.Get("statistics")
	if !stats.IsObject() {
		return Candidate{}, fmt.Errorf("%w: video %s: missing statistics", ErrMalformedResponse, id.String())
	}

	c := Candidate{
		ID:           id.String(),
		Title:        title.String(),
		Description:  item.Get("snippet.description").String(),
		ViewCount:    counter(id.String(), stats, "viewCount"),
		LikeCount:    counter(id.String(), stats, "likeCount"),
		CommentCount: counter(id.String(), stats, "commentCount"),
	}

	if secs, err := ParseDuration(item.Get("contentDetails.duration").String()); err == nil {
		c.DurationSeconds = secs
	} else {
		slog.Debug("ranking: duration unavailable, using 0",
			slog.String("id", c.ID), slog.Any("error", err))
	}
	return c, nil
}

// counter reads a statistics field. The Data API encodes counts as strings.
func counter(id string, stats gjson.Result, name string) uint64 {
	v := stats.Get(name)
	if !v.Exists() {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v.String()), 10, 64)
	if err != nil {
		slog.Debug("ranking: counter unparseable, using 0",
			slog.String("id", id), slog.String("field", name), slog.Any("error", err))
		return 0
	}
	return n
}
