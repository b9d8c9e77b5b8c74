package sources

import (
	"regexp"
	"strconv"
)

// YouTube implementation is split across three files by responsibility:
//   youtube_innertube.go  - Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go - timestamped transcript fetching (watch page, engagement panel, ANDROID player)
//   youtube_client.go     - Data API v3 search + videos.list, rate limited, key fallback

const (
	ytDataAPIBase = "https://www.googleapis.com/youtube/v3"
	ytWebBase     = "https://www.youtube.com"
)

var (
	videoIDRE   = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	bareVideoRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// ParseVideoID accepts a bare 11-char video ID or any common YouTube URL
// form and returns the ID, or "" if none is found.
func ParseVideoID(s string) string {
	if bareVideoRE.MatchString(s) {
		return s
	}
	if m := videoIDRE.FindStringSubmatch(s); len(m) >= 2 {
		return m[1]
	}
	return ""
}

// WatchURL returns the watch page URL, optionally at a start offset in seconds.
func WatchURL(videoID string, atSeconds int) string {
	u := ytWebBase + "/watch?v=" + videoID
	if atSeconds > 0 {
		u += "&t=" + strconv.Itoa(atSeconds) + "s"
	}
	return u
}
