package studyserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/anatolykoptev/go_study/internal/engine/sources"
	"github.com/anatolykoptev/go_study/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultTranscriptChars = 20000
	segmentSeconds         = 60
	maxSegments            = 120
	segmentTextChars       = 240
)

func registerVideoTranscript(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_transcript",
		Description: "Fetch the transcript of a YouTube video (ID or URL). Returns the caption text in timestamp order, the number of caption fragments, the covered duration in seconds, and minute-by-minute segments with timestamp links into the video.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoTranscriptInput) (*mcp.CallToolResult, engine.VideoTranscriptOutput, error) {
		out, err := d.videoTranscript(ctx, input)
		return nil, out, err
	})
}

func (d Deps) videoTranscript(ctx context.Context, input engine.VideoTranscriptInput) (engine.VideoTranscriptOutput, error) {
	id, frags, err := d.fetchTranscript(ctx, input.Video, input.Language)
	if err != nil {
		return engine.VideoTranscriptOutput{}, err
	}

	maxChars := input.MaxChars
	if maxChars <= 0 {
		maxChars = defaultTranscriptChars
	}
	full := ranking.JoinFragments(frags)
	text := engine.TruncateRunes(full, maxChars, "...")

	return engine.VideoTranscriptOutput{
		VideoID:         id,
		URL:             sources.WatchURL(id, 0),
		Fragments:       len(frags),
		DurationSeconds: sources.TranscriptDuration(frags),
		Transcript:      text,
		Truncated:       text != full,
		Segments:        segments(id, frags),
	}, nil
}

// segments groups fragments into windows of segmentSeconds, each linked to
// the video at its first fragment. At most maxSegments are returned.
func segments(id string, frags []ranking.Fragment) []engine.TranscriptSegment {
	ordered := make([]ranking.Fragment, len(frags))
	copy(ordered, frags)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var out []engine.TranscriptSegment
	var words []string
	start := -1.0
	flush := func() {
		if len(words) == 0 {
			return
		}
		out = append(out, engine.TranscriptSegment{
			Start:     start,
			Timestamp: timestamp(start),
			Text:      engine.TruncateAtWord(strings.Join(words, " "), segmentTextChars),
			URL:       sources.WatchURL(id, int(start)),
		})
		words = words[:0]
	}
	for _, f := range ordered {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if start < 0 || f.Start-start >= segmentSeconds {
			flush()
			if len(out) == maxSegments {
				break
			}
			start = f.Start
		}
		words = append(words, text)
	}
	if len(out) < maxSegments {
		flush()
	}
	return out
}

// timestamp formats seconds as m:ss or h:mm:ss.
func timestamp(secs float64) string {
	s := int(secs)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// fetchTranscript resolves a video reference and fetches its captions.
func (d Deps) fetchTranscript(ctx context.Context, video, lang string) (string, []ranking.Fragment, error) {
	if strings.TrimSpace(video) == "" {
		return "", nil, fmt.Errorf("video is required")
	}
	id := sources.ParseVideoID(video)
	if id == "" {
		return "", nil, fmt.Errorf("not a YouTube video ID or URL: %q", video)
	}
	frags, err := d.Transcripts.TranscriptIn(ctx, id, toolutil.TranscriptLangs(lang))
	if err != nil {
		return id, nil, userError(err)
	}
	return id, frags, nil
}
