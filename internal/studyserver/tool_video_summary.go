package studyserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/anatolykoptev/go_study/internal/engine/sources"
	"github.com/anatolykoptev/go_study/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerVideoSummary(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_summary",
		Description: "Summarize a YouTube video's transcript for study. With a topic, the summary focuses on that topic, says how well the video covers it, and includes the transcript-to-topic similarity (cosine of embeddings, -1 to 1).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoSummaryInput) (*mcp.CallToolResult, engine.VideoSummaryOutput, error) {
		out, err := d.videoSummary(ctx, input)
		return nil, out, err
	})
}

func (d Deps) videoSummary(ctx context.Context, input engine.VideoSummaryInput) (engine.VideoSummaryOutput, error) {
	if err := toolutil.LanguageTag(input.Language); err != nil {
		return engine.VideoSummaryOutput{}, err
	}
	topic := strings.Join(strings.Fields(input.Topic), " ")

	cacheKey := engine.CacheKey("video_summary", strings.TrimSpace(input.Video), topic, toolutil.NormLang(input.Language))
	if out, ok := engine.CacheLoadJSON[engine.VideoSummaryOutput](ctx, cacheKey); ok {
		return out, nil
	}

	id, frags, err := d.fetchTranscript(ctx, input.Video, input.Language)
	if err != nil {
		return engine.VideoSummaryOutput{}, err
	}
	transcript := ranking.JoinFragments(frags)

	summary, err := engine.SummarizeTranscript(ctx, topic, "YouTube video "+id, transcript)
	if err != nil {
		if errors.Is(err, engine.ErrLLMDisabled) {
			return engine.VideoSummaryOutput{}, err
		}
		return engine.VideoSummaryOutput{}, fmt.Errorf("summary failed: %w", err)
	}

	out := engine.VideoSummaryOutput{
		VideoID:   id,
		URL:       sources.WatchURL(id, 0),
		Summary:   summary.Answer,
		KeyPoints: summary.KeyPoints,
		Coverage:  summary.Coverage,
	}
	if topic != "" && d.Scorer != nil {
		res := d.Scorer.ScoreText(ctx, id, topic, transcript)
		if res.Available {
			out.Similarity = &res.Score
		} else {
			slog.Debug("video_summary: similarity unavailable",
				slog.String("id", id), slog.String("reason", string(res.Reason)))
		}
	}

	engine.CacheStoreJSON(ctx, cacheKey, out)
	return out, nil
}
