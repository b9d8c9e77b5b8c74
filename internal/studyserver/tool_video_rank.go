package studyserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/anatolykoptev/go_study/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerVideoRank(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_rank",
		Description: "Find the best YouTube video to study a topic. Searches YouTube (Education category), scores each result by the chosen mode (overview: short and engaging; top_rated: most viewed and liked; detailed: long and in-depth), and reports transcript-to-topic similarity. Returns the best video, the full ranked list and a markdown explanation of why the best video was picked.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoRankInput) (*mcp.CallToolResult, engine.VideoRankOutput, error) {
		out, err := d.videoRank(ctx, input)
		return nil, out, err
	})
}

func (d Deps) videoRank(ctx context.Context, input engine.VideoRankInput) (engine.VideoRankOutput, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return engine.VideoRankOutput{}, fmt.Errorf("subject is required")
	}
	if err := toolutil.LanguageTag(input.Language); err != nil {
		return engine.VideoRankOutput{}, err
	}
	policy, err := toolutil.ParseMode(input.Mode)
	if err != nil {
		return engine.VideoRankOutput{}, err
	}

	q := ranking.Query{
		Topic:       input.Subject,
		Subsections: input.Subsections,
		Language:    toolutil.NormLang(input.Language),
	}
	cacheKey := engine.CacheKey("video_rank", q.Subject(), q.Language, policy.String())
	if out, ok := engine.CacheLoadJSON[engine.VideoRankOutput](ctx, cacheKey); ok {
		return out, nil
	}

	engine.IncrRankRequests()
	var r *ranking.Ranking
	err = engine.TrackOperation(ctx, "video_rank", func(ctx context.Context) error {
		var rankErr error
		r, rankErr = d.Ranker.Rank(ctx, q, policy)
		return rankErr
	})
	if err != nil {
		engine.IncrRankErrors()
		slog.Warn("video_rank: ranking failed",
			slog.String("subject", q.Subject()), slog.String("mode", policy.String()), slog.Any("error", err))
		return engine.VideoRankOutput{}, userError(err)
	}

	out := engine.NewVideoRankOutput(r)
	engine.CacheStoreJSON(ctx, cacheKey, out)
	slog.Info("video_rank: done",
		slog.String("ranking_id", r.ID),
		slog.String("best", r.Best.Candidate.ID),
		slog.Int("candidates", len(r.Candidates)),
		slog.Int("similarity_coverage", out.Coverage))
	return out, nil
}
