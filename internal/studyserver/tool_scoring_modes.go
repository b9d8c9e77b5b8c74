package studyserver

import (
	"context"

	"github.com/anatolykoptev/go_study/internal/engine"
	"github.com/anatolykoptev/go_study/internal/engine/ranking"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerScoringModes(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scoring_modes",
		Description: "List the scoring modes accepted by video_rank with their descriptions and weights.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.ScoringModesInput) (*mcp.CallToolResult, engine.ScoringModesOutput, error) {
		return nil, scoringModes(), nil
	})
}

func scoringModes() engine.ScoringModesOutput {
	policies := ranking.Policies()
	out := engine.ScoringModesOutput{Modes: make([]engine.ScoringMode, 0, len(policies))}
	for _, p := range policies {
		w, _ := p.Weights()
		out.Modes = append(out.Modes, engine.ScoringMode{
			Name:        p.String(),
			Description: p.Description(),
			Weights:     w,
		})
	}
	return out
}
