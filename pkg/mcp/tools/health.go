package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

type healthResult struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	AI      *llm.ProbeResult `json:"ai,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// With a prober, the tool also reports whether the AI provider answers
// and the status becomes "degraded" when it does not.
func RegisterHealthTool(s *server.MCPServer, version string, prober llm.Prober) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and AI provider reachability"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		health := healthResult{Status: "ok", Version: version}
		if prober != nil {
			health.AI = prober.Probe(ctx)
			if !health.AI.Success {
				health.Status = "degraded"
			}
		}

		result, err := json.Marshal(health)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
