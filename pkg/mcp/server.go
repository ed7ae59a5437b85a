package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/mcp/tools"
	"github.com/agrovision-ai/agrovision-engine/pkg/middleware"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
)

const instructions = "Farm advisory tools for Indian agriculture: crop market prices, pest information " +
	"and outbreak predictions, weather advisories and nearby fertilizer stores. " +
	"Tool errors carry a farmer-facing message; relay it rather than retrying immediately."

// Server exposes the advisory capabilities over the Model Context Protocol.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. Panics inside tool handlers
// are turned into tool errors.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterAdvisoryTools registers the health tool and every advisory tool.
// prober may be nil.
func (s *Server) RegisterAdvisoryTools(version string, svc services.AdvisoryService, prober llm.Prober) {
	tools.RegisterHealthTool(s.mcp, version, prober)
	tools.RegisterAdvisoryTools(s.mcp, &tools.AdvisoryToolDeps{
		Service: svc,
		Logger:  s.logger.Named("mcp-tools"),
	})
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// Handler returns the streamable HTTP transport with tool-call logging.
func (s *Server) Handler() http.Handler {
	return middleware.MCPRequestLogger(s.logger)(s.NewStreamableHTTPServer())
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
