package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/flowgraph"
)

// ServerName is the name reported to MCP clients.
const ServerName = "flowgraph"

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Engine  *flowgraph.Engine
	Logger  *slog.Logger
	Version string
}

// Server exposes the conversion engine as MCP tools.
type Server struct {
	engine    *flowgraph.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all four tools registered. A nil Engine
// is replaced by one with default options.
func NewServer(deps ServerDeps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(logging.NewCorrelationHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
	eng := deps.Engine
	if eng == nil {
		var err error
		if eng, err = flowgraph.New(flowgraph.WithLogger(logger)); err != nil {
			return nil, fmt.Errorf("mcp: %w", err)
		}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{engine: eng, logger: logger}

	mcpSrv := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowgraph converts workflow definitions between the legacy stage/block tree, the canonical IR and a positioned node graph. Use flowgraph.to_graph to load a definition for editing, flowgraph.from_graph to save an edited graph, flowgraph.validate to check an IR, and flowgraph.roundtrip to verify that a graph survives save and reload."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the stdio transport over in and out.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: toGraphTool(), Handler: s.handleToGraph},
		{Tool: fromGraphTool(), Handler: s.handleFromGraph},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: roundTripTool(), Handler: s.handleRoundTrip},
	}
}

// --- Tool definitions ---

func toGraphTool() mcp.Tool {
	return mcp.NewTool("flowgraph.to_graph",
		mcp.WithDescription("Convert a legacy or canonical workflow definition into a positioned node graph"),
		mcp.WithObject("definition", mcp.Description("Workflow definition object, legacy (stages) or canonical (trigger + steps)")),
		mcp.WithString("text", mcp.Description("Workflow definition as JSON or YAML text, used when definition is absent")),
		mcp.WithString("event_source_type", mcp.Description("Legacy event source type used to infer the trigger (ACTIVE_TABLE, WEBHOOK, OPTIN_FORM, SCHEDULE)")),
		mcp.WithObject("event_source_params", mcp.Description("Legacy event source parameters copied into the trigger config")),
	)
}

func fromGraphTool() mcp.Tool {
	return mcp.NewTool("flowgraph.from_graph",
		mcp.WithDescription("Convert an edited node graph back into canonical workflow IR"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph object with nodes and edges")),
		mcp.WithObject("trigger", mcp.Required(), mcp.Description("Workflow trigger with type and config")),
		mcp.WithString("format",
			mcp.Enum("json", "yaml"),
			mcp.Description("Return the IR as text in this format instead of a JSON object"),
		),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flowgraph.validate",
		mcp.WithDescription("Validate canonical workflow IR and report every issue with its location"),
		mcp.WithObject("ir", mcp.Required(), mcp.Description("Canonical workflow IR object")),
	)
}

func roundTripTool() mcp.Tool {
	return mcp.NewTool("flowgraph.roundtrip",
		mcp.WithDescription("Check that a node graph survives save and reload without structural changes"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph object with nodes and edges")),
		mcp.WithObject("trigger", mcp.Required(), mcp.Description("Workflow trigger with type and config")),
	)
}
