package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trika-ai/trika-engine/internal/engine"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Engine *engine.Engine
	Logger *slog.Logger
}

// Server wraps an MCP server exposing the workflow engine as tools for
// agent callers over stdio.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all 5 workflow tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		engine: deps.Engine,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"trika-engine",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Trika is a DAG workflow execution engine. Use workflow.define to register a workflow, workflow.update to replace one, workflow.run to execute it, workflow.status to poll an execution, and workflow.executions to list past runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: updateTool(), Handler: s.handleUpdate},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: executionsTool(), Handler: s.handleExecutions},
	}
}

// --- Tool definitions ---

func defineTool() mcp.Tool {
	return mcp.NewTool("workflow.define",
		mcp.WithDescription("Validate and register a workflow definition (nodes and edges forming a DAG)"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition object with name, nodes, and edges")),
	)
}

func updateTool() mcp.Tool {
	return mcp.NewTool("workflow.update",
		mcp.WithDescription("Replace an existing workflow definition"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to replace")),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Replacement workflow definition")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("workflow.run",
		mcp.WithDescription("Launch an asynchronous execution of a workflow and return the pending execution record"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to execute")),
		mcp.WithObject("input_data", mcp.Description("Input data seeded into the execution context")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("workflow.status",
		mcp.WithDescription("Get the status, output, and per-node results of an execution"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("ID of the execution to query")),
	)
}

func executionsTool() mcp.Tool {
	return mcp.NewTool("workflow.executions",
		mcp.WithDescription("List execution records, newest first"),
		mcp.WithString("workflow_id", mcp.Description("Restrict to one workflow")),
		mcp.WithString("status", mcp.Description("Restrict to one status (pending, running, completed, failed)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 50)")),
	)
}
