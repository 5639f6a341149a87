package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/trika-ai/trika-engine/internal/engine"
	"github.com/trika-ai/trika-engine/internal/scheduler"
	"github.com/trika-ai/trika-engine/internal/streaming"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
	Hub       streaming.Hub
	Logger    *slog.Logger
}

// Server exposes the engine over HTTP: REST for workflow and execution
// management, WebSocket and SSE for live execution progress.
type Server struct {
	deps Deps
}

// NewServer creates a new Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Workflow definitions.
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PUT /api/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)

	// Executions.
	mux.HandleFunc("POST /api/workflows/{id}/execute", s.handleExecuteWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/executions", s.handleListWorkflowExecutions)
	mux.HandleFunc("GET /api/executions", s.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)
	mux.HandleFunc("POST /api/executions/{id}/cancel", s.handleCancelExecution)

	// Scheduled jobs.
	mux.HandleFunc("POST /api/scheduler", s.handleCreateJob)
	mux.HandleFunc("GET /api/scheduler", s.handleListJobs)
	mux.HandleFunc("PUT /api/scheduler/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /api/scheduler/{id}", s.handleDeleteJob)

	// Live progress.
	mux.HandleFunc("GET /ws/executions/{id}", s.handleExecutionWS)
	mux.HandleFunc("GET /sse/executions/{id}", s.handleExecutionSSE)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
