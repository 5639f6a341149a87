// Package engine executes workflow definitions: it owns the workflow and
// execution lifecycles, runs nodes in dependency order, and publishes live
// progress to the streaming hub.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trika-ai/trika-engine/internal/graph"
	"github.com/trika-ai/trika-engine/internal/logging"
	"github.com/trika-ai/trika-engine/internal/nodes"
	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/internal/validation"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// Engine coordinates workflow definitions and their executions.
type Engine struct {
	store     store.Store
	registry  *nodes.Registry
	hub       streaming.Hub
	validator *validation.Validator
	logger    *slog.Logger

	// mu guards running map.
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates an Engine. The registry decides which node types are valid;
// the hub receives progress events for every execution.
func New(st store.Store, registry *nodes.Registry, hub streaming.Hub, logger *slog.Logger) (*Engine, error) {
	validator, err := validation.New(registry)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		registry:  registry,
		hub:       hub,
		validator: validator,
		logger:    logger,
		running:   make(map[string]context.CancelFunc),
	}, nil
}

// CreateWorkflow validates and persists a new definition. A missing ID is
// assigned; timestamps are set server-side.
func (e *Engine) CreateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) (*schema.WorkflowDefinition, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	if err := e.validator.ValidateDefinition(def); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := e.store.CreateWorkflow(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateWorkflow validates and replaces an existing definition. CreatedAt is
// preserved from the stored copy.
func (e *Engine) UpdateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) (*schema.WorkflowDefinition, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}

	existing, err := e.store.GetWorkflow(ctx, def.ID)
	if err != nil {
		return nil, err
	}

	if err := e.validator.ValidateDefinition(def); err != nil {
		return nil, err
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateWorkflow(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// GetWorkflow loads a definition by id.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	return e.store.GetWorkflow(ctx, id)
}

// ListWorkflows lists stored definitions.
func (e *Engine) ListWorkflows(ctx context.Context, filter store.WorkflowFilter) ([]*schema.WorkflowDefinition, error) {
	return e.store.ListWorkflows(ctx, filter)
}

// DeleteWorkflow removes a definition. Execution history is kept: records
// reference workflows but do not depend on them.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	return e.store.DeleteWorkflow(ctx, id)
}

// ExecuteWorkflow validates the stored definition, creates a pending
// execution record, and starts the run asynchronously. The returned record
// reflects the pending state; progress is observable through the hub and
// GetExecutionStatus.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, inputData map[string]any) (*schema.ExecutionRecord, error) {
	def, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(def, e.registry)
	if err != nil {
		return nil, err
	}

	rec := &schema.ExecutionRecord{
		ID:         uuid.NewString(),
		WorkflowID: def.ID,
		Status:     schema.ExecutionStatusPending,
		InputData:  inputData,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateExecution(ctx, rec); err != nil {
		return nil, err
	}

	// Detach from the caller's context: the run outlives the request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = logging.WithWorkflowID(runCtx, def.ID)
	runCtx = logging.WithExecutionID(runCtx, rec.ID)

	e.mu.Lock()
	e.running[rec.ID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			e.mu.Lock()
			delete(e.running, rec.ID)
			e.mu.Unlock()
		}()
		e.run(runCtx, def, g, rec)
	}()

	out := *rec
	return &out, nil
}

// GetExecutionStatus loads the durable record for one execution.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID string) (*schema.ExecutionRecord, error) {
	return e.store.GetExecution(ctx, executionID)
}

// ListExecutions lists execution records, newest first.
func (e *Engine) ListExecutions(ctx context.Context, filter store.ExecutionFilter) ([]*schema.ExecutionRecord, error) {
	return e.store.ListExecutions(ctx, filter)
}

// CancelExecution requests cooperative cancellation of a running execution.
// The run stops before its next node; nodes already in flight finish first.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	e.mu.Lock()
	cancel, ok := e.running[executionID]
	e.mu.Unlock()

	if ok {
		cancel()
		return nil
	}

	rec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeConflict,
		"execution %q is not running (status %s)", executionID, rec.Status)
}

// Running reports whether an execution is currently in flight.
func (e *Engine) Running(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[executionID]
	return ok
}
