package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// handleDefine validates and registers a workflow definition.
func (s *Server) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, err := parseDefinition(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, createErr := s.engine.CreateWorkflow(ctx, def)
	if createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create workflow: %v", createErr)), nil
	}
	return marshalResult(created)
}

// handleUpdate replaces an existing workflow definition.
func (s *Server) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	def, parseErr := parseDefinition(req)
	if parseErr != nil {
		return mcp.NewToolResultError(parseErr.Error()), nil
	}
	def.ID = workflowID

	updated, updateErr := s.engine.UpdateWorkflow(ctx, def)
	if updateErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update workflow: %v", updateErr)), nil
	}
	return marshalResult(updated)
}

// handleRun launches an asynchronous execution.
func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	inputData := mcp.ParseStringMap(req, "input_data", nil)

	rec, runErr := s.engine.ExecuteWorkflow(ctx, workflowID, inputData)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow launch failed: %v", runErr)), nil
	}
	return marshalResult(rec)
}

// handleStatus returns the current state of an execution.
func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}

	rec, statusErr := s.engine.GetExecutionStatus(ctx, executionID)
	if statusErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", statusErr)), nil
	}
	return marshalResult(rec)
}

// handleExecutions lists execution records, newest first.
func (s *Server) handleExecutions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ExecutionFilter{
		WorkflowID: req.GetString("workflow_id", ""),
		Limit:      req.GetInt("limit", 50),
	}
	if v := req.GetString("status", ""); v != "" {
		status := schema.ExecutionStatus(v)
		filter.Status = &status
	}

	recs, listErr := s.engine.ListExecutions(ctx, filter)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", listErr)), nil
	}
	return marshalResult(map[string]any{"executions": recs})
}

// --- Internal helpers ---

// parseDefinition extracts the "definition" argument as a WorkflowDefinition.
func parseDefinition(req mcp.CallToolRequest) (*schema.WorkflowDefinition, error) {
	raw := mcp.ParseStringMap(req, "definition", nil)
	if raw == nil {
		return nil, fmt.Errorf("definition is required")
	}

	// Marshal then unmarshal to get a typed WorkflowDefinition.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid definition: %v", err)
	}
	var def schema.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid definition: %v", err)
	}
	return &def, nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
