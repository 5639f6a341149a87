package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// handleCreateWorkflow validates and stores a workflow definition.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def schema.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	created, err := s.deps.Engine.CreateWorkflow(r.Context(), &def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.deps.Engine.ListWorkflows(r.Context(), store.WorkflowFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if defs == nil {
		defs = []*schema.WorkflowDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.deps.Engine.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateWorkflow replaces a workflow definition. The id in the URL
// wins over any id in the body.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def schema.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	def.ID = r.PathValue("id")

	updated, err := s.deps.Engine.UpdateWorkflow(r.Context(), &def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Engine.DeleteWorkflow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "id": id})
}

// handleExecuteWorkflow launches an asynchronous execution and returns
// the pending record immediately.
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InputData map[string]any `json:"input_data"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	rec, err := s.deps.Engine.ExecuteWorkflow(r.Context(), r.PathValue("id"), body.InputData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	s.listExecutions(w, r, r.PathValue("id"))
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	s.listExecutions(w, r, r.URL.Query().Get("workflow_id"))
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request, workflowID string) {
	filter := store.ExecutionFilter{
		WorkflowID: workflowID,
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := schema.ExecutionStatus(v)
		filter.Status = &status
	}

	recs, err := s.deps.Engine.ListExecutions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*schema.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Engine.GetExecutionStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Engine.CancelExecution(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "execution_id": id})
}

// handleCreateJob creates a cron-scheduled execution of a workflow.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID     string         `json:"workflow_id"`
		CronExpression string         `json:"cron_expression"`
		InputData      map[string]any `json:"input_data"`
		Enabled        *bool          `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.WorkflowID == "" || body.CronExpression == "" {
		badRequest(w, "workflow_id and cron_expression are required")
		return
	}

	// The workflow must exist before it can be scheduled.
	if _, err := s.deps.Engine.GetWorkflow(r.Context(), body.WorkflowID); err != nil {
		writeError(w, err)
		return
	}

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	job := &store.ScheduledJob{
		WorkflowID:     body.WorkflowID,
		CronExpression: body.CronExpression,
		InputData:      body.InputData,
		Enabled:        enabled,
	}
	if err := s.deps.Scheduler.CreateJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.ScheduledJobFilter{
		WorkflowID: r.URL.Query().Get("workflow_id"),
		Limit:      queryInt(r, "limit", 100),
	}
	jobs, err := s.deps.Scheduler.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*store.ScheduledJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := s.deps.Scheduler.UpdateJob(r.Context(), jobID, store.ScheduledJobUpdate{
		Enabled: body.Enabled,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "id": jobID})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := s.deps.Scheduler.DeleteJob(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "id": jobID})
}
