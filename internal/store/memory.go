package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// single-process deployments that do not need durability across restarts.
type MemoryStore struct {
	mu sync.RWMutex

	workflows  map[string]*schema.WorkflowDefinition
	executions map[string]*schema.ExecutionRecord
	jobs       map[string]*ScheduledJob

	// insertion order for stable newest-first listings
	execSeq map[string]uint64
	seq     uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:  make(map[string]*schema.WorkflowDefinition),
		executions: make(map[string]*schema.ExecutionRecord),
		jobs:       make(map[string]*ScheduledJob),
		execSeq:    make(map[string]uint64),
	}
}

func (s *MemoryStore) CreateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[def.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "workflow %q already exists", def.ID)
	}
	cp := *def
	s.workflows[def.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.workflows[id]
	if !ok {
		return nil, notFound("workflow", id)
	}
	cp := *def
	return &cp, nil
}

func (s *MemoryStore) UpdateWorkflow(ctx context.Context, def *schema.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[def.ID]; !ok {
		return notFound("workflow", def.ID)
	}
	cp := *def
	s.workflows[def.ID] = &cp
	return nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*schema.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*schema.WorkflowDefinition, 0, len(s.workflows))
	for _, def := range s.workflows {
		cp := *def
		defs = append(defs, &cp)
	}
	sort.Slice(defs, func(i, j int) bool {
		if !defs[i].CreatedAt.Equal(defs[j].CreatedAt) {
			return defs[i].CreatedAt.After(defs[j].CreatedAt)
		}
		return defs[i].ID < defs[j].ID
	})
	return paginate(defs, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return notFound("workflow", id)
	}
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) CreateExecution(ctx context.Context, rec *schema.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[rec.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %q already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := copyExecution(rec)
	s.executions[rec.ID] = cp
	s.seq++
	s.execSeq[rec.ID] = s.seq
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*schema.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.executions[id]
	if !ok {
		return nil, notFound("execution", id)
	}
	return copyExecution(rec), nil
}

func (s *MemoryStore) UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.executions[id]
	if !ok {
		return notFound("execution", id)
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.OutputData != nil {
		rec.OutputData = update.OutputData
	}
	if update.NodeOutputs != nil {
		rec.NodeOutputs = copyNodeOutputs(update.NodeOutputs)
	}
	if update.Error != nil {
		rec.Error = *update.Error
	}
	if update.StartedAt != nil {
		t := *update.StartedAt
		rec.StartedAt = &t
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		rec.CompletedAt = &t
	}
	return nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*schema.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*schema.ExecutionRecord, 0, len(s.executions))
	for _, rec := range s.executions {
		if filter.WorkflowID != "" && rec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		recs = append(recs, copyExecution(rec))
	}
	sort.Slice(recs, func(i, j int) bool {
		return s.execSeq[recs[i].ID] > s.execSeq[recs[j].ID]
	})
	return paginate(recs, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled job %q already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, notFound("scheduled job", id)
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return notFound("scheduled job", id)
	}
	if update.Enabled != nil {
		job.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		t := *update.LastRunAt
		job.LastRunAt = &t
	}
	if update.NextRunAt != nil {
		t := *update.NextRunAt
		job.NextRunAt = &t
	}
	if update.LastRunStatus != "" {
		job.LastRunStatus = update.LastRunStatus
	}
	return nil
}

func (s *MemoryStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Enabled != nil && job.Enabled != *filter.Enabled {
			continue
		}
		if filter.WorkflowID != "" && job.WorkflowID != filter.WorkflowID {
			continue
		}
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (s *MemoryStore) DeleteScheduledJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return notFound("scheduled job", id)
	}
	delete(s.jobs, id)
	return nil
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func copyExecution(rec *schema.ExecutionRecord) *schema.ExecutionRecord {
	cp := *rec
	cp.NodeOutputs = copyNodeOutputs(rec.NodeOutputs)
	if rec.StartedAt != nil {
		t := *rec.StartedAt
		cp.StartedAt = &t
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func copyNodeOutputs(m map[string]schema.NodeResult) map[string]schema.NodeResult {
	if m == nil {
		return nil
	}
	out := make(map[string]schema.NodeResult, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func notFound(resource, id string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

var _ Store = (*MemoryStore)(nil)
