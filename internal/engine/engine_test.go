package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/internal/nodes"
	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// echoCompleter returns the rendered prompt as the completion.
type echoCompleter struct{}

func (echoCompleter) Complete(ctx context.Context, req collab.CompletionRequest) (string, error) {
	return req.Prompt, nil
}

func newTestEngine(t *testing.T) (*Engine, *streaming.MemoryHub, store.Store) {
	t.Helper()

	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)

	registry := nodes.NewRegistry(nodes.Deps{
		Completer: echoCompleter{},
		CEL:       cel,
		Expr:      expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
	})

	hub := streaming.NewMemoryHub()
	st := store.NewMemoryStore()

	eng, err := New(st, registry, hub, nil)
	require.NoError(t, err)
	return eng, hub, st
}

func node(id string, nodeType schema.NodeType, params map[string]any) schema.NodeConfig {
	return schema.NodeConfig{ID: id, Type: nodeType, Params: params}
}

func edge(source, target string) schema.EdgeConfig {
	return schema.EdgeConfig{ID: source + "-" + target, Source: source, Target: target}
}

func createWorkflow(t *testing.T, eng *Engine, def *schema.WorkflowDefinition) *schema.WorkflowDefinition {
	t.Helper()
	created, err := eng.CreateWorkflow(context.Background(), def)
	require.NoError(t, err)
	return created
}

// waitTerminal polls until the execution reaches an absorbing status.
func waitTerminal(t *testing.T, eng *Engine, executionID string) *schema.ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := eng.GetExecutionStatus(context.Background(), executionID)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal status")
	return nil
}

func TestExecuteWorkflowEndToEnd(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "writer",
		Nodes: []schema.NodeConfig{
			node("1", schema.NodeTypeInput, nil),
			node("2", schema.NodeTypeLLM, map[string]any{"prompt": "Write about {topic}"}),
			node("3", schema.NodeTypeOutput, nil),
		},
		Edges: []schema.EdgeConfig{edge("1", "2"), edge("2", "3")},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, map[string]any{"topic": "oceans"})
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusPending, rec.Status)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, "Write about oceans", final.OutputData)
	require.Len(t, final.NodeOutputs, 3)
	assert.Equal(t, "Write about oceans", final.NodeOutputs["2"].Output)
	assert.True(t, final.NodeOutputs["2"].Success)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.CompletedAt)
}

func TestExecutionFailureIsolation(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// Node 2 fails (its template references a key that never exists); the
	// run still finishes and downstream nodes still execute.
	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "partial",
		Nodes: []schema.NodeConfig{
			node("1", schema.NodeTypeInput, nil),
			node("2", schema.NodeTypeLLM, map[string]any{"prompt": "needs {missing_key}"}),
			node("3", schema.NodeTypeCode, map[string]any{"expression": `x * 10`}),
		},
		Edges: []schema.EdgeConfig{edge("1", "2"), edge("2", "3")},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, map[string]any{"x": 4})
	require.NoError(t, err)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)

	assert.False(t, final.NodeOutputs["2"].Success)
	assert.Contains(t, final.NodeOutputs["2"].Error, "missing_key")

	assert.True(t, final.NodeOutputs["3"].Success)
	assert.Equal(t, 40, final.NodeOutputs["3"].Output)
}

func TestExecutionPanicIsolation(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	err := eng.registry.Register("explosive", func(cfg *schema.NodeConfig) (nodes.Node, error) {
		return nodes.NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			panic("boom")
		}), nil
	})
	require.NoError(t, err)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "panicky",
		Nodes: []schema.NodeConfig{
			node("1", "explosive", nil),
			node("2", schema.NodeTypeCode, map[string]any{"expression": `1 + 1`}),
		},
		Edges: []schema.EdgeConfig{edge("1", "2")},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
	require.NoError(t, err)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)

	assert.False(t, final.NodeOutputs["1"].Success)
	assert.Contains(t, final.NodeOutputs["1"].Error, "panicked")
	assert.Contains(t, final.NodeOutputs["1"].Error, "boom")

	assert.True(t, final.NodeOutputs["2"].Success)
	assert.Equal(t, 2, final.NodeOutputs["2"].Output)
}

func TestExecutionDataPropagation(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "chain",
		Nodes: []schema.NodeConfig{
			node("a", schema.NodeTypeInput, nil),
			node("b", schema.NodeTypeCode, map[string]any{"expression": `{y: x + 1}`}),
			node("c", schema.NodeTypeCode, map[string]any{"expression": `x + y`}),
		},
		Edges: []schema.EdgeConfig{edge("a", "b"), edge("b", "c")},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, map[string]any{"x": 1})
	require.NoError(t, err)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, 3, final.NodeOutputs["c"].Output)
}

func TestExecutionDiamondLaterPredecessorWins(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "diamond",
		Nodes: []schema.NodeConfig{
			node("a", schema.NodeTypeInput, nil),
			node("b", schema.NodeTypeCode, map[string]any{"expression": `{value: "from-b"}`}),
			node("c", schema.NodeTypeCode, map[string]any{"expression": `{value: "from-c"}`}),
			node("d", schema.NodeTypeCode, map[string]any{"expression": `value`}),
		},
		Edges: []schema.EdgeConfig{
			edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d"),
		},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
	require.NoError(t, err)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, "from-c", final.NodeOutputs["d"].Output)
}

func TestExecutionVariablesSeedContext(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name:      "seeded",
		Variables: map[string]any{"greeting": "hello", "name": "default"},
		Nodes: []schema.NodeConfig{
			node("1", schema.NodeTypeTransform, map[string]any{
				"type":     "template",
				"template": "{greeting} {name}",
			}),
		},
	})

	// Caller input overrides workflow variables on conflict.
	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, map[string]any{"name": "ada"})
	require.NoError(t, err)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, "hello ada", final.NodeOutputs["1"].Output)
}

func TestExecuteWorkflowProgressEvents(t *testing.T) {
	eng, hub, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "events",
		Nodes: []schema.NodeConfig{
			node("1", schema.NodeTypeInput, nil),
			node("2", schema.NodeTypeOutput, nil),
		},
		Edges: []schema.EdgeConfig{edge("1", "2")},
	})

	ch, cancel, err := hub.Subscribe(context.Background(), streaming.Filter{})
	require.NoError(t, err)
	defer cancel()

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
	require.NoError(t, err)
	waitTerminal(t, eng, rec.ID)

	var types []string
	deadline := time.After(2 * time.Second)
	for len(types) < 4 {
		select {
		case env := <-ch:
			assert.Equal(t, rec.ID, env.ExecutionID)
			types = append(types, env.Event.Type)
		case <-deadline:
			t.Fatalf("expected 4 events, got %v", types)
		}
	}
	assert.Equal(t, []string{
		schema.EventStart,
		schema.EventNodeCompleted,
		schema.EventNodeCompleted,
		schema.EventCompleted,
	}, types)
}

func TestExecuteWorkflowUnknownWorkflow(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.ExecuteWorkflow(context.Background(), "ghost", nil)
	require.Error(t, err)

	var ee *schema.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, schema.ErrCodeNotFound, ee.Code)
}

func TestCreateWorkflowRejectsCycle(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.CreateWorkflow(context.Background(), &schema.WorkflowDefinition{
		Name: "cyclic",
		Nodes: []schema.NodeConfig{
			node("1", schema.NodeTypeInput, nil),
			node("2", schema.NodeTypeOutput, nil),
		},
		Edges: []schema.EdgeConfig{edge("1", "2"), edge("2", "1")},
	})
	require.Error(t, err)

	var ee *schema.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, schema.ErrCodeCycleDetected, ee.Code)
}

func TestUpdateWorkflowPreservesCreatedAt(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name:  "v1",
		Nodes: []schema.NodeConfig{node("1", schema.NodeTypeInput, nil)},
	})
	created := def.CreatedAt

	def.Name = "v2"
	updated, err := eng.UpdateWorkflow(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, created, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created) || updated.UpdatedAt.Equal(created))

	got, err := eng.GetWorkflow(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
}

func TestCancelExecution(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// A custom slow type gives the test a window to cancel in.
	release := make(chan struct{})
	err := eng.registry.Register("slow", func(cfg *schema.NodeConfig) (nodes.Node, error) {
		return nodes.NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			<-release
			return "done", nil
		}), nil
	})
	require.NoError(t, err)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name: "cancellable",
		Nodes: []schema.NodeConfig{
			node("1", "slow", nil),
			node("2", schema.NodeTypeOutput, nil),
		},
		Edges: []schema.EdgeConfig{edge("1", "2")},
	})

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return eng.Running(rec.ID) },
		time.Second, 5*time.Millisecond)
	require.NoError(t, eng.CancelExecution(context.Background(), rec.ID))
	close(release)

	final := waitTerminal(t, eng, rec.ID)
	assert.Equal(t, schema.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.Error, "cancelled")

	// Node 1 was in flight when the cancel landed, so it finished; its
	// recorded result survives. Node 2 never ran.
	require.Contains(t, final.NodeOutputs, "1")
	assert.True(t, final.NodeOutputs["1"].Success)
	assert.Equal(t, "done", final.NodeOutputs["1"].Output)
	assert.NotContains(t, final.NodeOutputs, "2")

	// A second cancel is a conflict: the run is gone.
	require.Eventually(t, func() bool { return !eng.Running(rec.ID) },
		time.Second, 5*time.Millisecond)
	err = eng.CancelExecution(context.Background(), rec.ID)
	require.Error(t, err)
}

// brokenStore accepts definitions and the initial record but fails every
// execution update, simulating a store that goes away mid-run.
type brokenStore struct {
	store.Store
}

func (brokenStore) UpdateExecution(ctx context.Context, executionID string, update store.ExecutionUpdate) error {
	return errors.New("store offline")
}

func TestExecutionPersistFailureIsFatal(t *testing.T) {
	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)

	var ran atomic.Bool
	registry := nodes.NewRegistry(nodes.Deps{
		Completer: echoCompleter{},
		CEL:       cel,
		Expr:      expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
	})
	err = registry.Register("tracked", func(cfg *schema.NodeConfig) (nodes.Node, error) {
		return nodes.NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			ran.Store(true)
			return "ok", nil
		}), nil
	})
	require.NoError(t, err)

	hub := streaming.NewMemoryHub()
	eng, err := New(brokenStore{store.NewMemoryStore()}, registry, hub, nil)
	require.NoError(t, err)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name:  "doomed",
		Nodes: []schema.NodeConfig{node("1", "tracked", nil)},
	})

	ch, cancel, err := hub.Subscribe(context.Background(), streaming.Filter{})
	require.NoError(t, err)
	defer cancel()

	rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
	require.NoError(t, err)

	// The run halts before any node and the failure is still observable on
	// the hub even though the record cannot be written.
	select {
	case env := <-ch:
		require.Equal(t, rec.ID, env.ExecutionID)
		assert.Equal(t, schema.EventFailed, env.Event.Type)
		assert.Contains(t, env.Event.Error, "store offline")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a failed event")
	}
	assert.False(t, ran.Load())
}

func TestListExecutionsNewestFirst(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	def := createWorkflow(t, eng, &schema.WorkflowDefinition{
		Name:  "multi",
		Nodes: []schema.NodeConfig{node("1", schema.NodeTypeInput, nil)},
	})

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := eng.ExecuteWorkflow(context.Background(), def.ID, nil)
		require.NoError(t, err)
		waitTerminal(t, eng, rec.ID)
		ids = append(ids, rec.ID)
	}

	recs, err := eng.ListExecutions(context.Background(), store.ExecutionFilter{WorkflowID: def.ID})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, ids[2], recs[0].ID)
	assert.Equal(t, ids[0], recs[2].ID)
}
