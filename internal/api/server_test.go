package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/engine"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/internal/nodes"
	"github.com/trika-ai/trika-engine/internal/scheduler"
	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req collab.CompletionRequest) (string, error) {
	return req.Prompt, nil
}

type testServer struct {
	*httptest.Server
	hub *streaming.MemoryHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)

	registry := nodes.NewRegistry(nodes.Deps{
		Completer: echoCompleter{},
		CEL:       cel,
		Expr:      expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
	})

	st := store.NewMemoryStore()
	hub := streaming.NewMemoryHub()

	eng, err := engine.New(st, registry, hub, nil)
	require.NoError(t, err)

	srv := NewServer(Deps{
		Engine:    eng,
		Scheduler: scheduler.NewScheduler(st, eng, nil),
		Hub:       hub,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func sampleWorkflow(name string) map[string]any {
	return map[string]any{
		"name": name,
		"nodes": []map[string]any{
			{"id": "1", "type": "input"},
			{"id": "2", "type": "llm", "params": map[string]any{"prompt": "Write about {topic}"}},
			{"id": "3", "type": "output"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "1", "target": "2"},
			{"id": "e2", "source": "2", "target": "3"},
		},
	}
}

func createSampleWorkflow(t *testing.T, ts *testServer, name string) schema.WorkflowDefinition {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/workflows", sampleWorkflow(name))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[schema.WorkflowDefinition](t, body)
}

func waitForStatus(t *testing.T, ts *testServer, executionID string, want schema.ExecutionStatus) schema.ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := ts.do(t, http.MethodGet, "/api/executions/"+executionID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rec := decode[schema.ExecutionRecord](t, body)
		if rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s never reached status %s", executionID, want)
	return schema.ExecutionRecord{}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestWorkflowCRUD(t *testing.T) {
	ts := newTestServer(t)

	created := createSampleWorkflow(t, ts, "crud")
	assert.NotEmpty(t, created.ID)

	resp, body := ts.do(t, http.MethodGet, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[schema.WorkflowDefinition](t, body)
	assert.Equal(t, "crud", got.Name)

	update := sampleWorkflow("crud-v2")
	resp, body = ts.do(t, http.MethodPut, "/api/workflows/"+created.ID, update)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[schema.WorkflowDefinition](t, body)
	assert.Equal(t, "crud-v2", updated.Name)
	assert.Equal(t, created.ID, updated.ID)

	resp, body = ts.do(t, http.MethodGet, "/api/workflows", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]schema.WorkflowDefinition](t, body)
	require.Len(t, list, 1)

	resp, _ = ts.do(t, http.MethodDelete, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWorkflowValidation(t *testing.T) {
	ts := newTestServer(t)

	// Cycle.
	resp, body := ts.do(t, http.MethodPost, "/api/workflows", map[string]any{
		"name": "cyclic",
		"nodes": []map[string]any{
			{"id": "1", "type": "input"},
			{"id": "2", "type": "output"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "1", "target": "2"},
			{"id": "e2", "source": "2", "target": "1"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decode[map[string]any](t, body)
	assert.Equal(t, schema.ErrCodeCycleDetected, errBody["code"])

	// Malformed JSON.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/workflows", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestExecuteWorkflow(t *testing.T) {
	ts := newTestServer(t)
	wf := createSampleWorkflow(t, ts, "exec")

	resp, body := ts.do(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute", map[string]any{
		"input_data": map[string]any{"topic": "rivers"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	rec := decode[schema.ExecutionRecord](t, body)
	assert.Equal(t, schema.ExecutionStatusPending, rec.Status)

	final := waitForStatus(t, ts, rec.ID, schema.ExecutionStatusCompleted)
	assert.Equal(t, "Write about rivers", final.OutputData)

	resp, body = ts.do(t, http.MethodGet, "/api/workflows/"+wf.ID+"/executions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]schema.ExecutionRecord](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodPost, "/api/workflows/ghost/execute", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errBody := decode[map[string]any](t, body)
	assert.Equal(t, schema.ErrCodeNotFound, errBody["code"])
}

func TestCancelNotRunning(t *testing.T) {
	ts := newTestServer(t)
	wf := createSampleWorkflow(t, ts, "cancel")

	_, body := ts.do(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute", nil)
	rec := decode[schema.ExecutionRecord](t, body)
	waitForStatus(t, ts, rec.ID, schema.ExecutionStatusCompleted)

	resp, _ := ts.do(t, http.MethodPost, "/api/executions/"+rec.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScheduledJobEndpoints(t *testing.T) {
	ts := newTestServer(t)
	wf := createSampleWorkflow(t, ts, "scheduled")

	// Unknown workflow is rejected.
	resp, _ := ts.do(t, http.MethodPost, "/api/scheduler", map[string]any{
		"workflow_id":     "ghost",
		"cron_expression": "0 * * * *",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Invalid cron is rejected.
	resp, _ = ts.do(t, http.MethodPost, "/api/scheduler", map[string]any{
		"workflow_id":     wf.ID,
		"cron_expression": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/scheduler", map[string]any{
		"workflow_id":     wf.ID,
		"cron_expression": "0 * * * *",
		"input_data":      map[string]any{"topic": "tides"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	job := decode[store.ScheduledJob](t, body)
	assert.NotEmpty(t, job.ID)
	assert.True(t, job.Enabled)
	assert.NotNil(t, job.NextRunAt)

	resp, body = ts.do(t, http.MethodGet, "/api/scheduler?workflow_id="+wf.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	jobs := decode[[]store.ScheduledJob](t, body)
	require.Len(t, jobs, 1)

	disabled := false
	resp, _ = ts.do(t, http.MethodPut, "/api/scheduler/"+job.ID, map[string]any{"enabled": disabled})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/scheduler/"+job.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/scheduler", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	jobs = decode[[]store.ScheduledJob](t, body)
	assert.Empty(t, jobs)
}

func TestExecutionWebSocket(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/executions/exec-ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Liveness check.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, schema.EventPong, pong["type"])

	// Malformed client message.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	var errMsg map[string]string
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Contains(t, errMsg["error"], "invalid JSON")

	// Events published for this execution reach the client.
	require.NoError(t, ts.hub.Publish(context.Background(), streaming.Envelope{
		ExecutionID: "exec-ws",
		Event:       schema.StartEvent("wf-1", "demo"),
	}))
	var event schema.ProgressEvent
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, schema.EventStart, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
}

func TestExecutionWebSocketClosesOnTerminalEvent(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/executions/exec-ws-done"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The ping round trip guarantees the handler has subscribed.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))

	require.NoError(t, ts.hub.Publish(context.Background(), streaming.Envelope{
		ExecutionID: "exec-ws-done",
		Event:       schema.FailedEvent("gone wrong"),
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event schema.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, schema.EventFailed, event.Type)

	// The server tears the connection down after the terminal event.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestExecutionSSE(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse/executions/exec-sse", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ts.hub.Publish(context.Background(), streaming.Envelope{
		ExecutionID: "exec-sse",
		Event:       schema.CompletedEvent("done", nil),
	}))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event: ") {
			eventLine = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, schema.EventCompleted, eventLine)

	var event schema.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &event))
	assert.Equal(t, "done", event.Output)

	// The terminal event ends the stream.
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(rest)))
}

func TestListExecutionsStatusFilter(t *testing.T) {
	ts := newTestServer(t)
	wf := createSampleWorkflow(t, ts, "filtered")

	for i := 0; i < 2; i++ {
		_, body := ts.do(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute",
			map[string]any{"input_data": map[string]any{"topic": fmt.Sprintf("t%d", i)}})
		rec := decode[schema.ExecutionRecord](t, body)
		waitForStatus(t, ts, rec.ID, schema.ExecutionStatusCompleted)
	}

	resp, body := ts.do(t, http.MethodGet,
		"/api/executions?workflow_id="+wf.ID+"&status=completed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]schema.ExecutionRecord](t, body)
	assert.Len(t, list, 2)

	resp, body = ts.do(t, http.MethodGet,
		"/api/executions?workflow_id="+wf.ID+"&status=failed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list = decode[[]schema.ExecutionRecord](t, body)
	assert.Empty(t, list)
}
