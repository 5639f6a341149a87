package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/trika-ai/trika-engine/internal/graph"
	"github.com/trika-ai/trika-engine/internal/logging"
	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// run drives one execution to a terminal state. Nodes execute sequentially
// in dependency order. A failing node is recorded and skipped over, it never
// aborts the run; only engine faults (persistence, cancellation) do.
func (e *Engine) run(ctx context.Context, def *schema.WorkflowDefinition, g *graph.Graph, rec *schema.ExecutionRecord) {
	started := time.Now().UTC()
	running := schema.ExecutionStatusRunning
	if err := e.persist(ctx, rec.ID, storeUpdate{Status: &running, StartedAt: &started}); err != nil {
		e.finishFailed(ctx, rec.ID, nil, "engine fault: "+err.Error())
		return
	}

	e.publish(ctx, rec.ID, schema.StartEvent(def.ID, def.Name))
	e.logger.InfoContext(ctx, "execution started", "nodes", len(g.Order))

	// Seed the running context: workflow variables overlaid by caller input.
	runningCtx := make(map[string]any, len(def.Variables)+len(rec.InputData))
	for k, v := range def.Variables {
		runningCtx[k] = v
	}
	for k, v := range rec.InputData {
		runningCtx[k] = v
	}

	nodeOutputs := make(map[string]schema.NodeResult, len(g.Order))
	var lastOutput any
	var captured any
	haveCapture := false

	for _, id := range g.Order {
		select {
		case <-ctx.Done():
			e.finishFailed(ctx, rec.ID, nodeOutputs, "execution cancelled")
			return
		default:
		}

		cfg := g.Nodes[id]
		nodeCtx := logging.WithNodeID(ctx, id)

		input := mergeInput(runningCtx, g.Preds[id], nodeOutputs)
		result := e.executeNode(nodeCtx, cfg, input)
		nodeOutputs[id] = result

		if result.Success {
			mergeOutput(runningCtx, result.Output)
			lastOutput = result.Output
			if cfg.Type == schema.NodeTypeOutput {
				captured = result.Output
				haveCapture = true
			}
			e.logger.InfoContext(nodeCtx, "node completed")
		} else {
			e.logger.WarnContext(nodeCtx, "node failed", "error", result.Error)
		}

		e.publish(ctx, rec.ID, schema.NodeCompletedEvent(id, result.Output))
	}

	outputData := lastOutput
	if haveCapture {
		outputData = captured
	}

	completed := schema.ExecutionStatusCompleted
	done := time.Now().UTC()
	if err := e.persist(ctx, rec.ID, storeUpdate{
		Status:      &completed,
		OutputData:  outputData,
		NodeOutputs: nodeOutputs,
		CompletedAt: &done,
	}); err != nil {
		e.finishFailed(ctx, rec.ID, nodeOutputs, "engine fault: "+err.Error())
		return
	}
	e.publish(ctx, rec.ID, schema.CompletedEvent(outputData, nodeOutputs))
	e.logger.InfoContext(ctx, "execution completed")
}

// executeNode resolves and runs one node, capturing panics and errors as a
// failed NodeResult.
func (e *Engine) executeNode(ctx context.Context, cfg *schema.NodeConfig, input map[string]any) (result schema.NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = schema.NodeResult{Success: false, Error: fmt.Sprintf("node panicked: %v", r)}
		}
	}()

	node, err := e.registry.Resolve(cfg)
	if err != nil {
		return schema.NodeResult{Success: false, Error: err.Error()}
	}

	out, err := node.Execute(ctx, input)
	if err != nil {
		return schema.NodeResult{Success: false, Error: err.Error()}
	}
	return schema.NodeResult{Success: true, Output: out}
}

// finishFailed marks the execution failed and emits the terminal event. The
// persist here is best-effort: if the store is the fault, the failed event
// still reaches hub observers.
func (e *Engine) finishFailed(ctx context.Context, executionID string, nodeOutputs map[string]schema.NodeResult, msg string) {
	failed := schema.ExecutionStatusFailed
	done := time.Now().UTC()
	e.persist(ctx, executionID, storeUpdate{
		Status:      &failed,
		NodeOutputs: nodeOutputs,
		Error:       &msg,
		CompletedAt: &done,
	})
	e.publish(ctx, executionID, schema.FailedEvent(msg))
	e.logger.WarnContext(ctx, "execution failed", "error", msg)
}

// mergeInput builds a node's input: a copy of the running context with the
// direct predecessors' successful outputs folded in, in topological order so
// later predecessors win on key conflicts.
func mergeInput(runningCtx map[string]any, preds []string, nodeOutputs map[string]schema.NodeResult) map[string]any {
	input := make(map[string]any, len(runningCtx))
	for k, v := range runningCtx {
		input[k] = v
	}
	for _, pred := range preds {
		res, ok := nodeOutputs[pred]
		if !ok || !res.Success {
			continue
		}
		mergeOutput(input, res.Output)
	}
	return input
}

// mergeOutput folds a node output into dst. Map outputs merge key by key;
// anything else lands under the "output" key.
func mergeOutput(dst map[string]any, output any) {
	if m, ok := output.(map[string]any); ok {
		for k, v := range m {
			dst[k] = v
		}
		return
	}
	if output != nil {
		dst["output"] = output
	}
}

// storeUpdate aliases the store's update struct to keep call sites compact.
type storeUpdate = store.ExecutionUpdate

// persist applies an update to the execution record. Store errors are logged
// and returned; the run decides whether they are fatal.
func (e *Engine) persist(ctx context.Context, executionID string, update storeUpdate) error {
	if err := e.store.UpdateExecution(ctx, executionID, update); err != nil {
		e.logger.ErrorContext(ctx, "persist execution state", "error", err)
		return err
	}
	return nil
}

// publish sends a progress event, dropping it if the hub rejects it.
func (e *Engine) publish(ctx context.Context, executionID string, event schema.ProgressEvent) {
	if e.hub == nil {
		return
	}
	if err := e.hub.Publish(ctx, streaming.Envelope{ExecutionID: executionID, Event: event}); err != nil {
		e.logger.WarnContext(ctx, "publish progress event", "error", err)
	}
}
