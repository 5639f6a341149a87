package schema

import "time"

// Progress event types pushed over the live channel. Transient: never
// persisted independently of the ExecutionRecord they summarize.
const (
	EventStart         = "start"
	EventNodeCompleted = "node_completed"
	EventCompleted     = "completed"
	EventFailed        = "failed"
	EventPong          = "pong"
)

// ProgressEvent is one lifecycle notification for a running execution.
// Type selects which of the optional fields are populated:
//
//	start:          workflow_id, workflow_name
//	node_completed: node_id, output
//	completed:      output, node_outputs
//	failed:         error
type ProgressEvent struct {
	Type         string                `json:"type"`
	Timestamp    time.Time             `json:"timestamp"`
	WorkflowID   string                `json:"workflow_id,omitempty"`
	WorkflowName string                `json:"workflow_name,omitempty"`
	NodeID       string                `json:"node_id,omitempty"`
	Output       any                   `json:"output,omitempty"`
	NodeOutputs  map[string]NodeResult `json:"node_outputs,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// StartEvent builds the execution-started event.
func StartEvent(workflowID, workflowName string) ProgressEvent {
	return ProgressEvent{
		Type:         EventStart,
		Timestamp:    time.Now().UTC(),
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
	}
}

// NodeCompletedEvent builds the per-node event, emitted regardless of
// whether the node succeeded.
func NodeCompletedEvent(nodeID string, output any) ProgressEvent {
	return ProgressEvent{
		Type:      EventNodeCompleted,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		Output:    output,
	}
}

// CompletedEvent builds the terminal success event.
func CompletedEvent(output any, nodeOutputs map[string]NodeResult) ProgressEvent {
	return ProgressEvent{
		Type:        EventCompleted,
		Timestamp:   time.Now().UTC(),
		Output:      output,
		NodeOutputs: nodeOutputs,
	}
}

// FailedEvent builds the terminal failure event.
func FailedEvent(errMsg string) ProgressEvent {
	return ProgressEvent{
		Type:      EventFailed,
		Timestamp: time.Now().UTC(),
		Error:     errMsg,
	}
}
