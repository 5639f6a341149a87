package schema

import "time"

// WorkflowDefinition is the JSON-serializable workflow format: a directed
// acyclic graph of typed nodes connected by data-flow edges, plus
// workflow-level default variables.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []NodeConfig   `json:"nodes"`
	Edges       []EdgeConfig   `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NodeConfig describes a single node in a workflow graph.
// Params are opaque to the engine and interpreted by the node implementation.
// Position is display-only state for the canvas; the engine ignores it.
type NodeConfig struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Label    string         `json:"label,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Position Position       `json:"position"`
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EdgeConfig is a directed data-flow connection between two nodes.
type EdgeConfig struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// NodeType enumerates the built-in node kinds.
type NodeType string

const (
	NodeTypeInput     NodeType = "input"
	NodeTypeOutput    NodeType = "output"
	NodeTypeLLM       NodeType = "llm"
	NodeTypeHTTP      NodeType = "http"
	NodeTypeCode      NodeType = "code"
	NodeTypeCondition NodeType = "condition"
	NodeTypeTransform NodeType = "transform"
	NodeTypeRAG       NodeType = "rag"
	NodeTypeSearch    NodeType = "search"
	NodeTypeLoop      NodeType = "loop"
)

// ExecutionStatus represents the lifecycle state of a single execution.
// Pending and Running are transient; Completed and Failed are absorbing.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// NodeResult is the outcome of one node's execution within one run.
// Error is set iff Success is false. Immutable once recorded.
type NodeResult struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExecutionRecord is the durable record of one run of a workflow definition.
// WorkflowID is a reference, not ownership: the definition may be deleted
// independently of its execution history.
type ExecutionRecord struct {
	ID          string                `json:"id"`
	WorkflowID  string                `json:"workflow_id"`
	Status      ExecutionStatus       `json:"status"`
	InputData   map[string]any        `json:"input_data,omitempty"`
	OutputData  any                   `json:"output_data,omitempty"`
	NodeOutputs map[string]NodeResult `json:"node_outputs,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}
