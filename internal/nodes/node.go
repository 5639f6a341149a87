// Package nodes implements the builtin node capabilities a workflow can
// reference by type. Each capability is a Factory that binds a node's params
// into an executable Node; the Registry maps type names to factories.
package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// Node is a single executable workflow step. Execute receives the merged
// input for the node and returns its output value. A returned error marks
// the node failed without aborting the rest of the workflow.
type Node interface {
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Factory builds a Node bound to one node's configuration.
type Factory func(cfg *schema.NodeConfig) (Node, error)

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc func(ctx context.Context, input map[string]any) (any, error)

// Execute calls f.
func (f NodeFunc) Execute(ctx context.Context, input map[string]any) (any, error) {
	return f(ctx, input)
}
