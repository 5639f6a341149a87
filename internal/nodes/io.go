package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newInputNode builds the workflow entry point. It passes its merged input
// through unchanged so downstream nodes see the caller's input data.
func newInputNode(cfg *schema.NodeConfig) (Node, error) {
	return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
		out := make(map[string]any, len(input))
		for k, v := range input {
			out[k] = v
		}
		return out, nil
	}), nil
}

// newOutputNode builds the workflow exit point. It captures the value under
// params "key" (default "output") from its input; when the key is absent the
// whole input map becomes the workflow result.
func newOutputNode(cfg *schema.NodeConfig) (Node, error) {
	key, err := stringParam(cfg.Params, "key", "output")
	if err != nil {
		return nil, err
	}

	return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
		if v, ok := input[key]; ok {
			return v, nil
		}
		out := make(map[string]any, len(input))
		for k, v := range input {
			out[k] = v
		}
		return out, nil
	}), nil
}
