package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newLoopNode builds the loop capability. Params:
//   - over: input key holding the collection, default "items"
//
// The node resolves the collection from its input and outputs
// {"items": [...], "count": N}. A scalar value is wrapped into a
// single-element collection; a missing key fails the node.
func newLoopNode(cfg *schema.NodeConfig) (Node, error) {
	key, err := stringParam(cfg.Params, "over", "items")
	if err != nil {
		return nil, err
	}

	return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
		v, ok := input[key]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"loop collection key %q not present in input", key)
		}

		var items []any
		switch vals := v.(type) {
		case []any:
			items = vals
		case nil:
			items = []any{}
		default:
			items = []any{v}
		}

		return map[string]any{
			"items": items,
			"count": len(items),
		}, nil
	}), nil
}
