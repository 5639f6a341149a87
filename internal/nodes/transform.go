package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newTransformNode builds the transform capability. The "type" param selects
// the sub-operation:
//   - passthrough: return the input unchanged (default)
//   - extract:     pick the "key" value, output {"output": value}
//   - filter:      keep only the keys listed in "keys"
//   - merge:       overlay the "data" object on top of the input
//   - rename:      rename keys per the "mapping" object (old name to new)
//   - template:    render the "template" string with {key} placeholders
//   - jq:          evaluate the "query" jq program over the input
func newTransformNode(jq *expressions.GoJQEngine) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		transformType, err := stringParam(cfg.Params, "type", "passthrough")
		if err != nil {
			return nil, err
		}

		switch transformType {
		case "passthrough":
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				return copyMap(input), nil
			}), nil

		case "extract":
			key, err := stringParam(cfg.Params, "key", "")
			if err != nil {
				return nil, err
			}
			if key == "" {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"transform extract type requires a key param")
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				return map[string]any{"output": input[key]}, nil
			}), nil

		case "filter":
			keys, err := stringSliceParam(cfg.Params, "keys")
			if err != nil {
				return nil, err
			}
			if len(keys) == 0 {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"transform filter type requires a keys param")
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				out := make(map[string]any, len(keys))
				for _, k := range keys {
					if v, ok := input[k]; ok {
						out[k] = v
					}
				}
				return out, nil
			}), nil

		case "merge":
			data, err := mapParam(cfg.Params, "data")
			if err != nil {
				return nil, err
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				out := copyMap(input)
				for k, v := range data {
					out[k] = v
				}
				return out, nil
			}), nil

		case "rename":
			mapping, err := mapParam(cfg.Params, "mapping")
			if err != nil {
				return nil, err
			}
			if len(mapping) == 0 {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"transform rename type requires a mapping param")
			}
			renames := make(map[string]string, len(mapping))
			for from, to := range mapping {
				name, ok := to.(string)
				if !ok {
					return nil, schema.NewErrorf(schema.ErrCodeValidation,
						"transform mapping value for %q must be a string, got %T", from, to)
				}
				renames[from] = name
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				out := make(map[string]any, len(input))
				for k, v := range input {
					if to, ok := renames[k]; ok {
						out[to] = v
					} else {
						out[k] = v
					}
				}
				return out, nil
			}), nil

		case "template":
			template, err := stringParam(cfg.Params, "template", "")
			if err != nil {
				return nil, err
			}
			if template == "" {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"transform template type requires a template param")
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				return expressions.Format(template, templateData(input))
			}), nil

		case "jq":
			query, err := stringParam(cfg.Params, "query", "")
			if err != nil {
				return nil, err
			}
			if query == "" {
				return nil, schema.NewError(schema.ErrCodeValidation,
					"transform jq type requires a query param")
			}
			return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
				return jq.Evaluate(ctx, query, input)
			}), nil

		default:
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"unknown transform type %q", transformType)
		}
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
