package nodes

import (
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// stringParam returns params[key] as a string, or fallback when absent.
// A present value of the wrong type is an error.
func stringParam(params map[string]any, key, fallback string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"param %q must be a string, got %T", key, v)
	}
	return s, nil
}

// intParam returns params[key] as an int, accepting JSON float64 values.
func intParam(params map[string]any, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"param %q must be a number, got %T", key, v)
	}
}

// floatParam returns params[key] as a float64.
func floatParam(params map[string]any, key string, fallback float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"param %q must be a number, got %T", key, v)
	}
}

// stringSliceParam returns params[key] as a []string.
func stringSliceParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"param %q must be a list of strings, got element %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"param %q must be a list of strings, got %T", key, v)
	}
}

// mapParam returns params[key] as a map[string]any.
func mapParam(params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"param %q must be an object, got %T", key, v)
	}
	return m, nil
}
