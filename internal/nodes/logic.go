package nodes

import (
	"context"

	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// newCodeNode builds the code capability. Params:
//   - expression: expr-lang expression evaluated over the node input; the
//     input is also bound to the "input" variable
//
// The output is the expression result.
func newCodeNode(engine *expressions.ExprEngine) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		expression, err := stringParam(cfg.Params, "expression", "")
		if err != nil {
			return nil, err
		}
		if expression == "" {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"code node requires an expression param")
		}

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			return engine.Evaluate(ctx, expression, input)
		}), nil
	}
}

// newConditionNode builds the condition capability. Params:
//   - condition: CEL expression over the "input" variable, must evaluate to
//     a boolean
//
// The output is {"result": bool, "branch": "true"|"false"}.
func newConditionNode(engine *expressions.CELEngine) Factory {
	return func(cfg *schema.NodeConfig) (Node, error) {
		condition, err := stringParam(cfg.Params, "condition", "")
		if err != nil {
			return nil, err
		}
		if condition == "" {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"condition node requires a condition param")
		}

		return NodeFunc(func(ctx context.Context, input map[string]any) (any, error) {
			out, err := engine.Evaluate(ctx, condition, input)
			if err != nil {
				return nil, err
			}

			result, ok := out.(bool)
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"condition %q returned %T, want bool", condition, out)
			}

			branch := "false"
			if result {
				branch = "true"
			}
			return map[string]any{"result": result, "branch": branch}, nil
		}), nil
	}
}
