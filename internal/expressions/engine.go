package expressions

import "context"

// Engine evaluates expressions against node input data.
// Three implementations: CEL (conditions), Expr (code), GoJQ (transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
