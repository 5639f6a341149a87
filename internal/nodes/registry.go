package nodes

import (
	"sort"
	"sync"

	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/pkg/schema"
)

// Registry maps node type names to factories. Thread-safe; registration
// normally happens once at startup but late registration is allowed.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Deps carries the collaborators and expression engines the builtin node
// types depend on.
type Deps struct {
	Completer collab.Completer
	Retriever collab.Retriever
	Searcher  collab.Searcher
	CEL       *expressions.CELEngine
	Expr      *expressions.ExprEngine
	JQ        *expressions.GoJQEngine
}

// NewRegistry creates a registry preloaded with the builtin node types.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.mustRegister(string(schema.NodeTypeInput), newInputNode)
	r.mustRegister(string(schema.NodeTypeOutput), newOutputNode)
	r.mustRegister(string(schema.NodeTypeLLM), newLLMNode(deps.Completer))
	r.mustRegister(string(schema.NodeTypeHTTP), newHTTPNode())
	r.mustRegister(string(schema.NodeTypeCode), newCodeNode(deps.Expr))
	r.mustRegister(string(schema.NodeTypeCondition), newConditionNode(deps.CEL))
	r.mustRegister(string(schema.NodeTypeTransform), newTransformNode(deps.JQ))
	r.mustRegister(string(schema.NodeTypeRAG), newRAGNode(deps.Retriever))
	r.mustRegister(string(schema.NodeTypeSearch), newSearchNode(deps.Searcher))
	r.mustRegister(string(schema.NodeTypeLoop), newLoopNode)

	return r
}

// Register adds a factory for nodeType. Registering an already-known type is
// a conflict.
func (r *Registry) Register(nodeType string, factory Factory) error {
	if nodeType == "" {
		return schema.NewError(schema.ErrCodeValidation, "node type cannot be empty")
	}
	if factory == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "nil factory for node type %q", nodeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[nodeType]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"node type %q is already registered", nodeType)
	}
	r.factories[nodeType] = factory
	return nil
}

func (r *Registry) mustRegister(nodeType string, factory Factory) {
	if err := r.Register(nodeType, factory); err != nil {
		panic(err)
	}
}

// Has reports whether nodeType is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[nodeType]
	return ok
}

// Resolve builds an executable Node for cfg.
func (r *Registry) Resolve(cfg *schema.NodeConfig) (Node, error) {
	r.mu.RLock()
	factory, ok := r.factories[string(cfg.Type)]
	r.mu.RUnlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown node type %q", cfg.Type).WithNode(cfg.ID)
	}

	node, err := factory(cfg)
	if err != nil {
		var ee *schema.EngineError
		if ok := asEngineError(err, &ee); ok && ee.NodeID == "" {
			ee.NodeID = cfg.ID
		}
		return nil, err
	}
	return node, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func asEngineError(err error, target **schema.EngineError) bool {
	ee, ok := err.(*schema.EngineError)
	if ok {
		*target = ee
	}
	return ok
}
