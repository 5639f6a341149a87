package graph

import (
	"sort"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// TypeResolver reports whether a node type string is known.
// Satisfied by *nodes.Registry.
type TypeResolver interface {
	Has(nodeType string) bool
}

// Graph is the validated in-memory representation of a workflow definition,
// ready for execution. Built once per run; read-only afterwards.
type Graph struct {
	Nodes map[string]*schema.NodeConfig // node ID → config
	Order []string                      // total order consistent with all edges
	Preds map[string][]string           // node ID → direct predecessors, in execution order
	Succs map[string][]string           // node ID → direct successors
	pos   map[string]int                // node ID → index in Order
}

// Build validates a workflow definition and computes its execution order.
// Validation fails when an edge references a missing node, a node id is
// duplicated, the graph contains a cycle, or (when resolver is non-nil) a
// node's type is not registered.
//
// Ordering uses Kahn's algorithm. When several nodes are ready at once the
// tie is broken by ascending node id, so the order is reproducible across
// runs of the same definition.
func Build(def *schema.WorkflowDefinition, resolver TypeResolver) (*Graph, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if len(def.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no nodes")
	}

	g := &Graph{
		Nodes: make(map[string]*schema.NodeConfig, len(def.Nodes)),
		Preds: make(map[string][]string, len(def.Nodes)),
		Succs: make(map[string][]string, len(def.Nodes)),
		pos:   make(map[string]int, len(def.Nodes)),
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "node at index %d has empty id", i)
		}
		if _, exists := g.Nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id: %s", node.ID)
		}
		if resolver != nil && !resolver.Has(string(node.Type)) {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"node %s has unknown type: %s", node.ID, node.Type).WithNode(node.ID)
		}
		g.Nodes[node.ID] = node
	}

	for _, edge := range def.Edges {
		if _, ok := g.Nodes[edge.Source]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"edge %s references missing source node: %s", edge.ID, edge.Source)
		}
		if _, ok := g.Nodes[edge.Target]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"edge %s references missing target node: %s", edge.ID, edge.Target)
		}
		if edge.Source == edge.Target {
			return nil, schema.NewErrorf(schema.ErrCodeCycleDetected,
				"node %s has an edge to itself", edge.Source).WithNode(edge.Source)
		}
		g.Preds[edge.Target] = append(g.Preds[edge.Target], edge.Source)
		g.Succs[edge.Source] = append(g.Succs[edge.Source], edge.Target)
	}

	if err := g.sortKahn(); err != nil {
		return nil, err
	}

	// Order each node's predecessor list by topological position so that
	// later-ordered predecessors deterministically win key conflicts.
	for id, preds := range g.Preds {
		sort.Slice(preds, func(i, j int) bool {
			return g.pos[preds[i]] < g.pos[preds[j]]
		})
		g.Preds[id] = preds
	}

	return g, nil
}

// sortKahn runs Kahn's algorithm: repeatedly extract the smallest-id node
// with zero remaining in-degree. If nodes remain when the queue drains,
// they participate in a cycle.
func (g *Graph) sortKahn() error {
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		inDegree[id] = 0
	}
	for _, succs := range g.Succs {
		for _, t := range succs {
			inDegree[t]++
		}
	}

	ready := make([]string, 0, len(g.Nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		g.pos[id] = len(order)
		order = append(order, id)

		// Collect newly ready successors, then re-sort the queue so the
		// ascending-id tie-break holds among all simultaneously ready nodes.
		for _, succ := range g.Succs[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(g.Nodes) {
		for id := range g.Nodes {
			if inDegree[id] > 0 {
				return schema.NewErrorf(schema.ErrCodeCycleDetected,
					"workflow contains a cycle through node %s", id).WithNode(id)
			}
		}
		return schema.NewError(schema.ErrCodeCycleDetected, "workflow contains a cycle")
	}

	g.Order = order
	return nil
}

// Position returns the index of the node in the computed order.
func (g *Graph) Position(nodeID string) int {
	return g.pos[nodeID]
}
