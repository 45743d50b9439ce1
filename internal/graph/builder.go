package graph

// Build validates a flat node list and produces an immutable CommandGraph
// with a serial execution order. It fails fast with the single sharpest
// diagnosis: duplicate ids first, then unresolved references, then cycles.
// An unresolved reference is reported before cycle detection because a
// dangling edge makes any cycle report spurious.
//
// An empty input is valid and yields an empty graph.
func Build(nodes []CommandNode) (*CommandGraph, error) {
	byID := make(map[NodeID]CommandNode, len(nodes))
	for _, n := range nodes {
		if _, exists := byID[n.ID]; exists {
			return nil, &GraphError{Kind: ErrDuplicateID, Node: n.ID}
		}
		byID[n.ID] = n
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &GraphError{Kind: ErrMissingDep, Node: n.ID, Dep: dep}
			}
		}
	}

	g := &CommandGraph{Nodes: byID}
	if cycle := DetectCycle(g); cycle != nil {
		return nil, &GraphError{Kind: ErrCycle, Cycle: cycle}
	}

	g.ExecutionOrder = order(nodes, byID)
	return g, nil
}

// order linearizes the dependency partial order by depth-first postorder:
// a node is appended only after all of its dependencies. Nodes are first
// visited in input order and dependency lists in declared order, so the
// result is deterministic for a given input list. Acyclicity is already
// proven, so the walk cannot meet a back-edge.
func order(nodes []CommandNode, byID map[NodeID]CommandNode) []NodeID {
	out := make([]NodeID, 0, len(nodes))
	visited := make(map[NodeID]bool, len(nodes))

	var visit func(id NodeID)
	visit = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range byID[id].DependsOn {
			visit(dep)
		}
		out = append(out, id)
	}

	for _, n := range nodes {
		visit(n.ID)
	}
	return out
}
