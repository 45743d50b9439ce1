package graph

import "sort"

// Three-color DFS marks: white (unvisited) is absence from the map.
type mark uint8

const (
	gray  mark = iota + 1 // on the current recursion stack
	black                 // fully processed, known cycle-free
)

// DetectCycle reports one dependency cycle in g, or nil if the graph is
// acyclic or empty. The returned slice lists the implicated node ids in
// traversal order, starting from the node the cycle closes back onto.
//
// The function is pure and idempotent: roots are visited in sorted id
// order and dependency edges in declared order, so repeated calls on the
// same graph return the same cycle. It works on any materialized graph,
// including hand-assembled ones with no ExecutionOrder yet.
func DetectCycle(g *CommandGraph) []NodeID {
	if len(g.Nodes) == 0 {
		return nil
	}

	roots := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	marks := make(map[NodeID]mark, len(g.Nodes))
	var stack []NodeID
	var cycle []NodeID

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		marks[id] = gray
		stack = append(stack, id)
		for _, dep := range g.Nodes[id].DependsOn {
			// Dangling references are the validator's concern, not a cycle.
			if _, ok := g.Nodes[dep]; !ok {
				continue
			}
			switch marks[dep] {
			case gray:
				// Back-edge: the cycle is the stack suffix from dep onward.
				for i, sid := range stack {
					if sid == dep {
						cycle = append(cycle, stack[i:]...)
						break
					}
				}
				return true
			case black:
				continue
			default:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		marks[id] = black
		return false
	}

	for _, id := range roots {
		if marks[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}
