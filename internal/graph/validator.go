package graph

import (
	"fmt"
	"sort"
)

// ValidationResult is the exhaustive report produced by Validate.
// Valid is true exactly when Errors is empty.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate re-checks every CommandGraph invariant independently and reports
// all violations found, not just the first. Unlike Build it assumes nothing
// about how the graph was produced, so it is safe to call on graphs
// reconstructed from persisted state or assembled directly in tests. It is
// the single source of truth for "is this graph safe to execute".
func Validate(g *CommandGraph) ValidationResult {
	var errs []string

	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Key consistency: the map key must match the node's own id.
	for _, key := range ids {
		if n := g.Nodes[key]; n.ID != key {
			errs = append(errs, fmt.Sprintf("ID mismatch: key %q holds node %q", key, n.ID))
		}
	}

	// Dependency existence and self-dependency.
	for _, key := range ids {
		for _, dep := range g.Nodes[key].DependsOn {
			if _, ok := g.Nodes[dep]; !ok {
				errs = append(errs, fmt.Sprintf("node %q depends on non-existent node %q", key, dep))
			}
			if dep == key {
				errs = append(errs, fmt.Sprintf("node %q has a self-dependency", key))
			}
		}
	}

	// Order completeness.
	if len(g.ExecutionOrder) != len(g.Nodes) {
		errs = append(errs, fmt.Sprintf("execution order has %d entries for %d nodes",
			len(g.ExecutionOrder), len(g.Nodes)))
	}

	// Order membership: every entry known, every entry exactly once, and
	// every node present. A duplicate entry can mask an omitted node when
	// the lengths happen to coincide, so each defect is reported by name.
	pos := make(map[NodeID]int, len(g.ExecutionOrder))
	for i, id := range g.ExecutionOrder {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, fmt.Sprintf("execution order contains non-existent node %q", id))
		}
		if _, dup := pos[id]; dup {
			errs = append(errs, fmt.Sprintf("execution order contains %q more than once", id))
			continue
		}
		pos[id] = i
	}
	for _, key := range ids {
		if _, ok := pos[key]; !ok {
			errs = append(errs, fmt.Sprintf("node %q is missing from the execution order", key))
		}
	}

	// Order correctness: every dependency strictly precedes its dependent.
	for _, key := range ids {
		np, inOrder := pos[key]
		if !inOrder {
			continue
		}
		for _, dep := range g.Nodes[key].DependsOn {
			dp, ok := pos[dep]
			if !ok {
				continue
			}
			if dp >= np {
				errs = append(errs, fmt.Sprintf("node %q appears before its dependency %q", key, dep))
			}
		}
	}

	// Acyclicity.
	if cycle := DetectCycle(g); cycle != nil {
		errs = append(errs, fmt.Sprintf("Circular dependency: %s", joinIDs(cycle)))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
