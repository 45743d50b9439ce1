package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateID = errors.New("duplicate node id")
	ErrMissingDep  = errors.New("missing dependency")
	ErrCycle       = errors.New("circular dependency")
)

// GraphError is the single, most-actionable failure Build reports.
// Kind is one of the sentinels above; Node, Dep, and Cycle are filled
// according to the kind.
type GraphError struct {
	Kind  error
	Node  NodeID   // offending node (duplicate id, referencing node)
	Dep   NodeID   // unresolved dependency id
	Cycle []NodeID // implicated nodes in traversal order
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case ErrDuplicateID:
		return fmt.Sprintf("duplicate node id %q", e.Node)
	case ErrMissingDep:
		return fmt.Sprintf("node %q depends on %q which does not exist", e.Node, e.Dep)
	case ErrCycle:
		return fmt.Sprintf("circular dependency: %s", joinIDs(e.Cycle))
	}
	return e.Kind.Error()
}

func (e *GraphError) Unwrap() error { return e.Kind }

func joinIDs(ids []NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
