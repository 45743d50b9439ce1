package graph

import "github.com/gpukit/cmdsched/internal/command"

// NodeID identifies a command node within one graph. IDs are value-like
// opaque tokens; copying a node never aliases graph state.
type NodeID string

// CommandNode is one schedulable unit of GPU-bound work plus its declared
// dependencies. Op is opaque to this package. Inputs and Outputs are stored
// for the resource tracker downstream; dependency edges come only from
// DependsOn, never from resource overlap.
type CommandNode struct {
	ID        NodeID               `json:"id"`
	Op        command.Operation    `json:"op"`
	Inputs    []command.ResourceID `json:"inputs,omitempty"`
	Outputs   []command.ResourceID `json:"outputs,omitempty"`
	DependsOn []NodeID             `json:"depends_on,omitempty"`
}

// CommandGraph is the validated, ordered artifact produced by Build.
// It is immutable once built: a structural change means building a new
// graph from a new node list. Fields are exported so callers restoring
// persisted state can assemble a graph by hand and run Validate against it.
//
// Invariants (checked by Build, re-checkable via Validate):
//   - Nodes maps each ID to the node carrying that ID.
//   - ExecutionOrder holds every key of Nodes exactly once, no others.
//   - Every node appears in ExecutionOrder strictly after all of its
//     dependencies.
type CommandGraph struct {
	Nodes          map[NodeID]CommandNode `json:"nodes"`
	ExecutionOrder []NodeID               `json:"execution_order"`
}

// NodeCount returns the number of nodes in the graph.
func (g *CommandGraph) NodeCount() int {
	return len(g.Nodes)
}
