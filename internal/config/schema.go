package config

import (
	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/graph"
)

// BatchConfig is the top-level YAML structure.
type BatchConfig struct {
	Version   string        `yaml:"version"`
	Executor  ExecutorConf  `yaml:"executor"`
	Resources []ResourceDef `yaml:"resources"`
	Shaders   []ShaderDef   `yaml:"shaders"`
	Batches   []BatchDef    `yaml:"batches"`
}

// ShaderDef declares a named shader fragment and the fragments it requires
// composed before it.
type ShaderDef struct {
	Name     string   `yaml:"name"`
	Requires []string `yaml:"requires"`
	Source   string   `yaml:"source"`
}

// ExecutorConf holds tunable dispatch settings.
//
// DispatchWorkers above 1 lets independent commands overlap at the backend;
// strict submission order is only guaranteed with a single worker, matching
// an in-order GPU queue.
type ExecutorConf struct {
	DispatchWorkers int `yaml:"dispatch_workers"`
	RingDepth       int `yaml:"ring_depth"`
	PushTimeoutMs   int `yaml:"push_timeout_ms"`
}

// ResourceDef predeclares a GPU-side resource the tracker should know about
// before any batch runs.
type ResourceDef struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // "buffer", "texture", or "pipeline"
}

// BatchDef is a named list of commands scheduled together as one graph.
type BatchDef struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description"`
	Commands    []CommandDef `yaml:"commands"`
}

// CommandDef declares one command. The operation variant is inlined, so a
// command reads naturally in YAML:
//
//	- id: reduce
//	  depends_on: [upload]
//	  inputs: [buf:scene]
//	  outputs: [buf:reduced]
//	  dispatch: {pipeline: pathtag_reduce, groups_x: 64}
type CommandDef struct {
	ID        string            `yaml:"id"`
	DependsOn []string          `yaml:"depends_on"`
	Inputs    []string          `yaml:"inputs"`
	Outputs   []string          `yaml:"outputs"`
	Op        command.Operation `yaml:",inline"`
}

// Nodes converts the batch's command definitions into graph nodes, in
// declared order.
func (b BatchDef) Nodes() []graph.CommandNode {
	nodes := make([]graph.CommandNode, 0, len(b.Commands))
	for _, c := range b.Commands {
		nodes = append(nodes, c.Node())
	}
	return nodes
}

// Node converts a single command definition into a graph node.
func (c CommandDef) Node() graph.CommandNode {
	deps := make([]graph.NodeID, len(c.DependsOn))
	for i, d := range c.DependsOn {
		deps[i] = graph.NodeID(d)
	}
	return graph.CommandNode{
		ID:        graph.NodeID(c.ID),
		Op:        c.Op,
		Inputs:    toResourceIDs(c.Inputs),
		Outputs:   toResourceIDs(c.Outputs),
		DependsOn: deps,
	}
}

func toResourceIDs(ids []string) []command.ResourceID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]command.ResourceID, len(ids))
	for i, id := range ids {
		out[i] = command.ResourceID(id)
	}
	return out
}
