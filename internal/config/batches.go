package config

import (
	"fmt"

	"github.com/gpukit/cmdsched/internal/graph"
)

// BuildAll builds one command graph per configured batch. The first batch
// that fails to build fails the whole call, naming the batch.
func BuildAll(cfg *BatchConfig) (map[string]*graph.CommandGraph, error) {
	out := make(map[string]*graph.CommandGraph, len(cfg.Batches))
	for _, b := range cfg.Batches {
		g, err := graph.Build(b.Nodes())
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		out[b.ID] = g
	}
	return out, nil
}
