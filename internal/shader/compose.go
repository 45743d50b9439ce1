package shader

import (
	"fmt"
	"strings"
	"sync"
)

// Fragment is a named piece of shader source plus the fragments it needs
// composed before it (shared structs, bind group declarations, helpers).
type Fragment struct {
	Name     string
	Requires []string
	Source   string
}

// Registry holds fragments for composition. Safe for concurrent reads;
// Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	fragments map[string]Fragment
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fragments: make(map[string]Fragment)}
}

// Register adds a fragment. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(f Fragment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fragments[f.Name]; exists {
		panic(fmt.Sprintf("shader registry: duplicate fragment %q", f.Name))
	}
	r.fragments[f.Name] = f
}

// Compose resolves name's transitive requirements and concatenates the
// sources in dependency order, each fragment included once. Requirements
// are emitted depth-first in declared order, so composition is
// deterministic for a given registry.
func (r *Registry) Compose(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var parts []string
	visited := make(map[string]bool)
	onPath := make(map[string]bool)

	var visit func(n string, path []string) error
	visit = func(n string, path []string) error {
		if visited[n] {
			return nil
		}
		if onPath[n] {
			return fmt.Errorf("fragment %q requires itself via %s", n, strings.Join(append(path, n), " -> "))
		}
		f, ok := r.fragments[n]
		if !ok {
			return fmt.Errorf("unknown fragment %q", n)
		}
		onPath[n] = true
		for _, req := range f.Requires {
			if err := visit(req, append(path, n)); err != nil {
				return err
			}
		}
		onPath[n] = false
		visited[n] = true
		parts = append(parts, f.Source)
		return nil
	}

	if err := visit(name, nil); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}
