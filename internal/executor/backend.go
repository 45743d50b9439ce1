package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/gpukit/cmdsched/internal/command"
)

// Backend is the seam toward the real GPU API. Dispatch workers hand it one
// decoded envelope at a time, already in a dependency-safe order.
type Backend interface {
	Apply(ctx context.Context, env command.Envelope) error
}

// SimBackend is an in-memory Backend that records every applied envelope.
// It backs tests and the server's default (driverless) mode.
type SimBackend struct {
	mu      sync.Mutex
	applied []command.Envelope
	fail    map[string]bool
}

// NewSimBackend creates an empty SimBackend.
func NewSimBackend() *SimBackend {
	return &SimBackend{fail: make(map[string]bool)}
}

// FailNode makes Apply return an error for the given node id.
func (b *SimBackend) FailNode(node string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[node] = true
}

// Apply records the envelope, or fails if the node was marked to fail.
func (b *SimBackend) Apply(_ context.Context, env command.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail[env.Node] {
		return fmt.Errorf("sim backend: injected failure for %q", env.Node)
	}
	b.applied = append(b.applied, env)
	return nil
}

// Applied returns a copy of the envelopes in application order.
func (b *SimBackend) Applied() []command.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]command.Envelope, len(b.applied))
	copy(out, b.applied)
	return out
}
