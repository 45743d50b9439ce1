package resource

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gpukit/cmdsched/internal/command"
)

var (
	ErrUnknown         = errors.New("unknown resource")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrAlreadyDisposed = errors.New("resource already disposed")
)

// State is the lifecycle phase of a tracked resource.
type State string

const (
	StateCreated  State = "created"
	StateDisposed State = "disposed"
)

// Kind is a coarse classification carried for diagnostics only.
type Kind string

const (
	KindBuffer   Kind = "buffer"
	KindTexture  Kind = "texture"
	KindPipeline Kind = "pipeline"
)

// Entry is the shadow record kept per resource.
type Entry struct {
	ID       command.ResourceID `json:"id"`
	Kind     Kind               `json:"kind"`
	State    State              `json:"state"`
	UseCount int                `json:"use_count"`
}

// Tracker is the shadow resource-state bookkeeper. It mirrors the lifecycle
// of GPU-side resources without ever touching a driver: the executor asks
// it whether inputs are usable before dispatching a command and records
// outputs after. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[command.ResourceID]*Entry
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[command.ResourceID]*Entry)}
}

// Create registers a new resource. Re-creating a live resource is a
// bookkeeping error; re-creating a disposed one is allowed (the id slot is
// recycled, as GPU handles are).
func (t *Tracker) Create(id command.ResourceID, kind Kind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok && e.State != StateDisposed {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, id)
	}
	t.entries[id] = &Entry{ID: id, Kind: kind, State: StateCreated}
	return nil
}

// Use records a read or write against a resource and rejects use of
// unknown or disposed resources.
func (t *Tracker) Use(id command.ResourceID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, id)
	}
	if e.State == StateDisposed {
		return fmt.Errorf("use after dispose of %q: %w", id, ErrAlreadyDisposed)
	}
	e.UseCount++
	return nil
}

// Dispose marks a resource released. Double-dispose is an error.
func (t *Tracker) Dispose(id command.ResourceID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, id)
	}
	if e.State == StateDisposed {
		return fmt.Errorf("%w: %q", ErrAlreadyDisposed, id)
	}
	e.State = StateDisposed
	return nil
}

// Leaks returns the ids of resources still live, sorted for stable output.
func (t *Tracker) Leaks() []command.ResourceID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []command.ResourceID
	for id, e := range t.entries {
		if e.State != StateDisposed {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns a copy of every entry, sorted by id.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
