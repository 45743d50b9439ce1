package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/config"
	"github.com/gpukit/cmdsched/internal/graph"
	"github.com/gpukit/cmdsched/internal/metrics"
	"github.com/gpukit/cmdsched/internal/resource"
	"github.com/gpukit/cmdsched/internal/transport"
)

// NodeOutcome is the dispatch result for one command.
type NodeOutcome struct {
	Node   string         `json:"node"`
	Kind   command.OpKind `json:"kind"`
	Status string         `json:"status"` // "applied" | "failed"
	Error  string         `json:"error,omitempty"`
}

// RunResult is the outcome of executing one graph.
type RunResult struct {
	Batch          string         `json:"batch"`
	Scheduled      []graph.NodeID `json:"scheduled"`
	Outcomes       []NodeOutcome  `json:"outcomes"`
	ResourceErrors []string       `json:"resource_errors,omitempty"`
	Dropped        int            `json:"dropped"`
	DurationMs     int64          `json:"duration_ms"`
}

// run collects worker-side outcomes for the batch currently in flight.
// done closes once the run is sealed and the last pending envelope has
// finished; a cancelled run simply abandons the channel, so no waiter
// goroutine is needed.
type run struct {
	mu       sync.Mutex
	pending  int
	sealed   bool
	outcomes []NodeOutcome
	done     chan struct{}
}

func newRun() *run { return &run{done: make(chan struct{})} }

func (r *run) add() {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()
}

// drop undoes add for an envelope that never reached the ring.
func (r *run) drop() {
	r.mu.Lock()
	r.pending--
	r.maybeClose()
	r.mu.Unlock()
}

func (r *run) finish(o NodeOutcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.pending--
	r.maybeClose()
	r.mu.Unlock()
}

// seal marks that no more envelopes will be added.
func (r *run) seal() {
	r.mu.Lock()
	r.sealed = true
	r.maybeClose()
	r.mu.Unlock()
}

func (r *run) maybeClose() {
	if r.sealed && r.pending == 0 {
		close(r.done)
	}
}

// Executor walks a built graph's execution order on the controller side,
// consults the resource tracker before each command, and hands envelopes to
// dispatch workers through the transport ring. It never reorders: the
// graph's linearization is the schedule. One run is in flight at a time.
type Executor struct {
	batches atomic.Pointer[map[string]*graph.CommandGraph]
	tracker *resource.Tracker
	backend Backend
	ring    *transport.Ring
	conf    config.ExecutorConf

	runMu   sync.Mutex
	curMu   sync.Mutex
	current *run
	workers sync.WaitGroup
}

// New creates an Executor and starts its dispatch workers. The workers run
// until ctx is cancelled or Shutdown is called.
func New(ctx context.Context, tracker *resource.Tracker, backend Backend, conf config.ExecutorConf) *Executor {
	e := &Executor{
		tracker: tracker,
		backend: backend,
		ring:    transport.NewRing(conf.RingDepth),
		conf:    conf,
	}
	empty := map[string]*graph.CommandGraph{}
	e.batches.Store(&empty)

	for i := 0; i < conf.DispatchWorkers; i++ {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			e.dispatchLoop(ctx)
		}()
	}
	return e
}

// SwapBatches atomically replaces the named-batch table; used by hot reload.
func (e *Executor) SwapBatches(batches map[string]*graph.CommandGraph) {
	e.batches.Store(&batches)
}

// Batches returns the current named-batch table.
func (e *Executor) Batches() map[string]*graph.CommandGraph {
	return *e.batches.Load()
}

// RunBatch executes a batch registered via SwapBatches.
func (e *Executor) RunBatch(ctx context.Context, id string) (*RunResult, error) {
	g, ok := (*e.batches.Load())[id]
	if !ok {
		return nil, fmt.Errorf("unknown batch %q", id)
	}
	return e.Run(ctx, id, g)
}

// Run executes an already-built graph: every node is scheduled strictly
// after its dependencies, inputs are checked against the tracker, and
// outputs registered. It blocks until every scheduled command has been
// applied by a worker or ctx is done.
func (e *Executor) Run(ctx context.Context, name string, g *graph.CommandGraph) (*RunResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	cur := newRun()
	e.setCurrent(cur)
	defer e.setCurrent(nil)

	res := &RunResult{Batch: name}
	for _, id := range g.ExecutionOrder {
		n := g.Nodes[id]
		if err := e.checkResources(n); err != nil {
			res.ResourceErrors = append(res.ResourceErrors, fmt.Sprintf("%s: %s", id, err))
			continue
		}
		cur.add()
		if !e.push(ctx, command.Envelope{Node: string(id), Op: n.Op}) {
			cur.drop()
			res.Dropped++
			continue
		}
		res.Scheduled = append(res.Scheduled, id)
		metrics.CommandsScheduled.Inc()
	}

	cur.seal()
	select {
	case <-cur.done:
	case <-ctx.Done():
		res.DurationMs = time.Since(start).Milliseconds()
		return res, ctx.Err()
	}

	cur.mu.Lock()
	res.Outcomes = cur.outcomes
	cur.mu.Unlock()
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

// Shutdown closes the ring and waits for the dispatch workers to drain.
func (e *Executor) Shutdown() {
	e.ring.Close()
	e.workers.Wait()
}

// RingLen reports the current transport queue depth.
func (e *Executor) RingLen() int { return e.ring.Len() }

// RingUtilization reports the transport queue fill ratio (0–1).
func (e *Executor) RingUtilization() float64 {
	return float64(e.ring.Len()) / float64(e.ring.Cap())
}

func (e *Executor) setCurrent(r *run) {
	e.curMu.Lock()
	e.current = r
	e.curMu.Unlock()
}

// checkResources enforces the shadow bookkeeping: every input must be a
// live resource, every output is created on first write and used after.
func (e *Executor) checkResources(n graph.CommandNode) error {
	for _, in := range n.Inputs {
		if err := e.tracker.Use(in); err != nil {
			metrics.ResourceViolations.WithLabelValues(violationKind(err)).Inc()
			return err
		}
	}
	for _, out := range n.Outputs {
		err := e.tracker.Create(out, resource.KindBuffer)
		if errors.Is(err, resource.ErrAlreadyExists) {
			err = e.tracker.Use(out)
		}
		if err != nil {
			metrics.ResourceViolations.WithLabelValues(violationKind(err)).Inc()
			return err
		}
	}
	return nil
}

func violationKind(err error) string {
	switch {
	case errors.Is(err, resource.ErrUnknown):
		return "unknown"
	case errors.Is(err, resource.ErrAlreadyDisposed):
		return "disposed"
	case errors.Is(err, resource.ErrAlreadyExists):
		return "exists"
	}
	return "other"
}

// push retries a non-blocking ring push until it lands, the configured
// timeout passes, or ctx is done.
func (e *Executor) push(ctx context.Context, env command.Envelope) bool {
	deadline := time.Now().Add(time.Duration(e.conf.PushTimeoutMs) * time.Millisecond)
	for {
		ok, err := e.ring.Push(env)
		if err != nil {
			return false
		}
		if ok {
			metrics.RingUtilization.Set(float64(e.ring.Len()) / float64(e.ring.Cap()))
			return true
		}
		metrics.RingFull.Inc()
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

// dispatchLoop is the worker side of the ring: receive, apply, record.
func (e *Executor) dispatchLoop(ctx context.Context) {
	for {
		env, err := e.ring.Recv(ctx)
		if err != nil {
			return
		}
		applyErr := e.backend.Apply(ctx, env)
		status := "applied"
		if applyErr != nil {
			status = "failed"
		}
		metrics.CommandsDispatched.WithLabelValues(string(env.Op.Kind()), status).Inc()
		metrics.RingUtilization.Set(float64(e.ring.Len()) / float64(e.ring.Cap()))

		e.curMu.Lock()
		if cur := e.current; cur != nil {
			out := NodeOutcome{Node: env.Node, Kind: env.Op.Kind(), Status: status}
			if applyErr != nil {
				out.Error = applyErr.Error()
			}
			cur.finish(out)
		}
		e.curMu.Unlock()
	}
}
