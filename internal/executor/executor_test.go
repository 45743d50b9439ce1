package executor_test

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/config"
	"github.com/gpukit/cmdsched/internal/executor"
	"github.com/gpukit/cmdsched/internal/graph"
	"github.com/gpukit/cmdsched/internal/resource"
)

func testConf() config.ExecutorConf {
	return config.ExecutorConf{DispatchWorkers: 1, RingDepth: 16, PushTimeoutMs: 1000}
}

func buildDiamond(t *testing.T) *graph.CommandGraph {
	t.Helper()
	dispatch := func(id string, deps ...string) graph.CommandNode {
		ds := make([]graph.NodeID, len(deps))
		for i, d := range deps {
			ds[i] = graph.NodeID(d)
		}
		return graph.CommandNode{
			ID:        graph.NodeID(id),
			Op:        command.Operation{Dispatch: &command.DispatchOp{Pipeline: id, GroupsX: 1, GroupsY: 1, GroupsZ: 1}},
			DependsOn: ds,
		}
	}
	g, err := graph.Build([]graph.CommandNode{
		dispatch("upload"),
		dispatch("reduce", "upload"),
		dispatch("scan", "upload"),
		dispatch("fine", "reduce", "scan"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestRun_AppliesInExecutionOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := executor.NewSimBackend()
	e := executor.New(ctx, resource.NewTracker(), backend, testConf())
	defer e.Shutdown()

	g := buildDiamond(t)
	res, err := e.Run(ctx, "diamond", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Scheduled) != 4 || res.Dropped != 0 {
		t.Fatalf("expected 4 scheduled, got %+v", res)
	}
	applied := backend.Applied()
	if len(applied) != 4 {
		t.Fatalf("expected 4 applied, got %d", len(applied))
	}
	for i, id := range g.ExecutionOrder {
		if applied[i].Node != string(id) {
			t.Errorf("position %d: expected %s, got %s", i, id, applied[i].Node)
		}
	}
	for _, o := range res.Outcomes {
		if o.Status != "applied" {
			t.Errorf("node %s: status %s (%s)", o.Node, o.Status, o.Error)
		}
	}
}

func TestRun_TracksOutputsAndInputs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := resource.NewTracker()
	e := executor.New(ctx, tracker, executor.NewSimBackend(), testConf())
	defer e.Shutdown()

	g, err := graph.Build([]graph.CommandNode{
		{
			ID:      "upload",
			Op:      command.Operation{WriteBuffer: &command.WriteBufferOp{Dst: "buf:scene"}},
			Outputs: []command.ResourceID{"buf:scene"},
		},
		{
			ID:        "reduce",
			Op:        command.Operation{Dispatch: &command.DispatchOp{Pipeline: "reduce", GroupsX: 1}},
			Inputs:    []command.ResourceID{"buf:scene"},
			Outputs:   []command.ResourceID{"buf:reduced"},
			DependsOn: []graph.NodeID{"upload"},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := e.Run(ctx, "frame", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.ResourceErrors) != 0 {
		t.Fatalf("unexpected resource errors: %v", res.ResourceErrors)
	}
	leaks := tracker.Leaks()
	if len(leaks) != 2 {
		t.Errorf("expected buf:scene and buf:reduced live, got %v", leaks)
	}
}

func TestRun_RejectsUnknownInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := executor.New(ctx, resource.NewTracker(), executor.NewSimBackend(), testConf())
	defer e.Shutdown()

	g, err := graph.Build([]graph.CommandNode{
		{
			ID:     "read",
			Op:     command.Operation{ReadBuffer: &command.ReadBufferOp{Src: "buf:ghost", Size: 16}},
			Inputs: []command.ResourceID{"buf:ghost"},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := e.Run(ctx, "bad", g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Scheduled) != 0 {
		t.Errorf("command with unknown input must not be scheduled: %+v", res)
	}
	if len(res.ResourceErrors) != 1 || !strings.Contains(res.ResourceErrors[0], "buf:ghost") {
		t.Errorf("expected a resource error naming buf:ghost, got %v", res.ResourceErrors)
	}
}

func TestRun_BackendFailureIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := executor.NewSimBackend()
	backend.FailNode("reduce")
	e := executor.New(ctx, resource.NewTracker(), backend, testConf())
	defer e.Shutdown()

	res, err := e.Run(ctx, "diamond", buildDiamond(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var failed int
	for _, o := range res.Outcomes {
		if o.Status == "failed" {
			failed++
			if o.Node != "reduce" {
				t.Errorf("unexpected failed node %s", o.Node)
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly one failed outcome, got %d: %+v", failed, res.Outcomes)
	}
}

// blockingBackend holds every Apply until its gate opens or the worker's
// context is cancelled.
type blockingBackend struct {
	gate chan struct{}
}

func (b *blockingBackend) Apply(ctx context.Context, _ command.Envelope) error {
	select {
	case <-b.gate:
	case <-ctx.Done():
	}
	return nil
}

func TestRun_CancelLeavesNoWaiterBehind(t *testing.T) {
	baseline := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	e := executor.New(ctx, resource.NewTracker(), &blockingBackend{gate: gate}, testConf())

	g := buildDiamond(t)
	runCtx, runCancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := e.Run(runCtx, "stuck", g)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	runCancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(gate)
	cancel()
	e.Shutdown()

	deadline := time.After(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		select {
		case <-deadline:
			t.Fatalf("goroutines did not settle: %d > baseline %d", runtime.NumGoroutine(), baseline)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunBatch_UnknownID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := executor.New(ctx, resource.NewTracker(), executor.NewSimBackend(), testConf())
	defer e.Shutdown()

	if _, err := e.RunBatch(ctx, "nope"); err == nil {
		t.Fatal("expected error for unknown batch")
	}
}

func TestSwapBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := executor.New(ctx, resource.NewTracker(), executor.NewSimBackend(), testConf())
	defer e.Shutdown()

	g := buildDiamond(t)
	e.SwapBatches(map[string]*graph.CommandGraph{"frame": g})
	res, err := e.RunBatch(ctx, "frame")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Scheduled) != 4 {
		t.Errorf("expected 4 scheduled, got %+v", res.Scheduled)
	}
}
