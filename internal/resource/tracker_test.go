package resource_test

import (
	"errors"
	"testing"

	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/resource"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := resource.NewTracker()
	if err := tr.Create("buf:vertices", resource.KindBuffer); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.Use("buf:vertices"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if err := tr.Dispose("buf:vertices"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := tr.Use("buf:vertices"); !errors.Is(err, resource.ErrAlreadyDisposed) {
		t.Errorf("expected use-after-dispose error, got %v", err)
	}
}

func TestTracker_UnknownResource(t *testing.T) {
	tr := resource.NewTracker()
	if err := tr.Use("buf:nope"); !errors.Is(err, resource.ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
	if err := tr.Dispose("buf:nope"); !errors.Is(err, resource.ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestTracker_DoubleCreate(t *testing.T) {
	tr := resource.NewTracker()
	if err := tr.Create("tex:atlas", resource.KindTexture); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.Create("tex:atlas", resource.KindTexture); !errors.Is(err, resource.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	// A disposed id slot may be recycled.
	if err := tr.Dispose("tex:atlas"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := tr.Create("tex:atlas", resource.KindTexture); err != nil {
		t.Errorf("expected recycle after dispose, got %v", err)
	}
}

func TestTracker_DoubleDispose(t *testing.T) {
	tr := resource.NewTracker()
	if err := tr.Create("buf:a", resource.KindBuffer); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tr.Dispose("buf:a"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := tr.Dispose("buf:a"); !errors.Is(err, resource.ErrAlreadyDisposed) {
		t.Errorf("expected ErrAlreadyDisposed, got %v", err)
	}
}

func TestTracker_Leaks(t *testing.T) {
	tr := resource.NewTracker()
	for _, id := range []string{"buf:b", "buf:a", "buf:c"} {
		if err := tr.Create(command.ResourceID(id), resource.KindBuffer); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := tr.Dispose("buf:b"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	leaks := tr.Leaks()
	if len(leaks) != 2 || leaks[0] != "buf:a" || leaks[1] != "buf:c" {
		t.Errorf("expected sorted [buf:a buf:c], got %v", leaks)
	}
}
