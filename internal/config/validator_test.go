package config_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/config"
	"github.com/gpukit/cmdsched/internal/graph"
)

const sampleYAML = `
version: v1
executor:
  dispatch_workers: 2
resources:
  - id: buf:scene
    kind: buffer
batches:
  - id: frame
    commands:
      - id: upload
        outputs: [buf:scene]
        write_buffer:
          dst: buf:scene
      - id: reduce
        depends_on: [upload]
        inputs: [buf:scene]
        dispatch:
          pipeline: pathtag_reduce
          groups_x: 64
`

func parse(t *testing.T, src string) *config.BatchConfig {
	t.Helper()
	var cfg config.BatchConfig
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return &cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := parse(t, sampleYAML)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParse_InlineOperation(t *testing.T) {
	cfg := parse(t, sampleYAML)
	cmds := cfg.Batches[0].Commands
	if cmds[0].Op.Kind() != command.OpWriteBuffer {
		t.Errorf("upload: expected write_buffer, got %q", cmds[0].Op.Kind())
	}
	if cmds[1].Op.Kind() != command.OpDispatch {
		t.Errorf("reduce: expected dispatch, got %q", cmds[1].Op.Kind())
	}
	if cmds[1].Op.Dispatch.Pipeline != "pathtag_reduce" || cmds[1].Op.Dispatch.GroupsX != 64 {
		t.Errorf("dispatch payload lost in parse: %+v", cmds[1].Op.Dispatch)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := parse(t, sampleYAML)
	cfg.Version = ""
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := parse(t, `
version: v1
resources:
  - id: buf:a
    kind: floppy
batches:
  - id: frame
    commands:
      - id: a
        barrier: {}
      - id: a
        barrier: {}
      - id: b
        depends_on: [ghost]
        barrier: {}
      - id: c
`)
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		`unknown kind "floppy"`,
		"duplicate command id",
		`depends_on "ghost"`,
		"no variant set",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in: %v", want, err)
		}
	}
}

func TestBuildAll(t *testing.T) {
	cfg := parse(t, sampleYAML)
	batches, err := config.BuildAll(cfg)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	g, ok := batches["frame"]
	if !ok {
		t.Fatal("frame batch missing")
	}
	want := []graph.NodeID{"upload", "reduce"}
	for i, id := range want {
		if g.ExecutionOrder[i] != id {
			t.Fatalf("expected order %v, got %v", want, g.ExecutionOrder)
		}
	}
}

func TestBuildAll_NamesFailingBatch(t *testing.T) {
	cfg := parse(t, `
version: v1
batches:
  - id: broken
    commands:
      - id: a
        depends_on: [b]
        barrier: {}
      - id: b
        depends_on: [a]
        barrier: {}
`)
	_, err := config.BuildAll(cfg)
	if err == nil || !strings.Contains(err.Error(), "batch broken") {
		t.Fatalf("expected error naming batch broken, got %v", err)
	}
}
