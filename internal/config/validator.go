package config

import (
	"fmt"
	"strings"
)

var knownKinds = map[string]struct{}{
	"buffer":   {},
	"texture":  {},
	"pipeline": {},
}

// Validate checks the config for:
//   - Required fields (version, ids, operation variants)
//   - Duplicate resource and batch ids, duplicate command ids within a batch
//   - depends_on references that leave the batch
//
// All problems are collected and reported together; graph-level checks
// (cycles, ordering) are the graph builder's job, not the config's.
func Validate(cfg *BatchConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	resIDs := make(map[string]struct{}, len(cfg.Resources))
	for i, r := range cfg.Resources {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("resources[%d]: id is required", i))
			continue
		}
		if _, dup := resIDs[r.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate resource id %q", r.ID))
		} else {
			resIDs[r.ID] = struct{}{}
		}
		if _, ok := knownKinds[r.Kind]; !ok {
			errs = append(errs, fmt.Sprintf("resource %s: unknown kind %q", r.ID, r.Kind))
		}
	}

	fragNames := make(map[string]struct{}, len(cfg.Shaders))
	for i, s := range cfg.Shaders {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("shaders[%d]: name is required", i))
			continue
		}
		if _, dup := fragNames[s.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate shader fragment %q", s.Name))
		} else {
			fragNames[s.Name] = struct{}{}
		}
	}
	for _, s := range cfg.Shaders {
		for _, req := range s.Requires {
			if _, ok := fragNames[req]; !ok {
				errs = append(errs, fmt.Sprintf("shader %s: requires unknown fragment %q", s.Name, req))
			}
		}
	}

	batchIDs := make(map[string]struct{}, len(cfg.Batches))
	for i, b := range cfg.Batches {
		if b.ID == "" {
			errs = append(errs, fmt.Sprintf("batches[%d]: id is required", i))
			continue
		}
		if _, dup := batchIDs[b.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate batch id %q", b.ID))
		} else {
			batchIDs[b.ID] = struct{}{}
		}
		validateCommands(b, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateCommands(b BatchDef, errs *[]string) {
	cmdIDs := make(map[string]struct{}, len(b.Commands))
	for j, c := range b.Commands {
		if c.ID == "" {
			*errs = append(*errs, fmt.Sprintf("batch %s: commands[%d]: id is required", b.ID, j))
			continue
		}
		loc := fmt.Sprintf("batch %s: command %s", b.ID, c.ID)
		if _, dup := cmdIDs[c.ID]; dup {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate command id", loc))
		} else {
			cmdIDs[c.ID] = struct{}{}
		}
		if err := c.Op.Validate(); err != nil {
			*errs = append(*errs, fmt.Sprintf("%s: %s", loc, err))
		}
	}
	// depends_on must stay within the batch; the graph builder reports the
	// same defect, but the config validator names the batch.
	for _, c := range b.Commands {
		for _, dep := range c.DependsOn {
			if _, ok := cmdIDs[dep]; !ok {
				*errs = append(*errs, fmt.Sprintf("batch %s: command %s: depends_on %q is not in this batch", b.ID, c.ID, dep))
			}
		}
	}
}
