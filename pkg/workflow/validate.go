package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"leadflow-hq/relay/pkg/automation"
)

// validateWorkflow checks the shape of a workflow. It also fills in missing
// step ids and sorts the steps by order.
func validateWorkflow(w *Workflow, cfg *Config) error {
	var errs []string

	if strings.TrimSpace(w.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(w.Trigger) == "" {
		errs = append(errs, "trigger is required")
	}
	if len(w.Steps) == 0 {
		errs = append(errs, "at least one step is required")
	}
	if len(w.Steps) > cfg.MaxSteps {
		errs = append(errs, fmt.Sprintf("too many steps: %d (max %d)", len(w.Steps), cfg.MaxSteps))
	}

	orders := make(map[int]int, len(w.Steps))
	ids := make(map[string]int, len(w.Steps))
	for i, s := range w.Steps {
		if s.Type == "" {
			errs = append(errs, fmt.Sprintf("steps[%d]: type is required", i))
		}
		if prev, dup := orders[s.Order]; dup {
			errs = append(errs, fmt.Sprintf("steps[%d]: order %d already used by steps[%d]", i, s.Order, prev))
		} else {
			orders[s.Order] = i
		}
		if s.ID == "" {
			continue
		}
		if prev, dup := ids[s.ID]; dup {
			errs = append(errs, fmt.Sprintf("steps[%d]: id %q already used by steps[%d]", i, s.ID, prev))
		} else {
			ids[s.ID] = i
		}
	}

	if len(errs) > 0 {
		return automation.NewValidationError("workflow", w.ID, errs...)
	}

	if cfg.StrictValidation {
		for _, s := range w.Steps {
			if !s.Type.Valid() {
				return automation.NewUnsupportedOperationError("step type", string(s.Type))
			}
		}
	}

	for i := range w.Steps {
		if w.Steps[i].ID == "" {
			w.Steps[i].ID = uuid.New().String()
		}
		config, err := automation.Normalize("workflow", w.ID, w.Steps[i].Config)
		if err != nil {
			return err
		}
		w.Steps[i].Config = config
	}
	SortSteps(w.Steps)
	return nil
}

// SortSteps orders steps by ascending order.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
}

// SortWorkflows orders workflows by descending priority, then name.
func SortWorkflows(workflows []*Workflow) {
	sort.SliceStable(workflows, func(i, j int) bool {
		if workflows[i].Priority != workflows[j].Priority {
			return workflows[i].Priority > workflows[j].Priority
		}
		return workflows[i].Name < workflows[j].Name
	})
}
