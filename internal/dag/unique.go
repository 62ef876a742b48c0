package dag

import (
	"fmt"

	"github.com/rendis/flowgraph/pkg/schema"
)

// ValidateUniqueStepIDs checks that no two steps of the tree share an id,
// including steps nested in branches and loop bodies.
// The error lists every location of the first duplicated id.
func ValidateUniqueStepIDs(steps []schema.StepIR) error {
	locations := make(map[string][]string)
	var order []string
	collectIDs(steps, "steps", locations, &order)

	for _, id := range order {
		if paths := locations[id]; len(paths) > 1 {
			return &schema.DuplicateStepIDError{ID: id, Paths: paths}
		}
	}
	return nil
}

func collectIDs(steps []schema.StepIR, path string, locations map[string][]string, order *[]string) {
	for i := range steps {
		step := &steps[i]
		at := fmt.Sprintf("%s[%d]", path, i)
		if _, seen := locations[step.ID]; !seen {
			*order = append(*order, step.ID)
		}
		locations[step.ID] = append(locations[step.ID], at)

		if step.Branches != nil {
			collectIDs(step.Branches.Then, at+".branches.then", locations, order)
			collectIDs(step.Branches.Else, at+".branches.else", locations, order)
		}
		collectIDs(step.NestedBlocks, at+".nested_blocks", locations, order)
	}
}
