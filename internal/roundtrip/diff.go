package roundtrip

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Category classifies a difference between two IRs.
type Category string

const (
	CategoryMissingStep         Category = "missing_step"
	CategoryUnexpectedStep      Category = "unexpected_step"
	CategoryTypeMismatch        Category = "type_mismatch"
	CategoryDependencyMismatch  Category = "dependency_mismatch"
	CategoryBranchCountMismatch Category = "branch_count_mismatch"
	CategoryNestedCountMismatch Category = "nested_count_mismatch"
	CategoryCallbackMismatch    Category = "callback_mismatch"
	CategoryConfigMismatch      Category = "config_mismatch"
	CategoryPositionDrift       Category = "position_drift"
)

// Severity returns the fixed severity of the category. Config and position
// changes are warnings: config may be legitimately transformed and
// positions are rounded.
func (c Category) Severity() schema.ValidationSeverity {
	switch c {
	case CategoryConfigMismatch, CategoryPositionDrift:
		return schema.SeverityWarning
	default:
		return schema.SeverityError
	}
}

// Difference is one structural difference.
type Difference struct {
	Category Category                  `json:"category"`
	Severity schema.ValidationSeverity `json:"severity"`
	Path     string                    `json:"path"`
	Message  string                    `json:"message"`
}

// configOpts treats nil and empty maps as equal.
var configOpts = cmp.Options{cmpopts.EquateEmpty()}

// Diff compares two IRs step by step, recursing into branches, nested
// blocks and callbacks. Steps are matched by id within each scope.
// Positions may drift up to tolerance pixels on either axis.
func Diff(a, b *schema.WorkflowIR, tolerance float64) []Difference {
	d := &differ{tolerance: tolerance}
	d.steps("steps", a.Steps, b.Steps)
	d.callbacks(a.Callbacks, b.Callbacks)
	return d.out
}

type differ struct {
	tolerance float64
	out       []Difference
}

func (d *differ) add(c Category, path, format string, args ...any) {
	d.out = append(d.out, Difference{
		Category: c,
		Severity: c.Severity(),
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *differ) steps(path string, a, b []schema.StepIR) {
	byID := make(map[string]*schema.StepIR, len(b))
	for i := range b {
		byID[b[i].ID] = &b[i]
	}
	seen := make(map[string]bool, len(a))

	for i := range a {
		sa := &a[i]
		seen[sa.ID] = true
		at := fmt.Sprintf("%s[%s]", path, sa.ID)
		sb, ok := byID[sa.ID]
		if !ok {
			d.add(CategoryMissingStep, at, "step %s is missing", sa.ID)
			continue
		}
		d.step(at, sa, sb)
	}
	for i := range b {
		if !seen[b[i].ID] {
			d.add(CategoryUnexpectedStep, fmt.Sprintf("%s[%s]", path, b[i].ID), "step %s was not in the original", b[i].ID)
		}
	}
}

func (d *differ) step(path string, a, b *schema.StepIR) {
	if a.Type != b.Type {
		d.add(CategoryTypeMismatch, path, "type %q became %q", a.Type, b.Type)
	}
	if !sameSet(a.DependsOn, b.DependsOn) {
		d.add(CategoryDependencyMismatch, path, "depends_on %v became %v", a.DependsOn, b.DependsOn)
	}

	thenA, elseA := branchLists(a)
	thenB, elseB := branchLists(b)
	if len(thenA) != len(thenB) || len(elseA) != len(elseB) {
		d.add(CategoryBranchCountMismatch, path, "branches then=%d else=%d became then=%d else=%d",
			len(thenA), len(elseA), len(thenB), len(elseB))
	}
	if len(a.NestedBlocks) != len(b.NestedBlocks) {
		d.add(CategoryNestedCountMismatch, path, "nested_blocks count %d became %d",
			len(a.NestedBlocks), len(b.NestedBlocks))
	}

	if !cmp.Equal(a.Config, b.Config, configOpts) {
		d.add(CategoryConfigMismatch, path+".config", "config changed (-original +result):\n%s",
			strings.TrimSpace(cmp.Diff(a.Config, b.Config, configOpts)))
	}
	d.position(path, a.Position, b.Position)

	d.steps(path+".branches.then", thenA, thenB)
	d.steps(path+".branches.else", elseA, elseB)
	d.steps(path+".nested_blocks", a.NestedBlocks, b.NestedBlocks)
}

func (d *differ) position(path string, a, b *schema.Position) {
	if a == nil || b == nil {
		return
	}
	dx, dy := math.Abs(a.X-b.X), math.Abs(a.Y-b.Y)
	if dx > d.tolerance || dy > d.tolerance {
		d.add(CategoryPositionDrift, path+".position", "moved from (%g,%g) to (%g,%g)", a.X, a.Y, b.X, b.Y)
	}
}

func (d *differ) callbacks(a, b []schema.CallbackIR) {
	byID := make(map[string]*schema.CallbackIR, len(b))
	for i := range b {
		byID[b[i].ID] = &b[i]
	}
	seen := make(map[string]bool, len(a))

	for i := range a {
		ca := &a[i]
		seen[ca.ID] = true
		at := fmt.Sprintf("callbacks[%s]", ca.ID)
		cb, ok := byID[ca.ID]
		if !ok {
			d.add(CategoryCallbackMismatch, at, "callback %s is missing", ca.ID)
			continue
		}
		if ca.Name != cb.Name || ca.Type != cb.Type {
			d.add(CategoryCallbackMismatch, at, "callback %s/%s became %s/%s", ca.Name, ca.Type, cb.Name, cb.Type)
		}
		if !cmp.Equal(ca.Config, cb.Config, configOpts) {
			d.add(CategoryConfigMismatch, at+".config", "config changed (-original +result):\n%s",
				strings.TrimSpace(cmp.Diff(ca.Config, cb.Config, configOpts)))
		}
		d.position(at, ca.Position, cb.Position)
		d.steps(at+".steps", ca.Steps, cb.Steps)
	}
	for i := range b {
		if !seen[b[i].ID] {
			d.add(CategoryCallbackMismatch, fmt.Sprintf("callbacks[%s]", b[i].ID), "callback %s was not in the original", b[i].ID)
		}
	}
}

func branchLists(s *schema.StepIR) (then, els []schema.StepIR) {
	if s.Branches == nil {
		return nil, nil
	}
	return s.Branches.Then, s.Branches.Else
}

// sameSet compares two id lists ignoring order and repeats.
func sameSet(a, b []string) bool {
	sa := make(map[string]bool, len(a))
	for _, s := range a {
		sa[s] = true
	}
	sb := make(map[string]bool, len(b))
	for _, s := range b {
		sb[s] = true
	}
	if len(sa) != len(sb) {
		return false
	}
	for s := range sa {
		if !sb[s] {
			return false
		}
	}
	return true
}
