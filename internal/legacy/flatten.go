package legacy

import "github.com/rendis/flowgraph/pkg/schema"

// Scope is where converted steps land: the top-level step list or the body
// of a container. Prefix is prepended to every id generated in the scope.
type Scope struct {
	TopLevel bool
	Prefix   string
}

// FlattenPolicy decides what happens to the children of a legacy node that
// carries a blocks array but is neither a condition nor a loop/match.
type FlattenPolicy interface {
	// ChildScope returns the scope the children are converted in.
	ChildScope(parent schema.StepIR, scope Scope) Scope
	// Flatten combines the parent and its converted children into the steps
	// emitted into scope.
	Flatten(parent schema.StepIR, children []schema.StepIR, scope Scope) []schema.StepIR
}

// SiblingFlatten emits the parent followed by its children as siblings.
// At top-level scope the first child depends on the parent; inside a
// container the sibling order already expresses it.
type SiblingFlatten struct{}

func (SiblingFlatten) ChildScope(_ schema.StepIR, scope Scope) Scope { return scope }

func (SiblingFlatten) Flatten(parent schema.StepIR, children []schema.StepIR, scope Scope) []schema.StepIR {
	out := make([]schema.StepIR, 0, len(children)+1)
	out = append(out, parent)
	if len(children) == 0 {
		return out
	}
	if scope.TopLevel {
		children[0].DependsOn = appendUnique(children[0].DependsOn, parent.ID)
	}
	return append(out, children...)
}

// NestedFlatten keeps the children under the parent as nested blocks.
type NestedFlatten struct{}

func (NestedFlatten) ChildScope(parent schema.StepIR, _ Scope) Scope {
	return Scope{Prefix: parent.ID + "_nested_"}
}

func (NestedFlatten) Flatten(parent schema.StepIR, children []schema.StepIR, _ Scope) []schema.StepIR {
	if len(children) > 0 {
		parent.NestedBlocks = children
	}
	return []schema.StepIR{parent}
}

// DropChildren emits the parent alone and discards its children.
type DropChildren struct{}

func (DropChildren) ChildScope(parent schema.StepIR, _ Scope) Scope {
	return Scope{Prefix: parent.ID + "_dropped_"}
}

func (DropChildren) Flatten(parent schema.StepIR, _ []schema.StepIR, _ Scope) []schema.StepIR {
	return []schema.StepIR{parent}
}

// PolicyByName resolves a flatten policy from its configuration name.
func PolicyByName(name string) (FlattenPolicy, bool) {
	switch name {
	case "", "siblings":
		return SiblingFlatten{}, true
	case "nested":
		return NestedFlatten{}, true
	case "drop":
		return DropChildren{}, true
	default:
		return nil, false
	}
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
