package schema

// NodeKind classifies a visual node. Regular nodes use their step type as kind.
type NodeKind string

const (
	NodeKindCompoundCondition NodeKind = "compound_condition"
	NodeKindCompoundLoop      NodeKind = "compound_loop"
	NodeKindCompoundMatch     NodeKind = "compound_match"
	NodeKindCallback          NodeKind = "callback"
)

// IsCompound reports whether nodes of this kind own child nodes.
func (k NodeKind) IsCompound() bool {
	switch k {
	case NodeKindCompoundCondition, NodeKindCompoundLoop, NodeKindCompoundMatch:
		return true
	}
	return false
}

// EdgeKind classifies a visual edge. Only EdgeDependency takes part in ordering and layout.
type EdgeKind string

const (
	EdgeDependency EdgeKind = "dependency"
	EdgeBranch     EdgeKind = "branch"
	EdgeLoop       EdgeKind = "loop"
	EdgeCallback   EdgeKind = "callback"
)

// Connection points on compound nodes.
const (
	HandleThen     = "then"
	HandleElse     = "else"
	HandleLoop     = "loop"
	HandleLoopBack = "loop-back"
)

// Child-branch markers stored in child node data and used in child ids.
const (
	BranchThen = "then"
	BranchElse = "else"
	BranchLoop = "loop"
)

// Node data keys shared by the converter and its callers.
const (
	DataLabel      = "label"
	DataName       = "name"
	DataType       = "type"
	DataConfig     = "config"
	DataStepID     = "stepId"
	DataBranch     = "branch"
	DataHasThen    = "hasThen"
	DataHasElse    = "hasElse"
	DataThenCount  = "thenCount"
	DataElseCount  = "elseCount"
	DataChildCount = "childCount"
	DataWidth      = "width"
	DataHeight     = "height"
	DataSteps      = "steps"
)

// Graph is the visual model consumed by an interactive editor.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node is a positioned visual node. A node with ParentID set is a child node:
// it is never laid out on its own.
//
// Position is in canvas coordinates for top-level nodes only. Callers get
// child positions relative to the parent's top-left corner, not absolute;
// add the positions up the parent chain to place a child on the canvas.
type Node struct {
	ID                string         `json:"id" yaml:"id"`
	Kind              NodeKind       `json:"kind" yaml:"kind"`
	Position          Position       `json:"position" yaml:"position"`
	Data              map[string]any `json:"data" yaml:"data"`
	ParentID          string         `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	ContainedInParent bool           `json:"containedInParent,omitempty" yaml:"containedInParent,omitempty"`
}

// Edge is a typed connection between two nodes.
type Edge struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	Kind         EdgeKind `json:"kind" yaml:"kind"`
	Label        string   `json:"label,omitempty" yaml:"label,omitempty"`
	SourceHandle string   `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Animated     bool     `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// DependencyEdgeID returns the id of the dependency edge from source to target.
func DependencyEdgeID(source, target string) string {
	return source + "->" + target
}
