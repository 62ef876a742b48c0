package schema

// CurrentVersion is the IR version emitted by the legacy adapter and the reverse converter.
const CurrentVersion = "1.0"

// WorkflowIR is the canonical, versioned workflow definition.
// It is the single artifact that is serialized and stored.
type WorkflowIR struct {
	Version   string       `json:"version" yaml:"version"`
	Trigger   TriggerIR    `json:"trigger" yaml:"trigger"`
	Steps     []StepIR     `json:"steps" yaml:"steps"`
	Callbacks []CallbackIR `json:"callbacks,omitempty" yaml:"callbacks,omitempty"`
	Metadata  *Metadata    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TriggerIR describes what starts a workflow.
type TriggerIR struct {
	Type   TriggerType    `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// TriggerType enumerates the kinds of workflow triggers.
type TriggerType string

const (
	TriggerSchedule TriggerType = "schedule"
	TriggerWebhook  TriggerType = "webhook"
	TriggerForm     TriggerType = "form"
	TriggerTable    TriggerType = "table"
)

// TriggerTypes lists every valid trigger type.
var TriggerTypes = []TriggerType{TriggerSchedule, TriggerWebhook, TriggerForm, TriggerTable}

// StepIR is the recursive unit of a workflow.
// Branches and NestedBlocks are mutually exclusive.
type StepIR struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Type         string         `json:"type" yaml:"type"`
	Config       map[string]any `json:"config" yaml:"config"`
	DependsOn    []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Position     *Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Branches     *Branches      `json:"branches,omitempty" yaml:"branches,omitempty"`
	NestedBlocks []StepIR       `json:"nested_blocks,omitempty" yaml:"nested_blocks,omitempty"`
}

// Branches holds the two arms of a condition step.
type Branches struct {
	Then []StepIR `json:"then,omitempty" yaml:"then,omitempty"`
	Else []StepIR `json:"else,omitempty" yaml:"else,omitempty"`
}

// CallbackIR is a top-level asynchronous continuation with its own step list.
// Leaf steps reference it by name from their config.
type CallbackIR struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Type     string         `json:"type" yaml:"type"`
	Config   map[string]any `json:"config" yaml:"config"`
	Steps    []StepIR       `json:"steps,omitempty" yaml:"steps,omitempty"`
	Position *Position      `json:"position,omitempty" yaml:"position,omitempty"`
}

// Metadata carries descriptive, non-executable information.
type Metadata struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Position is a canvas coordinate in pixels.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// IsCondition reports whether the step is a condition container.
func (s *StepIR) IsCondition() bool {
	return s.Branches != nil
}

// IsContainer reports whether the step owns nested steps of any kind.
func (s *StepIR) IsContainer() bool {
	return s.Branches != nil || len(s.NestedBlocks) > 0
}

// IsLeaf reports whether the step has neither branches nor nested blocks.
func (s *StepIR) IsLeaf() bool {
	return !s.IsContainer()
}

// Kind classifies the step type against the step-kind vocabulary.
func (s *StepIR) Kind() StepKind {
	return KindOf(s.Type)
}

// Walk visits every step of the tree depth-first, parents before children.
// Returning false from fn skips the step's children.
func Walk(steps []StepIR, fn func(step *StepIR) bool) {
	for i := range steps {
		step := &steps[i]
		if !fn(step) {
			continue
		}
		if step.Branches != nil {
			Walk(step.Branches.Then, fn)
			Walk(step.Branches.Else, fn)
		}
		Walk(step.NestedBlocks, fn)
	}
}

// EventSource describes the event that feeds a legacy workflow. It only seeds the trigger.
type EventSource struct {
	Type   string         `json:"type,omitempty" yaml:"type,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}
