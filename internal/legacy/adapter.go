// Package legacy converts the historical stage/block workflow tree into the
// canonical IR. Canonical input passes through unchanged.
package legacy

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rendis/flowgraph/pkg/schema"
)

// PlaceholderName names the step synthesized for a legacy workflow without steps.
const PlaceholderName = "placeholder"

// document is the legacy root object.
type document struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Stages      []stage  `json:"stages"`
}

type stage struct {
	Name   string  `json:"name"`
	Blocks []block `json:"blocks"`
}

// block is one legacy node. A nil Blocks means the field was absent.
type block struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Blocks []block        `json:"blocks"`
	Then   []block        `json:"then"`
	Else   []block        `json:"else"`
}

// Result is the outcome of Adapt.
type Result struct {
	IR        *schema.WorkflowIR
	WasLegacy bool
}

// Adapter converts raw workflow objects into IR. It holds no per-call state
// and is safe for concurrent use.
type Adapter struct {
	flatten FlattenPolicy
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithFlattenPolicy sets the policy for non-container nodes carrying blocks.
func WithFlattenPolicy(p FlattenPolicy) Option {
	return func(a *Adapter) {
		if p != nil {
			a.flatten = p
		}
	}
}

// NewAdapter creates an Adapter. The default flatten policy is SiblingFlatten.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{flatten: SiblingFlatten{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adapt detects the format of raw and returns it as IR. The event source only
// seeds the trigger of legacy input.
// Returns a *schema.FormatError when raw is neither legacy nor canonical.
func (a *Adapter) Adapt(raw map[string]any, src schema.EventSource) (*Result, error) {
	switch Detect(raw) {
	case FormatLegacy:
		ir, err := a.convertLegacy(raw, src)
		if err != nil {
			return nil, err
		}
		return &Result{IR: ir, WasLegacy: true}, nil
	case FormatCanonical:
		ir, err := decodeCanonical(raw)
		if err != nil {
			return nil, err
		}
		return &Result{IR: ir, WasLegacy: false}, nil
	default:
		return nil, formatError(raw)
	}
}

func (a *Adapter) convertLegacy(raw map[string]any, src schema.EventSource) (*schema.WorkflowIR, error) {
	doc, err := decodeLegacy(raw)
	if err != nil {
		return nil, err
	}

	// One counter per call keeps ids unique across the whole tree.
	conv := &converter{flatten: a.flatten, ids: &counter{}}
	top := Scope{TopLevel: true}

	steps := make([]schema.StepIR, 0)
	prevLast := ""
	for _, st := range doc.Stages {
		stageSteps := conv.convertList(st.Blocks, top)
		if len(stageSteps) == 0 {
			continue
		}
		if prevLast != "" {
			stageSteps[0].DependsOn = appendUnique(stageSteps[0].DependsOn, prevLast)
		}
		prevLast = stageSteps[len(stageSteps)-1].ID
		steps = append(steps, stageSteps...)
	}

	if len(steps) == 0 {
		steps = append(steps, schema.StepIR{
			ID:     conv.ids.newID("", string(schema.KindLog)),
			Name:   PlaceholderName,
			Type:   string(schema.KindLog),
			Config: map[string]any{},
		})
	}

	ir := &schema.WorkflowIR{
		Version: schema.CurrentVersion,
		Trigger: InferTrigger(src),
		Steps:   steps,
	}
	if doc.Description != "" || len(doc.Tags) > 0 {
		ir.Metadata = &schema.Metadata{Description: doc.Description, Tags: doc.Tags}
	}
	return ir, nil
}

func decodeLegacy(raw map[string]any) (*document, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewSchemaError("/", "legacy workflow is not encodable: "+err.Error())
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		path := "/stages"
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
			path = "/" + strings.ReplaceAll(typeErr.Field, ".", "/")
		}
		return nil, schema.NewSchemaError(path, err.Error())
	}
	return &doc, nil
}

// converter carries the state of one legacy conversion.
type converter struct {
	flatten FlattenPolicy
	ids     *counter
}

func (c *converter) convertList(blocks []block, scope Scope) []schema.StepIR {
	out := make([]schema.StepIR, 0, len(blocks))
	for i := range blocks {
		out = append(out, c.convertBlock(&blocks[i], scope)...)
	}
	return out
}

func (c *converter) convertBlock(b *block, scope Scope) []schema.StepIR {
	step := schema.StepIR{
		ID:     c.ids.newID(scope.Prefix, b.Type),
		Name:   b.Name,
		Type:   b.Type,
		Config: remapConfig(b.Type, b.Input),
	}

	kind := schema.KindOf(b.Type)
	switch {
	case kind == schema.KindCondition:
		then := c.convertList(b.Then, Scope{Prefix: step.ID + "_then_"})
		els := c.convertList(b.Else, Scope{Prefix: step.ID + "_else_"})
		if len(then) > 0 || len(els) > 0 {
			step.Branches = &schema.Branches{}
			if len(then) > 0 {
				step.Branches.Then = then
			}
			if len(els) > 0 {
				step.Branches.Else = els
			}
		}
		return []schema.StepIR{step}

	case kind.IsLoopLike() && b.Blocks != nil:
		nested := c.convertList(b.Blocks, Scope{Prefix: step.ID + "_" + string(kind) + "_"})
		if len(nested) > 0 {
			step.NestedBlocks = nested
		}
		return []schema.StepIR{step}

	case b.Blocks != nil:
		children := c.convertList(b.Blocks, c.flatten.ChildScope(step, scope))
		return c.flatten.Flatten(step, children, scope)

	default:
		return []schema.StepIR{step}
	}
}

// counter generates {prefix}{type}_{n} ids from a monotonic sequence.
type counter struct {
	n int
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (c *counter) newID(prefix, stepType string) string {
	c.n++
	return prefix + sanitizeType(stepType) + "_" + strconv.Itoa(c.n)
}

func sanitizeType(stepType string) string {
	s := unsafeIDChars.ReplaceAllString(stepType, "_")
	if s == "" {
		return "step"
	}
	return s
}

// triggerTypes maps legacy event-source types to trigger types.
var triggerTypes = map[string]schema.TriggerType{
	"ACTIVE_TABLE": schema.TriggerTable,
	"WEBHOOK":      schema.TriggerWebhook,
	"OPTIN_FORM":   schema.TriggerForm,
	"SCHEDULE":     schema.TriggerSchedule,
}

// InferTrigger maps an event source to a trigger. Unknown or missing types
// become webhook triggers. The params are copied into the trigger config.
func InferTrigger(src schema.EventSource) schema.TriggerIR {
	t, ok := triggerTypes[src.Type]
	if !ok {
		t = schema.TriggerWebhook
	}
	cfg := make(map[string]any, len(src.Params))
	for k, v := range src.Params {
		cfg[k] = v
	}
	return schema.TriggerIR{Type: t, Config: cfg}
}
