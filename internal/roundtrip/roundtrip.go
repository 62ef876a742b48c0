// Package roundtrip checks that a visual graph survives the full save and
// load cycle: visual -> IR -> text -> IR -> visual -> IR.
package roundtrip

import (
	"fmt"

	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/pkg/schema"
)

// DefaultTolerance is the position drift, in pixels, that is not reported.
const DefaultTolerance = 1.0

// GraphConverter is the conversion pair the validator drives.
type GraphConverter interface {
	ToGraph(ir *schema.WorkflowIR) (*schema.Graph, error)
	FromGraph(g *schema.Graph, trigger schema.TriggerIR) (*schema.WorkflowIR, error)
}

// Report is the outcome of one round trip.
type Report struct {
	Differences []Difference       `json:"differences"`
	First       *schema.WorkflowIR `json:"first"`
	Last        *schema.WorkflowIR `json:"last"`
	Text        string             `json:"text"`
}

// OK is true when no error-severity difference was found. Warnings are
// informational.
func (r *Report) OK() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-severity differences.
func (r *Report) Errors() []Difference {
	return r.filter(schema.SeverityError)
}

// Warnings returns the warning-severity differences.
func (r *Report) Warnings() []Difference {
	return r.filter(schema.SeverityWarning)
}

func (r *Report) filter(s schema.ValidationSeverity) []Difference {
	var out []Difference
	for _, d := range r.Differences {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Validator runs round trips through a converter and a text format.
type Validator struct {
	conv      GraphConverter
	format    codec.Format
	tolerance float64
}

// Option configures a Validator.
type Option func(*Validator)

// WithFormat sets the text format of the intermediate step. Default JSON.
func WithFormat(f codec.Format) Option {
	return func(v *Validator) { v.format = f }
}

// WithTolerance sets the position drift tolerance in pixels.
func WithTolerance(px float64) Option {
	return func(v *Validator) { v.tolerance = px }
}

// NewValidator creates a Validator over conv.
func NewValidator(conv GraphConverter, opts ...Option) *Validator {
	v := &Validator{conv: conv, format: codec.FormatJSON, tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run drives g through the full cycle and diffs the first IR against the
// last. A conversion or parse failure along the way is returned as the
// error; differences are never errors.
func (v *Validator) Run(g *schema.Graph, trigger schema.TriggerIR) (*Report, error) {
	first, err := v.conv.FromGraph(g, trigger)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: graph to IR: %w", err)
	}
	text, err := codec.Marshal(first, v.format)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: encode: %w", err)
	}
	decoded, err := codec.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: decode: %w", err)
	}
	g2, err := v.conv.ToGraph(decoded)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: IR to graph: %w", err)
	}
	last, err := v.conv.FromGraph(g2, decoded.Trigger)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: graph to IR again: %w", err)
	}

	return &Report{
		Differences: Diff(first, last, v.tolerance),
		First:       first,
		Last:        last,
		Text:        string(text),
	}, nil
}
