package validation

import (
	"github.com/rendis/flowgraph/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// WorkflowValidator orchestrates the IR validation pipeline:
// 1. Finite positions (NaN/Inf cannot be encoded)
// 2. Structural (JSON Schema)
// 3. Trigger checks
// It is safe for concurrent use.
type WorkflowValidator struct {
	irSchema *jsonschema.Schema
}

// NewWorkflowValidator creates a WorkflowValidator with the IR schema pre-compiled.
func NewWorkflowValidator() (*WorkflowValidator, error) {
	s, err := compileIRSchema()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{irSchema: s}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Position errors short-circuit: the IR cannot be encoded for the schema stage.
func (wv *WorkflowValidator) Validate(ir *schema.WorkflowIR) *schema.ValidationResult {
	if ir == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeSchema, "workflow is nil")
		return r
	}

	result := validatePositions(ir)
	if !result.Valid() {
		return result
	}

	result.Merge(validateStructural(wv.irSchema, ir))
	result.Merge(validateTrigger(ir.Trigger))
	return result
}

// ValidateIR satisfies the Validator interface. Warnings do not fail validation.
func (wv *WorkflowValidator) ValidateIR(ir *schema.WorkflowIR) error {
	return wv.Validate(ir).ToError()
}
