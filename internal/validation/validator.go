package validation

import "github.com/rendis/flowgraph/pkg/schema"

// Validator checks an IR for structural correctness before graph conversion.
// Uses JSON Schema Draft 2020-12.
type Validator interface {
	Validate(ir *schema.WorkflowIR) *schema.ValidationResult
	ValidateIR(ir *schema.WorkflowIR) error
}
