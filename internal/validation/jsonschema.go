package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/flowgraph/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const irSchemaURL = "https://flowgraph.dev/schemas/workflow-ir.json"

// irSchemaJSON is the JSON Schema for WorkflowIR.
// Embedded as a constant to avoid filesystem dependencies.
const irSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowgraph.dev/schemas/workflow-ir.json",
  "type": "object",
  "required": ["trigger", "steps"],
  "properties": {
    "version": { "type": "string" },
    "trigger": { "$ref": "#/$defs/trigger" },
    "steps": { "$ref": "#/$defs/stepList" },
    "callbacks": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/callback" }
    },
    "metadata": {
      "type": ["object", "null"],
      "properties": {
        "description": { "type": "string" },
        "tags": {
          "type": ["array", "null"],
          "items": { "type": "string" }
        }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false,
  "$defs": {
    "id": {
      "type": "string",
      "pattern": "^[a-zA-Z0-9_-]+$"
    },
    "config": { "type": ["object", "null"] },
    "position": {
      "type": ["object", "null"],
      "required": ["x", "y"],
      "properties": {
        "x": { "type": "number" },
        "y": { "type": "number" }
      },
      "additionalProperties": false
    },
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "type": "string",
          "enum": ["schedule", "webhook", "form", "table"]
        },
        "config": { "$ref": "#/$defs/config" }
      },
      "additionalProperties": false
    },
    "stepList": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/step" }
    },
    "step": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "$ref": "#/$defs/id" },
        "name": { "type": "string" },
        "type": { "type": "string" },
        "config": { "$ref": "#/$defs/config" },
        "depends_on": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/id" }
        },
        "position": { "$ref": "#/$defs/position" },
        "branches": {
          "type": ["object", "null"],
          "properties": {
            "then": { "$ref": "#/$defs/stepList" },
            "else": { "$ref": "#/$defs/stepList" }
          },
          "additionalProperties": false
        },
        "nested_blocks": { "$ref": "#/$defs/stepList" }
      },
      "not": { "required": ["branches", "nested_blocks"] },
      "additionalProperties": false
    },
    "callback": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "$ref": "#/$defs/id" },
        "name": { "type": "string" },
        "type": { "type": "string" },
        "config": { "$ref": "#/$defs/config" },
        "steps": { "$ref": "#/$defs/stepList" },
        "position": { "$ref": "#/$defs/position" }
      },
      "additionalProperties": false
    }
  }
}`

// compileIRSchema compiles the embedded IR schema. The result is immutable
// and safe for concurrent use.
func compileIRSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(irSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal IR schema: %w", err)
	}
	if err := c.AddResource(irSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add IR schema resource: %w", err)
	}
	compiled, err := c.Compile(irSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile IR schema: %w", err)
	}
	return compiled, nil
}

// validateStructural checks ir against the compiled schema.
func validateStructural(s *jsonschema.Schema, ir *schema.WorkflowIR) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	doc, err := toJSONValue(ir)
	if err != nil {
		result.AddError("/", schema.ErrCodeSchema, "failed to encode workflow: "+err.Error())
		return result
	}

	if err := s.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("/", schema.ErrCodeSchema, err.Error())
			return result
		}
		collectViolations(verr, result)
	}
	return result
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations walks a ValidationError tree and records every leaf
// error at its instance location.
func collectViolations(verr *jsonschema.ValidationError, result *schema.ValidationResult) {
	if len(verr.Causes) == 0 {
		result.AddError(instancePath(verr.InstanceLocation), schema.ErrCodeSchema, verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, result)
	}
}

func instancePath(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	return "/" + strings.Join(loc, "/")
}
