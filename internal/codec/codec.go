// Package codec maps WorkflowIR to and from its textual forms, JSON and YAML.
//
// Struct fields are emitted in declaration order and map keys in sorted
// order, so the same IR always encodes to the same bytes. Config maps decode
// into map[string]any, so the key order of the input text is not kept: a
// document whose config keys are not sorted comes back sorted after one
// encode, and is stable from then on.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rendis/flowgraph/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Format is a textual workflow encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a format name. "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", name)
	}
}

// DetectFormat guesses the encoding of data: text whose first non-space
// byte opens a JSON object or array is JSON, anything else YAML.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Marshal encodes ir. JSON output is indented with two spaces.
func Marshal(ir *schema.WorkflowIR, f Format) ([]byte, error) {
	if ir == nil {
		return nil, errors.New("codec: workflow is nil")
	}
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(ir, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("codec: encode json: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(ir); err != nil {
			return nil, fmt.Errorf("codec: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("codec: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", f)
	}
}

// Unmarshal decodes canonical IR text in either format.
// Malformed text fails with a *schema.ParseError.
func Unmarshal(data []byte) (*schema.WorkflowIR, error) {
	f := DetectFormat(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &schema.ParseError{Format: string(f), Cause: errors.New("empty document")}
	}

	var ir schema.WorkflowIR
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &ir); err != nil {
			return nil, &schema.ParseError{Format: string(f), Cause: err}
		}
	default:
		if err := yaml.Unmarshal(data, &ir); err != nil {
			return nil, &schema.ParseError{Format: string(f), Cause: err}
		}
		normalizeSteps(ir.Steps)
		for i := range ir.Callbacks {
			ir.Callbacks[i].Config = normalizeMap(ir.Callbacks[i].Config)
			normalizeSteps(ir.Callbacks[i].Steps)
		}
		ir.Trigger.Config = normalizeMap(ir.Trigger.Config)
	}
	if ir.Steps == nil {
		ir.Steps = []schema.StepIR{}
	}
	return &ir, nil
}

// ParseRaw decodes text of either format into a generic object, for format
// detection ahead of adaptation. The top-level value must be an object.
func ParseRaw(data []byte) (map[string]any, error) {
	f := DetectFormat(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &schema.ParseError{Format: string(f), Cause: errors.New("empty document")}
	}

	var raw any
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &schema.ParseError{Format: string(f), Cause: err}
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &schema.ParseError{Format: string(f), Cause: err}
		}
		raw = normalize(raw)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.ParseError{Format: string(f), Cause: fmt.Errorf("top-level value is %T, want an object", raw)}
	}
	return obj, nil
}

func normalizeSteps(steps []schema.StepIR) {
	for i := range steps {
		s := &steps[i]
		s.Config = normalizeMap(s.Config)
		if s.Branches != nil {
			normalizeSteps(s.Branches.Then)
			normalizeSteps(s.Branches.Else)
		}
		normalizeSteps(s.NestedBlocks)
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := normalize(m).(map[string]any)
	return out
}

// normalize rewrites YAML mappings with non-string keys into string-keyed
// maps so decoded values have the same shapes JSON decoding produces.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalize(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[fmt.Sprint(k)] = normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalize(v)
		}
		return out
	default:
		return v
	}
}
