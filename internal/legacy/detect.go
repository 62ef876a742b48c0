package legacy

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rendis/flowgraph/pkg/schema"
)

// Format is the detected shape of a raw workflow object.
type Format int

const (
	FormatUnknown Format = iota
	FormatLegacy
	FormatCanonical
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// Detect classifies a raw object by shape. An array-valued "stages" field
// means legacy; "trigger" together with "steps" means canonical.
func Detect(raw map[string]any) Format {
	if raw == nil {
		return FormatUnknown
	}
	if stages, ok := raw["stages"]; ok {
		if _, isArray := stages.([]any); isArray {
			return FormatLegacy
		}
	}
	_, hasTrigger := raw["trigger"]
	_, hasSteps := raw["steps"]
	if hasTrigger && hasSteps {
		return FormatCanonical
	}
	return FormatUnknown
}

func formatError(raw map[string]any) *schema.FormatError {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &schema.FormatError{Keys: keys}
}

// decodeCanonical maps a canonical raw object onto the IR types.
// Fields of the wrong shape surface as a schema error naming the field.
func decodeCanonical(raw map[string]any) (*schema.WorkflowIR, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewSchemaError("/", "canonical workflow is not encodable: "+err.Error())
	}
	var ir schema.WorkflowIR
	if err := json.Unmarshal(b, &ir); err != nil {
		path := "/"
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
			path = "/" + strings.ReplaceAll(typeErr.Field, ".", "/")
		}
		return nil, schema.NewSchemaError(path, err.Error())
	}
	if ir.Steps == nil {
		ir.Steps = []schema.StepIR{}
	}
	return &ir, nil
}
