// Package expressions runs jq queries over step configuration.
package expressions

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// referenceQuery is true when any string anywhere in the input equals $name.
const referenceQuery = `any(.. | strings; . == $name)`

// ReferenceFinder reports whether a step config mentions a name.
// The query is compiled once; the finder is safe for concurrent use.
type ReferenceFinder struct {
	code *gojq.Code
}

// NewReferenceFinder compiles the reference query.
func NewReferenceFinder() (*ReferenceFinder, error) {
	query, err := gojq.Parse(referenceQuery)
	if err != nil {
		return nil, fmt.Errorf("parse reference query: %w", err)
	}
	code, err := gojq.Compile(query,
		gojq.WithVariables([]string{"$name"}),
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, fmt.Errorf("compile reference query: %w", err)
	}
	return &ReferenceFinder{code: code}, nil
}

// References reports whether any string value nested in config equals name.
// Map keys are not searched. An empty name never matches.
func (f *ReferenceFinder) References(config map[string]any, name string) (bool, error) {
	if name == "" || len(config) == 0 {
		return false, nil
	}

	iter := f.code.Run(normalizeForJQ(config), name)
	val, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := val.(error); isErr {
		return false, fmt.Errorf("search config for %q: %w", name, err)
	}
	found, _ := val.(bool)
	return found, nil
}

// normalizeForJQ converts Go native types to jq-compatible types.
// jq uses float64 for all numbers; YAML decoding yields ints and typed slices
// may come from Go callers.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalizeForJQ(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalizeForJQ(v)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = normalizeForJQ(m)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
