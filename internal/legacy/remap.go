package legacy

import "github.com/rendis/flowgraph/pkg/schema"

// rename moves a legacy input key to its IR config key.
type rename struct {
	from string
	to   string
}

// renamesFor returns the config renames for a step kind. Every member of
// schema.StepKinds has a case; the bool is false only for values outside the
// vocabulary.
func renamesFor(kind schema.StepKind) ([]rename, bool) {
	switch kind {
	case schema.KindLoop:
		return []rename{{"array", "items"}, {"iterator", "itemVariable"}}, true
	case schema.KindMatch:
		return []rename{{"array", "items"}}, true
	case schema.KindHTTP:
		return []rename{{"request_type", "requestType"}, {"request_body", "body"}}, true
	case schema.KindDelay:
		return []rename{{"delay_seconds", "seconds"}}, true
	case schema.KindCondition, schema.KindLog, schema.KindScript, schema.KindCallback, schema.KindOther:
		return nil, true
	default:
		return nil, false
	}
}

// remapConfig returns a copy of input with the kind's renames applied.
// A rename never overwrites a key that is already present.
func remapConfig(stepType string, input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}

	renames, _ := renamesFor(schema.KindOf(stepType))
	for _, r := range renames {
		v, ok := out[r.from]
		if !ok {
			continue
		}
		if _, taken := out[r.to]; taken {
			continue
		}
		out[r.to] = v
		delete(out, r.from)
	}
	return out
}
