package legacy

import (
	"testing"

	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestRenamesCoverEveryKind(t *testing.T) {
	for _, k := range schema.StepKinds {
		_, ok := renamesFor(k)
		assert.True(t, ok, "kind %s has no remapping case", k)
	}
	_, ok := renamesFor(schema.StepKind("made-up"))
	assert.False(t, ok)
}

func TestRemapConfig(t *testing.T) {
	cases := []struct {
		stepType string
		in       map[string]any
		want     map[string]any
	}{
		{"loop", map[string]any{"array": "xs", "iterator": "x"}, map[string]any{"items": "xs", "itemVariable": "x"}},
		{"match", map[string]any{"array": "xs", "iterator": "x"}, map[string]any{"items": "xs", "iterator": "x"}},
		{"http", map[string]any{"request_type": "GET", "request_body": "{}"}, map[string]any{"requestType": "GET", "body": "{}"}},
		{"delay", map[string]any{"delay_seconds": 30}, map[string]any{"seconds": 30}},
		{"log", map[string]any{"array": "kept"}, map[string]any{"array": "kept"}},
		{"custom_thing", map[string]any{"request_type": "kept"}, map[string]any{"request_type": "kept"}},
		{"loop", nil, map[string]any{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, remapConfig(tc.stepType, tc.in), tc.stepType)
	}
}

func TestRemapConfig_DoesNotOverwriteOrMutate(t *testing.T) {
	in := map[string]any{"array": "old", "items": "new"}
	out := remapConfig("loop", in)

	assert.Equal(t, map[string]any{"array": "old", "items": "new"}, out)
	assert.Equal(t, map[string]any{"array": "old", "items": "new"}, in)
}
