package validation

import (
	"math"
	"testing"

	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Positions ---

func TestPositions_FiniteAccepted(t *testing.T) {
	step := leaf("a", "log")
	step.Position = &schema.Position{X: -40.5, Y: 1e6}

	result := validatePositions(minimalIR(step))
	assert.True(t, result.Valid())
}

func TestPositions_NaNAndInfRejected(t *testing.T) {
	step := leaf("a", "log")
	step.Position = &schema.Position{X: math.NaN(), Y: math.Inf(1)}

	result := validatePositions(minimalIR(step))
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "/steps/0/position/x", result.Errors[0].Path)
	assert.Equal(t, "/steps/0/position/y", result.Errors[1].Path)
}

func TestPositions_NestedPathsQualified(t *testing.T) {
	inner := leaf("in", "log")
	inner.Position = &schema.Position{X: 0, Y: math.Inf(-1)}
	loop := leaf("l", "loop")
	loop.NestedBlocks = []schema.StepIR{leaf("first", "log"), inner}

	cbStep := leaf("cs", "log")
	cbStep.Position = &schema.Position{X: math.NaN()}

	ir := minimalIR(loop)
	ir.Callbacks = []schema.CallbackIR{{
		ID: "cb", Type: "delay",
		Position: &schema.Position{X: math.Inf(1)},
		Steps:    []schema.StepIR{cbStep},
	}}

	result := validatePositions(ir)
	assert.Equal(t, []string{
		"/steps/0/nested_blocks/1/position/y",
		"/callbacks/0/position/x",
		"/callbacks/0/steps/0/position/x",
	}, errorPaths(result))
}

// --- Trigger ---

func TestTrigger_ValidCron(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 9 * * MON-FRI", "@daily"} {
		r := validateTrigger(schema.TriggerIR{Type: schema.TriggerSchedule, Config: map[string]any{"cron": expr}})
		assert.Empty(t, r.Warnings, expr)
	}
}

func TestTrigger_InvalidCronWarns(t *testing.T) {
	r := validateTrigger(schema.TriggerIR{Type: schema.TriggerSchedule, Config: map[string]any{"cron": "every tuesday"}})
	assert.True(t, r.Valid())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "/trigger/config/cron", r.Warnings[0].Path)
	assert.Equal(t, ErrCodeInvalidCron, r.Warnings[0].Code)
}

func TestTrigger_CronIgnoredOffSchedule(t *testing.T) {
	r := validateTrigger(schema.TriggerIR{Type: schema.TriggerWebhook, Config: map[string]any{"cron": "nonsense"}})
	assert.Empty(t, r.Warnings)

	r = validateTrigger(schema.TriggerIR{Type: schema.TriggerSchedule, Config: map[string]any{"cron": 5}})
	assert.Empty(t, r.Warnings)
}
