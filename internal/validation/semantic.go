package validation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/robfig/cron/v3"
)

// ErrCodeInvalidCron marks a schedule trigger whose cron expression does not parse.
const ErrCodeInvalidCron = "INVALID_CRON"

// validatePositions reports every non-finite coordinate in the tree. It runs
// before encoding because NaN and Inf have no JSON form.
func validatePositions(ir *schema.WorkflowIR) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	checkStepPositions(ir.Steps, "/steps", result)
	for i := range ir.Callbacks {
		cb := &ir.Callbacks[i]
		path := "/callbacks/" + strconv.Itoa(i)
		checkPosition(cb.Position, path+"/position", result)
		checkStepPositions(cb.Steps, path+"/steps", result)
	}
	return result
}

func checkStepPositions(steps []schema.StepIR, path string, result *schema.ValidationResult) {
	for i := range steps {
		step := &steps[i]
		p := path + "/" + strconv.Itoa(i)
		checkPosition(step.Position, p+"/position", result)
		if step.Branches != nil {
			checkStepPositions(step.Branches.Then, p+"/branches/then", result)
			checkStepPositions(step.Branches.Else, p+"/branches/else", result)
		}
		checkStepPositions(step.NestedBlocks, p+"/nested_blocks", result)
	}
}

func checkPosition(pos *schema.Position, path string, result *schema.ValidationResult) {
	if pos == nil {
		return
	}
	if !isFinite(pos.X) {
		result.AddError(path+"/x", schema.ErrCodeSchema, fmt.Sprintf("coordinate must be finite, got %v", pos.X))
	}
	if !isFinite(pos.Y) {
		result.AddError(path+"/y", schema.ErrCodeSchema, fmt.Sprintf("coordinate must be finite, got %v", pos.Y))
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// cronParser accepts the standard five-field form and descriptors like @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// validateTrigger warns when a schedule trigger carries a cron expression
// that does not parse. Trigger config is otherwise opaque.
func validateTrigger(trigger schema.TriggerIR) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if trigger.Type != schema.TriggerSchedule {
		return result
	}
	expr, ok := trigger.Config["cron"].(string)
	if !ok {
		return result
	}
	if _, err := cronParser.Parse(expr); err != nil {
		result.AddWarning("/trigger/config/cron", ErrCodeInvalidCron,
			fmt.Sprintf("cron expression %q does not parse: %v", expr, err))
	}
	return result
}
