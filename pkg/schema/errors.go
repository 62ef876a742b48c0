package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for structured error reporting.
const (
	ErrCodeFormat             = "FORMAT_ERROR"
	ErrCodeSchema             = "SCHEMA_ERROR"
	ErrCodeParse              = "PARSE_ERROR"
	ErrCodeDuplicateStepID    = "DUPLICATE_STEP_ID"
	ErrCodeDanglingDependency = "DANGLING_DEPENDENCY"
	ErrCodeCycleDetected      = "CYCLE_DETECTED"
)

// Sentinel errors for errors.Is checks. Every typed error below matches exactly one.
var (
	ErrFormat             = errors.New("unrecognized workflow format")
	ErrSchema             = errors.New("invalid workflow structure")
	ErrParse              = errors.New("malformed workflow text")
	ErrDuplicateStepID    = errors.New("duplicate step id")
	ErrDanglingDependency = errors.New("dangling dependency")
	ErrCycle              = errors.New("circular dependency")
)

// FormatError reports input that is neither legacy nor canonical.
type FormatError struct {
	Keys []string // top-level keys found on the input, sorted
}

func (e *FormatError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("[%s] %s: expected an object with %q or with %q and %q",
			ErrCodeFormat, ErrFormat, "stages", "trigger", "steps")
	}
	return fmt.Sprintf("[%s] %s: found keys [%s]", ErrCodeFormat, ErrFormat, strings.Join(e.Keys, ", "))
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }
func (e *FormatError) Code() string         { return ErrCodeFormat }

// SchemaError reports a structurally invalid IR or visual graph.
type SchemaError struct {
	Result *ValidationResult
}

func (e *SchemaError) Error() string {
	if e.Result == nil || len(e.Result.Errors) == 0 {
		return fmt.Sprintf("[%s] %s", ErrCodeSchema, ErrSchema)
	}
	first := e.Result.Errors[0]
	if len(e.Result.Errors) == 1 {
		return fmt.Sprintf("[%s] %s: %s", ErrCodeSchema, first.Path, first.Message)
	}
	return fmt.Sprintf("[%s] validation failed with %d errors, first: %s: %s",
		ErrCodeSchema, len(e.Result.Errors), first.Path, first.Message)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
func (e *SchemaError) Code() string         { return ErrCodeSchema }

// NewSchemaError builds a SchemaError holding a single path-qualified issue.
func NewSchemaError(path, message string) *SchemaError {
	r := &ValidationResult{}
	r.AddError(path, ErrCodeSchema, message)
	return &SchemaError{Result: r}
}

// ParseError reports workflow text that could not be decoded.
type ParseError struct {
	Format string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s (%s)", ErrCodeParse, ErrParse, e.Format)
	}
	return fmt.Sprintf("[%s] %s (%s): %v", ErrCodeParse, ErrParse, e.Format, e.Cause)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Unwrap() error        { return e.Cause }
func (e *ParseError) Code() string         { return ErrCodeParse }

// DuplicateStepIDError reports an id used by more than one step.
type DuplicateStepIDError struct {
	ID    string
	Paths []string // locations of every occurrence
}

func (e *DuplicateStepIDError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("[%s] %s %q", ErrCodeDuplicateStepID, ErrDuplicateStepID, e.ID)
	}
	return fmt.Sprintf("[%s] %s %q at %s", ErrCodeDuplicateStepID, ErrDuplicateStepID, e.ID, strings.Join(e.Paths, ", "))
}

func (e *DuplicateStepIDError) Is(target error) bool { return target == ErrDuplicateStepID }
func (e *DuplicateStepIDError) Code() string         { return ErrCodeDuplicateStepID }

// DanglingDependencyError reports a depends_on entry naming no step.
type DanglingDependencyError struct {
	StepID     string
	Dependency string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("[%s] step %s depends on non-existent step %q", ErrCodeDanglingDependency, e.StepID, e.Dependency)
}

func (e *DanglingDependencyError) Is(target error) bool { return target == ErrDanglingDependency }
func (e *DanglingDependencyError) Code() string         { return ErrCodeDanglingDependency }

// CycleError reports a circular dependency. Each step in Cycle depends on the
// next one, and the last depends on the first.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("[%s] %s", ErrCodeCycleDetected, ErrCycle)
	}
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("[%s] %s: %s", ErrCodeCycleDetected, ErrCycle, strings.Join(path, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }
func (e *CycleError) Code() string         { return ErrCodeCycleDetected }

// CodeOf returns the error code carried by err or any error it wraps, or "" if none.
func CodeOf(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
