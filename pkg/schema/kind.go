package schema

// StepKind is the closed vocabulary of step types the engine treats specially.
// Step types outside the vocabulary classify as KindOther.
type StepKind string

const (
	KindCondition StepKind = "condition"
	KindLoop      StepKind = "loop"
	KindMatch     StepKind = "match"
	KindHTTP      StepKind = "http"
	KindLog       StepKind = "log"
	KindDelay     StepKind = "delay"
	KindScript    StepKind = "script"
	KindCallback  StepKind = "callback"
	KindOther     StepKind = "other"
)

// StepKinds lists every member of the vocabulary, KindOther included.
var StepKinds = []StepKind{
	KindCondition, KindLoop, KindMatch, KindHTTP, KindLog,
	KindDelay, KindScript, KindCallback, KindOther,
}

// KindOf classifies a free-form step type.
func KindOf(stepType string) StepKind {
	switch StepKind(stepType) {
	case KindCondition, KindLoop, KindMatch, KindHTTP, KindLog, KindDelay, KindScript, KindCallback:
		return StepKind(stepType)
	default:
		return KindOther
	}
}

// IsLoopLike reports whether steps of this kind hold their children as nested blocks.
func (k StepKind) IsLoopLike() bool {
	return k == KindLoop || k == KindMatch
}
