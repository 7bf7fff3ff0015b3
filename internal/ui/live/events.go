package live

import (
	"toolbench/internal/question"
	"toolbench/internal/runner"
)

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventRunStart signals the start of a run.
	EventRunStart EventKind = iota
	// EventQuestionStart signals that a question's variants are starting.
	EventQuestionStart
	// EventVariant delivers a variant status update.
	EventVariant
	// EventQuestionEnd signals that a question finished on every variant.
	EventQuestionEnd
	// EventRunEnd signals run completion.
	EventRunEnd
)

// Event carries a UI update payload.
type Event struct {
	Kind          EventKind
	Run           runner.RunInfo
	QuestionIndex int
	Question      question.Question
	Variant       runner.VariantEvent
}
