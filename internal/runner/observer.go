package runner

import (
	"time"

	"toolbench/internal/question"
)

// EventType identifies a variant status update for observers.
type EventType string

const (
	// EventStarted marks an invocation handed to its invoker.
	EventStarted EventType = "started"
	// EventText carries streamed answer text.
	EventText EventType = "text"
	// EventToolStart marks the start of a tool call.
	EventToolStart EventType = "tool_start"
	// EventToolFinish marks the completion of a tool call.
	EventToolFinish EventType = "tool_finish"
	// EventProgress reports a finished step.
	EventProgress EventType = "progress"
	// EventScoring marks an answer handed to the scorer.
	EventScoring EventType = "scoring"
	// EventFinished marks the end of an invocation, scored or not.
	EventFinished EventType = "finished"
)

// VariantEvent carries a single status update for one variant on one question.
type VariantEvent struct {
	QuestionIndex int
	QuestionID    string
	Variant       string
	Type          EventType
	Text          string
	ToolName      string
	ToolArguments string
	ToolDuration  time.Duration
	ToolError     bool
	Step          int
	MaxSteps      int
	ToolCalls     int
	Tokens        int
	// Run is set on EventFinished.
	Run       *VariantRun
	EmittedAt time.Time
}

// RunInfo describes a starting run.
type RunInfo struct {
	RunID     string
	Model     string
	Variants  []string
	Questions int
}

// RunObserver receives run lifecycle events for UI or logging. Calls may
// arrive concurrently from different variants.
type RunObserver interface {
	// OnRunStart signals the start of a run.
	OnRunStart(info RunInfo)
	// OnQuestionStart signals that a question's variants are about to run.
	OnQuestionStart(index int, q question.Question)
	// OnVariantEvent delivers a variant status update.
	OnVariantEvent(event VariantEvent)
	// OnQuestionEnd signals that every variant finished a question.
	OnQuestionEnd(index int, result QuestionResult)
	// OnRunEnd signals run completion.
	OnRunEnd(results Results)
}

// nopObserver discards every event.
type nopObserver struct{}

func (nopObserver) OnRunStart(RunInfo) {}
func (nopObserver) OnQuestionStart(int, question.Question) {}
func (nopObserver) OnVariantEvent(VariantEvent) {}
func (nopObserver) OnQuestionEnd(int, QuestionResult) {}
func (nopObserver) OnRunEnd(Results) {}
