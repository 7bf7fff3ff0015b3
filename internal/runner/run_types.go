package runner

import (
	"context"
	"log/slog"
	"time"

	"toolbench/internal/agent/loop"
	"toolbench/internal/question"
	"toolbench/internal/score"
)

// Invoker runs one agent invocation. The worker spawner is the production
// implementation; InvokerFunc adapts in-process runs.
type Invoker interface {
	Invoke(ctx context.Context, variant, question string, sink loop.Sink) (loop.AgentResult, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, variant, question string, sink loop.Sink) (loop.AgentResult, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, variant, question string, sink loop.Sink) (loop.AgentResult, error) {
	return f(ctx, variant, question, sink)
}

// Grader scores an answer against the reference.
type Grader interface {
	Score(ctx context.Context, in score.Input) (score.Result, error)
}

// RunDependencies allows injecting collaborators and clocks for a run.
type RunDependencies struct {
	Invoker Invoker
	// Grader may be nil, in which case answers are left unscored.
	Grader   Grader
	Observer RunObserver
	RunID    func() (string, error)
	Now      func() time.Time
	Logger   *slog.Logger
}

// RunParams configures a run invocation.
type RunParams struct {
	Questions []question.Question
	// Variants are canonical variant names, run in this order per question.
	Variants []string
	// Concurrency caps simultaneous invocations per question.
	Concurrency int
	Model       string
	Isolation   string
	Deps        RunDependencies
}
