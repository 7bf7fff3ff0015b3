package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"toolbench/internal/agent/loop"
	"toolbench/internal/question"
	"toolbench/internal/score"
)

const tracerName = "toolbench/runner"

// Run evaluates every question against every variant. Variants of one
// question run concurrently; questions run in order. Invocation failures are
// recorded in the results; only cancellation of ctx is returned as an error,
// together with the results gathered so far.
func Run(ctx context.Context, params RunParams) (Results, error) {
	if params.Deps.Invoker == nil {
		return Results{}, errors.New("invoker is required")
	}
	if len(params.Questions) == 0 {
		return Results{}, errors.New("no questions to run")
	}
	if len(params.Variants) == 0 {
		return Results{}, errors.New("no variants to run")
	}
	runID, err := ensureRunID(params.Deps.RunID)
	if err != nil {
		return Results{}, err
	}
	r := &run{
		params:   params,
		invoker:  params.Deps.Invoker,
		grader:   params.Deps.Grader,
		observer: params.Deps.Observer,
		now:      params.Deps.Now,
		logger:   params.Deps.Logger,
		tracer:   otel.Tracer(tracerName),
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("run_id", runID)

	results := Results{
		RunID:     runID,
		Model:     params.Model,
		Isolation: params.Isolation,
		Variants:  append([]string(nil), params.Variants...),
		StartedAt: r.now(),
	}
	ctx, span := r.tracer.Start(ctx, "eval.run", trace.WithAttributes(
		attribute.String("eval.run_id", runID),
		attribute.Int("eval.questions", len(params.Questions)),
		attribute.StringSlice("eval.variants", params.Variants),
	))
	defer span.End()

	r.observer.OnRunStart(RunInfo{RunID: runID, Model: params.Model, Variants: results.Variants, Questions: len(params.Questions)})
	for index, q := range params.Questions {
		if ctx.Err() != nil {
			results.Canceled = true
			break
		}
		r.observer.OnQuestionStart(index, q)
		result := r.runQuestion(ctx, index, q)
		results.Questions = append(results.Questions, result)
		r.observer.OnQuestionEnd(index, result)
	}
	if ctx.Err() != nil {
		results.Canceled = true
	}
	results.FinishedAt = r.now()
	results.Summary = summarize(results.Variants, results.Questions)
	r.observer.OnRunEnd(results)
	if results.Canceled {
		return results, ctx.Err()
	}
	return results, nil
}

// ensureRunID uses the provided generator or falls back to NewRunID.
func ensureRunID(generator func() (string, error)) (string, error) {
	if generator != nil {
		return generator()
	}
	return NewRunID()
}

type run struct {
	params   RunParams
	invoker  Invoker
	grader   Grader
	observer RunObserver
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

func (r *run) runQuestion(ctx context.Context, index int, q question.Question) QuestionResult {
	ctx, span := r.tracer.Start(ctx, "eval.question", trace.WithAttributes(
		attribute.String("eval.question_id", q.ID),
	))
	defer span.End()

	runs := make([]VariantRun, len(r.params.Variants))
	var group errgroup.Group
	if r.params.Concurrency > 0 {
		group.SetLimit(r.params.Concurrency)
	}
	for slot, variant := range r.params.Variants {
		group.Go(func() error {
			runs[slot] = r.runVariant(ctx, index, q, variant)
			return nil
		})
	}
	_ = group.Wait()
	return QuestionResult{
		ID:         q.ID,
		Question:   q.Text,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Reference:  q.Answer,
		Runs:       runs,
	}
}

func (r *run) runVariant(ctx context.Context, index int, q question.Question, variant string) VariantRun {
	emit := func(event VariantEvent) {
		event.QuestionIndex = index
		event.QuestionID = q.ID
		event.Variant = variant
		event.EmittedAt = r.now()
		r.observer.OnVariantEvent(event)
	}
	logger := r.logger.With("question", q.ID, "variant", variant)
	emit(VariantEvent{Type: EventStarted})

	start := r.now()
	result, err := r.invoker.Invoke(ctx, variant, q.Text, observerSink{emit: emit})
	outcome := VariantRun{Variant: variant}
	if err != nil {
		outcome.Status = StatusForError(err)
		outcome.Error = err.Error()
		outcome.LatencyMs = r.now().Sub(start).Milliseconds()
		var stepErr *loop.StepLimitError
		if errors.As(err, &stepErr) {
			outcome.Steps = stepErr.Steps
			outcome.ToolCalls = stepErr.ToolCalls
		}
		logger.Warn("invocation failed", "status", outcome.Status, "err", err)
		emit(VariantEvent{Type: EventFinished, Run: &outcome})
		return outcome
	}

	outcome.Status = StatusOK
	outcome.Answer = result.Answer
	outcome.LatencyMs = result.LatencyMs
	if outcome.LatencyMs == 0 {
		outcome.LatencyMs = r.now().Sub(start).Milliseconds()
	}
	outcome.Steps = result.Steps
	outcome.ToolCalls = result.ToolCalls
	outcome.Tokens = result.Tokens
	if r.grader != nil {
		emit(VariantEvent{Type: EventScoring})
		graded, err := r.grader.Score(ctx, score.Input{Question: q.Text, Reference: q.Answer, Answer: result.Answer})
		if err != nil {
			graded = score.Result{Name: score.Name, Metadata: score.Metadata{LastError: err.Error()}}
		}
		outcome.Score = &graded
	}
	logger.Info("invocation finished", "steps", outcome.Steps, "tool_calls", outcome.ToolCalls, "latency_ms", outcome.LatencyMs, "scored", outcome.Score != nil && outcome.Score.Scored())
	emit(VariantEvent{Type: EventFinished, Run: &outcome})
	return outcome
}

// StatusForError maps an invocation error to a run status.
func StatusForError(err error) string {
	switch {
	case loop.IsStepLimit(err):
		return StatusStepLimit
	case errors.Is(err, loop.ErrBudgetExceeded):
		return StatusBudgetExceeded
	default:
		return StatusError
	}
}

// observerSink turns loop events into observer events.
type observerSink struct {
	emit func(VariantEvent)
}

func (s observerSink) OnText(delta string) {
	s.emit(VariantEvent{Type: EventText, Text: delta})
}

func (s observerSink) OnToolCall(event loop.ToolCallEvent) {
	s.emit(VariantEvent{Type: EventToolStart, ToolName: event.Name, ToolArguments: event.Arguments, Step: event.Step})
}

func (s observerSink) OnToolResult(event loop.ToolResultEvent) {
	s.emit(VariantEvent{Type: EventToolFinish, ToolName: event.Name, ToolDuration: event.Duration, ToolError: event.IsError, Step: event.Step})
}

func (s observerSink) OnProgress(progress loop.Progress) {
	s.emit(VariantEvent{
		Type:      EventProgress,
		Step:      progress.Step,
		MaxSteps:  progress.MaxSteps,
		ToolCalls: progress.ToolCalls,
		Tokens:    progress.Tokens.Total,
	})
}

// String renders a run status line for logs and plain output.
func (r VariantRun) String() string {
	if !r.Succeeded() {
		return fmt.Sprintf("%s: %s (%s)", r.Variant, r.Status, r.Error)
	}
	scoreText := "unscored"
	if r.Score != nil && r.Score.Score != nil {
		scoreText = fmt.Sprintf("score %.2f", *r.Score.Score)
	}
	return fmt.Sprintf("%s: %s, %d steps, %d tool calls, %dms", r.Variant, scoreText, r.Steps, r.ToolCalls, r.LatencyMs)
}
