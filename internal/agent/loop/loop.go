// Package loop drives a model through bounded tool-calling steps until it
// produces a final answer.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"toolbench/internal/agent"
	"toolbench/internal/tools"
)

const tracerName = "toolbench/agent/loop"

// TokenUsage aggregates token counts across steps.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

func tokenUsage(usage agent.Usage) TokenUsage {
	return TokenUsage{Input: usage.InputTokens, Output: usage.OutputTokens, Total: usage.Total()}
}

// AgentResult is the only artifact that survives an invocation.
type AgentResult struct {
	Answer       string             `json:"answer"`
	LatencyMs    int64              `json:"latencyMs"`
	Tokens       TokenUsage         `json:"tokens"`
	ToolCalls    int                `json:"toolCalls"`
	Steps        int                `json:"steps"`
	FinishReason agent.FinishReason `json:"finishReason"`
}

// Request describes one invocation.
type Request struct {
	// Variant names the tool strategy for logs and spans.
	Variant      string
	Question     string
	SystemPrompt string
	Tools        *tools.Set
	Limits       Limits
}

// Options carry collaborators shared across invocations.
type Options struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

// Run executes one invocation. Model failures are fatal; tool failures are
// fed back to the model as results. When the final allowed step still ends in
// tool calls, Run returns a *StepLimitError instead of a partial answer.
func Run(ctx context.Context, provider agent.Provider, req Request, sink Sink, opts Options) (AgentResult, error) {
	if provider == nil {
		return AgentResult{}, errors.New("provider is nil")
	}
	if req.Tools == nil {
		return AgentResult{}, errors.New("tool set is nil")
	}
	if strings.TrimSpace(req.Question) == "" {
		return AgentResult{}, errors.New("question is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	r := &run{
		provider: provider,
		req:      req,
		limits:   req.Limits.normalized(),
		sink:     guard(sink, logger),
		logger:   logger.With("variant", req.Variant),
		clock:    clock,
		tracer:   otel.Tracer(tracerName),
	}
	return r.execute(ctx)
}

type run struct {
	provider agent.Provider
	req      Request
	limits   Limits
	sink     guardedSink
	logger   *slog.Logger
	clock    func() time.Time
	tracer   trace.Tracer
	state    RunState
	history  []agent.HistoryItem
	start    time.Time
}

// stepOutcome is what one model step produced.
type stepOutcome struct {
	text   string
	calls  []agent.ToolCall
	finish agent.FinishReason
	usage  agent.Usage
}

func (r *run) execute(ctx context.Context) (AgentResult, error) {
	r.start = r.clock()
	ctx, span := r.tracer.Start(ctx, "agent.invoke", trace.WithAttributes(
		attribute.String("agent.variant", r.req.Variant),
		attribute.Int("agent.max_steps", r.limits.MaxSteps),
	))
	defer span.End()

	r.history = []agent.HistoryItem{agent.UserText(r.req.Question)}
	result, err := r.loop(ctx)
	span.SetAttributes(
		attribute.Int("agent.steps", r.state.StepCount),
		attribute.Int("agent.tool_calls", r.state.ToolCallCount),
		attribute.Int("agent.tokens.total", r.state.Tokens.Total()),
		attribute.String("agent.state", r.state.State.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("agent invocation failed", "state", r.state.State.String(), "steps", r.state.StepCount, "error", err)
		return AgentResult{}, err
	}
	r.logger.Debug("agent invocation finished", "steps", r.state.StepCount, "tool_calls", r.state.ToolCallCount, "latency_ms", result.LatencyMs)
	return result, nil
}

func (r *run) loop(ctx context.Context) (AgentResult, error) {
	for {
		if r.limits.MaxDuration > 0 && r.clock().Sub(r.start) > r.limits.MaxDuration {
			r.state.fail()
			return AgentResult{}, fmt.Errorf("%w after %d steps", ErrBudgetExceeded, r.state.StepCount)
		}
		if err := r.state.transition(StateStreaming); err != nil {
			r.state.fail()
			return AgentResult{}, err
		}
		r.state.StepCount++
		step := r.state.StepCount

		outcome, err := r.step(ctx, step)
		if err != nil {
			r.state.fail()
			return AgentResult{}, err
		}
		r.state.FinishReason = outcome.finish
		r.state.Tokens = r.state.Tokens.Add(outcome.usage)

		if len(outcome.calls) > 0 {
			if err := r.state.transition(StateToolExecuting); err != nil {
				r.state.fail()
				return AgentResult{}, err
			}
			r.executeTools(ctx, step, outcome.calls)
		}
		r.sink.progress(Progress{
			Step:         step,
			MaxSteps:     r.limits.MaxSteps,
			ToolCalls:    r.state.ToolCallCount,
			FinishReason: outcome.finish,
			Tokens:       tokenUsage(r.state.Tokens),
			Elapsed:      r.clock().Sub(r.start),
		})

		if outcome.finish == agent.FinishToolCalls {
			if step >= r.limits.MaxSteps {
				if err := r.state.transition(StateStepLimitExceeded); err != nil {
					r.state.fail()
					return AgentResult{}, err
				}
				return AgentResult{}, &StepLimitError{Steps: step, ToolCalls: r.state.ToolCallCount}
			}
			continue
		}
		if err := r.state.transition(StateFinished); err != nil {
			r.state.fail()
			return AgentResult{}, err
		}
		return r.result(), nil
	}
}

// step streams one model response, forwarding text deltas as they arrive.
func (r *run) step(ctx context.Context, step int) (stepOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "agent.step", trace.WithAttributes(attribute.Int("agent.step", step)))
	defer span.End()

	prompt := agent.BuildPrompt(r.req.SystemPrompt, r.history, r.req.Tools.Definitions())
	stream, err := r.provider.Stream(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stepOutcome{}, fmt.Errorf("model call failed at step %d: %w", step, err)
	}
	defer stream.Close()

	var (
		outcome  stepOutcome
		text     strings.Builder
		finished bool
		reported bool
	)
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return stepOutcome{}, fmt.Errorf("model stream failed at step %d: %w", step, err)
		}
		switch event.Type {
		case agent.StreamEventTextDelta:
			text.WriteString(event.Text)
			r.state.text.WriteString(event.Text)
			r.sink.text(event.Text)
		case agent.StreamEventToolCall:
			outcome.calls = append(outcome.calls, event.ToolCall)
		case agent.StreamEventFinish:
			finished = true
			outcome.finish = event.Finish
			outcome.usage = event.Usage
			reported = event.UsageReported
		default:
			return stepOutcome{}, fmt.Errorf("unknown stream event type: %s", event.Type)
		}
	}
	outcome.text = text.String()
	if !finished {
		outcome.finish = agent.FinishUnknown
	}
	// Pending tool calls mean the model is still working, whatever the
	// provider reported.
	if len(outcome.calls) > 0 {
		outcome.finish = agent.FinishToolCalls
	} else if outcome.finish == agent.FinishToolCalls {
		outcome.finish = agent.FinishStop
	}
	turn := agent.AssistantTurn{Text: outcome.text, ToolCalls: outcome.calls}
	if !reported {
		outcome.usage = agent.Usage{
			InputTokens:  agent.ApproxTokenCount(prompt.InputItems) + len(prompt.Instructions)/4,
			OutputTokens: agent.ApproxTokenCount([]agent.HistoryItem{{Content: turn}}),
		}
	}
	r.history = append(r.history, agent.HistoryItem{Role: agent.RoleAssistant, Content: turn})
	span.SetAttributes(
		attribute.String("agent.finish_reason", string(outcome.finish)),
		attribute.Int("agent.step_tool_calls", len(outcome.calls)),
	)
	return outcome, nil
}

// executeTools runs each requested call in order. Every call yields a result
// message, so tool failures never end the loop.
func (r *run) executeTools(ctx context.Context, step int, calls []agent.ToolCall) {
	for _, call := range calls {
		r.state.ToolCallCount++
		r.sink.toolCall(ToolCallEvent{Step: step, ID: call.ID, Name: call.Name, Arguments: call.Arguments})

		callCtx, span := r.tracer.Start(ctx, "tool.execute", trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.Int("agent.step", step),
		))
		result := r.req.Tools.ExecuteRaw(callCtx, call.Name, call.Arguments)
		span.SetAttributes(attribute.Bool("tool.error", result.IsError()), attribute.Bool("tool.truncated", result.Truncated))
		if result.IsError() {
			span.SetStatus(codes.Error, result.Error)
		}
		span.End()

		r.logger.Debug("tool call", "step", step, "tool", call.Name, "duration", result.Duration, "error", result.Error)
		r.history = append(r.history, agent.HistoryItem{Role: agent.RoleTool, Content: agent.ToolOutput{
			ToolCallID: call.ID,
			Result:     result,
		}})
		r.sink.toolResult(toolResultEvent(step, call, result))
	}
}

func (r *run) result() AgentResult {
	return AgentResult{
		Answer:       strings.TrimSpace(r.state.Text()),
		LatencyMs:    r.clock().Sub(r.start).Milliseconds(),
		Tokens:       tokenUsage(r.state.Tokens),
		ToolCalls:    r.state.ToolCallCount,
		Steps:        r.state.StepCount,
		FinishReason: r.state.FinishReason,
	}
}
