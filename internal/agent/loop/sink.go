package loop

import (
	"log/slog"
	"time"

	"toolbench/internal/agent"
	"toolbench/internal/tools"
)

// Progress is reported after every step.
type Progress struct {
	Step         int                `json:"step"`
	MaxSteps     int                `json:"maxSteps"`
	ToolCalls    int                `json:"toolCalls"`
	FinishReason agent.FinishReason `json:"finishReason"`
	Tokens       TokenUsage         `json:"tokens"`
	Elapsed      time.Duration      `json:"elapsedNs"`
}

// ToolCallEvent announces a tool call before it executes.
type ToolCallEvent struct {
	Step      int    `json:"step"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultEvent reports a finished tool call.
type ToolResultEvent struct {
	Step      int           `json:"step"`
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Output    string        `json:"output"`
	IsError   bool          `json:"isError"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"durationNs"`
}

// Sink observes a running invocation. Calls are synchronous and advisory:
// they cannot change loop control flow.
type Sink interface {
	OnText(delta string)
	OnToolCall(event ToolCallEvent)
	OnToolResult(event ToolResultEvent)
	OnProgress(progress Progress)
}

// SinkFuncs adapts optional callbacks to a Sink.
type SinkFuncs struct {
	Text       func(delta string)
	ToolCall   func(event ToolCallEvent)
	ToolResult func(event ToolResultEvent)
	Progress   func(progress Progress)
}

// OnText implements Sink.
func (f SinkFuncs) OnText(delta string) {
	if f.Text != nil {
		f.Text(delta)
	}
}

// OnToolCall implements Sink.
func (f SinkFuncs) OnToolCall(event ToolCallEvent) {
	if f.ToolCall != nil {
		f.ToolCall(event)
	}
}

// OnToolResult implements Sink.
func (f SinkFuncs) OnToolResult(event ToolResultEvent) {
	if f.ToolResult != nil {
		f.ToolResult(event)
	}
}

// OnProgress implements Sink.
func (f SinkFuncs) OnProgress(progress Progress) {
	if f.Progress != nil {
		f.Progress(progress)
	}
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// OnText implements Sink.
func (m MultiSink) OnText(delta string) {
	for _, sink := range m {
		sink.OnText(delta)
	}
}

// OnToolCall implements Sink.
func (m MultiSink) OnToolCall(event ToolCallEvent) {
	for _, sink := range m {
		sink.OnToolCall(event)
	}
}

// OnToolResult implements Sink.
func (m MultiSink) OnToolResult(event ToolResultEvent) {
	for _, sink := range m {
		sink.OnToolResult(event)
	}
}

// OnProgress implements Sink.
func (m MultiSink) OnProgress(progress Progress) {
	for _, sink := range m {
		sink.OnProgress(progress)
	}
}

// guardedSink isolates the loop from sink panics.
type guardedSink struct {
	inner  Sink
	logger *slog.Logger
}

func guard(inner Sink, logger *slog.Logger) guardedSink {
	if inner == nil {
		inner = SinkFuncs{}
	}
	return guardedSink{inner: inner, logger: logger}
}

func (g guardedSink) call(event string, fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			g.logger.Warn("sink panicked", "event", event, "panic", recovered)
		}
	}()
	fn()
}

func (g guardedSink) text(delta string) {
	g.call("text", func() { g.inner.OnText(delta) })
}

func (g guardedSink) toolCall(event ToolCallEvent) {
	g.call("tool_call", func() { g.inner.OnToolCall(event) })
}

func (g guardedSink) toolResult(event ToolResultEvent) {
	g.call("tool_result", func() { g.inner.OnToolResult(event) })
}

func (g guardedSink) progress(progress Progress) {
	g.call("progress", func() { g.inner.OnProgress(progress) })
}

func toolResultEvent(step int, call agent.ToolCall, result tools.CallResult) ToolResultEvent {
	return ToolResultEvent{
		Step:      step,
		ID:        call.ID,
		Name:      call.Name,
		Output:    result.Output,
		IsError:   result.IsError(),
		Truncated: result.Truncated,
		Duration:  result.Duration,
	}
}
