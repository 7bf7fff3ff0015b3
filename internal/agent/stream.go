package agent

import (
	"context"

	"toolbench/internal/tools"
)

// StreamEventType identifies streamed event kinds.
type StreamEventType int

const (
	// StreamEventTextDelta carries an incremental piece of assistant text.
	StreamEventTextDelta StreamEventType = iota
	// StreamEventToolCall carries one complete tool call request.
	StreamEventToolCall
	// StreamEventFinish ends a step with its finish reason and usage.
	StreamEventFinish
)

// String returns the wire name of the event type.
func (t StreamEventType) String() string {
	switch t {
	case StreamEventTextDelta:
		return "text-delta"
	case StreamEventToolCall:
		return "tool-call"
	case StreamEventFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// FinishReason classifies why a model step ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

// ParseFinishReason maps a provider finish reason onto the enum.
func ParseFinishReason(raw string) FinishReason {
	switch raw {
	case "stop", "end_turn", "stop_sequence":
		return FinishStop
	case "tool_calls", "function_call", "tool_use", "tool-calls":
		return FinishToolCalls
	case "length", "max_tokens":
		return FinishLength
	case "content_filter", "content-filter":
		return FinishContentFilter
	case "error":
		return FinishError
	case "":
		return FinishUnknown
	default:
		return FinishOther
	}
}

// Usage reports token usage for one step.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// StreamEvent is one event of a model step. Exactly one field group is set
// according to Type.
type StreamEvent struct {
	Type     StreamEventType
	Text     string
	ToolCall ToolCall
	Finish   FinishReason
	Usage    Usage
	// UsageReported is false when the provider sent no usage block.
	UsageReported bool
}

// Stream yields the events of one model step. Recv returns io.EOF after the
// finish event.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// Provider streams model responses for a prompt.
type Provider interface {
	Stream(ctx context.Context, prompt Prompt) (Stream, error)
}

// ToolCall describes a tool invocation emitted by the model. Arguments holds
// the raw JSON text exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Args decodes the raw arguments.
func (c ToolCall) Args() (tools.Args, error) {
	return tools.ParseArgs(c.Arguments)
}

// ToolOutput represents the result of a tool invocation.
type ToolOutput struct {
	ToolCallID string
	Result     tools.CallResult
}
