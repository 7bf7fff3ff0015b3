// Package worker runs agent invocations in child processes and streams their
// events back to the parent as newline-delimited JSON.
package worker

import (
	"errors"
	"fmt"

	"toolbench/internal/agent/loop"
)

// Message types written by a worker, one JSON object per line.
const (
	TypeText       = "text"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeProgress   = "progress"
	TypeDone       = "done"
	TypeError      = "error"
)

// Error kinds carried by error messages.
const (
	KindStepLimit = "step_limit"
	KindBudget    = "budget"
	KindFailure   = "failure"
)

// Message is one line of worker output. Exactly one payload field is set,
// matching Type.
type Message struct {
	Type       string                `json:"type"`
	Text       string                `json:"text,omitempty"`
	ToolCall   *loop.ToolCallEvent   `json:"toolCall,omitempty"`
	ToolResult *loop.ToolResultEvent `json:"toolResult,omitempty"`
	Progress   *loop.Progress        `json:"progress,omitempty"`
	Result     *loop.AgentResult     `json:"result,omitempty"`
	Error      *ErrorPayload         `json:"error,omitempty"`
}

// ErrorPayload describes a failed invocation.
type ErrorPayload struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Steps     int    `json:"steps,omitempty"`
	ToolCalls int    `json:"toolCalls,omitempty"`
}

// Error is a worker failure that has no more specific local type.
type Error struct {
	Kind    string
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// errorPayload classifies err for the wire.
func errorPayload(err error) *ErrorPayload {
	var stepErr *loop.StepLimitError
	switch {
	case errors.As(err, &stepErr):
		return &ErrorPayload{Kind: KindStepLimit, Message: err.Error(), Steps: stepErr.Steps, ToolCalls: stepErr.ToolCalls}
	case errors.Is(err, loop.ErrBudgetExceeded):
		return &ErrorPayload{Kind: KindBudget, Message: err.Error()}
	default:
		return &ErrorPayload{Kind: KindFailure, Message: err.Error()}
	}
}

// err rebuilds a local error so callers can match it with errors.Is/As the
// same way they would for an in-process invocation.
func (p *ErrorPayload) err() error {
	if p == nil {
		return &Error{Kind: KindFailure, Message: "worker reported an error without details"}
	}
	switch p.Kind {
	case KindStepLimit:
		return &loop.StepLimitError{Steps: p.Steps, ToolCalls: p.ToolCalls}
	case KindBudget:
		return fmt.Errorf("worker: %w", loop.ErrBudgetExceeded)
	default:
		return &Error{Kind: p.Kind, Message: p.Message}
	}
}
