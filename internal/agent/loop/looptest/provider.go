// Package looptest provides scripted model providers for tests.
package looptest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"toolbench/internal/agent"
)

// Step is the scripted output of one model call.
type Step struct {
	Events []agent.StreamEvent
	// Err fails the Stream call itself.
	Err error
}

// Text returns a step that answers with text and stops.
func Text(text string) Step {
	return Step{Events: []agent.StreamEvent{
		{Type: agent.StreamEventTextDelta, Text: text},
		{Type: agent.StreamEventFinish, Finish: agent.FinishStop, Usage: agent.Usage{InputTokens: 10, OutputTokens: 2}, UsageReported: true},
	}}
}

// ToolCalls returns a step that requests the given tools.
func ToolCalls(calls ...agent.ToolCall) Step {
	events := make([]agent.StreamEvent, 0, len(calls)+1)
	for _, call := range calls {
		events = append(events, agent.StreamEvent{Type: agent.StreamEventToolCall, ToolCall: call})
	}
	events = append(events, agent.StreamEvent{
		Type:          agent.StreamEventFinish,
		Finish:        agent.FinishToolCalls,
		Usage:         agent.Usage{InputTokens: 10, OutputTokens: 5},
		UsageReported: true,
	})
	return Step{Events: events}
}

// Call builds a tool call with a deterministic id.
func Call(id, name, arguments string) agent.ToolCall {
	return agent.ToolCall{ID: id, Name: name, Arguments: arguments}
}

// Provider replays scripted steps in order. When the script runs out it
// repeats Fallback if set, otherwise it fails.
type Provider struct {
	mu       sync.Mutex
	steps    []Step
	Fallback func(call int) Step
	prompts  []agent.Prompt
}

// NewProvider returns a provider replaying steps.
func NewProvider(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

// Stream implements agent.Provider.
func (p *Provider) Stream(_ context.Context, prompt agent.Prompt) (agent.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	index := len(p.prompts)
	p.prompts = append(p.prompts, prompt)
	var step Step
	switch {
	case index < len(p.steps):
		step = p.steps[index]
	case p.Fallback != nil:
		step = p.Fallback(index)
	default:
		return nil, fmt.Errorf("scripted provider exhausted after %d calls", index)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &sliceStream{events: step.Events}, nil
}

// Prompts returns the prompts received so far.
func (p *Provider) Prompts() []agent.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]agent.Prompt(nil), p.prompts...)
}

// ErrScripted is a canned model failure.
var ErrScripted = errors.New("scripted model failure")

type sliceStream struct {
	events []agent.StreamEvent
	index  int
}

func (s *sliceStream) Recv() (agent.StreamEvent, error) {
	if s.index >= len(s.events) {
		return agent.StreamEvent{}, io.EOF
	}
	event := s.events[s.index]
	s.index++
	return event, nil
}

func (s *sliceStream) Close() error {
	return nil
}
