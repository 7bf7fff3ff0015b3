package loop

import (
	"fmt"
	"strings"

	"toolbench/internal/agent"
)

// State is a phase of one agent invocation.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateToolExecuting
	StateFinished
	StateStepLimitExceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateToolExecuting:
		return "tool-executing"
	case StateFinished:
		return "finished"
	case StateStepLimitExceeded:
		return "step-limit-exceeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateStepLimitExceeded || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:          {StateStreaming, StateFailed},
	StateStreaming:     {StateToolExecuting, StateStreaming, StateFinished, StateStepLimitExceeded, StateFailed},
	StateToolExecuting: {StateStreaming, StateStepLimitExceeded, StateFailed},
}

// RunState is the mutable state of exactly one invocation. It is never shared
// across invocations.
type RunState struct {
	State         State
	StepCount     int
	ToolCallCount int
	Tokens        agent.Usage
	FinishReason  agent.FinishReason
	text          strings.Builder
}

// Text returns the assistant text accumulated across steps.
func (s *RunState) Text() string {
	return s.text.String()
}

// transition moves to next, rejecting moves the state machine does not allow.
func (s *RunState) transition(next State) error {
	for _, allowed := range transitions[s.State] {
		if allowed == next {
			s.State = next
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", s.State, next)
}

// fail moves to Failed from any non-terminal state.
func (s *RunState) fail() {
	if !s.State.Terminal() {
		s.State = StateFailed
	}
}
