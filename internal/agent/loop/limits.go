package loop

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxSteps is the step budget used when none is configured.
const DefaultMaxSteps = 50

// Limits bound one invocation.
type Limits struct {
	MaxSteps    int
	MaxDuration time.Duration
}

// normalized fills defaults.
func (l Limits) normalized() Limits {
	if l.MaxSteps <= 0 {
		l.MaxSteps = DefaultMaxSteps
	}
	return l
}

// StepLimitError reports that the step budget ran out while the model was
// still requesting tools.
type StepLimitError struct {
	Steps     int
	ToolCalls int
}

// Error implements error.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit reached: %d steps used while the model was still calling tools (%d tool calls)", e.Steps, e.ToolCalls)
}

// IsStepLimit reports whether err is or wraps a *StepLimitError.
func IsStepLimit(err error) bool {
	var stepErr *StepLimitError
	return errors.As(err, &stepErr)
}

// ErrBudgetExceeded signals that the wall-clock budget ran out between steps.
var ErrBudgetExceeded = errors.New("time budget exceeded")
