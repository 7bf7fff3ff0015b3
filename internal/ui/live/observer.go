package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"toolbench/internal/question"
	"toolbench/internal/runner"
)

// eventBuffer sizes the channel between the runner and the UI. Text deltas
// from several variants arrive quickly, so it is larger than a status queue.
const eventBuffer = 1024

// Controller runs the live UI and implements runner.RunObserver.
type Controller struct {
	events    chan Event
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, eventBuffer)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnRunStart forwards run start events to the UI.
func (c *Controller) OnRunStart(info runner.RunInfo) {
	c.send(Event{Kind: EventRunStart, Run: info})
}

// OnQuestionStart forwards question start events to the UI.
func (c *Controller) OnQuestionStart(index int, q question.Question) {
	c.send(Event{Kind: EventQuestionStart, QuestionIndex: index, Question: q})
}

// OnVariantEvent forwards variant status updates to the UI.
func (c *Controller) OnVariantEvent(event runner.VariantEvent) {
	c.send(Event{Kind: EventVariant, Variant: event})
}

// OnQuestionEnd forwards question completion events to the UI.
func (c *Controller) OnQuestionEnd(index int, result runner.QuestionResult) {
	c.send(Event{Kind: EventQuestionEnd, QuestionIndex: index})
}

// OnRunEnd forwards run completion events to the UI and closes it.
func (c *Controller) OnRunEnd(results runner.Results) {
	c.send(Event{Kind: EventRunEnd})
	c.Close()
}

// send enqueues an event without blocking the caller. Finished events must
// not be dropped, so they wait for room unless the UI is gone.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	defer func() {
		// The channel is closed after OnRunEnd or an early quit.
		_ = recover()
	}()
	if critical(event) {
		select {
		case c.events <- event:
		case <-c.done:
		}
		return
	}
	select {
	case c.events <- event:
	default:
	}
}

func critical(event Event) bool {
	switch event.Kind {
	case EventVariant:
		return event.Variant.Type == runner.EventFinished
	case EventRunStart, EventQuestionStart, EventRunEnd:
		return true
	}
	return false
}
