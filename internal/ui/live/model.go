package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model renders a live console UI using Bubble Tea.
type Model struct {
	state        State
	table        table.Model
	events       <-chan Event
	tickInterval time.Duration
	now          time.Time
	width        int
	height       int
	noColor      bool
	cancel       func()
}

// Options configures the live UI model.
type Options struct {
	NoColor      bool
	TickInterval time.Duration
	// Cancel is called when the user quits before the run ends.
	Cancel func()
}

// NewModel constructs a live UI model for an event stream.
func NewModel(events <-chan Event, opts Options) Model {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	t := table.New(
		table.WithColumns(scoreboardColumns()),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(4),
	)
	t.SetStyles(tableStyles(opts.NoColor))
	return Model{
		state:        State{},
		table:        t,
		events:       events,
		tickInterval: tickInterval,
		now:          time.Now(),
		width:        120,
		height:       40,
		noColor:      opts.NoColor,
		cancel:       opts.Cancel,
	}
}

// Init starts ticking and waits for the first event.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.tickInterval))
}

// Update consumes UI events, key presses and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.table.SetWidth(typed.Width)
		m.table.SetColumns(columnsForWidth(typed.Width))
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil && !m.state.Finished {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case EventMsg:
		m = applyEvent(m, typed.Event)
		if m.state.Finished {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick(m.tickInterval)
	}
	return m, nil
}

// View renders the live UI.
func (m Model) View() string {
	header := renderHeader(m.state, m.now, m.noColor)
	questionLine := renderQuestionLine(m.state, m.width, m.noColor)
	panes := renderPanes(m.state, m.now, m.width, m.paneHeight(), m.noColor)
	footer := renderFooter(m.state, m.noColor)
	return lipgloss.JoinVertical(lipgloss.Left, header, questionLine, panes, m.table.View(), footer)
}

// paneHeight leaves room for the header, question, scoreboard and footer.
func (m Model) paneHeight() int {
	return max(m.height-len(m.state.Variants)-10, 6)
}

// EventMsg wraps a UI event for Bubble Tea.
type EventMsg struct {
	Event Event
}

// tickMsg carries a clock tick for updates.
type tickMsg time.Time

// waitForEvent blocks until a UI event is available.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		event, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return EventMsg{Event: event}
	}
}

// tick emits a periodic tick message.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// applyEvent mutates model state based on a UI event.
func applyEvent(model Model, event Event) Model {
	switch event.Kind {
	case EventRunStart:
		model.state = StartRun(model.state, event.Run, time.Now())
		model.table.SetHeight(len(event.Run.Variants) + 1)
	case EventQuestionStart:
		model.state = StartQuestion(model.state, event.QuestionIndex, event.Question)
	case EventVariant:
		model.state = Reduce(model.state, event.Variant)
	case EventQuestionEnd:
		model.state.LastEvent = formatQuestionEnd(model.state, event.QuestionIndex)
	case EventRunEnd:
		model.state.Finished = true
		return model
	}
	model.table.SetRows(scoreboardRows(model.state))
	return model
}
