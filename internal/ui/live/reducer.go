package live

import (
	"fmt"
	"time"

	"toolbench/internal/question"
	"toolbench/internal/runner"
)

// StartRun resets the state for a new run.
func StartRun(state State, info runner.RunInfo, now time.Time) State {
	state.RunID = info.RunID
	state.Model = info.Model
	state.QuestionTotal = info.Questions
	state.Variants = append([]string(nil), info.Variants...)
	state.Totals = make(map[string]Totals, len(info.Variants))
	state.Panes = freshPanes(state.Variants)
	if state.StartedAt.IsZero() {
		state.StartedAt = now
	}
	return state
}

// StartQuestion clears the panes for the next question.
func StartQuestion(state State, index int, q question.Question) State {
	state.QuestionIndex = index
	state.QuestionID = q.ID
	state.QuestionText = q.Text
	state.Panes = freshPanes(state.Variants)
	state.LastEvent = fmt.Sprintf("Q%d %s started", index+1, q.ID)
	return state
}

func freshPanes(variants []string) []Pane {
	panes := make([]Pane, len(variants))
	for i, variant := range variants {
		panes[i] = Pane{Variant: variant, Status: PaneIdle}
	}
	return panes
}

// Reduce applies a variant event to the UI state.
func Reduce(state State, event runner.VariantEvent) State {
	if event.QuestionIndex != state.QuestionIndex {
		return state
	}
	index := paneIndex(state, event.Variant)
	if index < 0 {
		state.Variants = append(state.Variants, event.Variant)
		state.Panes = append(state.Panes, Pane{Variant: event.Variant, Status: PaneIdle})
		index = len(state.Panes) - 1
	}
	pane := applyVariantEvent(state.Panes[index], event)
	state.Panes[index] = pane
	if event.Type == runner.EventFinished && event.Run != nil {
		state = addTotals(state, *event.Run)
	}
	if message := formatLastEvent(event); message != "" {
		state.LastEvent = message
	}
	return state
}

func paneIndex(state State, variant string) int {
	for i, pane := range state.Panes {
		if pane.Variant == variant {
			return i
		}
	}
	return -1
}

// applyVariantEvent updates a pane with the given event.
func applyVariantEvent(pane Pane, event runner.VariantEvent) Pane {
	switch event.Type {
	case runner.EventStarted:
		pane.Status = PaneRunning
		pane.StartedAt = event.EmittedAt
	case runner.EventText:
		pane.Text = tail(pane.Text+event.Text, maxPaneText)
	case runner.EventToolStart:
		pane.Tool = ToolStatus{Name: event.ToolName, State: "running", StartedAt: event.EmittedAt}
		pane.HasTool = true
	case runner.EventToolFinish:
		duration := event.ToolDuration
		if duration <= 0 && !pane.Tool.StartedAt.IsZero() && !event.EmittedAt.IsZero() {
			duration = event.EmittedAt.Sub(pane.Tool.StartedAt)
		}
		pane.Tool = ToolStatus{
			Name:       event.ToolName,
			State:      "done",
			Duration:   duration,
			Error:      event.ToolError,
			StartedAt:  pane.Tool.StartedAt,
			FinishedAt: event.EmittedAt,
		}
		pane.HasTool = true
	case runner.EventProgress:
		pane.Step = event.Step
		pane.MaxSteps = event.MaxSteps
		pane.ToolCalls = event.ToolCalls
		pane.Tokens = event.Tokens
	case runner.EventScoring:
		pane.Status = PaneScoring
	case runner.EventFinished:
		pane.FinishedAt = event.EmittedAt
		if event.Run != nil {
			pane = finishPane(pane, *event.Run)
		}
	}
	return pane
}

func finishPane(pane Pane, run runner.VariantRun) Pane {
	pane.Step = run.Steps
	pane.ToolCalls = run.ToolCalls
	pane.Tokens = run.Tokens.Total
	pane.Error = run.Error
	switch run.Status {
	case runner.StatusOK:
		pane.Status = PaneDone
		if run.Answer != "" {
			pane.Text = tail(run.Answer, maxPaneText)
		}
		if run.Score != nil {
			pane.Score = run.Score.Score
		}
	case runner.StatusStepLimit:
		pane.Status = PaneStepLimit
	default:
		pane.Status = PaneFailed
	}
	return pane
}

func addTotals(state State, run runner.VariantRun) State {
	if state.Totals == nil {
		state.Totals = map[string]Totals{}
	}
	totals := state.Totals[run.Variant]
	totals.Runs++
	if !run.Succeeded() {
		totals.Failed++
	} else {
		totals.LatencyMs += run.LatencyMs
		if run.Score != nil && run.Score.Score != nil {
			totals.Scored++
			totals.ScoreSum += *run.Score.Score
		}
	}
	state.Totals[run.Variant] = totals
	return state
}

// tail keeps the last limit bytes of text, cut at a rune boundary.
func tail(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !isRuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// formatLastEvent creates a short footer message for the event.
func formatLastEvent(event runner.VariantEvent) string {
	prefix := fmt.Sprintf("Q%d %s", event.QuestionIndex+1, event.Variant)
	switch event.Type {
	case runner.EventToolStart:
		return prefix + " tool " + event.ToolName + " started"
	case runner.EventToolFinish:
		if event.ToolError {
			return prefix + " tool " + event.ToolName + " error"
		}
		return prefix + " tool " + event.ToolName + " finished (" + formatDuration(event.ToolDuration) + ")"
	case runner.EventFinished:
		if event.Run != nil && !event.Run.Succeeded() {
			return prefix + " " + event.Run.Status + ": " + event.Run.Error
		}
		return prefix + " completed"
	}
	return ""
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(100 * time.Millisecond).String()
}
