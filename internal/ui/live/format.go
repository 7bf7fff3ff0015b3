package live

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatPaneStatus renders the pane status label, with the score once known.
func formatPaneStatus(pane Pane) string {
	label := string(pane.Status)
	if pane.Status == PaneDone && pane.Score != nil {
		label += " " + strconv.FormatFloat(*pane.Score, 'f', 2, 64)
	}
	return label
}

// formatPaneProgress renders step, tool call and token counters.
func formatPaneProgress(pane Pane, now time.Time) string {
	step := fmtInt(pane.Step)
	if pane.MaxSteps > 0 {
		step += "/" + fmtInt(pane.MaxSteps)
	}
	line := "step " + step + " | tools " + fmtInt(pane.ToolCalls) + " | tok " + formatTokens(pane.Tokens)
	if elapsed := formatPaneDuration(pane, now); elapsed != "" {
		line += " | " + elapsed
	}
	return line
}

// formatToolStatus renders the tool sub-status text.
func formatToolStatus(pane Pane, now time.Time) string {
	if !pane.HasTool || pane.Tool.Name == "" {
		return ""
	}
	label := "tool:" + pane.Tool.Name
	switch pane.Tool.State {
	case "running":
		if !pane.Tool.StartedAt.IsZero() {
			return label + " running " + formatDuration(now.Sub(pane.Tool.StartedAt))
		}
		return label + " running"
	case "done":
		if pane.Tool.Error {
			return label + " error"
		}
		if pane.Tool.Duration > 0 {
			return label + " done " + formatDuration(pane.Tool.Duration)
		}
		return label + " done"
	}
	return label + " " + pane.Tool.State
}

// formatPaneDuration returns elapsed or total time for a pane.
func formatPaneDuration(pane Pane, now time.Time) string {
	if pane.StartedAt.IsZero() {
		return ""
	}
	if !pane.FinishedAt.IsZero() {
		return pane.FinishedAt.Sub(pane.StartedAt).Round(100 * time.Millisecond).String()
	}
	return now.Sub(pane.StartedAt).Round(100 * time.Millisecond).String()
}

// formatTokens formats token counts for display.
func formatTokens(tokens int) string {
	if tokens <= 0 {
		return "n/a"
	}
	return fmtInt(tokens)
}

// formatMean renders a variant's mean score.
func formatMean(totals Totals) string {
	mean, ok := totals.MeanScore()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(mean, 'f', 2, 64)
}

// formatMeanLatency renders the mean latency over successful runs.
func formatMeanLatency(totals Totals) string {
	succeeded := totals.Runs - totals.Failed
	if succeeded <= 0 {
		return "-"
	}
	return formatDuration(time.Duration(totals.LatencyMs/int64(succeeded)) * time.Millisecond)
}

// formatQuestionEnd summarizes a finished question.
func formatQuestionEnd(state State, index int) string {
	done := 0
	for _, pane := range state.Panes {
		if pane.Status == PaneDone {
			done++
		}
	}
	return "Q" + fmtInt(index+1) + " finished: " + fmtInt(done) + "/" + fmtInt(len(state.Panes)) + " answered"
}

// stylizeStatus applies status coloring when enabled.
func stylizeStatus(text string, status PaneStatus, noColor bool) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Bold(true).Foreground(statusColor(status)).Render(text)
}

// stylizeMuted applies muted styling to tool sub-status.
func stylizeMuted(text string, noColor bool) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(text)
}

// statusColor selects a color for a given pane status.
func statusColor(status PaneStatus) lipgloss.Color {
	switch status {
	case PaneDone:
		return lipgloss.Color("42")
	case PaneStepLimit:
		return lipgloss.Color("220")
	case PaneFailed:
		return lipgloss.Color("196")
	case PaneRunning:
		return lipgloss.Color("33")
	case PaneScoring:
		return lipgloss.Color("201")
	}
	return lipgloss.Color("246")
}
