package live

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// renderHeader renders the run header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Run " + state.RunID
	if state.Model != "" {
		line += " | Model: " + state.Model
	}
	if state.QuestionTotal > 0 {
		line += " | Question " + fmtInt(min(state.QuestionIndex+1, state.QuestionTotal)) + "/" + fmtInt(state.QuestionTotal)
	}
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + now.Sub(state.StartedAt).Round(100*time.Millisecond).String()
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderQuestionLine renders the current question text on one line.
func renderQuestionLine(state State, width int, noColor bool) string {
	if state.QuestionID == "" {
		return ""
	}
	line := state.QuestionID + ": " + strings.Join(strings.Fields(state.QuestionText), " ")
	if width > 3 {
		line = truncate.StringWithTail(line, uint(width), "...")
	}
	return stylize(line, noColor, lipgloss.Color("252"))
}

// renderPanes lays the variant panes out side by side.
func renderPanes(state State, now time.Time, width, height int, noColor bool) string {
	if len(state.Panes) == 0 {
		return ""
	}
	// Each pane border takes two columns.
	paneWidth := max(width/len(state.Panes)-2, 16)
	rendered := make([]string, 0, len(state.Panes))
	for _, pane := range state.Panes {
		rendered = append(rendered, renderPane(pane, now, paneWidth, height, noColor))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderPane renders one bordered variant pane. The body shows the last lines
// of streamed text that fit.
func renderPane(pane Pane, now time.Time, width, height int, noColor bool) string {
	lines := []string{
		stylizeStatus(pane.Variant+" "+formatPaneStatus(pane), pane.Status, noColor),
		formatPaneProgress(pane, now),
	}
	if tool := formatToolStatus(pane, now); tool != "" {
		lines = append(lines, stylizeMuted(truncate.StringWithTail(tool, uint(width), "..."), noColor))
	}
	if pane.Error != "" {
		lines = append(lines, stylizeStatus(truncate.StringWithTail(pane.Error, uint(width), "..."), PaneFailed, noColor))
	}
	bodyRows := max(height-len(lines)-2, 1)
	body := lastLines(wordwrap.String(pane.Text, width), bodyRows)
	lines = append(lines, body...)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(width).
		Height(height - 2)
	if !noColor {
		style = style.BorderForeground(statusColor(pane.Status))
	}
	return style.Render(strings.Join(lines, "\n"))
}

// lastLines returns at most n trailing non-empty-tail lines of text.
func lastLines(text string, n int) []string {
	text = strings.TrimRight(text, "\n ")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// renderFooter renders the last event line.
func renderFooter(state State, noColor bool) string {
	if state.LastEvent == "" {
		return stylize("esc to cancel", noColor, lipgloss.Color("240"))
	}
	return stylize("Last event: "+state.LastEvent+" | esc to cancel", noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
