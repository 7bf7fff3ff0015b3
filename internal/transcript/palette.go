package transcript

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var isTerminal = term.IsTerminal

// style selects how a transcript line is styled.
type style int

const (
	styleDefault style = iota
	styleDim
	styleHeadingQuestion
	styleHeadingAnswer
	styleHeadingToolCall
	styleHeadingToolResult
	styleHeadingMetrics
	styleHeadingError
)

var styles = map[style]lipgloss.Style{
	styleDim:               lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("8")),
	styleHeadingQuestion:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	styleHeadingAnswer:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
	styleHeadingToolCall:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	styleHeadingToolResult: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
	styleHeadingMetrics:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	styleHeadingError:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
}

// palette controls styling for transcript output.
type palette struct {
	enabled bool
}

// paletteFor selects a palette based on the writer and color settings.
func paletteFor(writer io.Writer, noColor bool) palette {
	if noColor {
		return palette{}
	}
	return palette{enabled: shouldUseStyling(writer)}
}

// shouldUseStyling reports whether styling should be enabled.
func shouldUseStyling(writer io.Writer) bool {
	if writer == nil {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if strings.EqualFold(os.Getenv("CLICOLOR"), "0") {
		return false
	}
	if file, ok := writer.(*os.File); ok {
		return isTerminal(int(file.Fd()))
	}
	if fder, ok := writer.(interface{ Fd() uintptr }); ok {
		return isTerminal(int(fder.Fd()))
	}
	return false
}

// apply renders text in the requested style.
func (p palette) apply(s style, text string) string {
	if !p.enabled {
		return text
	}
	rendered, ok := styles[s]
	if !ok {
		return text
	}
	return rendered.Render(text)
}
