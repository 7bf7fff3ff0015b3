package live

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	if noColor {
		return table.DefaultStyles()
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	styles.Selected = lipgloss.NewStyle()
	return styles
}

// scoreboardColumns returns the default scoreboard columns.
func scoreboardColumns() []table.Column {
	return []table.Column{
		{Title: "Variant", Width: 10},
		{Title: "Runs", Width: 6},
		{Title: "Failed", Width: 7},
		{Title: "Scored", Width: 7},
		{Title: "Mean", Width: 7},
		{Title: "Latency", Width: 10},
	}
}

// columnsForWidth widens the variant column on large terminals.
func columnsForWidth(width int) []table.Column {
	columns := scoreboardColumns()
	fixed := 0
	for _, column := range columns[1:] {
		fixed += column.Width + 2
	}
	columns[0].Width = min(max(width-fixed-2, 10), 24)
	return columns
}

// scoreboardRows converts per-variant totals into table rows.
func scoreboardRows(state State) []table.Row {
	rows := make([]table.Row, 0, len(state.Variants))
	for _, variant := range state.Variants {
		totals := state.Totals[variant]
		rows = append(rows, table.Row{
			variant,
			fmtInt(totals.Runs),
			fmtInt(totals.Failed),
			fmtInt(totals.Scored),
			formatMean(totals),
			formatMeanLatency(totals),
		})
	}
	return rows
}
