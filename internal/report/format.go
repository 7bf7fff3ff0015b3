package report

import (
	"fmt"
	"time"

	"toolbench/internal/score"
)

// formatScore renders a nullable score with two decimals.
func formatScore(value *float64) string {
	if value == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *value)
}

// formatRunScore renders a variant run's score and choice.
func formatRunScore(result *score.Result) string {
	if result == nil {
		return "-"
	}
	if !result.Scored() {
		return "unscored"
	}
	return formatScore(result.Score) + " (" + result.Metadata.Choice + ")"
}

// formatLatency renders milliseconds as a rounded duration.
func formatLatency(ms float64) string {
	return (time.Duration(ms) * time.Millisecond).Round(10 * time.Millisecond).String()
}

// formatTime renders a timestamp for the report header.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
