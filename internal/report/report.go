package report

import (
	"context"
	"fmt"
	"os"
	"strings"

	"toolbench/internal/runner"
)

// RenderReportHTML renders the report page into a string.
func RenderReportHTML(ctx context.Context, results runner.Results) (string, error) {
	var builder strings.Builder
	if err := ReportPage(results).Render(ctx, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// BuildReportHTML renders the report, returning an empty string on failure.
func BuildReportHTML(results runner.Results) string {
	html, err := RenderReportHTML(context.Background(), results)
	if err != nil {
		return ""
	}
	return html
}

// WriteReport renders the report next to results.json in the run directory.
func WriteReport(ctx context.Context, results runner.Results, paths runner.OutputPaths) error {
	html, err := RenderReportHTML(ctx, results)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(paths.ReportPath(), []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
