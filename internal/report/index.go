package report

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"toolbench/internal/runner"
)

// RunIndexPage lists runs with a link to each report. runs are rendered in
// the given order.
func RunIndexPage(runs []runner.Results) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		sw.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>toolbench runs</title><style>" + pageStyle + "</style></head><body>")
		sw.raw("<h1>Runs</h1>")
		if len(runs) == 0 {
			sw.raw("<p class=\"muted\">No runs yet.</p></body></html>")
			return sw.err
		}
		sw.raw("<table><thead><tr>")
		for _, title := range []string{"Run", "Model", "Started", "Questions", "Variants", "Best mean score"} {
			sw.raw("<th>")
			sw.text(title)
			sw.raw("</th>")
		}
		sw.raw("</tr></thead><tbody>")
		for _, run := range runs {
			sw.raw("<tr><td><a href=\"/runs/" + templ.EscapeString(url.PathEscape(run.RunID)) + "/\">")
			sw.text(run.RunID)
			sw.raw("</a>")
			if run.Canceled {
				sw.raw(" <span class=\"fail\">canceled</span>")
			}
			sw.raw("</td>")
			sw.cell(run.Model)
			sw.cell(formatTime(run.StartedAt))
			sw.cell(strconv.Itoa(len(run.Questions)))
			sw.cell(strconv.Itoa(len(run.Variants)))
			sw.cell(bestMean(run.Summary))
			sw.raw("</tr>")
		}
		sw.raw("</tbody></table></body></html>")
		return sw.err
	})
}

// bestMean names the variant with the highest mean score.
func bestMean(summaries []runner.VariantSummary) string {
	best := -1
	for i, summary := range summaries {
		if summary.MeanScore == nil {
			continue
		}
		if best < 0 || *summary.MeanScore > *summaries[best].MeanScore {
			best = i
		}
	}
	if best < 0 {
		return "-"
	}
	return summaries[best].Variant + " " + formatScore(summaries[best].MeanScore)
}
