package report

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"toolbench/internal/runner"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2328}
table{border-collapse:collapse;margin:1rem 0}
th,td{border:1px solid #d0d7de;padding:.35rem .6rem;text-align:left;vertical-align:top}
th{background:#f6f8fa}
.ok{color:#1a7f37}.fail{color:#cf222e}.muted{color:#656d76}
details{margin:.25rem 0}pre{white-space:pre-wrap;margin:.25rem 0}`

// ReportPage renders a complete HTML document for one run.
func ReportPage(results runner.Results) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		sw.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>")
		sw.text("toolbench " + results.RunID)
		sw.raw("</title><style>" + pageStyle + "</style></head><body>")
		sw.raw("<h1>Run ")
		sw.text(results.RunID)
		sw.raw("</h1><p class=\"muted\">Model ")
		sw.text(results.Model)
		sw.raw(" | isolation ")
		sw.text(results.Isolation)
		sw.raw(" | started ")
		sw.text(formatTime(results.StartedAt))
		sw.raw(" | finished ")
		sw.text(formatTime(results.FinishedAt))
		if results.Canceled {
			sw.raw(" | <span class=\"fail\">canceled</span>")
		}
		sw.raw("</p>")
		if sw.err != nil {
			return sw.err
		}
		if err := summaryTable(results.Summary).Render(ctx, w); err != nil {
			return err
		}
		if err := questionTable(results).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// summaryTable renders the per-variant summary.
func summaryTable(summaries []runner.VariantSummary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		sw.raw("<h2>Summary</h2><table><thead><tr>")
		for _, title := range []string{"Variant", "Mean score", "Scored", "Succeeded", "Failed", "Step limited", "Mean latency", "Tokens", "Tool calls"} {
			sw.raw("<th>")
			sw.text(title)
			sw.raw("</th>")
		}
		sw.raw("</tr></thead><tbody>")
		for _, summary := range summaries {
			sw.raw("<tr>")
			sw.cell(summary.Variant)
			sw.cell(formatScore(summary.MeanScore))
			sw.cell(strconv.Itoa(summary.Scored))
			sw.cell(strconv.Itoa(summary.Succeeded))
			sw.cell(strconv.Itoa(summary.Failed))
			sw.cell(strconv.Itoa(summary.StepLimited))
			sw.cell(formatLatency(summary.MeanLatencyMs))
			sw.cell(strconv.Itoa(summary.TokensTotal))
			sw.cell(strconv.Itoa(summary.ToolCalls))
			sw.raw("</tr>")
		}
		sw.raw("</tbody></table>")
		return sw.err
	})
}

// questionTable renders one row per question with a cell per variant.
func questionTable(results runner.Results) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		sw.raw("<h2>Questions</h2><table><thead><tr><th>Question</th><th>Reference</th>")
		for _, variant := range results.Variants {
			sw.raw("<th>")
			sw.text(variant)
			sw.raw("</th>")
		}
		sw.raw("</tr></thead><tbody>")
		for _, question := range results.Questions {
			sw.raw("<tr><td><strong>")
			sw.text(question.ID)
			sw.raw("</strong><br>")
			sw.text(question.Question)
			sw.raw("</td>")
			sw.cell(question.Reference)
			for _, variant := range results.Variants {
				run, ok := findRun(question.Runs, variant)
				if !ok {
					sw.cell("-")
					continue
				}
				writeRunCell(sw, run)
			}
			sw.raw("</tr>")
		}
		sw.raw("</tbody></table>")
		return sw.err
	})
}

func writeRunCell(sw *stickyWriter, run runner.VariantRun) {
	class := "ok"
	if !run.Succeeded() {
		class = "fail"
	}
	sw.raw("<td><span class=\"" + class + "\">")
	sw.text(run.Status)
	sw.raw("</span> ")
	sw.text(formatRunScore(run.Score))
	sw.raw("<br><span class=\"muted\">")
	sw.text(strconv.Itoa(run.Steps) + " steps, " + strconv.Itoa(run.ToolCalls) + " tools, " + formatLatency(float64(run.LatencyMs)))
	sw.raw("</span>")
	if run.Answer != "" {
		sw.raw("<details><summary>answer</summary><pre>")
		sw.text(run.Answer)
		sw.raw("</pre></details>")
	}
	if run.Error != "" {
		sw.raw("<pre class=\"fail\">")
		sw.text(run.Error)
		sw.raw("</pre>")
	}
	if run.Score != nil && run.Score.Metadata.Rationale != "" {
		sw.raw("<details><summary>rationale</summary><pre>")
		sw.text(run.Score.Metadata.Rationale)
		sw.raw("</pre></details>")
	}
	sw.raw("</td>")
}

func findRun(runs []runner.VariantRun, variant string) (runner.VariantRun, bool) {
	for _, run := range runs {
		if run.Variant == variant {
			return run, true
		}
	}
	return runner.VariantRun{}, false
}

// stickyWriter keeps the first write error so markup can be emitted without
// checking every call.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) raw(markup string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, markup)
}

func (s *stickyWriter) text(value string) {
	s.raw(templ.EscapeString(value))
}

func (s *stickyWriter) cell(value string) {
	s.raw("<td>")
	s.text(value)
	s.raw("</td>")
}
