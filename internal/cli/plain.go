package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"toolbench/internal/question"
	"toolbench/internal/runner"
)

// plainObserver prints one line per finished variant run. It is used when
// stdout is not a terminal.
type plainObserver struct {
	mu    sync.Mutex
	w     io.Writer
	total int
}

func newPlainObserver(w io.Writer) *plainObserver {
	return &plainObserver{w: w}
}

func (o *plainObserver) OnRunStart(info runner.RunInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total = info.Questions
	fmt.Fprintf(o.w, "Run %s: %d questions x %d variants (%s)\n", info.RunID, info.Questions, len(info.Variants), info.Model)
}

func (o *plainObserver) OnQuestionStart(index int, q question.Question) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "[%d/%d] %s\n", index+1, o.total, q.ID)
}

func (o *plainObserver) OnVariantEvent(event runner.VariantEvent) {
	if event.Type != runner.EventFinished || event.Run == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "  %s\n", formatRunLine(*event.Run))
}

func (o *plainObserver) OnQuestionEnd(int, runner.QuestionResult) {}

func (o *plainObserver) OnRunEnd(runner.Results) {}

// formatRunLine renders a finished run as "variant status score (steps, latency)".
func formatRunLine(run runner.VariantRun) string {
	line := fmt.Sprintf("%-6s %s", run.Variant, run.Status)
	if run.Score != nil {
		if run.Score.Scored() {
			line += fmt.Sprintf(" score=%.2f (%s)", *run.Score.Score, run.Score.Metadata.Choice)
		} else {
			line += " unscored"
		}
	}
	latency := (time.Duration(run.LatencyMs) * time.Millisecond).Round(10 * time.Millisecond)
	line += fmt.Sprintf(" [%d steps, %d tools, %s]", run.Steps, run.ToolCalls, latency)
	if run.Error != "" {
		line += ": " + run.Error
	}
	return line
}
