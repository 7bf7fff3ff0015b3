// Package transcript prints a human-readable trace of one agent invocation.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"toolbench/internal/agent/loop"
)

const (
	prefix                 = "│"
	inlineTruncationMarker = "... [truncated]"

	// DefaultToolOutputMaxLines bounds the tool output lines echoed per result.
	DefaultToolOutputMaxLines = 8
	// DefaultMaxLineBytes bounds a single echoed line.
	DefaultMaxLineBytes = 400
)

// Options configures a Writer.
type Options struct {
	NoColor bool
	// ToolOutputMaxLines bounds echoed tool output. Negative disables the bound.
	ToolOutputMaxLines int
	// MaxLineBytes bounds each echoed line. Negative disables the bound.
	MaxLineBytes int
}

// Writer renders loop events as a transcript. It implements loop.Sink and is
// safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	palette  palette
	maxLines int
	maxBytes int
	midLine  bool
}

var _ loop.Sink = (*Writer)(nil)

// New returns a transcript writer for w.
func New(w io.Writer, opts Options) *Writer {
	maxLines := opts.ToolOutputMaxLines
	if maxLines == 0 {
		maxLines = DefaultToolOutputMaxLines
	}
	maxBytes := opts.MaxLineBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxLineBytes
	}
	return &Writer{
		w:        w,
		palette:  paletteFor(w, opts.NoColor),
		maxLines: maxLines,
		maxBytes: maxBytes,
	}
}

// Question prints the invocation header.
func (t *Writer) Question(variant, question string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(styleHeadingQuestion, "Question ("+variant+")")
	for _, line := range strings.Split(strings.TrimSpace(question), "\n") {
		t.line(styleDefault, line)
	}
}

// OnText streams answer text as it arrives.
func (t *Writer) OnText(delta string) {
	if delta == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.w, delta)
	t.midLine = !strings.HasSuffix(delta, "\n")
}

// OnToolCall prints a tool call header with its arguments.
func (t *Writer) OnToolCall(event loop.ToolCallEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	header := fmt.Sprintf("Tool call %s (step %d)", event.Name, event.Step)
	t.line(styleHeadingToolCall, header)
	if args := strings.TrimSpace(event.Arguments); args != "" {
		t.line(styleDim, truncateInline(args, t.maxBytes))
	}
}

// OnToolResult prints the first lines of a tool result.
func (t *Writer) OnToolResult(event loop.ToolResultEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	header := fmt.Sprintf("Tool result %s (%s)", event.Name, event.Duration.Round(time.Millisecond))
	headerStyle := styleHeadingToolResult
	if event.IsError {
		header += " error"
		headerStyle = styleHeadingError
	}
	if event.Truncated {
		header += " truncated"
	}
	t.line(headerStyle, header)
	for _, line := range limitLines(event.Output, t.maxLines) {
		t.line(styleDefault, truncateInline(line, t.maxBytes))
	}
}

// OnProgress prints the step counters.
func (t *Writer) OnProgress(progress loop.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(styleDim, fmt.Sprintf("step %d/%d | tool calls %d | tokens %d | %s",
		progress.Step, progress.MaxSteps, progress.ToolCalls, progress.Tokens.Total, progress.Elapsed.Round(time.Millisecond)))
}

// Result prints the final answer and metrics.
func (t *Writer) Result(result loop.AgentResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(styleHeadingAnswer, "Answer")
	for _, line := range strings.Split(strings.TrimSpace(result.Answer), "\n") {
		t.line(styleDefault, line)
	}
	t.line(styleHeadingMetrics, "Metrics")
	t.line(styleDefault, fmt.Sprintf("steps=%d tool_calls=%d tokens=%d (in %d, out %d) latency=%s finish=%s",
		result.Steps, result.ToolCalls, result.Tokens.Total, result.Tokens.Input, result.Tokens.Output,
		(time.Duration(result.LatencyMs) * time.Millisecond).String(), result.FinishReason))
}

// Error prints a formatted invocation failure.
func (t *Writer) Error(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	header := "Error"
	var stepErr *loop.StepLimitError
	switch {
	case errors.As(err, &stepErr):
		header = "Step limit reached"
	case errors.Is(err, loop.ErrBudgetExceeded):
		header = "Time budget exceeded"
	}
	t.line(styleHeadingError, header)
	for _, line := range strings.Split(err.Error(), "\n") {
		t.line(styleDefault, line)
	}
}

// line writes one prefixed line, ending any streamed text first.
func (t *Writer) line(s style, text string) {
	if t.midLine {
		fmt.Fprintln(t.w)
		t.midLine = false
	}
	fmt.Fprintf(t.w, "%s %s\n", t.palette.apply(styleDim, prefix), t.palette.apply(s, text))
}

// limitLines trims output to a maximum number of lines.
func limitLines(value string, maxLines int) []string {
	trimmed := strings.TrimRight(value, "\n")
	if strings.TrimSpace(trimmed) == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	if maxLines < 0 || len(lines) <= maxLines {
		return lines
	}
	omitted := len(lines) - maxLines
	lines = lines[:maxLines]
	return append(lines, fmt.Sprintf("%s (%d more lines)", inlineTruncationMarker, omitted))
}

// truncateInline bounds a single line to maxBytes, cutting at a rune boundary.
func truncateInline(value string, maxBytes int) string {
	if maxBytes < 0 || len(value) <= maxBytes {
		return value
	}
	if maxBytes <= len(inlineTruncationMarker) {
		return inlineTruncationMarker[:maxBytes]
	}
	cut := maxBytes - len(inlineTruncationMarker)
	for cut > 0 && value[cut]&0xC0 == 0x80 {
		cut--
	}
	return value[:cut] + inlineTruncationMarker
}
