package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"toolbench/internal/agent/loop"
	"toolbench/internal/question"
	"toolbench/internal/score"
	"toolbench/internal/testutil"
)

var sampleQuestions = []question.Question{
	{ID: "q1", Text: "How many open issues?", Answer: "2", Category: "counting"},
	{ID: "q2", Text: "Which repo has the most stars?", Answer: "acme/rocket"},
}

// scriptedInvoker answers per variant: bash answers with the reference,
// fs answers wrong, sql hits the step limit and vector fails.
func scriptedInvoker() InvokerFunc {
	answers := map[string]string{}
	for _, q := range sampleQuestions {
		answers[q.Text] = q.Answer
	}
	return func(_ context.Context, variant, text string, sink loop.Sink) (loop.AgentResult, error) {
		switch variant {
		case "sql":
			return loop.AgentResult{}, &loop.StepLimitError{Steps: 50, ToolCalls: 61}
		case "vector":
			return loop.AgentResult{}, errors.New("embedding endpoint unavailable")
		case "fs":
			return loop.AgentResult{Answer: "no idea", LatencyMs: 30, Steps: 1, Tokens: loop.TokenUsage{Total: 5}}, nil
		}
		sink.OnText("The answer is ")
		sink.OnToolCall(loop.ToolCallEvent{Step: 1, ID: "c1", Name: "bash"})
		sink.OnToolResult(loop.ToolResultEvent{Step: 1, ID: "c1", Name: "bash"})
		sink.OnProgress(loop.Progress{Step: 1, MaxSteps: 50, ToolCalls: 1})
		return loop.AgentResult{Answer: answers[text], LatencyMs: 10, Steps: 2, ToolCalls: 1, Tokens: loop.TokenUsage{Input: 8, Output: 2, Total: 10}}, nil
	}
}

type exactGrader struct{}

func (exactGrader) Score(_ context.Context, in score.Input) (score.Result, error) {
	value := 0.0
	if in.Answer == in.Reference {
		value = 1
	}
	return score.Result{Name: score.Name, Score: &value, Metadata: score.Metadata{Attempts: 1}}, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	started   RunInfo
	questions []string
	events    map[string][]EventType
	ended     *Results
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{events: map[string][]EventType{}}
}

func (o *recordingObserver) OnRunStart(info RunInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = info
}

func (o *recordingObserver) OnQuestionStart(_ int, q question.Question) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.questions = append(o.questions, q.ID)
}

func (o *recordingObserver) OnVariantEvent(event VariantEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := event.QuestionID + "/" + event.Variant
	o.events[key] = append(o.events[key], event.Type)
}

func (o *recordingObserver) OnQuestionEnd(int, QuestionResult) {}

func (o *recordingObserver) OnRunEnd(results Results) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = &results
}

func fixedRunID() (string, error) {
	return "20240102T030405Z-abc", nil
}

func TestRunCollectsResultsAndSummary(t *testing.T) {
	observer := newRecordingObserver()
	results, err := Run(testutil.Context(t, 5*time.Second), RunParams{
		Questions: sampleQuestions,
		Variants:  []string{"bash", "fs", "sql", "vector"},
		Model:     "test-model",
		Deps: RunDependencies{
			Invoker:  scriptedInvoker(),
			Grader:   exactGrader{},
			Observer: observer,
			RunID:    fixedRunID,
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results.RunID != "20240102T030405Z-abc" || len(results.Questions) != 2 || results.Canceled {
		t.Fatalf("unexpected results %+v", results)
	}
	runs := results.Questions[0].Runs
	if len(runs) != 4 || runs[0].Variant != "bash" || runs[3].Variant != "vector" {
		t.Fatalf("expected runs in variant order, got %+v", runs)
	}
	if runs[0].Status != StatusOK || runs[0].Answer != "2" || *runs[0].Score.Score != 1 {
		t.Fatalf("unexpected bash run %+v", runs[0])
	}
	if runs[2].Status != StatusStepLimit || runs[2].Steps != 50 || runs[2].ToolCalls != 61 || runs[2].Score != nil {
		t.Fatalf("unexpected sql run %+v", runs[2])
	}
	if runs[3].Status != StatusError || !strings.Contains(runs[3].Error, "embedding") {
		t.Fatalf("unexpected vector run %+v", runs[3])
	}

	summary := map[string]VariantSummary{}
	for _, s := range results.Summary {
		summary[s.Variant] = s
	}
	bash := summary["bash"]
	if bash.Questions != 2 || bash.Succeeded != 2 || bash.Scored != 2 || *bash.MeanScore != 1 || bash.MeanLatencyMs != 10 || bash.TokensTotal != 20 || bash.ToolCalls != 2 {
		t.Fatalf("unexpected bash summary %+v", bash)
	}
	if fs := summary["fs"]; *fs.MeanScore != 0 || fs.MeanLatencyMs != 30 {
		t.Fatalf("unexpected fs summary %+v", fs)
	}
	sql := summary["sql"]
	if sql.Failed != 2 || sql.StepLimited != 2 || sql.MeanScore != nil || sql.ToolCalls != 122 {
		t.Fatalf("unexpected sql summary %+v", sql)
	}

	if observer.started.Questions != 2 || strings.Join(observer.questions, ",") != "q1,q2" || observer.ended == nil {
		t.Fatalf("unexpected observer lifecycle %+v %v", observer.started, observer.questions)
	}
	got := observer.events["q1/bash"]
	want := []EventType{EventStarted, EventText, EventToolStart, EventToolFinish, EventProgress, EventScoring, EventFinished}
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
}

// TestRunVariantsConcurrently verifies every variant of a question is in flight at once.
func TestRunVariantsConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(3)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()
	invoker := InvokerFunc(func(ctx context.Context, variant, _ string, _ loop.Sink) (loop.AgentResult, error) {
		started.Done()
		select {
		case <-all:
			return loop.AgentResult{Answer: variant}, nil
		case <-ctx.Done():
			return loop.AgentResult{}, ctx.Err()
		}
	})
	results, err := Run(testutil.Context(t, 5*time.Second), RunParams{
		Questions: sampleQuestions[:1],
		Variants:  []string{"bash", "fs", "sql"},
		Deps:      RunDependencies{Invoker: invoker, RunID: fixedRunID},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, run := range results.Questions[0].Runs {
		if run.Status != StatusOK || run.Answer != run.Variant || run.Score != nil {
			t.Fatalf("unexpected run %+v", run)
		}
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	invoker := InvokerFunc(func(context.Context, string, string, loop.Sink) (loop.AgentResult, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			previous := peak.Load()
			if current <= previous || peak.CompareAndSwap(previous, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return loop.AgentResult{Answer: "x"}, nil
	})
	_, err := Run(testutil.Context(t, 5*time.Second), RunParams{
		Questions:   sampleQuestions,
		Variants:    []string{"bash", "fs", "sql", "vector"},
		Concurrency: 1,
		Deps:        RunDependencies{Invoker: invoker, RunID: fixedRunID},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected at most one invocation in flight, saw %d", peak.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	invoker := InvokerFunc(func(context.Context, string, string, loop.Sink) (loop.AgentResult, error) {
		cancel()
		return loop.AgentResult{Answer: "x"}, nil
	})
	results, err := Run(ctx, RunParams{
		Questions: sampleQuestions,
		Variants:  []string{"bash"},
		Deps:      RunDependencies{Invoker: invoker, RunID: fixedRunID},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !results.Canceled || len(results.Questions) != 1 || len(results.Summary) != 1 {
		t.Fatalf("expected partial results, got %+v", results)
	}
}

func TestRunValidatesParams(t *testing.T) {
	ctx := context.Background()
	if _, err := Run(ctx, RunParams{Questions: sampleQuestions, Variants: []string{"bash"}}); err == nil {
		t.Fatalf("expected missing invoker error")
	}
	deps := RunDependencies{Invoker: scriptedInvoker()}
	if _, err := Run(ctx, RunParams{Variants: []string{"bash"}, Deps: deps}); err == nil {
		t.Fatalf("expected missing questions error")
	}
	if _, err := Run(ctx, RunParams{Questions: sampleQuestions, Deps: deps}); err == nil {
		t.Fatalf("expected missing variants error")
	}
}

func TestWriteAndLoadResults(t *testing.T) {
	results, err := Run(testutil.Context(t, 5*time.Second), RunParams{
		Questions: sampleQuestions,
		Variants:  []string{"bash", "sql"},
		Deps:      RunDependencies{Invoker: scriptedInvoker(), Grader: exactGrader{}, RunID: fixedRunID},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	paths, err := WriteResults(results, t.TempDir())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadResults(paths.ResultsPath())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != results.RunID || len(loaded.Questions) != 2 {
		t.Fatalf("unexpected loaded results %+v", loaded)
	}
	bash := loaded.Questions[1].Runs[0]
	if bash.Score == nil || bash.Score.Score == nil || *bash.Score.Score != 1 {
		t.Fatalf("expected score to survive the round trip, got %+v", bash.Score)
	}
	if loaded.Summary[1].MeanScore != nil {
		t.Fatalf("expected null mean score for a variant without answers")
	}
}

func TestVariantRunString(t *testing.T) {
	value := 0.4
	ok := VariantRun{Variant: "bash", Status: StatusOK, Steps: 3, ToolCalls: 2, LatencyMs: 1200, Score: &score.Result{Score: &value}}
	if got := ok.String(); got != "bash: score 0.40, 3 steps, 2 tool calls, 1200ms" {
		t.Fatalf("unexpected line %q", got)
	}
	failed := VariantRun{Variant: "sql", Status: StatusStepLimit, Error: "step limit reached"}
	if got := failed.String(); got != "sql: step_limit (step limit reached)" {
		t.Fatalf("unexpected line %q", got)
	}
}

// TestRunMeasuresLatencyWithInjectedClock verifies latency falls back to the
// run clock when the invoker reports none.
func TestRunMeasuresLatencyWithInjectedClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewFakeClock(start)
	invoker := InvokerFunc(func(context.Context, string, string, loop.Sink) (loop.AgentResult, error) {
		clock.Advance(1500 * time.Millisecond)
		return loop.AgentResult{Answer: "acme/rocket", Steps: 1}, nil
	})
	results, err := Run(testutil.Context(t, 5*time.Second), RunParams{
		Questions: sampleQuestions[1:],
		Variants:  []string{"bash"},
		Deps:      RunDependencies{Invoker: invoker, RunID: fixedRunID, Now: clock.Now},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !results.StartedAt.Equal(start) {
		t.Fatalf("unexpected start %s", results.StartedAt)
	}
	if got := results.FinishedAt.Sub(results.StartedAt); got != 1500*time.Millisecond {
		t.Fatalf("unexpected run duration %s", got)
	}
	if latency := results.Questions[0].Runs[0].LatencyMs; latency != 1500 {
		t.Fatalf("expected 1500ms latency, got %d", latency)
	}
}
