package score

import (
	"context"
	"errors"
	"strings"
	"testing"

	"toolbench/internal/agent"
	"toolbench/internal/agent/loop/looptest"
)

func choiceStep(choice string) looptest.Step {
	return looptest.ToolCalls(looptest.Call("s1", "select_choice", `{"reasons":"compared facts","choice":"`+choice+`"}`))
}

func newScorer(t *testing.T, provider agent.Provider, opts Options) *Scorer {
	t.Helper()
	scorer, err := New(provider, opts)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return scorer
}

var sample = Input{Question: "How many open issues?", Reference: "2", Answer: "There are 2 open issues."}

func TestChoiceWeights(t *testing.T) {
	want := map[string]float64{"A": 0.4, "B": 1, "C": 1, "D": 0, "E": 1}
	for choice, expected := range want {
		scorer := newScorer(t, looptest.NewProvider(choiceStep(choice)), Options{})
		result, err := scorer.Score(context.Background(), sample)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		if result.Score == nil || *result.Score != expected {
			t.Fatalf("choice %s: got %v, want %v", choice, result.Score, expected)
		}
		if result.Metadata.Choice != choice || result.Metadata.Attempts != 1 || result.Metadata.Rationale != "compared facts" {
			t.Fatalf("unexpected metadata %+v", result.Metadata)
		}
	}
}

func TestChoiceScoresAreTunable(t *testing.T) {
	scorer := newScorer(t, looptest.NewProvider(choiceStep("B")), Options{ChoiceScores: map[string]float64{"B": 0.8}})
	result, err := scorer.Score(context.Background(), sample)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if *result.Score != 0.8 {
		t.Fatalf("expected tuned superset weight, got %v", *result.Score)
	}
	if _, err := New(looptest.NewProvider(), Options{ChoiceScores: map[string]float64{"Z": 1}}); err == nil {
		t.Fatalf("expected unknown choice to be rejected")
	}
}

func TestScoreForcesSelectChoice(t *testing.T) {
	provider := looptest.NewProvider(choiceStep("C"))
	scorer := newScorer(t, provider, Options{})
	if _, err := scorer.Score(context.Background(), sample); err != nil {
		t.Fatalf("score: %v", err)
	}
	prompts := provider.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one classifier call, got %d", len(prompts))
	}
	p := prompts[0]
	if p.ToolChoice.Function != "select_choice" || len(p.Tools) != 1 || p.Tools[0].Name != "select_choice" {
		t.Fatalf("expected forced select_choice, got %+v", p.ToolChoice)
	}
	text := p.InputItems[0].Content.(agent.HistoryText).Text
	if !strings.Contains(text, "[Expert]: 2") || !strings.Contains(text, "[Submission]: There are 2 open issues.") {
		t.Fatalf("unexpected classifier prompt:\n%s", text)
	}
}

func TestRetriesUntilParseable(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.Text("I think B"),
		looptest.ToolCalls(looptest.Call("s1", "select_choice", `{"reasons":"x","choice":"Q"}`)),
		choiceStep("(d)"),
	)
	scorer := newScorer(t, provider, Options{})
	result, err := scorer.Score(context.Background(), sample)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Score == nil || *result.Score != 0 || result.Metadata.Attempts != 3 || result.Metadata.LastError != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

// TestExhaustedAttemptsYieldNullScore verifies failed classification never becomes a zero score.
func TestExhaustedAttemptsYieldNullScore(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.Text("no tool"),
		looptest.Step{Err: looptest.ErrScripted},
		looptest.ToolCalls(looptest.Call("s1", "select_choice", `{"reasons":`)),
	)
	scorer := newScorer(t, provider, Options{})
	result, err := scorer.Score(context.Background(), sample)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Scored() {
		t.Fatalf("expected null score, got %v", *result.Score)
	}
	if result.Metadata.Attempts != 3 || !strings.Contains(result.Metadata.LastError, "select_choice arguments") {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if len(provider.Prompts()) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(provider.Prompts()))
	}
}

func TestCancellationIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scorer := newScorer(t, looptest.NewProvider(looptest.Step{Err: context.Canceled}), Options{})
	if _, err := scorer.Score(ctx, sample); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestMeanExcludesNullScores(t *testing.T) {
	one, zero := 1.0, 0.0
	mean, ok := Mean([]Result{{Score: &one}, {Score: nil}, {Score: &zero}})
	if !ok || mean != 0.5 {
		t.Fatalf("unexpected mean %v ok=%t", mean, ok)
	}
	if _, ok := Mean([]Result{{}}); ok {
		t.Fatalf("expected no mean without scores")
	}
}
