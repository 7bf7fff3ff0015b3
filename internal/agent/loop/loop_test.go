package loop

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"toolbench/internal/agent"
	"toolbench/internal/agent/loop/looptest"
	"toolbench/internal/tools"
)

func testTools(t *testing.T) *tools.Set {
	t.Helper()
	set, err := tools.NewSet(tools.DefaultOptions(),
		tools.Capability{
			Name:        "lookup",
			Description: "Look something up.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{"key": tools.StringSchema("key")}, "key"),
			Execute: func(_ context.Context, args tools.Args) (string, error) {
				key, err := args.RequiredString("key")
				if err != nil {
					return "", err
				}
				return "value-of-" + key, nil
			},
		},
		tools.Capability{
			Name: "fail",
			Execute: func(context.Context, tools.Args) (string, error) {
				return "", errors.New("backend unavailable")
			},
		},
	)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	return set
}

type recordingSink struct {
	mu          sync.Mutex
	text        strings.Builder
	toolCalls   []ToolCallEvent
	toolResults []ToolResultEvent
	progress    []Progress
	order       []string
}

func (s *recordingSink) OnText(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(delta)
	s.order = append(s.order, "text")
}

func (s *recordingSink) OnToolCall(event ToolCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls = append(s.toolCalls, event)
	s.order = append(s.order, "call:"+event.ID)
}

func (s *recordingSink) OnToolResult(event ToolResultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolResults = append(s.toolResults, event)
	s.order = append(s.order, "result:"+event.ID)
}

func (s *recordingSink) OnProgress(progress Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progress)
	s.order = append(s.order, fmt.Sprintf("progress:%d", progress.Step))
}

func request(t *testing.T, maxSteps int) Request {
	return Request{
		Variant:      "test",
		Question:     "What is the key?",
		SystemPrompt: "Answer using tools.",
		Tools:        testTools(t),
		Limits:       Limits{MaxSteps: maxSteps},
	}
}

func TestRunAnswersAfterToolCalls(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.ToolCalls(looptest.Call("c1", "lookup", `{"key":"a"}`)),
		looptest.Text("The value is value-of-a."),
	)
	sink := &recordingSink{}
	result, err := Run(context.Background(), provider, request(t, 5), sink, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Answer != "The value is value-of-a." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if result.Steps != 2 || result.ToolCalls != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Tokens.Input != 20 || result.Tokens.Output != 7 || result.Tokens.Total != 27 {
		t.Fatalf("unexpected tokens %+v", result.Tokens)
	}
	if result.FinishReason != agent.FinishStop {
		t.Fatalf("unexpected finish %q", result.FinishReason)
	}
	if len(sink.toolResults) != 1 || sink.toolResults[0].Output != "value-of-a" {
		t.Fatalf("unexpected tool results %+v", sink.toolResults)
	}
	want := "call:c1,result:c1,progress:1,text,progress:2"
	if got := strings.Join(sink.order, ","); got != want {
		t.Fatalf("unexpected event order %s", got)
	}

	prompts := provider.Prompts()
	last := prompts[len(prompts)-1]
	output, ok := last.InputItems[len(last.InputItems)-1].Content.(agent.ToolOutput)
	if !ok || output.ToolCallID != "c1" || output.Result.Output != "value-of-a" {
		t.Fatalf("expected tool output fed back, got %+v", last.InputItems)
	}
}

// TestStepLimitWhileCallingToolsFails verifies exhaustion mid-tool-use is an error.
func TestStepLimitWhileCallingToolsFails(t *testing.T) {
	for _, budget := range []int{1, 2, 5} {
		provider := looptest.NewProvider()
		provider.Fallback = func(call int) looptest.Step {
			return looptest.ToolCalls(looptest.Call(fmt.Sprintf("c%d", call), "lookup", `{"key":"x"}`))
		}
		_, err := Run(context.Background(), provider, request(t, budget), nil, Options{})
		var stepErr *StepLimitError
		if !errors.As(err, &stepErr) {
			t.Fatalf("budget %d: expected StepLimitError, got %v", budget, err)
		}
		if stepErr.Steps != budget || stepErr.ToolCalls != budget {
			t.Fatalf("budget %d: unexpected error %+v", budget, stepErr)
		}
		if len(provider.Prompts()) != budget {
			t.Fatalf("budget %d: expected %d model calls, got %d", budget, budget, len(provider.Prompts()))
		}
	}
}

// TestStepLimitWithTextOnLastStepSucceeds verifies a text finish on the final allowed step succeeds.
func TestStepLimitWithTextOnLastStepSucceeds(t *testing.T) {
	for _, budget := range []int{1, 2, 5} {
		provider := looptest.NewProvider()
		provider.Fallback = func(call int) looptest.Step {
			if call == budget-1 {
				return looptest.Text("done")
			}
			return looptest.ToolCalls(looptest.Call(fmt.Sprintf("c%d", call), "lookup", `{"key":"x"}`))
		}
		result, err := Run(context.Background(), provider, request(t, budget), nil, Options{})
		if err != nil {
			t.Fatalf("budget %d: unexpected error %v", budget, err)
		}
		if result.Steps != budget || result.Answer != "done" {
			t.Fatalf("budget %d: unexpected result %+v", budget, result)
		}
	}
}

// TestToolCallsWithStopReasonCountAsToolCalls verifies pending calls decide the finish reason.
func TestToolCallsWithStopReasonCountAsToolCalls(t *testing.T) {
	step := looptest.ToolCalls(looptest.Call("c1", "lookup", `{"key":"x"}`))
	step.Events[len(step.Events)-1].Finish = agent.FinishStop
	provider := looptest.NewProvider(step)
	_, err := Run(context.Background(), provider, request(t, 1), nil, Options{})
	if !IsStepLimit(err) {
		t.Fatalf("expected step limit error, got %v", err)
	}
}

// TestToolCallCountMatchesEvents verifies the reported count equals observed tool-call events.
func TestToolCallCountMatchesEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		budget := 1 + rng.Intn(8)
		steps := make([]looptest.Step, 0, budget)
		for i := 0; i < budget-1; i++ {
			count := 1 + rng.Intn(3)
			calls := make([]agent.ToolCall, 0, count)
			for j := 0; j < count; j++ {
				name := []string{"lookup", "fail", "missing"}[rng.Intn(3)]
				calls = append(calls, looptest.Call(fmt.Sprintf("t%d-%d-%d", trial, i, j), name, `{"key":"k"}`))
			}
			steps = append(steps, looptest.ToolCalls(calls...))
		}
		steps = append(steps, looptest.Text("answer"))
		sink := &recordingSink{}
		result, err := Run(context.Background(), looptest.NewProvider(steps...), request(t, budget), sink, Options{})
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if result.ToolCalls != len(sink.toolCalls) || len(sink.toolCalls) != len(sink.toolResults) {
			t.Fatalf("trial %d: tool calls %d, events %d, results %d", trial, result.ToolCalls, len(sink.toolCalls), len(sink.toolResults))
		}
		for i, progress := range sink.progress {
			if progress.Step != i+1 {
				t.Fatalf("trial %d: non-monotonic steps %+v", trial, sink.progress)
			}
		}
	}
}

func TestToolErrorsAreFedBack(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.ToolCalls(
			looptest.Call("c1", "fail", `{}`),
			looptest.Call("c2", "nope", `{}`),
			looptest.Call("c3", "lookup", `{not json`),
		),
		looptest.Text("recovered"),
	)
	sink := &recordingSink{}
	result, err := Run(context.Background(), provider, request(t, 3), sink, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Answer != "recovered" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	for _, event := range sink.toolResults {
		if !event.IsError || !strings.HasPrefix(event.Output, tools.ErrorPrefix) {
			t.Fatalf("expected error result, got %+v", event)
		}
	}
}

func TestModelErrorIsFatal(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.ToolCalls(looptest.Call("c1", "lookup", `{"key":"a"}`)),
		looptest.Step{Err: looptest.ErrScripted},
	)
	_, err := Run(context.Background(), provider, request(t, 5), nil, Options{})
	if !errors.Is(err, looptest.ErrScripted) {
		t.Fatalf("expected model error, got %v", err)
	}
	if IsStepLimit(err) {
		t.Fatalf("model errors must not look like step limits")
	}
}

// TestPanickingSinkDoesNotAffectLoop verifies sink panics are contained.
func TestPanickingSinkDoesNotAffectLoop(t *testing.T) {
	provider := looptest.NewProvider(
		looptest.ToolCalls(looptest.Call("c1", "lookup", `{"key":"a"}`)),
		looptest.Text("fine"),
	)
	sink := SinkFuncs{
		Text:       func(string) { panic("text") },
		ToolCall:   func(ToolCallEvent) { panic("call") },
		ToolResult: func(ToolResultEvent) { panic("result") },
		Progress:   func(Progress) { panic("progress") },
	}
	result, err := Run(context.Background(), provider, request(t, 5), sink, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Answer != "fine" || result.ToolCalls != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUsageFallsBackToApproximation(t *testing.T) {
	provider := looptest.NewProvider(looptest.Step{Events: []agent.StreamEvent{
		{Type: agent.StreamEventTextDelta, Text: strings.Repeat("a", 40)},
		{Type: agent.StreamEventFinish, Finish: agent.FinishStop},
	}})
	result, err := Run(context.Background(), provider, request(t, 2), nil, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Tokens.Output != 10 || result.Tokens.Input == 0 {
		t.Fatalf("unexpected approximated tokens %+v", result.Tokens)
	}
}

func TestRunValidatesRequest(t *testing.T) {
	provider := looptest.NewProvider()
	if _, err := Run(context.Background(), provider, Request{Tools: testTools(t)}, nil, Options{}); err == nil {
		t.Fatalf("expected empty question error")
	}
	if _, err := Run(context.Background(), provider, Request{Question: "q"}, nil, Options{}); err == nil {
		t.Fatalf("expected nil tool set error")
	}
}

func TestStateTransitions(t *testing.T) {
	var state RunState
	if err := state.transition(StateToolExecuting); err == nil {
		t.Fatalf("idle cannot jump to tool execution")
	}
	for _, next := range []State{StateStreaming, StateToolExecuting, StateStreaming, StateFinished} {
		if err := state.transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if err := state.transition(StateStreaming); err == nil {
		t.Fatalf("finished is terminal")
	}
	state.fail()
	if state.State != StateFinished {
		t.Fatalf("fail must not override a terminal state")
	}
}

func TestRunStopsWhenDurationBudgetIsSpent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(2 * time.Second)
		return now
	}
	provider := looptest.NewProvider(looptest.Text("never"))
	req := request(t, 5)
	req.Limits.MaxDuration = time.Second
	_, err := Run(context.Background(), provider, req, nil, Options{Clock: clock})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if len(provider.Prompts()) != 0 {
		t.Fatalf("expected no model calls, got %d", len(provider.Prompts()))
	}
}

func TestRunRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	provider := looptest.NewProvider(
		looptest.ToolCalls(looptest.Call("c1", "lookup", `{"key":"a"}`)),
		looptest.Text("ok"),
	)
	if _, err := Run(context.Background(), provider, request(t, 3), nil, Options{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	counts := map[string]int{}
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
	}
	if counts["agent.invoke"] != 1 || counts["agent.step"] != 2 || counts["tool.execute"] != 1 {
		t.Fatalf("unexpected spans %v", counts)
	}
}
