package prompt

import (
	"context"
	"strings"
	"testing"
)

func TestRenderSystemPromptPerVariant(t *testing.T) {
	for _, variant := range []string{"bash", "fs", "sql", "vector"} {
		text, err := RenderSystemPrompt(context.Background(), SystemData{Variant: variant, Commands: "- ls: list\n"})
		if err != nil {
			t.Fatalf("%s: %v", variant, err)
		}
		if !strings.Contains(text, "GitHub activity") || !strings.Contains(text, "final") {
			t.Fatalf("%s: missing shared sections in %q", variant, text)
		}
	}
	text, _ := RenderSystemPrompt(context.Background(), SystemData{Variant: "bash", Commands: "- jq: query JSON\n"})
	if !strings.Contains(text, "- jq: query JSON") || strings.Contains(text, "%!") {
		t.Fatalf("expected command list in bash prompt, got %q", text)
	}
	if _, err := RenderSystemPrompt(context.Background(), SystemData{Variant: "nope"}); err == nil {
		t.Fatalf("expected unknown variant error")
	}
}

func TestRenderScorerPrompt(t *testing.T) {
	text, err := RenderScorerPrompt(context.Background(), ScorerData{Question: "How many?", Reference: "42", Answer: "forty-two"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"[Question]: How many?", "[Expert]: 42", "[Submission]: forty-two", "(E)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in %q", want, text)
		}
	}
}
