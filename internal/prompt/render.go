// Package prompt renders the system and scorer prompts.
package prompt

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// render renders a component into a string.
func render(ctx context.Context, component templ.Component) (string, error) {
	var builder strings.Builder
	if err := component.Render(ctx, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// RenderSystemPrompt builds the system prompt for one variant.
func RenderSystemPrompt(ctx context.Context, data SystemData) (string, error) {
	return render(ctx, SystemPrompt(data))
}

// RenderScorerPrompt builds the factuality classification prompt.
func RenderScorerPrompt(ctx context.Context, data ScorerData) (string, error) {
	return render(ctx, ScorerPrompt(data))
}
