package config

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ScaffoldConfig renders the starter YAML config.
func ScaffoldConfig(corpusRoot string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `version: 1
log_level: info

corpus:
  root: %q

model:
  provider: %s
  model: %q
  # The API key is read from %s.

embedding:
  model: %q
  # The API key is read from %s.

scorer:
  attempts: %d
  choice_scores: {A: 0.4, B: 1, C: 1, D: 0, E: 1}

shell:
  subset: all
  timeout_seconds: 10

variants:
  vector:
    max_steps: 20

run:
  questions_file: questions.yml
  output_dir: %q
  variants: [%s]
  concurrency: %d
  isolation: %s
`, corpusRoot, DefaultProvider, DefaultModel, EnvLLMAPIKey, DefaultEmbeddingModel, EnvEmbeddingAPIKey,
			DefaultScorerAttempts, DefaultOutputDir, strings.Join(DefaultVariants, ", "), DefaultConcurrency, IsolationProcess)
		return err
	})
}

// renderScaffoldConfig builds the scaffold YAML via the template component.
func renderScaffoldConfig(corpusRoot string) (string, error) {
	var builder strings.Builder
	if err := ScaffoldConfig(corpusRoot).Render(context.Background(), &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}
