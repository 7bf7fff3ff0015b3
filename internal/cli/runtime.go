package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"toolbench/internal/agent"
	"toolbench/internal/agent/loop"
	"toolbench/internal/config"
	"toolbench/internal/corpus"
	"toolbench/internal/score"
	"toolbench/internal/tools"
	"toolbench/internal/tools/shell"
	"toolbench/internal/tools/vector"
	"toolbench/internal/variant"
)

// newProvider builds the model provider for an endpoint. Tests replace it.
var newProvider = func(model config.ModelConfig) (agent.Provider, error) {
	provider, err := agent.NewOpenRouterProvider(model.Model, model.APIKey, model.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return agent.WithSampling(provider, model.Temperature, model.MaxOutputTokens), nil
}

// newEmbedder builds the query embedder, or nil when no key is configured.
// Tests replace it.
var newEmbedder = func(cfg config.EmbeddingConfig) (vector.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	inner := vector.NewOpenAIEmbedder(vector.OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	cached, err := vector.NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// newLogger returns a text logger on w. An explicit level wins over the config.
func newLogger(w io.Writer, configured, override string) *slog.Logger {
	level := configured
	if strings.TrimSpace(override) != "" {
		level = override
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validLogLevel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// runtime holds what an in-process invocation needs.
type runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	provider  agent.Provider
	resources *variant.Resources
}

// newRuntime builds the model provider and corpus resources from cfg.
func newRuntime(cfg config.Config, logger *slog.Logger) (*runtime, error) {
	provider, err := newProvider(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return &runtime{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		resources: resourcesFor(cfg, embedder),
	}, nil
}

// resourcesFor maps the config onto variant resources.
func resourcesFor(cfg config.Config, embedder vector.Embedder) *variant.Resources {
	return &variant.Resources{
		Paths: corpus.ResolvePaths(corpus.Paths{
			Root:        cfg.Corpus.Root,
			DocsDir:     cfg.Corpus.DocsDir,
			Database:    cfg.Corpus.Database,
			Vectors:     cfg.Corpus.Vectors,
			VectorIndex: cfg.Corpus.VectorIndex,
		}),
		Shell: shell.Config{
			Subset:            shell.Subset(cfg.Shell.Subset),
			Commands:          cfg.Shell.Commands,
			Timeout:           time.Duration(cfg.Shell.TimeoutSeconds) * time.Second,
			MaxCommands:       cfg.Shell.MaxCommands,
			MaxLoopIterations: cfg.Shell.MaxLoopIterations,
			MaxCallDepth:      cfg.Shell.MaxCallDepth,
			MaxOutputChars:    cfg.Tools.MaxOutputChars,
		},
		Tools: tools.Options{
			MaxOutputChars: cfg.Tools.MaxOutputChars,
			Timeout:        time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		},
		Embedder:   embedder,
		VectorDims: cfg.Embedding.Dimension,
	}
}

// budgetFor applies the config override of a variant.
func budgetFor(cfg config.Config, name variant.Name) variant.Budget {
	override := cfg.Override(name)
	return variant.Budget{
		MaxSteps:    override.MaxSteps,
		MaxDuration: time.Duration(override.MaxSeconds) * time.Second,
	}
}

// Invoke runs one question against a variant in this process.
func (r *runtime) Invoke(ctx context.Context, name, question string, sink loop.Sink) (loop.AgentResult, error) {
	def, err := variant.Lookup(name)
	if err != nil {
		return loop.AgentResult{}, err
	}
	built, err := variant.Build(ctx, def, r.resources, budgetFor(r.cfg, def.Name))
	if err != nil {
		return loop.AgentResult{}, err
	}
	return loop.Run(ctx, r.provider, built.Request(question), sink, loop.Options{Logger: r.logger})
}

// newScorer builds the factuality scorer on the scorer model.
func (r *runtime) newScorer() (*score.Scorer, error) {
	model := r.cfg.Model
	model.Model = r.cfg.Scorer.Model
	provider := r.provider
	if model.Model != r.cfg.Model.Model {
		scorerProvider, err := newProvider(model)
		if err != nil {
			return nil, fmt.Errorf("scorer provider: %w", err)
		}
		provider = scorerProvider
	}
	return score.New(provider, score.Options{
		Attempts:     r.cfg.Scorer.Attempts,
		ChoiceScores: r.cfg.Scorer.ChoiceScores,
		Logger:       r.logger,
	})
}

// Close releases the corpus database.
func (r *runtime) Close() error {
	return r.resources.Close()
}

// canonicalVariants resolves names and aliases, keeping order.
func canonicalVariants(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[variant.Name]bool, len(names))
	for _, name := range names {
		def, err := variant.Lookup(name)
		if err != nil {
			return nil, err
		}
		if seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		out = append(out, string(def.Name))
	}
	return out, nil
}
