package config

import (
	"path/filepath"
	"strings"
)

// Isolation modes for evaluation runs.
const (
	IsolationProcess = "process"
	IsolationInline  = "inline"
)

// Default values applied by Normalize.
const (
	DefaultProvider       = "openrouter"
	DefaultModel          = "openai/gpt-4.1-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultCorpusRoot     = "corpus"
	DefaultOutputDir      = "results"
	DefaultConcurrency    = 4
	DefaultScorerAttempts = 3
)

// DefaultVariants lists the variants an evaluation runs when none are configured.
var DefaultVariants = []string{"bash", "fs", "sql", "vector"}

// Normalize fills defaults and resolves relative paths against baseDir. An
// empty baseDir leaves relative paths as written.
func Normalize(cfg *Config, baseDir string) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Corpus.Root == "" {
		cfg.Corpus.Root = DefaultCorpusRoot
	}
	cfg.Corpus.Root = resolveAgainst(baseDir, cfg.Corpus.Root)

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = DefaultProvider
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = DefaultModel
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 256
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Scorer.Model == "" {
		cfg.Scorer.Model = cfg.Model.Model
	}
	if cfg.Scorer.Attempts == 0 {
		cfg.Scorer.Attempts = DefaultScorerAttempts
	}
	if cfg.Tools.MaxOutputChars == 0 {
		cfg.Tools.MaxOutputChars = 30000
	}
	if cfg.Tools.TimeoutSeconds == 0 {
		cfg.Tools.TimeoutSeconds = 30
	}
	if cfg.Shell.Subset == "" {
		cfg.Shell.Subset = "all"
	}
	if cfg.Shell.TimeoutSeconds == 0 {
		cfg.Shell.TimeoutSeconds = 10
	}
	if cfg.Shell.MaxCommands == 0 {
		cfg.Shell.MaxCommands = 1000
	}
	if cfg.Shell.MaxLoopIterations == 0 {
		cfg.Shell.MaxLoopIterations = 10000
	}
	if cfg.Shell.MaxCallDepth == 0 {
		cfg.Shell.MaxCallDepth = 16
	}

	if cfg.Run.OutputDir == "" {
		cfg.Run.OutputDir = DefaultOutputDir
	}
	cfg.Run.OutputDir = resolveAgainst(baseDir, cfg.Run.OutputDir)
	if cfg.Run.QuestionsFile != "" {
		cfg.Run.QuestionsFile = resolveAgainst(baseDir, cfg.Run.QuestionsFile)
	}
	if len(cfg.Run.Variants) == 0 {
		cfg.Run.Variants = append([]string(nil), DefaultVariants...)
	}
	if cfg.Run.Concurrency == 0 {
		cfg.Run.Concurrency = DefaultConcurrency
	}
	if cfg.Run.Isolation == "" {
		cfg.Run.Isolation = IsolationProcess
	}
}

func resolveAgainst(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
