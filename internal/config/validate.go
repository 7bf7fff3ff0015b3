package config

import (
	"fmt"
	"sort"
	"strings"

	"toolbench/internal/tools/shell"
	"toolbench/internal/variant"
)

// Issue captures a validation problem with a config field.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates config validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error renders validation errors as a multi-line string.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "config validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// issueCollector accumulates validation issues.
type issueCollector struct {
	issues []Issue
}

// add records a new validation issue.
func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

// result returns a ValidationError when issues are present.
func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

var supportedProviders = map[string]bool{"openrouter": true, "openai": true}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks a normalized config.
func Validate(cfg *Config) error {
	collector := &issueCollector{}

	if cfg.Version != 1 {
		collector.add("version", fmt.Sprintf("unsupported version %d", cfg.Version))
	}
	if !logLevels[cfg.LogLevel] {
		collector.add("log_level", fmt.Sprintf("unknown level %q (want debug, info, warn or error)", cfg.LogLevel))
	}
	if strings.TrimSpace(cfg.Corpus.Root) == "" {
		collector.add("corpus.root", "is required")
	}
	if !supportedProviders[cfg.Model.Provider] {
		collector.add("model.provider", fmt.Sprintf("unsupported provider %q", cfg.Model.Provider))
	}
	if cfg.Model.MaxOutputTokens < 0 {
		collector.add("model.max_output_tokens", "must be >= 0")
	}
	if temp := cfg.Model.Temperature; temp != nil && (*temp < 0 || *temp > 2) {
		collector.add("model.temperature", "must be between 0 and 2")
	}
	if cfg.Embedding.Dimension < 0 {
		collector.add("embedding.dimension", "must be >= 0")
	}
	if cfg.Embedding.CacheSize < 0 {
		collector.add("embedding.cache_size", "must be >= 0")
	}
	validateScorer(cfg.Scorer, collector.add)
	if cfg.Tools.MaxOutputChars < 0 {
		collector.add("tools.max_output_chars", "must be >= 0")
	}
	validateShell(cfg.Shell, collector.add)
	validateVariants(cfg, collector.add)
	if cfg.Run.Concurrency < 1 {
		collector.add("run.concurrency", "must be >= 1")
	}
	if cfg.Run.Isolation != IsolationProcess && cfg.Run.Isolation != IsolationInline {
		collector.add("run.isolation", fmt.Sprintf("unknown mode %q (want %s or %s)", cfg.Run.Isolation, IsolationProcess, IsolationInline))
	}
	return collector.result()
}

// issueAdder adds a validation issue to a shared collector.
type issueAdder func(field, message string)

func validateScorer(scorer ScorerConfig, add issueAdder) {
	if scorer.Attempts < 1 {
		add("scorer.attempts", "must be >= 1")
	}
	choices := make([]string, 0, len(scorer.ChoiceScores))
	for choice := range scorer.ChoiceScores {
		choices = append(choices, choice)
	}
	sort.Strings(choices)
	for _, choice := range choices {
		field := "scorer.choice_scores." + choice
		if len(choice) != 1 || choice[0] < 'A' || choice[0] > 'E' {
			add(field, "unknown choice (want A-E)")
			continue
		}
		if score := scorer.ChoiceScores[choice]; score < 0 || score > 1 {
			add(field, "must be between 0 and 1")
		}
	}
}

func validateShell(cfg ShellConfig, add issueAdder) {
	if _, err := shell.ParseSubset(cfg.Subset); err != nil {
		add("shell.subset", err.Error())
	}
	if cfg.TimeoutSeconds < 0 {
		add("shell.timeout_seconds", "must be >= 0")
	}
	if cfg.MaxCommands < 0 || cfg.MaxLoopIterations < 0 || cfg.MaxCallDepth < 0 {
		add("shell", "limits must be >= 0")
	}
}

func validateVariants(cfg *Config, add issueAdder) {
	names := make([]string, 0, len(cfg.Variants))
	for name := range cfg.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := "variants." + name
		if _, err := variant.Lookup(name); err != nil {
			add(field, err.Error())
			continue
		}
		override := cfg.Variants[name]
		if override.MaxSteps < 0 {
			add(field+".max_steps", "must be >= 0")
		}
		if override.MaxSeconds < 0 {
			add(field+".max_seconds", "must be >= 0")
		}
	}
	seen := make(map[variant.Name]bool, len(cfg.Run.Variants))
	for i, name := range cfg.Run.Variants {
		field := fmt.Sprintf("run.variants[%d]", i)
		def, err := variant.Lookup(name)
		if err != nil {
			add(field, err.Error())
			continue
		}
		if seen[def.Name] {
			add(field, fmt.Sprintf("duplicate variant %q", def.Name))
		}
		seen[def.Name] = true
	}
}
