package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolbench/internal/variant"
)

var envKeys = []string{EnvLLMAPIKey, EnvLLMBaseURL, EnvLLMModel, EnvEmbeddingAPIKey, EnvEmbeddingBaseURL, EnvLogLevel}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAppliesDefaultsAndResolvesPaths(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbench.yml")
	writeFile(t, path, "version: 1\nrun:\n  questions_file: questions.yml\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Corpus.Root != filepath.Join(dir, DefaultCorpusRoot) {
		t.Fatalf("unexpected corpus root %q", cfg.Corpus.Root)
	}
	if cfg.Run.OutputDir != filepath.Join(dir, DefaultOutputDir) || cfg.Run.QuestionsFile != filepath.Join(dir, "questions.yml") {
		t.Fatalf("unexpected run paths %+v", cfg.Run)
	}
	if cfg.Model.Provider != DefaultProvider || cfg.Model.Model != DefaultModel || cfg.Scorer.Model != DefaultModel {
		t.Fatalf("unexpected model defaults %+v %+v", cfg.Model, cfg.Scorer)
	}
	if cfg.Scorer.Attempts != DefaultScorerAttempts || cfg.Run.Concurrency != DefaultConcurrency || cfg.Run.Isolation != IsolationProcess {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if strings.Join(cfg.Run.Variants, ",") != "bash,fs,sql,vector" {
		t.Fatalf("unexpected variants %v", cfg.Run.Variants)
	}
	if cfg.Shell.Subset != "all" || cfg.Shell.MaxCallDepth != 16 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected shell defaults %+v", cfg.Shell)
	}
}

func TestLoadKeepsAbsolutePaths(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	corpusRoot := filepath.Join(t.TempDir(), "corpus")
	path := filepath.Join(dir, "toolbench.toml")
	writeFile(t, path, "version = 1\n[corpus]\nroot = \""+filepath.ToSlash(corpusRoot)+"\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Clean(cfg.Corpus.Root) != filepath.Clean(corpusRoot) {
		t.Fatalf("unexpected corpus root %q", cfg.Corpus.Root)
	}
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLLMModel, "anthropic/claude-sonnet")
	t.Setenv(EnvLLMAPIKey, " key-123 ")
	t.Setenv(EnvLogLevel, "WARN")
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbench.yml")
	writeFile(t, path, "version: 1\nmodel:\n  model: gpt-4o\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Model != "anthropic/claude-sonnet" || cfg.Model.APIKey != "key-123" || cfg.LogLevel != "warn" {
		t.Fatalf("unexpected overlay %+v level=%s", cfg.Model, cfg.LogLevel)
	}
	if cfg.Scorer.Model != "anthropic/claude-sonnet" {
		t.Fatalf("scorer model should follow the agent model, got %q", cfg.Scorer.Model)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLLMModel, "from-process")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), EnvLLMAPIKey+"=dotenv-key\n"+EnvLLMModel+"=from-dotenv\n")
	path := filepath.Join(dir, "toolbench.yml")
	writeFile(t, path, "version: 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.APIKey != "dotenv-key" {
		t.Fatalf("expected api key from .env, got %q", cfg.Model.APIKey)
	}
	if cfg.Model.Model != "from-process" {
		t.Fatalf("process environment should win, got %q", cfg.Model.Model)
	}
}

func TestLoadReportsValidationIssues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbench.yml")
	writeFile(t, path, `version: 2
model:
  provider: acme
  temperature: 3
scorer:
  attempts: -1
  choice_scores: {F: 1, B: 1.5}
shell:
  subset: everything
variants:
  python:
    max_steps: 3
run:
  variants: [bash, shell, nope]
  concurrency: -1
  isolation: thread
`)
	_, err := Load(path)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := make(map[string]bool)
	for _, issue := range validationErr.Issues {
		fields[issue.Field] = true
	}
	for _, want := range []string{
		"version",
		"model.provider",
		"model.temperature",
		"scorer.attempts",
		"scorer.choice_scores.B",
		"scorer.choice_scores.F",
		"shell.subset",
		"variants.python",
		"run.variants[1]",
		"run.variants[2]",
		"run.concurrency",
		"run.isolation",
	} {
		if !fields[want] {
			t.Fatalf("expected issue for %s, got %v", want, validationErr.Issues)
		}
	}
	if strings.Count(err.Error(), "\n") != len(validationErr.Issues)-1 {
		t.Fatalf("expected one line per issue:\n%s", err.Error())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := LoadDefault(dir)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.Version != 1 || cfg.Corpus.Root != filepath.Join(dir, DefaultCorpusRoot) {
		t.Fatalf("unexpected default config %+v", cfg)
	}
}

func TestRequireAPIKeys(t *testing.T) {
	cfg := Config{}
	err := cfg.RequireAPIKeys(true)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || len(validationErr.Issues) != 2 {
		t.Fatalf("expected two missing keys, got %v", err)
	}
	cfg.Model.APIKey = "k"
	if err := cfg.RequireAPIKeys(false); err != nil {
		t.Fatalf("embedding key should be optional: %v", err)
	}
	if err := cfg.RequireAPIKeys(true); err == nil || !strings.Contains(err.Error(), EnvEmbeddingAPIKey) {
		t.Fatalf("expected missing embedding key, got %v", err)
	}
}

func TestOverrideResolvesAliases(t *testing.T) {
	cfg := Config{Variants: map[string]VariantConfig{
		"Shell":  {MaxSteps: 12},
		"vector": {MaxSeconds: 60},
	}}
	if got := cfg.Override(variant.Bash); got.MaxSteps != 12 {
		t.Fatalf("unexpected bash override %+v", got)
	}
	if got := cfg.Override(variant.Vector); got.MaxSeconds != 60 {
		t.Fatalf("unexpected vector override %+v", got)
	}
	if got := cfg.Override(variant.SQL); got != (VariantConfig{}) {
		t.Fatalf("expected zero override, got %+v", got)
	}
}
