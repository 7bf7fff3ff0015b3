package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read on top of the config file.
const (
	EnvLLMAPIKey        = "LLM_API_KEY"
	EnvLLMBaseURL       = "LLM_BASE_URL"
	EnvLLMModel         = "LLM_MODEL"
	EnvEmbeddingAPIKey  = "EMBEDDING_API_KEY"
	EnvEmbeddingBaseURL = "EMBEDDING_BASE_URL"
	EnvLogLevel         = "TOOLBENCH_LOG_LEVEL"
)

// Load reads, parses, normalizes, and validates a config file. Values layer
// as defaults, then the file, then the environment (including a .env file
// next to the config).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return Config{}, err
	}
	return finish(cfg, filepath.Dir(path))
}

// LoadDefault builds a config from defaults and the environment only, for
// commands run without a config file.
func LoadDefault(baseDir string) (Config, error) {
	return finish(Config{Version: 1}, baseDir)
}

func finish(cfg Config, baseDir string) (Config, error) {
	if err := LoadDotEnv(baseDir); err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg, os.Getenv)
	Normalize(&cfg, baseDir)
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env into the process environment when present.
// Variables already set win.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment values. Secrets only ever come from here.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(target *string, key string) {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			*target = value
		}
	}
	set(&cfg.Model.APIKey, EnvLLMAPIKey)
	set(&cfg.Model.BaseURL, EnvLLMBaseURL)
	set(&cfg.Model.Model, EnvLLMModel)
	set(&cfg.Embedding.APIKey, EnvEmbeddingAPIKey)
	set(&cfg.Embedding.BaseURL, EnvEmbeddingBaseURL)
	set(&cfg.LogLevel, EnvLogLevel)
}

// RequireAPIKeys reports missing secrets for the model and, when needed, the
// embedding endpoint.
func (cfg Config) RequireAPIKeys(needEmbedding bool) error {
	collector := &issueCollector{}
	if cfg.Model.APIKey == "" {
		collector.add("model.api_key", "is required (set "+EnvLLMAPIKey+")")
	}
	if needEmbedding && cfg.Embedding.APIKey == "" {
		collector.add("embedding.api_key", "is required (set "+EnvEmbeddingAPIKey+")")
	}
	return collector.result()
}
