package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"toolbench/internal/config"
)

// loadConfig loads an explicit config file, or the nearest toolbench config
// above the working directory. Without one, defaults and the environment
// apply. The returned path is empty in that case.
func loadConfig(path string) (config.Config, string, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return config.Config{}, "", err
	}
	if resolved == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, "", fmt.Errorf("get working directory: %w", err)
		}
		cfg, err := config.LoadDefault(wd)
		return cfg, "", err
	}
	cfg, err := config.Load(resolved)
	return cfg, resolved, err
}

// resolveConfigPath normalizes a config path or finds it from the working
// directory. A missing auto-detected config is not an error.
func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		found, err := config.FindConfigPath("")
		if err != nil {
			return "", nil
		}
		return found, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
