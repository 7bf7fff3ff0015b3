package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"toolbench/internal/variant"
)

// FileNames are the config file names searched for, in order.
var FileNames = []string{"toolbench.yml", "toolbench.yaml", "toolbench.toml"}

// FindConfigPath searches upward from a directory for a config file.
func FindConfigPath(startDir string) (string, error) {
	dir := strings.TrimSpace(startDir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}
	dir = abs

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			info, err := os.Stat(candidate)
			if err == nil {
				if info.IsDir() {
					return "", fmt.Errorf("config path %q is a directory", candidate)
				}
				return candidate, nil
			}
			if !os.IsNotExist(err) {
				return "", fmt.Errorf("stat config path %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or parent directories", strings.Join(FileNames, ", "), abs)
		}
		dir = parent
	}
}

// Override returns the budget override for a variant. Keys may use aliases.
func (cfg Config) Override(name variant.Name) VariantConfig {
	for key, override := range cfg.Variants {
		if def, err := variant.Lookup(key); err == nil && def.Name == name {
			return override
		}
	}
	return VariantConfig{}
}
