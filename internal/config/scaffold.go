package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scaffold writes a starter config file. It refuses to overwrite.
func Scaffold(path, corpusRoot string) error {
	if path == "" {
		return fmt.Errorf("config path is required")
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("config path %q is a directory", path)
		}
		return fmt.Errorf("config file already exists at %q", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if corpusRoot == "" {
		corpusRoot = DefaultCorpusRoot
	}
	rendered, err := renderScaffoldConfig(corpusRoot)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
