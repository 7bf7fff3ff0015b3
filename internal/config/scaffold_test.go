package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScaffoldRoundTrips(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbench.yml")
	if err := Scaffold(path, "data/corpus"); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load scaffold: %v", err)
	}
	if cfg.Corpus.Root != filepath.Join(dir, "data", "corpus") {
		t.Fatalf("unexpected corpus root %q", cfg.Corpus.Root)
	}
	if cfg.Scorer.ChoiceScores["A"] != 0.4 || cfg.Scorer.ChoiceScores["D"] != 0 {
		t.Fatalf("unexpected choice scores %v", cfg.Scorer.ChoiceScores)
	}
	if cfg.Variants["vector"].MaxSteps != 20 {
		t.Fatalf("unexpected variants %v", cfg.Variants)
	}
}

func TestScaffoldRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbench.yml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := Scaffold(path, "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
}

func TestFindConfigPathSearchesUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(root, "toolbench.toml")
	if err := os.WriteFile(want, []byte("version = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := FindConfigPath(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFindConfigPathPrefersYAML(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"toolbench.toml", "toolbench.yml"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(""), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got, err := FindConfigPath(root)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if filepath.Base(got) != "toolbench.yml" {
		t.Fatalf("unexpected config %q", got)
	}
}
