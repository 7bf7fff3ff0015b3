package variant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"toolbench/internal/corpus/corpustest"
	"toolbench/internal/tools/shell"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func TestLookupResolvesAliases(t *testing.T) {
	cases := map[string]Name{
		"bash":       Bash,
		"Shell":      Bash,
		" fs ":       Filesystem,
		"filesystem": Filesystem,
		"SQL":        SQL,
		"duckdb":     SQL,
		"vector":     Vector,
		"semantic":   Vector,
	}
	for input, want := range cases {
		def, err := Lookup(input)
		if err != nil {
			t.Fatalf("lookup %q: %v", input, err)
		}
		if def.Name != want {
			t.Fatalf("lookup %q: got %s, want %s", input, def.Name, want)
		}
	}
	_, err := Lookup("python")
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
	if !strings.Contains(err.Error(), "bash, fs, sql, vector") {
		t.Fatalf("expected available names in %q", err.Error())
	}
}

func TestStepBudgets(t *testing.T) {
	want := map[Name]int{Bash: 50, Filesystem: 50, SQL: 50, Vector: 20}
	for _, def := range All() {
		if def.MaxSteps != want[def.Name] {
			t.Fatalf("%s: budget %d, want %d", def.Name, def.MaxSteps, want[def.Name])
		}
	}
	if got := Names(); !reflect.DeepEqual(got, []string{"bash", "fs", "sql", "vector"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func newResources(t *testing.T) *Resources {
	t.Helper()
	paths := corpustest.WriteCorpus(t)
	db := corpustest.Open(t)
	corpustest.Seed(t, db)
	res := &Resources{
		Paths:    paths,
		Shell:    shell.DefaultConfig(),
		Embedder: staticEmbedder{},
	}
	res.SetDatabase(db)
	return res
}

func TestBuildEveryVariant(t *testing.T) {
	res := newResources(t)
	wantTools := map[Name][]string{
		Bash:       {"bash", "read_file", "write_file"},
		Filesystem: {"list_directory", "read_file", "read_json", "search_files", "find_files", "count_files", "file_exists"},
		SQL:        {"query", "list_tables", "describe_table", "sample_rows", "count_rows"},
		Vector:     {"semantic_search", "get_item"},
	}
	for _, def := range All() {
		agent, err := Build(context.Background(), def, res, Budget{})
		if err != nil {
			t.Fatalf("build %s: %v", def.Name, err)
		}
		if got := agent.Tools.Names(); !reflect.DeepEqual(got, wantTools[def.Name]) {
			t.Fatalf("%s: tools %v", def.Name, got)
		}
		if agent.Limits.MaxSteps != def.MaxSteps {
			t.Fatalf("%s: limits %+v", def.Name, agent.Limits)
		}
		if !strings.Contains(agent.SystemPrompt, "GitHub activity") {
			t.Fatalf("%s: unexpected prompt", def.Name)
		}
		req := agent.Request("How many open issues?")
		if req.Variant != string(def.Name) || req.Tools != agent.Tools || req.Limits != agent.Limits {
			t.Fatalf("%s: unexpected request %+v", def.Name, req)
		}
	}
}

func TestBuildBashPromptListsCommands(t *testing.T) {
	res := newResources(t)
	res.Shell.Commands = []string{"jq", "ls"}
	agent, err := Build(context.Background(), mustLookup(t, "bash"), res, Budget{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(agent.SystemPrompt, "- jq [-rcsn] filter [file...]") || strings.Contains(agent.SystemPrompt, "- grep") {
		t.Fatalf("unexpected command list in prompt:\n%s", agent.SystemPrompt)
	}
}

func TestBuildAppliesBudget(t *testing.T) {
	res := newResources(t)
	agent, err := Build(context.Background(), mustLookup(t, "vector"), res, Budget{MaxSteps: 7, MaxDuration: time.Minute})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if agent.Limits.MaxSteps != 7 || agent.Limits.MaxDuration != time.Minute {
		t.Fatalf("unexpected limits %+v", agent.Limits)
	}
}

// TestBashSandboxesAreIndependent verifies each build gets its own write layer.
func TestBashSandboxesAreIndependent(t *testing.T) {
	res := newResources(t)
	def := mustLookup(t, "bash")
	first, err := Build(context.Background(), def, res, Budget{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := Build(context.Background(), def, res, Budget{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()
	first.Tools.ExecuteRaw(ctx, "write_file", `{"path":"/tmp/x","content":"mine"}`)
	if result := second.Tools.ExecuteRaw(ctx, "read_file", `{"path":"/tmp/x"}`); !result.IsError() {
		t.Fatalf("expected isolated sandbox, got %q", result.Output)
	}
}

func TestBuildVectorRequiresEmbedder(t *testing.T) {
	res := newResources(t)
	res.Embedder = nil
	if _, err := Build(context.Background(), mustLookup(t, "vector"), res, Budget{}); err == nil {
		t.Fatalf("expected embedder error")
	}
}

func mustLookup(t *testing.T, name string) Definition {
	t.Helper()
	def, err := Lookup(name)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return def
}
