package shell

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"toolbench/internal/corpus/corpustest"
	"toolbench/internal/tools"
)

func newSandbox(t *testing.T, mutate func(*Config)) (*Tools, string) {
	t.Helper()
	root := t.TempDir()
	corpustest.WriteDocs(t, root, corpustest.SampleDocs())
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	sandbox, err := New(root, cfg)
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	return sandbox, root
}

func run(t *testing.T, sandbox *Tools, script string) Result {
	t.Helper()
	result, err := sandbox.Run(context.Background(), script)
	if err != nil {
		t.Fatalf("run %q: %v", script, err)
	}
	return result
}

func TestRunCommands(t *testing.T) {
	sandbox, _ := newSandbox(t, nil)
	cases := []struct {
		script string
		want   string
	}{
		{script: "ls acme", want: "anvil\nrocket\n"},
		{script: "cat acme/rocket/issues/1.json | jq -r .title", want: "Launch fails on Mondays\n"},
		{script: "grep -rl Monday acme | sort", want: "acme/rocket/issues/1.json\nacme/rocket/pulls/3.json\n"},
		{script: "find acme -name '*.json' -type f | wc -l", want: "6\n"},
		{script: "find /acme/rocket -maxdepth 1 -type d | sort", want: "/acme/rocket\n/acme/rocket/issues\n/acme/rocket/pulls\n"},
		{script: "printf '3\\n1\\n2\\n1\\n' | sort -n | uniq -c", want: "      2 1\n      1 2\n      1 3\n"},
		{script: "printf 'a\\nb\\nc\\n' | head -2", want: "a\nb\n"},
		{script: "printf 'a\\nb\\nc\\n' | tail -n 1", want: "c\n"},
		{script: "grep -c open acme/rocket/issues/1.json acme/rocket/issues/2.json", want: "acme/rocket/issues/1.json:1\nacme/rocket/issues/2.json:0\n"},
		{script: "echo acme/*/repo.json", want: "acme/anvil/repo.json acme/rocket/repo.json\n"},
		{script: "jq -s -c 'map(.stars)' acme/anvil/repo.json acme/rocket/repo.json", want: "[7,120]\n"},
	}
	for _, tc := range cases {
		result := run(t, sandbox, tc.script)
		if result.Stdout != tc.want || result.ExitCode != 0 {
			t.Fatalf("%s: got stdout %q stderr %q exit %d", tc.script, result.Stdout, result.Stderr, result.ExitCode)
		}
	}
}

func TestGrepExitCodes(t *testing.T) {
	sandbox, _ := newSandbox(t, nil)
	if result := run(t, sandbox, "grep --bogus x acme/rocket/repo.json"); result.ExitCode != 2 {
		t.Fatalf("expected usage error for unknown flag, got %d", result.ExitCode)
	}
	if result := run(t, sandbox, "grep -q rocket acme/rocket/repo.json && echo found"); result.Stdout != "found\n" {
		t.Fatalf("expected quiet match, got %+v", result)
	}
	if result := run(t, sandbox, "grep nothing-here acme/rocket/repo.json"); result.ExitCode != 1 {
		t.Fatalf("expected exit 1 without matches, got %d", result.ExitCode)
	}
	if result := run(t, sandbox, "grep rocket acme"); result.ExitCode != 2 || !strings.Contains(result.Stderr, "Is a directory") {
		t.Fatalf("expected directory error, got %+v", result)
	}
}

// TestWritesStayInMemory verifies writes never reach the corpus and never leak across sandboxes.
func TestWritesStayInMemory(t *testing.T) {
	sandbox, root := newSandbox(t, nil)
	result := run(t, sandbox, "echo scratch > /tmp/notes.txt; echo replaced > acme/rocket/repo.json; cat /tmp/notes.txt acme/rocket/repo.json")
	if result.Stdout != "scratch\nreplaced\n" {
		t.Fatalf("unexpected sandbox view %q (stderr %q)", result.Stdout, result.Stderr)
	}
	data, err := os.ReadFile(filepath.Join(root, "acme", "rocket", "repo.json"))
	if err != nil {
		t.Fatalf("read corpus: %v", err)
	}
	if strings.Contains(string(data), "replaced") {
		t.Fatalf("write leaked into the corpus")
	}
	if _, err := os.Stat(filepath.Join(root, "tmp")); !os.IsNotExist(err) {
		t.Fatalf("scratch dir leaked into the corpus: %v", err)
	}

	other, err := New(root, DefaultConfig())
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	if result := run(t, other, "cat /tmp/notes.txt"); result.ExitCode == 0 {
		t.Fatalf("expected isolated scratch space, got %q", result.Stdout)
	}
}

func TestUnknownCommandIsNotFound(t *testing.T) {
	sandbox, _ := newSandbox(t, func(cfg *Config) { cfg.Commands = []string{"cat", "jq"} })
	result := run(t, sandbox, "ls /")
	if result.ExitCode != 127 || !strings.Contains(result.Stderr, "ls: command not found") {
		t.Fatalf("expected command not found, got %+v", result)
	}
	result = run(t, sandbox, "curl https://example.com")
	if result.ExitCode != 127 {
		t.Fatalf("expected command not found, got %+v", result)
	}
	if got := sandbox.Commands(); !reflect.DeepEqual(got, []string{"cat", "jq"}) {
		t.Fatalf("unexpected whitelist %v", got)
	}
	if desc := sandbox.CommandDescriptions(); !strings.Contains(desc, "- jq [-rcsn] filter [file...]: query JSON") || strings.Contains(desc, "grep") {
		t.Fatalf("unexpected descriptions %q", desc)
	}
}

func TestUnknownWhitelistEntryRejected(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Commands = []string{"rm"}
	if _, err := New(root, cfg); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

// TestCeilingsFailOnlyTheCall verifies every ceiling turns into an error for that script.
func TestCeilingsFailOnlyTheCall(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		script string
		want   string
	}{
		{
			name:   "loop iterations",
			mutate: func(cfg *Config) { cfg.MaxLoopIterations = 5 },
			script: "while true; do x=1; done",
			want:   ErrLoopLimit.Error(),
		},
		{
			name:   "for loop iterations",
			mutate: func(cfg *Config) { cfg.MaxLoopIterations = 2 },
			script: "for f in a b c; do echo $f; done",
			want:   ErrLoopLimit.Error(),
		},
		{
			name:   "command count",
			mutate: func(cfg *Config) { cfg.MaxCommands = 3 },
			script: "ls; ls; ls; ls",
			want:   ErrCommandLimit.Error(),
		},
		{
			name:   "recursion",
			mutate: nil,
			script: "f() { f; }; f",
			want:   "recursive",
		},
		{
			name:   "call depth",
			mutate: func(cfg *Config) { cfg.MaxCallDepth = 2 },
			script: "a() { b; }; b() { c; }; c() { echo deep; }; a",
			want:   ErrCallDepth.Error(),
		},
		{
			name:   "timeout",
			mutate: func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond; cfg.MaxLoopIterations = 0; cfg.MaxCommands = 0 },
			script: "while true; do ls > /dev/null; done",
			want:   "command timed out after 50ms",
		},
	}
	for _, tc := range cases {
		sandbox, _ := newSandbox(t, tc.mutate)
		_, err := sandbox.Run(context.Background(), tc.script)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
		if result := run(t, sandbox, "echo still-alive"); result.Stdout != "still-alive\n" {
			t.Fatalf("%s: sandbox unusable after ceiling: %+v", tc.name, result)
		}
	}
}

func TestCallDepthWithinLimit(t *testing.T) {
	sandbox, _ := newSandbox(t, func(cfg *Config) { cfg.MaxCallDepth = 3 })
	result := run(t, sandbox, "a() { b; }; b() { c; }; c() { echo deep; }; a")
	if result.Stdout != "deep\n" {
		t.Fatalf("unexpected output %+v", result)
	}
	if _, err := sandbox.Run(context.Background(), "if then"); err == nil || !strings.Contains(err.Error(), "parse script") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestResultFormatTruncatesStreamsIndependently(t *testing.T) {
	result := Result{Stdout: strings.Repeat("a", 20), Stderr: "err", ExitCode: 3}
	want := "aaaaa" + tools.TruncationMarker(15) + "\n[stderr]\nerr\n[exit code: 3]"
	if got := result.Format(5); got != want {
		t.Fatalf("unexpected format %q", got)
	}
	if got := (Result{}).Format(5); got != "[exit code: 0]" {
		t.Fatalf("unexpected empty format %q", got)
	}
}

// TestBashOutputKeepsStreamsThroughSet verifies the set does not truncate the
// per-stream output a second time.
func TestBashOutputKeepsStreamsThroughSet(t *testing.T) {
	sandbox, _ := newSandbox(t, func(cfg *Config) { cfg.MaxOutputChars = 100 })
	set, err := tools.NewSet(tools.Options{MaxOutputChars: 100}, sandbox.Capabilities()...)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	result := set.ExecuteRaw(context.Background(), "bash", `{"script":"printf '%0500d' 0; echo boom >&2; exit 3"}`)
	if result.IsError() {
		t.Fatalf("unexpected error %q", result.Output)
	}
	want := strings.Repeat("0", 100) + tools.TruncationMarker(400) + "\n[stderr]\nboom\n[exit code: 3]"
	if result.Output != want {
		t.Fatalf("unexpected output %q", result.Output)
	}
	if !result.Truncated {
		t.Fatalf("expected truncated flag")
	}
}

func TestSubsets(t *testing.T) {
	cases := map[Subset][]string{
		SubsetAll:          {"bash", "read_file", "write_file"},
		SubsetCoreOnly:     {"bash"},
		SubsetCorePlusRead: {"bash", "read_file"},
	}
	for subset, want := range cases {
		sandbox, _ := newSandbox(t, func(cfg *Config) { cfg.Subset = subset })
		var got []string
		for _, capability := range sandbox.Capabilities() {
			got = append(got, capability.Name)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %v", subset, got)
		}
	}
	if _, err := ParseSubset("everything"); err == nil {
		t.Fatalf("expected unknown subset error")
	}
	if subset, err := ParseSubset(""); err != nil || subset != SubsetAll {
		t.Fatalf("expected default subset, got %q %v", subset, err)
	}
}

func TestCapabilitiesThroughSet(t *testing.T) {
	sandbox, _ := newSandbox(t, nil)
	set, err := tools.NewSet(tools.DefaultOptions(), sandbox.Capabilities()...)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	ctx := context.Background()

	result := set.ExecuteRaw(ctx, "bash", `{"script":"ls acme/rocket"}`)
	if result.IsError() || result.Output != "issues\npulls\nrepo.json\n[exit code: 0]" {
		t.Fatalf("unexpected bash result %+v", result)
	}
	result = set.ExecuteRaw(ctx, "write_file", `{"path":"/tmp/a/b.txt","content":"hello"}`)
	if result.IsError() {
		t.Fatalf("write failed: %s", result.Output)
	}
	result = set.ExecuteRaw(ctx, "read_file", `{"path":"tmp/a/b.txt"}`)
	if result.Output != "hello" {
		t.Fatalf("unexpected read %+v", result)
	}
	result = set.ExecuteRaw(ctx, "read_file", `{"path":"/acme"}`)
	if !result.IsError() || !strings.Contains(result.Output, "is a directory") {
		t.Fatalf("expected directory error, got %+v", result)
	}
	result = set.ExecuteRaw(ctx, "bash", `{"script":"f() { f; }; f"}`)
	if !result.IsError() || !strings.HasPrefix(result.Output, tools.ErrorPrefix) {
		t.Fatalf("expected ceiling error result, got %+v", result)
	}

	var payload map[string]any
	read := set.ExecuteRaw(ctx, "read_file", `{"path":"/acme/rocket/repo.json"}`)
	if err := json.Unmarshal([]byte(read.Output), &payload); err != nil || payload["full_name"] != "acme/rocket" {
		t.Fatalf("unexpected repo document %q: %v", read.Output, err)
	}
}
