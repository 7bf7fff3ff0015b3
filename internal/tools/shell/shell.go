// Package shell runs model-written shell scripts in an interpreter whose
// commands are implemented in Go over a copy-on-write view of the corpus.
package shell

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"toolbench/internal/corpus"
	"toolbench/internal/tools"
)

// Subset selects which capabilities the shell variant exposes.
type Subset string

const (
	SubsetAll          Subset = "all"
	SubsetCoreOnly     Subset = "core-only"
	SubsetCorePlusRead Subset = "core-plus-read"
)

// ParseSubset validates a subset name. Empty selects SubsetAll.
func ParseSubset(value string) (Subset, error) {
	switch Subset(strings.TrimSpace(value)) {
	case "", SubsetAll:
		return SubsetAll, nil
	case SubsetCoreOnly:
		return SubsetCoreOnly, nil
	case SubsetCorePlusRead:
		return SubsetCorePlusRead, nil
	default:
		return "", fmt.Errorf("unknown shell tool subset %q (want all, core-only or core-plus-read)", value)
	}
}

// ScratchDir always exists in the in-memory layer.
const ScratchDir = "/tmp"

// Config bounds the sandbox.
type Config struct {
	Subset Subset
	// Commands restricts the whitelist. Empty enables every built-in command.
	Commands          []string
	Timeout           time.Duration
	MaxCommands       int
	MaxLoopIterations int
	MaxCallDepth      int
	MaxOutputChars    int
}

// DefaultConfig returns the default sandbox bounds.
func DefaultConfig() Config {
	return Config{
		Subset:            SubsetAll,
		Timeout:           10 * time.Second,
		MaxCommands:       1000,
		MaxLoopIterations: 10000,
		MaxCallDepth:      16,
		MaxOutputChars:    tools.DefaultMaxOutputChars,
	}
}

// Tools is one sandbox. Writes made through it stay in memory for its lifetime
// and are never visible to other sandboxes.
type Tools struct {
	cfg      Config
	fs       afero.Fs
	commands map[string]command
	order    []string
}

// New returns a sandbox over the corpus documents at root.
func New(root string, cfg Config) (*Tools, error) {
	base, err := corpus.OpenDocs(root)
	if err != nil {
		return nil, err
	}
	return NewWithFs(base, cfg)
}

// NewWithFs returns a sandbox layering an in-memory filesystem over base.
func NewWithFs(base afero.Fs, cfg Config) (*Tools, error) {
	defaults := DefaultConfig()
	if cfg.Subset == "" {
		cfg.Subset = defaults.Subset
	}
	if _, err := ParseSubset(string(cfg.Subset)); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxOutputChars <= 0 {
		cfg.MaxOutputChars = defaults.MaxOutputChars
	}
	commands, order, err := selectCommands(cfg.Commands)
	if err != nil {
		return nil, err
	}
	layer := afero.NewMemMapFs()
	if err := layer.MkdirAll(ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Tools{
		cfg:      cfg,
		fs:       afero.NewCopyOnWriteFs(base, layer),
		commands: commands,
		order:    order,
	}, nil
}

// selectCommands resolves a whitelist against the built-in commands.
func selectCommands(names []string) (map[string]command, []string, error) {
	available := builtinCommands()
	selected := make(map[string]command, len(available))
	if len(names) == 0 {
		for name, cmd := range available {
			selected[name] = cmd
		}
	} else {
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			cmd, ok := available[name]
			if !ok {
				return nil, nil, fmt.Errorf("unknown shell command %q", name)
			}
			selected[name] = cmd
		}
	}
	order := make([]string, 0, len(selected))
	for name := range selected {
		order = append(order, name)
	}
	sort.Strings(order)
	return selected, order, nil
}

// Commands returns the whitelisted command names.
func (t *Tools) Commands() []string {
	return append([]string(nil), t.order...)
}

// CommandDescriptions renders one line per whitelisted command for the
// system prompt.
func (t *Tools) CommandDescriptions() string {
	var builder strings.Builder
	for _, name := range t.order {
		fmt.Fprintf(&builder, "- %s: %s\n", t.commands[name].usage, t.commands[name].description)
	}
	return builder.String()
}

// Capabilities returns the capabilities for the configured subset.
func (t *Tools) Capabilities() []tools.Capability {
	capabilities := []tools.Capability{t.bashCapability()}
	switch t.cfg.Subset {
	case SubsetCorePlusRead:
		capabilities = append(capabilities, t.readFileCapability())
	case SubsetAll:
		capabilities = append(capabilities, t.readFileCapability(), t.writeFileCapability())
	}
	return capabilities
}

func (t *Tools) bashCapability() tools.Capability {
	return tools.Capability{
		Name: "bash",
		Description: "Run a bash script against the corpus mounted at /. Only these commands exist besides shell builtins:\n" +
			t.CommandDescriptions() + "Writes are kept in memory for this session only.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"script": tools.StringSchema("Bash script to run"),
		}, "script"),
		PreTruncated: true,
		Execute:      t.executeBash,
	}
}

func (t *Tools) readFileCapability() tools.Capability {
	return tools.Capability{
		Name:        "read_file",
		Description: "Read a file from the sandbox filesystem.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path": tools.StringSchema("Absolute or /-relative file path"),
		}, "path"),
		Execute: t.executeReadFile,
	}
}

func (t *Tools) writeFileCapability() tools.Capability {
	return tools.Capability{
		Name:        "write_file",
		Description: "Write a scratch file into the in-memory layer of the sandbox filesystem.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path":    tools.StringSchema("Absolute or /-relative file path"),
			"content": tools.StringSchema("File content"),
		}, "path", "content"),
		Execute: t.executeWriteFile,
	}
}
