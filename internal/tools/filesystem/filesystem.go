// Package filesystem exposes typed read operations over the hierarchical
// corpus documents.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

// Limits bound scanning work per call.
type Limits struct {
	MaxSearchFiles int
	MaxFileBytes   int64
	MaxReadBytes   int
	MaxSearchHits  int
	MaxListedPaths int
	MaxListEntries int
}

// DefaultLimits returns the default scan bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxSearchFiles: 1000,
		MaxFileBytes:   1 << 20,
		MaxReadBytes:   200_000,
		MaxSearchHits:  200,
		MaxListedPaths: 500,
		MaxListEntries: 500,
	}
}

// Tools implements the filesystem capabilities over a corpus root.
type Tools struct {
	Root   string
	Limits Limits
	fs     afero.Fs
}

// New validates root and returns filesystem tools bound to it.
func New(root string) (*Tools, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory")
	}
	return &Tools{
		Root:   abs,
		Limits: DefaultLimits(),
		fs:     afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), abs)),
	}, nil
}

// resolve validates a path and returns its corpus-relative form.
func (t *Tools) resolve(path string) (string, error) {
	return resolvePath(t.Root, path)
}

// Capabilities returns the filesystem capability set in prompt order.
func (t *Tools) Capabilities() []tools.Capability {
	return []tools.Capability{
		t.listDirectoryCapability(),
		t.readFileCapability(),
		t.readJSONCapability(),
		t.searchFilesCapability(),
		t.findFilesCapability(),
		t.countFilesCapability(),
		t.fileExistsCapability(),
	}
}
