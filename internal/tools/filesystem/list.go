package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

func (t *Tools) listDirectoryCapability() tools.Capability {
	return tools.Capability{
		Name:        "list_directory",
		Description: "List the entries of a corpus directory. Directories end with '/'.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path": tools.StringSchema("Directory path relative to the corpus root (default '.')"),
		}),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			dir, _, err := args.OptionalString("path")
			if err != nil {
				return "", err
			}
			return t.ListDirectory(ctx, dir)
		},
	}
}

func (t *Tools) fileExistsCapability() tools.Capability {
	return tools.Capability{
		Name:        "file_exists",
		Description: "Check whether a corpus path exists and whether it is a file or a directory.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path": tools.StringSchema("Path relative to the corpus root"),
		}, "path"),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			target, err := args.RequiredString("path")
			if err != nil {
				return "", err
			}
			return t.FileExists(ctx, target)
		},
	}
}

// ListDirectory lists one directory level in name order.
func (t *Tools) ListDirectory(ctx context.Context, dir string) (string, error) {
	_ = ctx
	rel, err := t.resolve(dir)
	if err != nil {
		return "", err
	}
	entries, err := afero.ReadDir(t.fs, rel)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", rel, notFound(err))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	total := len(entries)
	limit := t.Limits.MaxListEntries
	if limit > 0 && total > limit {
		entries = entries[:limit]
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%s (%d entries)\n", rel, total)
	for _, entry := range entries {
		builder.WriteString(entry.Name())
		builder.WriteString(entrySuffix(entry))
		builder.WriteString("\n")
	}
	if total > len(entries) {
		fmt.Fprintf(&builder, "More than %d entries found; use find_files to narrow the listing.\n", limit)
	}
	return builder.String(), nil
}

// FileExists reports the type of a path, or that it does not exist.
func (t *Tools) FileExists(ctx context.Context, target string) (string, error) {
	_ = ctx
	rel, err := t.resolve(target)
	if err != nil {
		return "", err
	}
	info, err := t.fs.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("%s does not exist", rel), nil
		}
		return "", fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Sprintf("%s exists (directory)", rel), nil
	}
	return fmt.Sprintf("%s exists (file, %d bytes)", rel, info.Size()), nil
}

// entrySuffix marks directories and non-regular files.
func entrySuffix(info os.FileInfo) string {
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "@"
	case info.IsDir():
		return "/"
	case mode.IsRegular():
		return ""
	default:
		return "?"
	}
}

// notFound replaces OS-level paths in not-exist errors so the real corpus
// location is not echoed to the model.
func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fs.ErrNotExist
	}
	return err
}

// joinRel joins corpus-relative slash paths.
func joinRel(parent, name string) string {
	if parent == "" || parent == "." {
		return name
	}
	return path.Join(parent, name)
}
