package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

func globSchema() tools.Schema {
	return tools.ObjectSchema(map[string]tools.Schema{
		"pattern": tools.StringSchema("Glob pattern with ** support, e.g. '**/issues/*.json'"),
		"path":    tools.StringSchema("Directory the pattern is relative to (default '.')"),
	}, "pattern")
}

func (t *Tools) findFilesCapability() tools.Capability {
	return tools.Capability{
		Name:        "find_files",
		Description: "Find files matching a glob pattern. Returns sorted corpus-relative paths.",
		InputSchema: globSchema(),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			pattern, dir, err := globArgs(args)
			if err != nil {
				return "", err
			}
			return t.FindFilesOutput(ctx, pattern, dir)
		},
	}
}

func (t *Tools) countFilesCapability() tools.Capability {
	return tools.Capability{
		Name:        "count_files",
		Description: "Count files matching a glob pattern without listing them.",
		InputSchema: globSchema(),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			pattern, dir, err := globArgs(args)
			if err != nil {
				return "", err
			}
			matches, err := t.FindFiles(ctx, pattern, dir)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d", len(matches)), nil
		},
	}
}

func globArgs(args tools.Args) (string, string, error) {
	pattern, err := args.RequiredString("pattern")
	if err != nil {
		return "", "", err
	}
	dir, _, err := args.OptionalString("path")
	if err != nil {
		return "", "", err
	}
	return pattern, dir, nil
}

// FindFiles returns sorted corpus-relative paths of files under dir matching
// pattern.
func (t *Tools) FindFiles(ctx context.Context, pattern, dir string) ([]string, error) {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "./")
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob %q", pattern)
	}
	if strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "..") {
		return nil, fmt.Errorf("glob %q must be relative and stay inside the corpus", pattern)
	}
	base, err := t.resolve(dir)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(afero.NewIOFS(t.fs), base)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", base, err)
	}
	if _, err := fs.Stat(sub, "."); err != nil {
		return nil, fmt.Errorf("open %s: %w", base, notFound(err))
	}
	matches, err := doublestar.Glob(sub, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, match := range matches {
		matches[i] = joinRel(base, match)
	}
	sort.Strings(matches)
	return matches, nil
}

// FindFilesOutput renders FindFiles results, capped at MaxListedPaths.
func (t *Tools) FindFilesOutput(ctx context.Context, pattern, dir string) (string, error) {
	matches, err := t.FindFiles(ctx, pattern, dir)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No files matched.", nil
	}
	shown := matches
	if limit := t.Limits.MaxListedPaths; limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d files matched\n", len(matches))
	for _, match := range shown {
		builder.WriteString(match)
		builder.WriteString("\n")
	}
	if len(shown) < len(matches) {
		fmt.Fprintf(&builder, "... %d more; use count_files or a narrower pattern\n", len(matches)-len(shown))
	}
	return builder.String(), nil
}
