package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

// errStopWalk ends a walk once a scan bound is reached.
var errStopWalk = errors.New("stop walk")

func (t *Tools) searchFilesCapability() tools.Capability {
	return tools.Capability{
		Name:        "search_files",
		Description: "Search file contents with a regular expression. Returns path:line:text for each match.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"pattern":          tools.StringSchema("Regular expression (RE2 syntax)"),
			"path":             tools.StringSchema("Directory to search, relative to the corpus root (default '.')"),
			"glob":             tools.StringSchema("Only search files whose path under 'path' matches this glob, e.g. '**/issues/*.json'"),
			"case_insensitive": tools.BooleanSchema("Match case-insensitively"),
		}, "pattern"),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			pattern, err := args.RequiredString("pattern")
			if err != nil {
				return "", err
			}
			dir, _, err := args.OptionalString("path")
			if err != nil {
				return "", err
			}
			glob, _, err := args.OptionalString("glob")
			if err != nil {
				return "", err
			}
			insensitive, err := args.OptionalBool("case_insensitive")
			if err != nil {
				return "", err
			}
			return t.SearchFiles(ctx, SearchRequest{Pattern: pattern, Path: dir, Glob: glob, CaseInsensitive: insensitive})
		},
	}
}

// SearchRequest configures a content search.
type SearchRequest struct {
	Pattern         string
	Path            string
	Glob            string
	CaseInsensitive bool
}

// SearchFiles scans at most MaxSearchFiles files, skipping files larger than
// MaxFileBytes, and reports matching lines.
func (t *Tools) SearchFiles(ctx context.Context, req SearchRequest) (string, error) {
	if strings.TrimSpace(req.Pattern) == "" {
		return "", fmt.Errorf("pattern is required")
	}
	expr := req.Pattern
	if req.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	if req.Glob != "" && !doublestar.ValidatePattern(req.Glob) {
		return "", fmt.Errorf("invalid glob %q", req.Glob)
	}
	base, err := t.resolve(req.Path)
	if err != nil {
		return "", err
	}

	var (
		builder strings.Builder
		scanned int
		skipped int
		hits    int
		capped  bool
	)
	walkErr := afero.Walk(t.fs, base, func(current string, info os.FileInfo, err error) error {
		if err != nil {
			return notFound(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel := relativeTo(base, current)
		if req.Glob != "" {
			matched, _ := doublestar.Match(req.Glob, rel)
			if !matched {
				return nil
			}
		}
		if t.Limits.MaxFileBytes > 0 && info.Size() > t.Limits.MaxFileBytes {
			skipped++
			return nil
		}
		if t.Limits.MaxSearchFiles > 0 && scanned >= t.Limits.MaxSearchFiles {
			capped = true
			return errStopWalk
		}
		scanned++
		found, err := t.searchFile(current, re, &builder, t.Limits.MaxSearchHits-hits)
		hits += found
		if err != nil {
			return err
		}
		if t.Limits.MaxSearchHits > 0 && hits >= t.Limits.MaxSearchHits {
			capped = true
			return errStopWalk
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return "", fmt.Errorf("search %s: %w", base, walkErr)
		}
		return "", walkErr
	}

	if hits == 0 {
		builder.WriteString("No matches found.\n")
	}
	fmt.Fprintf(&builder, "[%d matches in %d files scanned", hits, scanned)
	if skipped > 0 {
		fmt.Fprintf(&builder, ", %d large files skipped", skipped)
	}
	if capped {
		builder.WriteString(", search stopped early; narrow the path or glob")
	}
	builder.WriteString("]\n")
	return builder.String(), nil
}

// searchFile appends up to budget matching lines of one file.
func (t *Tools) searchFile(name string, re *regexp.Regexp, out *strings.Builder, budget int) (int, error) {
	file, err := t.fs.Open(name)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, notFound(err))
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), int(t.maxLineBytes()))
	found := 0
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		fmt.Fprintf(out, "%s:%d:%s\n", name, lineNumber, strings.TrimSpace(line))
		found++
		if budget > 0 && found >= budget {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return found, fmt.Errorf("scan %s: %w", name, err)
	}
	return found, nil
}

func (t *Tools) maxLineBytes() int64 {
	if t.Limits.MaxFileBytes > 0 {
		return t.Limits.MaxFileBytes + 1
	}
	return 1 << 20
}

// relativeTo strips base from a walked path.
func relativeTo(base, current string) string {
	if base == "." || base == "" {
		return current
	}
	return strings.TrimPrefix(strings.TrimPrefix(current, base), "/")
}
