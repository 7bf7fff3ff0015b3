package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"toolbench/internal/tools"
)

func (t *Tools) readFileCapability() tools.Capability {
	return tools.Capability{
		Name:        "read_file",
		Description: "Read a corpus file with line numbers. Optionally restrict to a 1-based inclusive line range.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path":       tools.StringSchema("File path relative to the corpus root"),
			"start_line": tools.IntegerSchema("First line to return (1-based)", tools.IntPointer(1), nil),
			"end_line":   tools.IntegerSchema("Last line to return (inclusive)", tools.IntPointer(1), nil),
		}, "path"),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			path, err := args.RequiredString("path")
			if err != nil {
				return "", err
			}
			start, err := args.OptionalInt("start_line")
			if err != nil {
				return "", err
			}
			end, err := args.OptionalInt("end_line")
			if err != nil {
				return "", err
			}
			return t.ReadFile(ctx, path, start, end)
		},
	}
}

func (t *Tools) readJSONCapability() tools.Capability {
	return tools.Capability{
		Name:        "read_json",
		Description: "Parse a JSON corpus file and return it, optionally filtered through a jq expression such as '.title' or '.labels | length'.",
		InputSchema: tools.ObjectSchema(map[string]tools.Schema{
			"path":  tools.StringSchema("JSON file path relative to the corpus root"),
			"query": tools.StringSchema("Optional jq expression applied to the document"),
		}, "path"),
		Execute: func(ctx context.Context, args tools.Args) (string, error) {
			path, err := args.RequiredString("path")
			if err != nil {
				return "", err
			}
			query, _, err := args.OptionalString("query")
			if err != nil {
				return "", err
			}
			return t.ReadJSON(ctx, path, query)
		},
	}
}

// ReadFile returns a file slice with line numbers.
func (t *Tools) ReadFile(ctx context.Context, path string, start, end *int) (string, error) {
	startLine, endLine, err := normalizeLineRange(start, end)
	if err != nil {
		return "", err
	}
	rel, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	file, err := t.fs.Open(rel)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", rel, notFound(err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}

	var builder strings.Builder
	builder.WriteString(rel)
	builder.WriteString("\n")

	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return "", fmt.Errorf("read %s: %w", rel, readErr)
		}
		if line == "" && readErr == io.EOF {
			break
		}
		lineNumber++
		if endLine != 0 && lineNumber > endLine {
			break
		}
		if lineNumber >= startLine {
			fmt.Fprintf(&builder, "%d:%s\n", lineNumber, strings.TrimRight(line, "\r\n"))
			if t.Limits.MaxReadBytes > 0 && builder.Len() >= t.Limits.MaxReadBytes {
				fmt.Fprintf(&builder, "[stopped after %d bytes; request a narrower line range]\n", t.Limits.MaxReadBytes)
				break
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	if lineNumber < startLine {
		return "", fmt.Errorf("start_line %d exceeds line count %d", startLine, lineNumber)
	}
	return builder.String(), nil
}

// ReadJSON parses a JSON document and renders it, or the results of query.
func (t *Tools) ReadJSON(ctx context.Context, path, query string) (string, error) {
	rel, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := t.fs.Stat(rel)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", rel, notFound(err))
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", rel)
	}
	if t.Limits.MaxFileBytes > 0 && info.Size() > t.Limits.MaxFileBytes {
		return "", fmt.Errorf("%s is %d bytes, larger than the %d byte limit", rel, info.Size(), t.Limits.MaxFileBytes)
	}
	raw, err := afero.ReadFile(t.fs, rel)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return "", fmt.Errorf("parse %s: %w", rel, err)
	}
	values := []any{document}
	if strings.TrimSpace(query) != "" {
		values, err = tools.RunJQ(ctx, query, document)
		if err != nil {
			return "", err
		}
	}
	return tools.FormatJSONValues(values, true, false)
}

// normalizeLineRange validates and normalizes line range inputs.
func normalizeLineRange(start, end *int) (int, int, error) {
	startLine := 1
	if start != nil {
		if *start < 1 {
			return 0, 0, fmt.Errorf("start_line must be >= 1")
		}
		startLine = *start
	}
	endLine := 0
	if end != nil {
		if *end < 1 {
			return 0, 0, fmt.Errorf("end_line must be >= 1")
		}
		endLine = *end
	}
	if endLine != 0 && endLine < startLine {
		return 0, 0, fmt.Errorf("end_line must be >= start_line")
	}
	return startLine, endLine, nil
}
