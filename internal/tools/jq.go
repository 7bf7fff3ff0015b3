package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// RunJQ evaluates a jq program against a decoded JSON value and collects every
// emitted value.
func RunJQ(ctx context.Context, program string, input any) ([]any, error) {
	query, err := gojq.Parse(program)
	if err != nil {
		return nil, fmt.Errorf("parse jq query: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile jq query: %w", err)
	}
	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		value, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := value.(error); isErr {
			if halt, isHalt := err.(*gojq.HaltError); isHalt && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq: %w", err)
		}
		results = append(results, value)
	}
	return results, nil
}

// FormatJSONValues renders values one per line, indented when pretty is set.
// Strings render raw when raw is set, matching jq -r.
func FormatJSONValues(values []any, pretty, raw bool) (string, error) {
	var builder strings.Builder
	for _, value := range values {
		if text, ok := value.(string); ok && raw {
			builder.WriteString(text)
			builder.WriteString("\n")
			continue
		}
		var (
			payload []byte
			err     error
		)
		if pretty {
			payload, err = json.MarshalIndent(value, "", "  ")
		} else {
			payload, err = json.Marshal(value)
		}
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		builder.Write(payload)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
