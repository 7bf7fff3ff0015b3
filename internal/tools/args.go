package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Args holds decoded JSON arguments for a tool call.
type Args map[string]json.RawMessage

// ParseArgs decodes a raw JSON object into Args. Empty input yields empty Args.
func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// RequiredString returns a required string argument.
func (args Args) RequiredString(key string) (string, error) {
	value, ok, err := args.OptionalString(key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// OptionalString returns an optional string argument with a presence flag.
func (args Args) OptionalString(key string) (string, bool, error) {
	raw, ok := args.present(key)
	if !ok {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), true, nil
}

// OptionalStringSlice returns an optional string slice argument.
func (args Args) OptionalStringSlice(key string) ([]string, error) {
	raw, ok := args.present(key)
	if !ok {
		return nil, nil
	}
	var value []string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%s must be a list of strings", key)
	}
	return value, nil
}

// OptionalInt returns an optional integer argument.
func (args Args) OptionalInt(key string) (*int, error) {
	raw, ok := args.present(key)
	if !ok {
		return nil, nil
	}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &value, nil
}

// IntOr returns an optional integer argument or the fallback when absent.
func (args Args) IntOr(key string, fallback int) (int, error) {
	value, err := args.OptionalInt(key)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return fallback, nil
	}
	return *value, nil
}

// OptionalBool returns an optional boolean argument, false when absent.
func (args Args) OptionalBool(key string) (bool, error) {
	raw, ok := args.present(key)
	if !ok {
		return false, nil
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return value, nil
}

// present returns the raw value for key, treating explicit nulls as absent.
func (args Args) present(key string) (json.RawMessage, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}
