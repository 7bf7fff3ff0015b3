package tools

import (
	"encoding/json"
	"testing"
)

// TestOptionalStringTreatsNullAsAbsent ensures optional string args ignore explicit nulls.
func TestOptionalStringTreatsNullAsAbsent(t *testing.T) {
	args := Args{
		"glob": json.RawMessage("null"),
	}
	value, ok, err := args.OptionalString("glob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected null to be treated as absent")
	}
	if value != "" {
		t.Fatalf("expected empty value, got %q", value)
	}
}

// TestParseArgsRejectsNonObject verifies tool arguments must decode into an object.
func TestParseArgsRejectsNonObject(t *testing.T) {
	if _, err := ParseArgs(`["a"]`); err == nil {
		t.Fatalf("expected error for array arguments")
	}
	args, err := ParseArgs("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("expected empty args, got %v", args)
	}
}

func TestIntOrFallback(t *testing.T) {
	args := Args{"limit": json.RawMessage("7")}
	limit, err := args.IntOr("limit", 10)
	if err != nil || limit != 7 {
		t.Fatalf("expected 7, got %d (%v)", limit, err)
	}
	offset, err := args.IntOr("offset", 3)
	if err != nil || offset != 3 {
		t.Fatalf("expected fallback 3, got %d (%v)", offset, err)
	}
	if _, err := (Args{"limit": json.RawMessage(`"x"`)}).IntOr("limit", 1); err == nil {
		t.Fatalf("expected type error")
	}
}
