package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileSchema compiles a capability input schema for argument validation.
func compileSchema(name string, schema Schema) (*jsonschema.Schema, error) {
	if schema.Type == "" {
		schema = ObjectSchema(nil)
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}
	url := "mem://tools/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("tool %s: add schema: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	return compiled, nil
}

// validateArgs checks tool arguments against the compiled input schema.
func validateArgs(schema *jsonschema.Schema, args Args) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = Args{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("invalid arguments: %s", describeValidationError(err))
	}
	return nil
}

// describeValidationError flattens a schema validation error into one line.
func describeValidationError(err error) string {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return err.Error()
	}
	var messages []string
	collectValidationMessages(validationErr, &messages)
	if len(messages) == 0 {
		return validationErr.Message
	}
	return strings.Join(messages, "; ")
}

func collectValidationMessages(err *jsonschema.ValidationError, out *[]string) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		*out = append(*out, location+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectValidationMessages(cause, out)
	}
}
