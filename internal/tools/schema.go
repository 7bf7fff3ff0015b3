package tools

// Schema describes the JSON schema for tool parameters.
type Schema struct {
	Type                 string            `json:"type,omitempty"`
	Description          string            `json:"description,omitempty"`
	Properties           map[string]Schema `json:"properties,omitempty"`
	Items                *Schema           `json:"items,omitempty"`
	Required             []string          `json:"required,omitempty"`
	Enum                 []string          `json:"enum,omitempty"`
	Minimum              *int              `json:"minimum,omitempty"`
	Maximum              *int              `json:"maximum,omitempty"`
	AdditionalProperties *bool             `json:"additionalProperties,omitempty"`
}

// BoolPointer returns a pointer to the provided bool value.
func BoolPointer(value bool) *bool {
	return &value
}

// ObjectSchema builds a closed schema for a JSON object.
func ObjectSchema(properties map[string]Schema, required ...string) Schema {
	if properties == nil {
		properties = map[string]Schema{}
	}
	return Schema{
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: BoolPointer(false),
	}
}

// ArraySchema builds a schema for a JSON array.
func ArraySchema(items Schema, description string) Schema {
	return Schema{
		Type:        "array",
		Description: description,
		Items:       &items,
	}
}

// StringSchema builds a schema for a JSON string.
func StringSchema(description string) Schema {
	return Schema{Type: "string", Description: description}
}

// EnumSchema builds a string schema restricted to the given values.
func EnumSchema(description string, values ...string) Schema {
	return Schema{Type: "string", Description: description, Enum: values}
}

// IntegerSchema builds a schema for a JSON integer with optional bounds.
func IntegerSchema(description string, minimum, maximum *int) Schema {
	return Schema{Type: "integer", Description: description, Minimum: minimum, Maximum: maximum}
}

// BooleanSchema builds a schema for a JSON boolean.
func BooleanSchema(description string) Schema {
	return Schema{Type: "boolean", Description: description}
}

// IntPointer returns a pointer to the provided int value.
func IntPointer(value int) *int {
	return &value
}
