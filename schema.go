package claude

import (
	"fmt"
	"slices"
	"strings"
)

// Schema type names (JSON Schema subset).
const (
	SchemaObject  = "object"
	SchemaArray   = "array"
	SchemaString  = "string"
	SchemaNumber  = "number"
	SchemaInteger = "integer"
	SchemaBoolean = "boolean"
	SchemaNull    = "null"
)

// ToolSchema is the subset of JSON Schema used to declare tool inputs.
// It is sent to the API as input_schema and used to validate inputs locally
// before a handler runs.
type ToolSchema struct {
	Type                 string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Description          string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Properties           map[string]*ToolSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required             []string               `json:"required,omitempty" yaml:"required,omitempty"`
	Items                *ToolSchema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum                 []Value                `json:"enum,omitempty" yaml:"-"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty" yaml:"additional_properties,omitempty"`
}

// SchemaError reports where an input failed validation.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "input: " + e.Message
	}
	return e.Path + ": " + e.Message
}

// ObjectSchema is shorthand for an object schema with the given properties.
func ObjectSchema(props map[string]*ToolSchema, required ...string) *ToolSchema {
	return &ToolSchema{Type: SchemaObject, Properties: props, Required: required}
}

// CheckDefinition verifies the schema itself is usable as a tool input schema.
func (s *ToolSchema) CheckDefinition() error {
	if s == nil {
		return fmt.Errorf("schema is required")
	}
	if s.Type != SchemaObject {
		return fmt.Errorf("input schema must have type 'object', got %q", s.Type)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required property %q is not declared", name)
		}
	}
	return nil
}

// Validate checks v against the schema. A nil schema accepts anything.
func (s *ToolSchema) Validate(v Value) error {
	return s.validate("", v)
}

func (s *ToolSchema) validate(path string, v Value) error {
	if s == nil {
		return nil
	}

	if len(s.Enum) > 0 && !slices.ContainsFunc(s.Enum, v.Equal) {
		allowed := make([]string, len(s.Enum))
		for i, e := range s.Enum {
			allowed[i] = e.String()
		}
		return &SchemaError{Path: path, Message: fmt.Sprintf("value %s not in enum [%s]", v, strings.Join(allowed, ", "))}
	}

	switch s.Type {
	case "":
		return nil
	case SchemaString, SchemaBoolean, SchemaNull, SchemaNumber:
		if !kindMatches(s.Type, v.Kind()) {
			return typeMismatch(path, s.Type, v)
		}
	case SchemaInteger:
		if _, ok := v.AsInt(); !ok {
			return typeMismatch(path, s.Type, v)
		}
	case SchemaArray:
		if v.Kind() != KindArray {
			return typeMismatch(path, s.Type, v)
		}
		for i, e := range v.Elements() {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), e); err != nil {
				return err
			}
		}
	case SchemaObject:
		if v.Kind() != KindObject {
			return typeMismatch(path, s.Type, v)
		}
		for _, name := range s.Required {
			if _, ok := v.Get(name); !ok {
				return &SchemaError{Path: path, Message: fmt.Sprintf("missing required property %q", name)}
			}
		}
		for _, key := range v.Keys() {
			prop, declared := s.Properties[key]
			if !declared {
				if s.AdditionalProperties != nil && !*s.AdditionalProperties {
					return &SchemaError{Path: joinPath(path, key), Message: "unexpected property"}
				}
				continue
			}
			member, _ := v.Get(key)
			if err := prop.validate(joinPath(path, key), member); err != nil {
				return err
			}
		}
	default:
		return &SchemaError{Path: path, Message: fmt.Sprintf("unsupported schema type %q", s.Type)}
	}
	return nil
}

func kindMatches(schemaType string, k Kind) bool {
	switch schemaType {
	case SchemaString:
		return k == KindString
	case SchemaBoolean:
		return k == KindBool
	case SchemaNull:
		return k == KindNull
	case SchemaNumber:
		return k == KindNumber
	}
	return false
}

func typeMismatch(path, want string, v Value) error {
	return &SchemaError{Path: path, Message: fmt.Sprintf("expected %s, got %s", want, v.Kind())}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
