package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// FieldType is the declared JSON type of a parameter field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field declares one parameter of a handler: its name, JSON type, whether the
// runtime must supply it, and an optional default applied when it is absent.
// Coerce opts into parsing a string payload value into a number, integer, or
// boolean; without it, a string where a number is declared is a validation
// error. There is no implicit truthy/falsy coercion across types.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Default     any
	Coerce      bool
	Enum        []string
}

// Schema is a handler's parameter contract. It is built once at startup,
// compiled into a JSON Schema validator, and treated as read-only afterwards.
// Declarative schemas (NewSchema) additionally apply defaults and declared
// coercions before validation; schemas built from raw maps (SchemaFromMap) or
// reflected Go structs validate only.
type Schema struct {
	fields   []Field
	strict   bool
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewSchema builds a Schema from an ordered field list. Unknown payload fields
// are ignored (forward-compatible with assistant-runtime schema drift); use
// NewStrictSchema to reject them. Field names must be unique and non-empty.
func NewSchema(fields ...Field) (*Schema, error) {
	return newFieldSchema(false, fields)
}

// NewStrictSchema is NewSchema with unknown payload fields rejected as
// validation errors.
func NewStrictSchema(fields ...Field) (*Schema, error) {
	return newFieldSchema(true, fields)
}

func newFieldSchema(strict bool, fields []Field) (*Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema field name must not be empty")
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
		default:
			return nil, fmt.Errorf("schema field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Required && f.Default != nil {
			return nil, fmt.Errorf("schema field %q is required and cannot carry a default", f.Name)
		}
	}
	doc := buildSchemaDoc(strict, fields)
	compiled, err := compileSchemaDoc(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{
		fields:   append([]Field(nil), fields...),
		strict:   strict,
		doc:      doc,
		compiled: compiled,
	}, nil
}

// SchemaFromMap builds a Schema from a raw JSON Schema document (e.g. one
// hand-written per tool or imported from an OpenAPI spec). The map is deep
// copied; the caller's copy is never mutated. When strict is true,
// additionalProperties: false is applied to every object in the document.
func SchemaFromMap(doc map[string]any, strict bool) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("schema document must not be nil")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to deep copy schema document: %w", err)
	}
	var docCopy map[string]any
	if err := json.Unmarshal(data, &docCopy); err != nil {
		return nil, fmt.Errorf("failed to deep copy schema document: %w", err)
	}
	if strict {
		applyStrictMode(docCopy)
	}
	stripSchemaIDs(docCopy)
	compiled, err := compileSchemaDoc(docCopy)
	if err != nil {
		return nil, err
	}
	return &Schema{strict: strict, doc: docCopy, compiled: compiled}, nil
}

// Definition returns a shallow copy of the JSON Schema document (top-level keys
// only) for export to LLM tool definitions. Nested maps are shared; callers
// must not mutate them.
func (s *Schema) Definition() map[string]any { return maps.Clone(s.doc) }

// Strict reports whether unknown payload fields are rejected.
func (s *Schema) Strict() bool { return s.strict }

// Normalize validates raw against the contract and returns the payload the
// handler will see: defaults applied, declared coercions performed, and types
// checked. A nil or empty payload is treated as the empty object. All failures
// are *Error with KindValidation; the handler must never run after a failure.
func (s *Schema) Normalize(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, wrapJSONParseError(err)
	}
	if s.fields == nil {
		// Raw-document schema: validate only, pass the payload through unchanged.
		if err := validateAgainstSchema(s.compiled, payload); err != nil {
			return nil, err
		}
		return raw, nil
	}
	args, ok := payload.(map[string]any)
	if !ok {
		return nil, newValidationError("", "arguments must be a JSON object")
	}
	if s.strict {
		declared := make(map[string]struct{}, len(s.fields))
		for _, f := range s.fields {
			declared[f.Name] = struct{}{}
		}
		for name := range args {
			if _, ok := declared[name]; !ok {
				return nil, newValidationError(name, fmt.Sprintf("unknown field %q", name))
			}
		}
	}
	for _, f := range s.fields {
		value, present := args[f.Name]
		if !present {
			if f.Required {
				return nil, newValidationError(f.Name, fmt.Sprintf("missing required field %q", f.Name))
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}
		if f.Coerce {
			coerced, err := coerceValue(f, value)
			if err != nil {
				return nil, err
			}
			args[f.Name] = coerced
		}
	}
	if err := validateAgainstSchema(s.compiled, args); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(args)
	if err != nil {
		return nil, newInternalError(err)
	}
	return normalized, nil
}

// coerceValue parses a string payload value into the field's declared scalar
// type. Non-string values pass through untouched and are left to schema
// validation.
func coerceValue(f Field, value any) (any, error) {
	str, ok := value.(string)
	if !ok {
		return value, nil
	}
	switch f.Type {
	case TypeNumber:
		n, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, newValidationError(f.Name, fmt.Sprintf("field %q: cannot parse %q as number", f.Name, str))
		}
		return n, nil
	case TypeInteger:
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, newValidationError(f.Name, fmt.Sprintf("field %q: cannot parse %q as integer", f.Name, str))
		}
		return n, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(str)
		if err != nil {
			return nil, newValidationError(f.Name, fmt.Sprintf("field %q: cannot parse %q as boolean", f.Name, str))
		}
		return b, nil
	default:
		return value, nil
	}
}

// buildSchemaDoc renders the declarative field list as a JSON Schema document.
func buildSchemaDoc(strict bool, fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]any, 0, len(fields))
	for _, f := range fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		if len(f.Enum) > 0 {
			enum := make([]any, len(f.Enum))
			for i, v := range f.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	if strict {
		doc["additionalProperties"] = false
	}
	return doc
}

// compileSchemaDoc compiles a JSON Schema document into a validator.
// The document is marshal-roundtripped so the compiler sees plain JSON values.
func compileSchemaDoc(doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	resource, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", resource); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// walkSchema recursively visits every map node in the schema tree (including $defs and definitions).
func walkSchema(doc map[string]any, visit func(map[string]any)) {
	if doc == nil {
		return
	}
	visit(doc)
	for _, val := range doc {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					walkSchema(m, visit)
				}
			}
		}
	}
}

// applyStrictMode sets additionalProperties: false for every object in the document.
func applyStrictMode(doc map[string]any) {
	walkSchema(doc, func(n map[string]any) {
		if _, isObj := n["properties"]; isObj {
			n["additionalProperties"] = false
		}
	})
}

// stripSchemaIDs removes id, $id, and $schema so resolution does not depend on them.
func stripSchemaIDs(doc map[string]any) {
	walkSchema(doc, func(n map[string]any) {
		delete(n, "id")
		delete(n, "$id")
		delete(n, "$schema")
	})
}
