package dispatch

import (
	"encoding/json"
	"errors"
)

// Extractor provides JSON Schema generation and two-layer validation
// (schema + Validatable) for type T without binding to the Handler interface.
// Use it in custom orchestrators that need schema export and validated parsing
// but not the standard registry pipeline.
type Extractor[T any] struct {
	schema *Schema
}

// NewExtractor creates an Extractor for type T. When strict is true, the
// generated schema rejects unknown payload fields.
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	schema, err := schemaFor[T](strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{schema: schema}, nil
}

// Schema returns the parameter contract derived from T.
func (e *Extractor[T]) Schema() *Schema { return e.schema }

// ParseAndValidate deserializes raw into T, running Layer 1 (schema
// validation) and Layer 2 (Validatable.Validate() if T implements it).
// Failures are *Error with KindValidation so the caller can forward the
// message to the assistant runtime for self-correction.
func (e *Extractor[T]) ParseAndValidate(raw json.RawMessage) (T, error) {
	var zero T
	normalized, err := e.schema.Normalize(raw)
	if err != nil {
		return zero, err
	}
	return e.decode(normalized)
}

// decode unmarshals an already-validated payload into T and runs Layer 2.
// The registry validates before Execute, so handler bodies call decode rather
// than repeating schema validation.
func (e *Extractor[T]) decode(raw json.RawMessage) (T, error) {
	var zero T
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := runCustomValidation(args); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return zero, err
		}
		return zero, newValidationError("", err.Error())
	}
	return args, nil
}
