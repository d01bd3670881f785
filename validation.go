package dispatch

import (
	"errors"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// Validatable is implemented by argument structs that need custom business
// validation. Called after schema validation and unmarshaling; a returned
// error becomes a KindValidation failure.
type Validatable interface {
	Validate() error
}

// validateAgainstSchema runs Layer 1 validation on an already-parsed value.
// Callers unmarshal the payload themselves and report parse errors separately.
func validateAgainstSchema(compiled *jsonschema.Schema, v any) error {
	if err := compiled.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Error{Kind: KindValidation, Message: ve.Error(), Field: leafField(ve), cause: errors.Join(ErrValidation, err)}
		}
		return newValidationError("", err.Error())
	}
	return nil
}

// leafField walks to the deepest cause and returns the offending field name:
// the first missing property for required violations, otherwise the first
// segment of the instance location.
func leafField(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if k, ok := ve.ErrorKind.(*kind.Required); ok && len(k.Missing) > 0 {
		return k.Missing[0]
	}
	if len(ve.InstanceLocation) > 0 {
		return ve.InstanceLocation[0]
	}
	return ""
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// runCustomValidation runs Validatable.Validate() on args; if args does not
// implement Validatable, it tries &args for value types (pointer receiver).
// Never calls Validate twice for the same receiver.
func runCustomValidation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return err
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}
