package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaFor reflects the argument struct T into a Schema. Struct tags drive
// the generated document: json names the property, jsonschema marks required
// fields and carries description/enum (invopop tag syntax, e.g.
// `jsonschema:"required,description=City name"`). strict sets
// additionalProperties: false for all objects so unknown payload fields are
// rejected by validation.
func schemaFor[T any](strict bool) (*Schema, error) {
	var v T
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		AllowAdditionalProperties:  !strict,
		RequiredFromJSONSchemaTags: true,
	}
	reflected := r.Reflect(&v)
	if reflected == nil {
		return nil, fmt.Errorf("schema reflection returned nil")
	}
	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	if strict {
		applyStrictMode(doc)
	}
	stripSchemaIDs(doc)
	compiled, err := compileSchemaDoc(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{strict: strict, doc: doc, compiled: compiled}, nil
}
