package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// handler is the internal implementation of Handler built by NewHandler,
// NewFunc, or NewDynamicHandler.
type handler struct {
	name        string
	description string
	schema      *Schema
	execute     func(context.Context, json.RawMessage) (any, error)
	opts        handlerOptions
}

// NewHandler builds a Handler from a typed function. The parameter schema is
// derived from T by reflection (see Extractor); the registry validates every
// payload against it before fn runs, so fn always receives well-formed
// arguments. Returns an error if schema generation fails (e.g. unsupported type).
func NewHandler[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...HandlerOption,
) (Handler, error) {
	if err := checkHandlerName(name); err != nil {
		return nil, err
	}
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	ext, err := NewExtractor[T](o.strict)
	if err != nil {
		return nil, err
	}
	execute := func(ctx context.Context, raw json.RawMessage) (any, error) {
		args, err := ext.decode(raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
	return &handler{
		name:        name,
		description: description,
		schema:      ext.Schema(),
		execute:     execute,
		opts:        o,
	}, nil
}

// NewFunc builds a Handler from a declarative Schema and a function that takes
// the validated arguments as a map. Use it when the parameter contract is
// declared field by field rather than derived from a Go struct. Strictness
// lives on the Schema (NewStrictSchema); WithStrict has no effect here.
func NewFunc(
	name, description string,
	schema *Schema,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...HandlerOption,
) (Handler, error) {
	if err := checkHandlerName(name); err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, fmt.Errorf("handler %q: schema must not be nil", name)
	}
	if fn == nil {
		return nil, fmt.Errorf("handler %q: fn must not be nil", name)
	}
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	execute := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args map[string]any
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, wrapJSONParseError(err)
		}
		return fn(ctx, args)
	}
	return &handler{
		name:        name,
		description: description,
		schema:      schema,
		execute:     execute,
		opts:        o,
	}, nil
}

// NewDynamicHandler creates a Handler from a raw JSON Schema document and a
// function that receives the validated payload as raw JSON. Useful for runtime
// API integration (e.g. OpenAPI/Swagger). The document is deep copied; the
// caller's map is never mutated.
func NewDynamicHandler(
	name, description string,
	schemaDoc map[string]any,
	fn func(ctx context.Context, args json.RawMessage) (any, error),
	opts ...HandlerOption,
) (Handler, error) {
	if err := checkHandlerName(name); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("handler %q: fn must not be nil", name)
	}
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	schema, err := SchemaFromMap(schemaDoc, o.strict)
	if err != nil {
		return nil, fmt.Errorf("handler %q: %w", name, err)
	}
	execute := func(ctx context.Context, raw json.RawMessage) (any, error) {
		return fn(ctx, raw)
	}
	return &handler{
		name:        name,
		description: description,
		schema:      schema,
		execute:     execute,
		opts:        o,
	}, nil
}

func checkHandlerName(name string) error {
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	return nil
}

func (h *handler) Name() string        { return h.name }
func (h *handler) Description() string { return h.description }
func (h *handler) Schema() *Schema     { return h.schema }

func (h *handler) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return h.execute(ctx, args)
}

func (h *handler) Timeout() time.Duration { return h.opts.timeout }
func (h *handler) Exclusive() bool        { return h.opts.exclusive }
func (h *handler) Tags() []string         { return append([]string(nil), h.opts.tags...) }
func (h *handler) Version() string        { return h.opts.version }

var (
	_ Handler         = (*handler)(nil)
	_ HandlerMetadata = (*handler)(nil)
)
