// Package testutil provides test helpers for dispatch (e.g. MockHandler).
package testutil

import (
	"context"
	"encoding/json"

	"github.com/jlvanhulst/dispatch"
)

// MockHandler is a configurable Handler implementation for tests.
type MockHandler struct {
	NameVal   string
	DescVal   string
	SchemaVal *dispatch.Schema
	ExecuteFn func(ctx context.Context, args json.RawMessage) (any, error)
}

// Name returns the handler name.
func (m *MockHandler) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the handler description.
func (m *MockHandler) Description() string {
	return m.DescVal
}

// Schema returns the configured schema, or an empty permissive one.
func (m *MockHandler) Schema() *dispatch.Schema {
	if m.SchemaVal != nil {
		return m.SchemaVal
	}
	s, err := dispatch.NewSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Execute runs ExecuteFn if set, otherwise returns nil.
func (m *MockHandler) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return nil, nil
}

// Ensure MockHandler implements Handler.
var _ dispatch.Handler = (*MockHandler)(nil)
