package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlvanhulst/dispatch"
)

func TestMockHandler_Defaults(t *testing.T) {
	m := &MockHandler{}
	assert.Equal(t, "mock", m.Name())
	assert.Empty(t, m.Description())
	require.NotNil(t, m.Schema())
	out, err := m.Execute(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMockHandler_Configured(t *testing.T) {
	schema, err := dispatch.NewSchema(dispatch.Field{Name: "x", Type: dispatch.TypeInteger, Required: true})
	require.NoError(t, err)
	m := &MockHandler{
		NameVal:   "echo",
		DescVal:   "Echoes args",
		SchemaVal: schema,
		ExecuteFn: func(_ context.Context, args json.RawMessage) (any, error) {
			return json.RawMessage(args), nil
		},
	}
	assert.Equal(t, "echo", m.Name())
	assert.Equal(t, "Echoes args", m.Description())
	assert.Same(t, schema, m.Schema())

	reg := dispatch.NewRegistry()
	require.NoError(t, reg.Register(m))
	res := reg.Invoke(context.Background(), dispatch.Call{ID: "1", Name: "echo", Args: []byte(`{"x": 3}`)})
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.JSONEq(t, `{"x":3}`, string(res.Value))

	res = reg.Invoke(context.Background(), dispatch.Call{ID: "2", Name: "echo", Args: []byte(`{}`)})
	require.False(t, res.OK())
	assert.Equal(t, dispatch.KindValidation, res.Err.Kind)
	assert.Equal(t, "x", res.Err.Field)
}
