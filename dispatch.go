package dispatch

import (
	"context"
	"encoding/json"
	"time"
)

// Handler is the contract for a function the assistant runtime may call.
// It is provider-agnostic (no knowledge of OpenAI, Anthropic, etc.).
type Handler interface {
	Name() string
	Description() string
	// Schema returns the parameter contract for this handler. The registry
	// validates and normalizes every argument payload against it before Execute runs.
	Schema() *Schema
	// Execute runs the handler with an argument payload that has already been
	// validated and normalized by the registry. Blocking work inside Execute
	// must honor ctx so cancellation and timeouts propagate.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// HandlerMetadata is implemented by handlers created with NewHandler, NewFunc,
// or NewDynamicHandler and provides optional per-handler settings. Registry uses
// Timeout() to override the default invocation timeout and Exclusive() to
// serialize calls to the same name. Tags and Version are for discovery.
type HandlerMetadata interface {
	Timeout() time.Duration
	Exclusive() bool
	Tags() []string
	Version() string
}

// Call is a single invocation request as produced by the assistant runtime.
// ID is the runtime's tool-call identifier; the registry treats it as opaque
// correlation data and echoes it back in Result.CallID.
type Call struct {
	ID   string
	Name string
	Args json.RawMessage // JSON object of raw arguments
}

// Result is the outcome of one invocation. Exactly one of Value and Err is
// meaningful: Err == nil means success and Value holds the handler's output
// as JSON. Serializes to {"ok":true,"result":...} or
// {"ok":false,"error":{"kind":...,"message":...}}.
type Result struct {
	CallID string
	Name   string
	Value  json.RawMessage
	Err    *Error
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// MarshalJSON renders the wire form consumed by the assistant-facing caller.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error *Error `json:"error"`
		}{OK: false, Error: r.Err})
	}
	value := r.Value
	if value == nil {
		value = json.RawMessage("null")
	}
	return json.Marshal(struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}{OK: true, Result: value})
}

func success(call Call, value json.RawMessage) Result {
	return Result{CallID: call.ID, Name: call.Name, Value: value}
}

func failure(call Call, err *Error) Result {
	return Result{CallID: call.ID, Name: call.Name, Err: err}
}
