// Package dispatch resolves named function calls from an assistant runtime to
// registered Go handlers, validating the raw JSON arguments against each
// handler's declared parameter contract before anything executes.
//
// # Overview
//
// Assistant runtimes produce function calls as (name, raw JSON arguments)
// pairs. This package turns them into concrete Go calls: resolve the name,
// validate and normalize the payload (defaults, declared coercions, type
// checks against the same JSON Schema exported to the provider), execute the
// handler with a cancellable context, and wrap the outcome as a structured
// Result — success or a classified failure, never a bare fault.
//
// Pipeline: handler + parameter contract → Register → Invoke (resolve,
// validate, execute, classify) → Result.
//
// # Key concepts
//
//   - Single Source of Truth: one declaration (struct tags or a Field list)
//     drives both the schema sent to the LLM and the validation of incoming JSON.
//   - Partial Success: InvokeBatch collects all results; one failure does not
//     cancel the others.
//   - Sanitized failures: validation and domain messages go back to the runtime
//     for self-correction; internal causes are logged, never leaked.
//
// See Handler, Call, Result for the core types, and NewHandler / NewRegistry
// for setup.
//
// # Example
//
//	type Args struct { City string `json:"city" jsonschema:"required"` }
//	type Out  struct { Temp float64 `json:"temp"` }
//	h, err := dispatch.NewHandler("get_weather", "Get weather", func(_ context.Context, a Args) (Out, error) {
//	    return Out{Temp: 22.5}, nil
//	})
//	if err != nil { ... }
//	reg := dispatch.NewRegistry()
//	if err := reg.Register(h); err != nil { ... }
//	res := reg.Invoke(ctx, dispatch.Call{ID: "1", Name: "get_weather", Args: []byte(`{"city":"Paris"}`)})
package dispatch
