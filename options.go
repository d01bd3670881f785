package dispatch

import (
	"context"
	"log/slog"
	"time"
)

// handlerOptions hold optional handler settings (timeout, strict, exclusive, etc.).
type handlerOptions struct {
	strict    bool
	timeout   time.Duration
	exclusive bool
	tags      []string
	version   string
}

// HandlerOption configures a handler (e.g. WithStrict, WithTimeout).
type HandlerOption func(*handlerOptions)

// WithStrict rejects payload fields not declared in the schema instead of
// ignoring them. Applies to NewHandler and NewDynamicHandler; for NewFunc the
// schema itself carries strictness (NewStrictSchema).
func WithStrict() HandlerOption {
	return func(o *handlerOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-handler invocation timeout, overriding the registry default.
func WithTimeout(d time.Duration) HandlerOption {
	return func(o *handlerOptions) {
		o.timeout = d
	}
}

// WithExclusive requests at-most-one-in-flight semantics: the registry
// serializes concurrent invocations of this handler with a per-name mutex.
func WithExclusive() HandlerOption {
	return func(o *handlerOptions) {
		o.exclusive = true
	}
}

// WithTags sets handler tags (metadata for discovery/orchestrator).
func WithTags(tags ...string) HandlerOption {
	return func(o *handlerOptions) {
		o.tags = tags
	}
}

// WithVersion sets the handler version.
func WithVersion(version string) HandlerOption {
	return func(o *handlerOptions) {
		o.version = version
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout        time.Duration
	maxConcurrency int
	recoverPanics  bool
	logger         *slog.Logger
	onBefore       func(context.Context, Call)
	onAfter        func(context.Context, Call, Result, time.Duration)
}

// WithDefaultTimeout sets the default invocation timeout. The registry imposes
// no timeout unless this option or a per-handler WithTimeout is set.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency limits concurrent handler executions (semaphore).
// Pass 0 or negative to disable the semaphore (unlimited concurrency).
func WithMaxConcurrency(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxConcurrency = n
	}
}

// WithRecoverPanics enables panic recovery in Invoke (returns a KindInternal failure).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithLogger sets the logger used for internal-error diagnostics. Defaults to
// slog.Default(). Sanitized messages cross the boundary; full causes go here.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithOnBeforeInvoke sets a hook called before each invocation.
func WithOnBeforeInvoke(fn func(context.Context, Call)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterInvoke sets a hook called after each invocation with its Result and duration.
func WithOnAfterInvoke(fn func(context.Context, Call, Result, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}
