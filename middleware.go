package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Middleware wraps a Handler with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Handler) Handler

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return &loggingHandler{handlerBase: handlerBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics and returns a
// sanitized internal error. Redundant when the registry's own recovery is on;
// useful for handlers executed outside a Registry.
func WithRecovery() Middleware {
	return func(next Handler) Handler {
		return &recoveryHandler{handlerBase{next: next}}
	}
}

// WithTimeoutMiddleware returns a middleware that enforces a per-handler
// timeout. Named with "Middleware" suffix to avoid collision with the
// HandlerOption WithTimeout. When both the registry timeout and this
// middleware apply, the effective timeout is the minimum of the two (inner
// context cancels first).
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return &timeoutHandler{handlerBase: handlerBase{next: next}, timeout: d}
	}
}

// handlerBase delegates Handler and HandlerMetadata to the wrapped Handler; used by middleware wrappers.
type handlerBase struct{ next Handler }

func (b *handlerBase) Name() string        { return b.next.Name() }
func (b *handlerBase) Description() string { return b.next.Description() }
func (b *handlerBase) Schema() *Schema     { return b.next.Schema() }

func (b *handlerBase) Timeout() time.Duration {
	if hm, ok := b.next.(HandlerMetadata); ok {
		return hm.Timeout()
	}
	return 0
}
func (b *handlerBase) Exclusive() bool {
	if hm, ok := b.next.(HandlerMetadata); ok {
		return hm.Exclusive()
	}
	return false
}
func (b *handlerBase) Tags() []string {
	if hm, ok := b.next.(HandlerMetadata); ok {
		return hm.Tags()
	}
	return nil
}
func (b *handlerBase) Version() string {
	if hm, ok := b.next.(HandlerMetadata); ok {
		return hm.Version()
	}
	return ""
}

type loggingHandler struct {
	handlerBase
	logger *slog.Logger
}

func (m *loggingHandler) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	m.logger.Info("handler start", "function", m.next.Name())
	start := time.Now()
	out, err := m.next.Execute(ctx, args)
	dur := time.Since(start)
	if err != nil {
		m.logger.Error("handler error", "function", m.next.Name(), "duration", dur, "error", err)
		return nil, err
	}
	m.logger.Info("handler end", "function", m.next.Name(), "duration", dur)
	return out, nil
}

type recoveryHandler struct{ handlerBase }

func (r *recoveryHandler) Execute(ctx context.Context, args json.RawMessage) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = newInternalError(&panicError{p: p})
		}
	}()
	return r.next.Execute(ctx, args)
}

type timeoutHandler struct {
	handlerBase
	timeout time.Duration
}

func (t *timeoutHandler) Timeout() time.Duration {
	if t.timeout > 0 {
		return t.timeout
	}
	return t.handlerBase.Timeout()
}

func (t *timeoutHandler) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if t.timeout <= 0 {
		return t.next.Execute(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Execute(ctx, args)
}

// wrapMiddlewares applies middlewares in onion order: the first middleware is outermost.
func wrapMiddlewares(h Handler, middlewares []Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Use stores the given middlewares and reapplies them from scratch to all
// registered handlers. Handlers registered after Use also get them. Calling
// Use again replaces the chain and rewraps from raw handlers, avoiding
// double-wrapping.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, raw := range r.rawHandlers {
		r.handlers[name] = wrapMiddlewares(raw, middlewares)
	}
}
