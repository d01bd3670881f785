package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Registry owns the name-to-handler mapping and mediates every invocation:
// lookup, argument validation, execution with timeout, semaphore, and optional
// panic recovery. Names are unique and matched case-sensitively. The mapping
// is populated at startup and read-mostly afterwards.
type Registry struct {
	handlers    map[string]Handler // wrapped with middlewares, used by Invoke
	rawHandlers map[string]Handler // unwrapped, used by Use() to re-apply middlewares from scratch
	locks       map[string]*sync.Mutex
	sem         chan struct{}
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.Mutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		maxConcurrency: 10,
		recoverPanics:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Registry{
		handlers:    make(map[string]Handler),
		rawHandlers: make(map[string]Handler),
		locks:       make(map[string]*sync.Mutex),
		sem:         sem,
		opts:        o,
		done:        make(chan struct{}),
	}
}

// Register adds a handler. The name must be unique: registering a second
// handler under an existing name fails with KindDuplicateRegistration and the
// first registration stays active. Registration errors are meant to be fatal
// at startup; a process should not serve traffic with a broken registry.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return &Error{Kind: KindValidation, Message: "handler must not be nil", cause: ErrValidation}
	}
	name := h.Name()
	if name == "" {
		return &Error{Kind: KindValidation, Message: "handler name must not be empty", cause: ErrValidation}
	}
	if h.Schema() == nil {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("handler %q has no parameter schema", name), cause: ErrValidation}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return &Error{Kind: KindUnavailable, Message: "registry is shut down", cause: ErrShutdown}
	default:
	}
	if _, exists := r.rawHandlers[name]; exists {
		return &Error{
			Kind:    KindDuplicateRegistration,
			Message: fmt.Sprintf("function %q is already registered", name),
			cause:   ErrDuplicate,
		}
	}
	r.rawHandlers[name] = h
	r.handlers[name] = wrapMiddlewares(h, r.middlewares)
	if hm, ok := h.(HandlerMetadata); ok && hm.Exclusive() {
		r.locks[name] = &sync.Mutex{}
	}
	return nil
}

// MustRegister registers handlers and panics on the first error. Startup convenience.
func (r *Registry) MustRegister(handlers ...Handler) {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// Handlers returns all registered handlers (e.g. for exporting tool
// definitions to LLM providers), sorted by name for deterministic order.
func (r *Registry) Handlers() []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Handler, 0, len(names))
	for _, name := range names {
		out = append(out, r.handlers[name])
	}
	return out
}

// Handler returns the handler with the given name (after middlewares are
// applied), or (nil, false) if not found.
func (r *Registry) Handler(name string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Invoke runs one call through the pipeline: resolve, validate, execute,
// classify. It never returns a bare fault; every outcome is a well-formed
// Result, failures included. Handlers are never executed when lookup or
// validation fails.
func (r *Registry) Invoke(ctx context.Context, call Call) Result {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return failure(call, &Error{Kind: KindUnavailable, Message: "registry is shutting down", cause: ErrShutdown})
	default:
	}
	h, ok := r.handlers[call.Name]
	if !ok {
		r.mu.Unlock()
		return failure(call, &Error{
			Kind:    KindUnknownFunction,
			Message: fmt.Sprintf("function %q is not registered", call.Name),
			cause:   ErrUnknownFunction,
		})
	}
	lock := r.locks[call.Name]
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()

	if err := r.acquireSemaphore(ctx); err != nil {
		return failure(call, classify(err))
	}
	defer r.releaseSemaphore()

	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	timeout := r.opts.timeout
	if hm, ok := h.(HandlerMetadata); ok && hm.Timeout() > 0 {
		timeout = hm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var res Result
	// After-invoke hook always fires with the final result, panics included.
	defer func() {
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, res, time.Since(start))
		}
	}()
	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}
	res = r.run(ctx, h, call)
	return res
}

// run performs validation and execution for a resolved handler.
func (r *Registry) run(ctx context.Context, h Handler, call Call) (res Result) {
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				e := newInternalError(&panicError{p: p})
				r.logFailure(ctx, call, e)
				res = failure(call, e)
			}
		}()
	}
	args, err := h.Schema().Normalize(call.Args)
	if err != nil {
		return failure(call, classify(err))
	}
	out, err := h.Execute(ctx, args)
	if err != nil {
		e := classify(err)
		if e.Kind == KindInternal || e.Kind == KindTimeout {
			r.logFailure(ctx, call, e)
		}
		return failure(call, e)
	}
	value, err := json.Marshal(out)
	if err != nil {
		e := newInternalError(err)
		r.logFailure(ctx, call, e)
		return failure(call, e)
	}
	return success(call, value)
}

// logFailure records the full cause for diagnostics. Only the sanitized
// Message ever reaches the assistant-facing caller.
func (r *Registry) logFailure(ctx context.Context, call Call, e *Error) {
	r.opts.logger.ErrorContext(ctx, "handler failed",
		"function", call.Name,
		"call_id", call.ID,
		"kind", string(e.Kind),
		"error", e.Unwrap(),
	)
}

func (r *Registry) acquireSemaphore(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) releaseSemaphore() {
	if r.sem != nil {
		<-r.sem
	}
}

// InvokeBatch runs all calls in parallel and returns results positionally
// aligned with calls. Partial success: one failure does not cancel the others.
func (r *Registry) InvokeBatch(ctx context.Context, calls []Call) []Result {
	if len(calls) == 0 {
		return nil
	}
	results := make([]Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Invoke(ctx, call)
		}()
	}
	wg.Wait()
	return results
}

// Shutdown closes the registry for new calls and waits for in-flight
// invocations or ctx to cancel. Idempotent.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
