package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Status is the lifecycle state of a Resource, exposed as a reactive cell so
// consumers can render on it.
type Status int

const (
	// StatusIdle means there is no request to load; the request function
	// returned nothing.
	StatusIdle Status = iota

	// StatusLoading means a load is in flight and no prior value exists.
	StatusLoading

	// StatusReloading means a load is in flight while a previous value is
	// still available for display.
	StatusReloading

	// StatusResolved means the latest load completed successfully.
	StatusResolved

	// StatusError means the latest load failed; Err holds the failure.
	StatusError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReloading:
		return "reloading"
	case StatusResolved:
		return "resolved"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config wires a Resource to its inputs.
type Config[Req comparable, T any] struct {
	// Request derives the current request from reactive state. It is
	// evaluated with tracking, so reading cells inside it makes the
	// resource rerun it when they change. Returning ok=false means
	// "nothing to load" and parks the resource at StatusIdle.
	Request func() (Req, bool)

	// Loader performs the actual load. It runs on its own goroutine; the
	// context is canceled when the request is superseded or the resource
	// disposed. Honoring the context is a best-effort optimization; a
	// completion from a superseded load is discarded regardless.
	Loader func(ctx context.Context, req Req) (T, error)
}

// Resource binds an async loader to a reactive request. Whenever the
// request value changes, the previous in-flight load is canceled and a new
// one starts; completions carry the generation they belong to and a
// superseded generation can never mutate the resource's cells.
//
// Status, value, and error are ordinary cells: reading them from a tracked
// evaluation subscribes it, so views re-render as loads progress.
type Resource[Req comparable, T any] struct {
	graph *reactive.Graph

	status *reactive.Cell[Status]
	value  *reactive.Cell[T]
	err    *reactive.Cell[error]

	loader func(ctx context.Context, req Req) (T, error)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    Req
	hasReq     bool
	hasValue   bool

	watch    *reactive.Effect
	disposed atomic.Bool

	retryCount int
	retryDelay time.Duration
	onResolved func(T)
	onError    func(error)
}

// Option configures a Resource at construction time.
type Option[Req comparable, T any] func(*Resource[Req, T])

// WithRetry retries a failed load up to attempts extra times, waiting delay
// between attempts. Cancellation cuts the retry loop short.
func WithRetry[Req comparable, T any](attempts int, delay time.Duration) Option[Req, T] {
	return func(r *Resource[Req, T]) {
		r.retryCount = attempts
		r.retryDelay = delay
	}
}

// OnResolved registers a callback invoked after each successful load, on the
// graph's loop, with the loaded value.
func OnResolved[Req comparable, T any](fn func(T)) Option[Req, T] {
	return func(r *Resource[Req, T]) {
		r.onResolved = fn
	}
}

// OnError registers a callback invoked after each failed load, on the
// graph's loop, with the failure.
func OnError[Req comparable, T any](fn func(error)) Option[Req, T] {
	return func(r *Resource[Req, T]) {
		r.onError = fn
	}
}

// New creates a Resource and evaluates the request function once
// immediately. If it yields a request, the first load starts right away.
func New[Req comparable, T any](g *reactive.Graph, cfg Config[Req, T], opts ...Option[Req, T]) *Resource[Req, T] {
	r := &Resource[Req, T]{
		graph:  g,
		status: reactive.NewCell(g, StatusIdle),
		value:  reactive.NewCell[T](g, *new(T)),
		err:    reactive.NewCell[error](g, nil),
		loader: cfg.Loader,
	}
	for _, opt := range opts {
		opt(r)
	}

	// The watch effect is the tracked home of cfg.Request: its reruns are
	// what re-key the resource. Status writes from inside it are the
	// intended feedback, hence AllowWrites.
	r.watch = reactive.NewEffect(g, func() reactive.Cleanup {
		req, ok := cfg.Request()
		r.applyRequest(req, ok)
		return nil
	}, reactive.AllowWrites())

	return r
}

// Status returns the current lifecycle state, registering a dependency when
// read from a tracked evaluation.
func (r *Resource[Req, T]) Status() Status {
	return r.status.Get()
}

// Value returns the most recently resolved value (zero before the first
// resolution), registering a dependency when read from a tracked evaluation.
func (r *Resource[Req, T]) Value() T {
	return r.value.Get()
}

// ValueOr returns the resolved value, or fallback when no load has resolved.
func (r *Resource[Req, T]) ValueOr(fallback T) T {
	r.mu.Lock()
	has := r.hasValue
	r.mu.Unlock()
	if r.status.Get() == StatusResolved || has {
		return r.value.Get()
	}
	return fallback
}

// Err returns the most recent load failure, or nil.
func (r *Resource[Req, T]) Err() error {
	return r.err.Get()
}

// Loading reports whether a load is currently in flight.
func (r *Resource[Req, T]) Loading() bool {
	s := r.status.Get()
	return s == StatusLoading || s == StatusReloading
}

// Reload forces a fresh load for the current request even if it is
// unchanged, bypassing the equality short-circuit. A resource with no
// current request ignores the call.
func (r *Resource[Req, T]) Reload() {
	r.mu.Lock()
	if r.disposed.Load() || !r.hasReq {
		r.mu.Unlock()
		return
	}
	req := r.current
	gen, ctx := r.beginLoadLocked()
	reloading := r.hasValue
	r.mu.Unlock()

	r.setLoadingStatus(reloading)
	go r.load(ctx, gen, req)
}

// Mutate applies an optimistic local update to the value cell without
// touching status or generation; a later resolution overwrites it.
func (r *Resource[Req, T]) Mutate(fn func(T) T) {
	r.value.Update(fn)
}

// Dispose cancels any in-flight load and detaches the request watcher. The
// cells keep their last values but will never change again.
func (r *Resource[Req, T]) Dispose() {
	if r.disposed.Swap(true) {
		return
	}
	r.mu.Lock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	r.watch.Dispose()
}

// applyRequest handles one evaluation of the request function.
func (r *Resource[Req, T]) applyRequest(req Req, ok bool) {
	if r.disposed.Load() {
		return
	}

	r.mu.Lock()
	if !ok {
		// No request: supersede anything in flight and park.
		r.generation++
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		r.hasReq = false
		r.mu.Unlock()
		r.status.Set(StatusIdle)
		return
	}

	if r.hasReq && req == r.current {
		// Same request by value: nothing to do.
		r.mu.Unlock()
		return
	}

	r.current = req
	r.hasReq = true
	gen, ctx := r.beginLoadLocked()
	reloading := r.hasValue
	r.mu.Unlock()

	r.setLoadingStatus(reloading)
	go r.load(ctx, gen, req)
}

// beginLoadLocked supersedes the previous load and allocates the next
// generation. Callers hold r.mu.
func (r *Resource[Req, T]) beginLoadLocked() (uint64, context.Context) {
	r.generation++
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	return r.generation, ctx
}

func (r *Resource[Req, T]) setLoadingStatus(reloading bool) {
	if reloading {
		r.status.Set(StatusReloading)
	} else {
		r.status.Set(StatusLoading)
	}
}

// load runs the loader (with retries) on its own goroutine and marshals the
// completion back onto the graph loop.
func (r *Resource[Req, T]) load(ctx context.Context, gen uint64, req Req) {
	var (
		value T
		err   error
	)

	attempts := 1 + r.retryCount
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retryDelay):
			}
		}
		value, err = r.loader(ctx, req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			// Superseded or disposed mid-flight; the completion would
			// be discarded anyway.
			return
		}
	}

	// The graph loop is the only place resource cells are written from a
	// completion; Dispatch also serializes against concurrent flushes.
	_ = r.graph.Dispatch(func() {
		r.complete(gen, value, err)
	})
}

// complete applies a load result, unless a newer generation superseded it.
func (r *Resource[Req, T]) complete(gen uint64, value T, err error) {
	r.mu.Lock()
	if gen != r.generation || r.disposed.Load() {
		r.mu.Unlock()
		return
	}
	r.cancel = nil
	if err == nil {
		r.hasValue = true
	}
	r.mu.Unlock()

	if err != nil {
		r.err.Set(err)
		r.status.Set(StatusError)
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	r.value.Set(value)
	r.err.Set(nil)
	r.status.Set(StatusResolved)
	if r.onResolved != nil {
		r.onResolved(value)
	}
}
