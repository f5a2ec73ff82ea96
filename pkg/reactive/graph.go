package reactive

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Graph owns one independent reactive universe: its cells, computed nodes,
// effects, views, and the scheduler that flushes them. Graphs are fully
// isolated from each other; tests can create as many as they need.
//
// Unless built with ManualFlush, a Graph runs a background loop goroutine
// that executes the deferred flushes, so it must be closed when no longer
// needed:
//
//	g := reactive.New()
//	defer g.Close()
type Graph struct {
	sched *scheduler

	logger     *slog.Logger
	errHandler func(error)

	// tracking holds per-goroutine consumer stacks, keyed by goroutine ID.
	tracking sync.Map

	closed atomic.Bool

	// Primitive counters for debug snapshots.
	cellCount     atomic.Int64
	computedCount atomic.Int64
	effectCount   atomic.Int64
	viewCount     atomic.Int64
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithLogger sets the structured logger used for recovered effect panics and
// loop diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithErrorHandler sets the handler invoked for errors recovered during a
// flush: effect-body panics (as *EffectPanicError) and, on the background
// loop only, iteration-limit overruns. The default handler logs through the
// graph's logger.
func WithErrorHandler(fn func(error)) Option {
	return func(g *Graph) {
		g.errHandler = fn
	}
}

// WithFlushIterationLimit caps how many times one flush may loop when
// effects with AllowWrites re-dirty the queues. Exceeding the cap raises
// *FlushIterationLimitError. Default 100.
func WithFlushIterationLimit(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.sched.maxIterations = n
		}
	}
}

// WithManualFlush disables the background loop. Notifications still coalesce,
// but nothing runs until FlushSync is called. Intended for deterministic
// tests and synchronous embedding.
func WithManualFlush() Option {
	return func(g *Graph) {
		g.sched.manual = true
	}
}

// WithObserver registers a FlushObserver at construction. Observers can also
// be added later with AddObserver.
func WithObserver(o FlushObserver) Option {
	return func(g *Graph) {
		g.sched.addObserver(o)
	}
}

// New creates a Graph and, unless ManualFlush is set, starts its run loop.
func New(opts ...Option) *Graph {
	g := &Graph{
		logger: slog.Default(),
	}
	g.sched = newScheduler(g)

	for _, opt := range opts {
		opt(g)
	}

	if g.errHandler == nil {
		g.errHandler = func(err error) {
			g.logger.Error("reactive flush error", "error", err)
		}
	}

	if !g.sched.manual {
		g.sched.start()
	}

	return g
}

// Close stops the run loop and releases loop resources. Pending flushes are
// abandoned; cells remain readable but nothing is scheduled afterwards.
// Close is idempotent.
func (g *Graph) Close() {
	if g.closed.Swap(true) {
		return
	}
	g.sched.stop()
}

// FlushSync forces any pending flush to run immediately on the calling
// goroutine, bypassing the deferred boundary. Structural errors raised by
// the flush (iteration-limit overruns) panic at this call site.
//
// Synchronous test harnesses and measure-after-write code are the intended
// callers.
func (g *Graph) FlushSync() {
	g.sched.flush()
}

// Settle blocks until the scheduler has no pending flush and both queues are
// empty. It is mainly useful in tests running against the background loop.
func (g *Graph) Settle() {
	g.sched.settle()
}

// Dispatch marshals fn onto the graph's run loop, the single place where
// outside goroutines (resource loaders, workers, timers) are allowed to
// influence the graph. Writes performed by fn coalesce into the next flush
// as usual. On a ManualFlush graph fn runs inline.
//
// Returns ErrGraphClosed if the graph has been closed.
func (g *Graph) Dispatch(fn func()) error {
	if g.closed.Load() {
		return ErrGraphClosed
	}
	if g.sched.manual {
		fn()
		return nil
	}
	return g.sched.submit(fn)
}

// reportError feeds a recovered error to the configured handler, shielding
// the flush from a panicking handler.
func (g *Graph) reportError(err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("error handler panicked", "panic", r, "original", err)
		}
	}()
	g.errHandler(err)
}

// Stats reports a point-in-time census of the graph, used by debug tooling.
func (g *Graph) Stats() Stats {
	return Stats{
		Cells:         g.cellCount.Load(),
		ComputedNodes: g.computedCount.Load(),
		Effects:       g.effectCount.Load(),
		Views:         g.viewCount.Load(),
		Flushes:       g.sched.flushes.Load(),
	}
}

// Stats is a snapshot of graph-wide counters.
type Stats struct {
	Cells         int64 `json:"cells"`
	ComputedNodes int64 `json:"computed_nodes"`
	Effects       int64 `json:"effects"`
	Views         int64 `json:"views"`
	Flushes       int64 `json:"flushes"`
}

// AddObserver registers a FlushObserver after construction. Observers are
// invoked synchronously around every flush.
func (g *Graph) AddObserver(o FlushObserver) {
	g.sched.addObserver(o)
}

// RemoveObserver unregisters a previously added observer.
func (g *Graph) RemoveObserver(o FlushObserver) {
	g.sched.removeObserver(o)
}
