package reactive

import "sync/atomic"

// Cleanup is a function returned by an effect body to release whatever the
// run acquired. It is invoked immediately before the next rerun and at
// disposal.
type Cleanup func()

// effectOutcome reports what a flush did with one pending effect.
type effectOutcome uint8

const (
	effectRan effectOutcome = iota
	effectSkipped
	effectPanicked
)

// Effect is a non-memoized consumer run for its side effects. The body runs
// once, eagerly, when the effect is created, which seeds the dependency set;
// after that it reruns during the effect phase of any flush that one of its
// sources dirtied.
//
// Effects never rerun synchronously on a write. A notification only queues
// the effect; the scheduler runs it after the view phase of the deferred
// flush.
type Effect struct {
	id    uint64
	graph *Graph

	fn      func() Cleanup
	cleanup Cleanup

	sources sourceSet
	state   nodeState

	// pending dedupes scheduling: set when queued, cleared when run.
	pending  atomic.Bool
	disposed atomic.Bool

	allowWrites bool
}

// EffectOption configures an Effect at construction time.
type EffectOption func(*Effect)

// AllowWrites marks an effect as intentionally writing cells from its body.
// Without it, a write from inside the body panics with
// *WriteDuringEffectError. Feedback loops enabled this way are bounded by
// the graph's flush iteration limit.
func AllowWrites() EffectOption {
	return func(e *Effect) {
		e.allowWrites = true
	}
}

// NewEffect creates an effect and runs its body once, immediately, with
// tracking enabled. The returned handle's only operations are Dispose and
// introspection; reruns are the scheduler's business.
//
// A structural panic out of the initial run (an illegal write, a cycle in a
// computed the body reads) propagates to the caller. Panics in later reruns
// are recovered per-effect and reported to the graph's error handler.
func NewEffect(g *Graph, fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		id:    nextID(),
		graph: g,
		fn:    fn,
	}
	for _, opt := range opts {
		opt(e)
	}
	g.effectCount.Add(1)

	e.execute(false)
	return e
}

// ID returns the unique identifier of this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// invalidate implements consumer. The effect is queued at most once per
// flush regardless of how many sources notified it; the strongest
// invalidation level observed wins.
func (e *Effect) invalidate(definite bool) {
	if e.disposed.Load() {
		return
	}
	target := stateCheck
	if definite {
		target = stateDirty
	}
	e.state.raise(target)

	if e.pending.CompareAndSwap(false, true) {
		e.graph.sched.enqueueEffect(e)
	}
}

// flushRun is the scheduler's entry point during the effect phase. A purely
// speculative invalidation is verified against recorded source versions
// first; when nothing actually changed the rerun is skipped and the previous
// cleanup stays live.
func (e *Effect) flushRun() effectOutcome {
	if e.disposed.Load() {
		return effectSkipped
	}
	e.pending.Store(false)

	if e.state.load() == stateCheck {
		changed, ok := e.verify()
		if !ok {
			e.state.store(stateClean)
			return effectPanicked
		}
		if !changed {
			e.state.store(stateClean)
			return effectSkipped
		}
	}
	e.state.store(stateClean)

	return e.execute(true)
}

// verify syncs the recorded sources and reports whether any version moved.
// Syncing can recompute upstream computeds, so a panic out of one of their
// bodies surfaces here; it is recovered per-effect so a poisoned source
// cannot strand the rest of the flush queue.
func (e *Effect) verify() (changed, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.graph.reportError(&EffectPanicError{EffectID: e.id, Value: r})
		}
	}()
	return e.sources.changed(), true
}

// execute runs cleanup-then-body with tracking and rebuilds the dependency
// set from what the body read. recovered selects the flush behavior, where a
// panicking body must not abort sibling effects.
func (e *Effect) execute(recovered bool) (outcome effectOutcome) {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	g := e.graph
	f := &frame{kind: frameEffect, consumer: e, allowWrites: e.allowWrites}
	g.pushFrame(f)

	outcome = effectRan
	func() {
		if recovered {
			defer func() {
				if r := recover(); r != nil {
					outcome = effectPanicked
					g.reportError(&EffectPanicError{EffectID: e.id, Value: r})
				}
			}()
		}
		defer g.popFrame()
		e.cleanup = e.fn()
	}()

	e.sources.replace(e, f.records)
	return outcome
}

// Dispose runs the latest cleanup, removes every source edge, and guarantees
// no future notification can re-enqueue the effect. Idempotent.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	e.sources.detachAll(e)
	e.graph.effectCount.Add(-1)
}

func (e *Effect) consumerID() uint64 { return e.id }
func (e *Effect) isDisposed() bool   { return e.disposed.Load() }
