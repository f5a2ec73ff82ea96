package reactive

import "sync/atomic"

// View is an opaque handle for an external render unit. The core knows
// nothing about what rendering means; it stores the dependency edges the
// render pass established, a dirty flag, and calls render back during the
// view phase of a flush. Views refresh before any queued effects run.
type View struct {
	id    uint64
	graph *Graph

	render func()

	sources sourceSet
	state   nodeState

	pending  atomic.Bool
	disposed atomic.Bool
}

// RegisterView wires a render callback into the graph. The callback runs
// once, immediately, with tracking enabled so the view subscribes to every
// cell and computed node it read; each later refresh rebuilds that set.
func RegisterView(g *Graph, render func()) *View {
	v := &View{
		id:     nextID(),
		graph:  g,
		render: render,
	}
	g.viewCount.Add(1)

	v.renderTracked()
	return v
}

// ID returns the unique identifier of this view.
func (v *View) ID() uint64 {
	return v.id
}

// MarkDirty queues the view for refresh in the next flush regardless of its
// dependencies, for collaborators with out-of-band invalidation.
func (v *View) MarkDirty() {
	v.invalidate(true)
}

// Refresh re-renders the view synchronously, bypassing the deferred flush.
// This is the escape hatch for callers that must observe the rendered
// result in the same synchronous turn as a write, e.g. measurement code.
func (v *View) Refresh() {
	if v.disposed.Load() {
		return
	}
	v.state.store(stateClean)
	v.renderTracked()
}

// refresh is the scheduler's entry point. Purely speculative invalidations
// are verified against recorded source versions and skipped when stale-free.
// Returns whether a render actually ran.
func (v *View) refresh() bool {
	if v.disposed.Load() {
		return false
	}
	v.pending.Store(false)

	if v.state.load() == stateCheck {
		changed, ok := v.verify()
		if !ok || !changed {
			v.state.store(stateClean)
			return false
		}
	}
	v.state.store(stateClean)

	v.renderTracked()
	return true
}

// verify syncs the recorded sources and reports whether any version moved.
// Syncing can recompute upstream computeds, so a panic out of one of their
// bodies surfaces here; it is recovered per-view so a poisoned source cannot
// strand the rest of the flush queue.
func (v *View) verify() (changed, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.graph.reportError(&ViewPanicError{ViewID: v.id, Value: r})
		}
	}()
	return v.sources.changed(), true
}

func (v *View) renderTracked() {
	g := v.graph
	f := &frame{kind: frameView, consumer: v}
	g.pushFrame(f)

	func() {
		defer func() {
			if r := recover(); r != nil {
				g.reportError(&ViewPanicError{ViewID: v.id, Value: r})
			}
		}()
		defer g.popFrame()
		v.render()
	}()

	v.sources.replace(v, f.records)
}

// Dispose removes all source edges and prevents any future refresh.
// Idempotent.
func (v *View) Dispose() {
	if v.disposed.Swap(true) {
		return
	}
	v.sources.detachAll(v)
	v.graph.viewCount.Add(-1)
}

// invalidate implements consumer.
func (v *View) invalidate(definite bool) {
	if v.disposed.Load() {
		return
	}
	target := stateCheck
	if definite {
		target = stateDirty
	}
	v.state.raise(target)

	if v.pending.CompareAndSwap(false, true) {
		v.graph.sched.enqueueView(v)
	}
}

func (v *View) consumerID() uint64 { return v.id }
func (v *View) isDisposed() bool   { return v.disposed.Load() }
