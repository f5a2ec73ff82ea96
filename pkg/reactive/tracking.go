package reactive

import (
	"github.com/petermattis/goid"
)

// frameKind says what sort of consumer is currently evaluating. Write
// legality depends on it: computed functions may never write, effect bodies
// only with AllowWrites, view renders and plain code always may.
type frameKind uint8

const (
	frameUntracked frameKind = iota
	frameComputed
	frameEffect
	frameView
)

// frame is one level of the current-consumer stack. While a frame is on top,
// every cell or computed read registers an edge to its consumer and records
// the version observed.
type frame struct {
	kind        frameKind
	consumer    consumer
	allowWrites bool

	// records accumulates the dependency set in read order, deduplicated
	// by source ID.
	records []sourceRecord
	seen    map[uint64]struct{}
}

func (f *frame) record(src source) {
	id := src.sourceID()
	if _, ok := f.seen[id]; ok {
		return
	}
	if f.seen == nil {
		f.seen = make(map[uint64]struct{})
	}
	f.seen[id] = struct{}{}
	f.records = append(f.records, sourceRecord{src: src, version: src.sourceVersion()})
}

// pendingNotification is a notification deferred by an open Batch.
type pendingNotification struct {
	c        consumer
	definite bool
}

// goroutineState is the per-goroutine slice of the tracking machinery:
// the consumer stack plus batch bookkeeping. Evaluations are synchronous,
// so the stack never outlives the call that pushed it.
type goroutineState struct {
	frames        []*frame
	batchDepth    int
	pendingNotify []pendingNotification
}

// state returns the goroutine-local tracking state for this graph, creating
// it on first use. Keyed by goroutine ID so independent goroutines (and
// independent graphs on one goroutine) never observe each other's stacks.
func (g *Graph) state() *goroutineState {
	gid := goid.Get()
	if st, ok := g.tracking.Load(gid); ok {
		return st.(*goroutineState)
	}
	st := &goroutineState{}
	g.tracking.Store(gid, st)
	return st
}

// currentFrame returns the innermost tracking frame, or nil when no tracked
// evaluation is in progress on this goroutine.
func (g *Graph) currentFrame() *frame {
	st := g.state()
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

func (g *Graph) pushFrame(f *frame) {
	st := g.state()
	st.frames = append(st.frames, f)
}

func (g *Graph) popFrame() *frame {
	st := g.state()
	f := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	return f
}

// touch registers a dependency edge from src to the currently evaluating
// consumer, if any. Untracked reads (no frame, or an Untracked section)
// return without side effects.
func (g *Graph) touch(src source) {
	f := g.currentFrame()
	if f == nil || f.consumer == nil {
		return
	}
	src.addConsumer(f.consumer)
	f.record(src)
}

// checkWrite panics if a cell write is illegal in the current evaluation
// context. Panicking before any mutation keeps the graph in its pre-call
// state.
func (g *Graph) checkWrite() {
	f := g.currentFrame()
	if f == nil {
		return
	}
	switch f.kind {
	case frameComputed:
		panic(&WriteDuringComputationError{ComputedID: f.consumer.consumerID()})
	case frameEffect:
		if !f.allowWrites {
			panic(&WriteDuringEffectError{EffectID: f.consumer.consumerID()})
		}
	}
}

// deliver routes a notification to a consumer, honoring an open Batch on the
// writing goroutine: inside a batch the notification is queued and fanned
// out, deduplicated, when the outermost batch closes.
func (g *Graph) deliver(c consumer, definite bool) {
	st := g.state()
	if st.batchDepth > 0 {
		st.pendingNotify = append(st.pendingNotify, pendingNotification{c: c, definite: definite})
		return
	}
	c.invalidate(definite)
}

// Batch groups multiple cell writes into a single notification phase. All
// writes inside fn are applied immediately, but consumer notifications are
// collected, deduplicated, and delivered once when the outermost batch
// completes. Batches nest.
//
// The scheduler already coalesces same-turn notifications into one flush;
// Batch additionally suppresses the intermediate invalidation walks, which
// matters for hot write paths fanning out to large consumer sets.
func (g *Graph) Batch(fn func()) {
	st := g.state()
	st.batchDepth++

	defer func() {
		st.batchDepth--
		if st.batchDepth != 0 {
			return
		}
		pending := st.pendingNotify
		st.pendingNotify = nil

		// Deduplicate by consumer ID, letting a definite notification
		// win over a speculative one for the same consumer.
		definite := make(map[uint64]bool, len(pending))
		order := make([]consumer, 0, len(pending))
		for _, p := range pending {
			id := p.c.consumerID()
			if _, ok := definite[id]; !ok {
				order = append(order, p.c)
			}
			definite[id] = definite[id] || p.definite
		}
		for _, c := range order {
			c.invalidate(definite[c.consumerID()])
		}
	}()

	fn()
}

// Untracked runs fn with dependency tracking suspended. Cell reads inside fn
// do not subscribe the currently evaluating consumer.
//
// For single reads, Cell.Peek is the cheaper equivalent.
func (g *Graph) Untracked(fn func()) {
	g.pushFrame(&frame{kind: frameUntracked})
	defer g.popFrame()
	fn()
}
