package reactive

import (
	"sync"
	"sync/atomic"
)

// Computed is a lazily evaluated, memoized derived cell. Its function runs
// with tracking enabled, so the dependency set is discovered at runtime and
// rebuilt on every evaluation; conditional reads add and drop edges freely.
//
// A Computed is never evaluated eagerly. Invalidation reaches it as a small
// state machine: a definite change in a source marks it Dirty, a speculative
// change (an upstream computed left Clean but has not been verified) marks
// it Check. A node read while in Check verifies its sources in read order
// first and only recomputes when some source's version actually advanced.
// Recomputing to an equal value leaves the node's version untouched, so its
// own dependents verify clean and propagation stops there.
type Computed[T any] struct {
	node cellNode

	compute func() T

	value T
	mu    sync.RWMutex

	state   nodeState
	sources sourceSet

	// computing guards against a node re-entering its own evaluation.
	computing atomic.Bool

	equal func(T, T) bool
}

// ComputedOption configures a Computed at construction time.
type ComputedOption[T any] func(*Computed[T])

// WithComputedEquals sets a custom equality function for deciding whether a
// recomputation produced a new value.
func WithComputedEquals[T any](fn func(T, T) bool) ComputedOption[T] {
	return func(m *Computed[T]) {
		m.equal = fn
	}
}

// NewComputed creates a computed node over fn. fn is not run here; the first
// Get evaluates it.
func NewComputed[T any](g *Graph, fn func() T, opts ...ComputedOption[T]) *Computed[T] {
	m := &Computed[T]{
		node: cellNode{
			id:    nextID(),
			graph: g,
		},
		compute: fn,
	}
	m.state.store(stateDirty)
	for _, opt := range opts {
		opt(m)
	}
	g.computedCount.Add(1)
	return m
}

// Get returns the node's value, verifying and recomputing first when
// invalidation reached it since the last evaluation. Like Cell.Get it
// registers a dependency edge for the currently evaluating consumer.
//
// Get panics with *CyclicComputationError when the node ends up reading
// itself through its own computation.
func (m *Computed[T]) Get() T {
	m.syncSource()
	m.node.graph.touch(m)

	m.mu.RLock()
	value := m.value
	m.mu.RUnlock()
	return value
}

// Peek returns the value without registering a dependency. It still
// verifies and recomputes if the cached value is stale.
func (m *Computed[T]) Peek() T {
	m.syncSource()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Version returns the node's version stamp. It advances only when a
// recomputation produced an unequal value.
func (m *Computed[T]) Version() uint64 {
	return m.node.sourceVersion()
}

// ID returns the unique identifier of this node.
func (m *Computed[T]) ID() uint64 {
	return m.node.id
}

// invalidate implements consumer. On the first notification that moves the
// node out of Clean it pushes a speculative Check notification to its own
// consumers, without recomputing anything yet; recomputation stays pull
// based.
func (m *Computed[T]) invalidate(definite bool) {
	target := stateCheck
	if definite {
		target = stateDirty
	}
	prev := m.state.raise(target)
	if prev == stateClean {
		m.node.notifyConsumers(false)
	}
}

// syncSource implements source: it brings the cached value up to date.
// In Check, sources are verified in the order they were read; the first
// version mismatch forces a recomputation, and a fully matching set means
// the invalidation was a false alarm and the node returns to Clean without
// touching its dependents.
func (m *Computed[T]) syncSource() {
	switch m.state.load() {
	case stateClean:
		return
	case stateCheck:
		if m.sources.changed() {
			m.recompute()
		} else {
			m.state.store(stateClean)
		}
	case stateDirty:
		m.recompute()
	}
}

// recompute evaluates the function with tracking enabled, rebuilds the
// dependency set from what was actually read, and bumps the version only
// when the result is unequal to the cached value.
func (m *Computed[T]) recompute() {
	if m.computing.Swap(true) {
		panic(&CyclicComputationError{ComputedID: m.node.id})
	}
	defer m.computing.Store(false)

	g := m.node.graph
	f := &frame{kind: frameComputed, consumer: m}
	g.pushFrame(f)

	var next T
	func() {
		// Pop even when the computation panics so the consumer stack
		// stays balanced for the caller.
		defer g.popFrame()
		next = m.compute()
	}()

	m.sources.replace(m, f.records)

	m.mu.Lock()
	changed := !m.equals(m.value, next)
	if changed {
		m.value = next
		m.node.bumpVersion()
	}
	m.mu.Unlock()

	m.state.store(stateClean)
}

func (m *Computed[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

func (m *Computed[T]) consumerID() uint64 { return m.node.id }
func (m *Computed[T]) isDisposed() bool   { return false }

func (m *Computed[T]) sourceID() uint64         { return m.node.id }
func (m *Computed[T]) sourceVersion() uint64    { return m.node.sourceVersion() }
func (m *Computed[T]) addConsumer(c consumer)   { m.node.addConsumer(c) }
func (m *Computed[T]) removeConsumer(id uint64) { m.node.removeConsumer(id) }
