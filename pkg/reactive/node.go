package reactive

import (
	"sync"
	"sync/atomic"
)

// source is anything a consumer can depend on: cells and computed nodes.
// Sources carry a monotonic version stamp; a consumer decides whether it is
// truly stale by comparing the versions it recorded at its last evaluation
// against the versions its sources report now.
type source interface {
	// sourceID returns the unique identifier of this source.
	sourceID() uint64

	// sourceVersion returns the current version stamp. The stamp advances
	// only when the source's value actually changed under its equality
	// function.
	sourceVersion() uint64

	// syncSource brings a derived source up to date without registering a
	// dependency edge. Plain cells are always current; computed nodes
	// verify their own sources and recompute here if needed.
	syncSource()

	// addConsumer and removeConsumer maintain the back-edge set.
	addConsumer(c consumer)
	removeConsumer(id uint64)
}

// consumer is anything notified when a source it depends on changes:
// computed nodes, effects, and views.
type consumer interface {
	// consumerID returns the unique identifier of this consumer.
	consumerID() uint64

	// invalidate records that a source changed. definite is true when the
	// change is known (a cell write landed), false when it is speculative
	// (an upstream computed node left its clean state but has not
	// recomputed yet).
	invalidate(definite bool)

	// isDisposed reports whether the consumer has been torn down. Sources
	// prune disposed consumers lazily on the next notification.
	isDisposed() bool
}

// dirtyState is the per-consumer invalidation state machine. The distinction
// between stateCheck and stateDirty is what makes propagation minimal: a
// consumer in stateCheck verifies its sources before doing any work, and a
// computed node that re-evaluates to an equal value never advances its
// version, so downstream verification comes back clean.
type dirtyState uint32

const (
	// stateClean means the consumer's last result is trustworthy.
	stateClean dirtyState = iota

	// stateCheck means an upstream computed node may have changed; the
	// consumer must verify source versions before trusting its result.
	stateCheck

	// stateDirty means a definite change occurred and the consumer must
	// re-evaluate.
	stateDirty
)

// nodeState holds a consumer's invalidation level with atomic raise
// semantics. Notifications only ever raise the level; evaluation resets it.
type nodeState struct {
	v atomic.Uint32
}

func (s *nodeState) load() dirtyState {
	return dirtyState(s.v.Load())
}

func (s *nodeState) store(d dirtyState) {
	s.v.Store(uint32(d))
}

// raise lifts the state to at least d and returns the previous value.
func (s *nodeState) raise(d dirtyState) dirtyState {
	for {
		old := s.v.Load()
		if old >= uint32(d) {
			return dirtyState(old)
		}
		if s.v.CompareAndSwap(old, uint32(d)) {
			return dirtyState(old)
		}
	}
}

// cellNode provides type-erased version and consumer management. It is
// embedded in Cell[T] and Computed[T] to share notification logic.
type cellNode struct {
	id    uint64
	graph *Graph

	// version advances only on writes judged unequal to the prior value.
	version atomic.Uint64

	// consumers holds the back-edges to everything that read this source
	// during its consumer's last evaluation. Keyed by consumer ID so edges
	// added and removed by dependency rebuilding are O(1).
	consumers map[uint64]consumer
	consMu    sync.Mutex
}

func (n *cellNode) sourceID() uint64 {
	return n.id
}

func (n *cellNode) sourceVersion() uint64 {
	return n.version.Load()
}

// syncSource implements source for plain cells, which are always current.
// Computed nodes shadow this with their verify-and-recompute logic.
func (n *cellNode) syncSource() {}

func (n *cellNode) bumpVersion() {
	n.version.Add(1)
}

func (n *cellNode) addConsumer(c consumer) {
	if c == nil {
		return
	}
	n.consMu.Lock()
	defer n.consMu.Unlock()
	if n.consumers == nil {
		n.consumers = make(map[uint64]consumer)
	}
	n.consumers[c.consumerID()] = c
}

func (n *cellNode) removeConsumer(id uint64) {
	n.consMu.Lock()
	defer n.consMu.Unlock()
	delete(n.consumers, id)
}

// notifyConsumers invalidates every live consumer of this node. Disposed
// consumers encountered along the way are pruned rather than notified.
// Uses copy-before-notify to avoid holding the lock during notification.
func (n *cellNode) notifyConsumers(definite bool) {
	n.consMu.Lock()
	targets := make([]consumer, 0, len(n.consumers))
	for id, c := range n.consumers {
		if c.isDisposed() {
			delete(n.consumers, id)
			continue
		}
		targets = append(targets, c)
	}
	n.consMu.Unlock()

	for _, c := range targets {
		n.graph.deliver(c, definite)
	}
}

// sourceRecord is one dependency edge as observed during an evaluation,
// together with the source version seen at that time.
type sourceRecord struct {
	src     source
	version uint64
}

// sourceSet is a consumer's dependency set. It is rebuilt from scratch on
// every evaluation; stale edges from the previous evaluation are pruned so
// conditional reads drop dependencies they no longer take.
type sourceSet struct {
	mu      sync.Mutex
	records []sourceRecord
}

// replace installs the dependency set observed by the latest evaluation and
// unsubscribes the consumer from sources it no longer reads.
func (ss *sourceSet) replace(c consumer, fresh []sourceRecord) {
	keep := make(map[uint64]struct{}, len(fresh))
	for _, rec := range fresh {
		keep[rec.src.sourceID()] = struct{}{}
	}

	ss.mu.Lock()
	old := ss.records
	ss.records = fresh
	ss.mu.Unlock()

	for _, rec := range old {
		if _, ok := keep[rec.src.sourceID()]; !ok {
			rec.src.removeConsumer(c.consumerID())
		}
	}
}

// changed verifies the recorded sources in read order. Derived sources are
// synced first, so a chain of computed nodes is verified bottom-up; a source
// whose version still matches the recorded one contributed no real change.
func (ss *sourceSet) changed() bool {
	ss.mu.Lock()
	records := make([]sourceRecord, len(ss.records))
	copy(records, ss.records)
	ss.mu.Unlock()

	for _, rec := range records {
		rec.src.syncSource()
		if rec.src.sourceVersion() != rec.version {
			return true
		}
	}
	return false
}

// detachAll removes every back-edge, used on disposal.
func (ss *sourceSet) detachAll(c consumer) {
	ss.mu.Lock()
	records := ss.records
	ss.records = nil
	ss.mu.Unlock()

	for _, rec := range records {
		rec.src.removeConsumer(c.consumerID())
	}
}
