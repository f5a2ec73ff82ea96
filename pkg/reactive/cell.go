package reactive

import "sync"

// Cell is a writable reactive storage location. Reading a Cell during a
// tracked evaluation (a computed function, an effect body, or a view render)
// automatically subscribes that consumer to the cell's changes.
//
// A Cell carries a monotonic version stamp that advances only when a write
// is judged unequal to the prior value, so no-op writes never propagate.
type Cell[T any] struct {
	node cellNode

	value T
	mu    sync.RWMutex

	// equal decides whether a write changed the value. Nil means
	// defaultEquals.
	equal func(T, T) bool
}

// CellOption configures a Cell at construction time.
type CellOption[T any] func(*Cell[T])

// WithEquals sets a custom equality function for change detection. Useful
// when reflect.DeepEqual is too expensive or has the wrong semantics for T.
func WithEquals[T any](fn func(T, T) bool) CellOption[T] {
	return func(c *Cell[T]) {
		c.equal = fn
	}
}

// NewCell creates a cell holding initial, owned by graph g.
func NewCell[T any](g *Graph, initial T, opts ...CellOption[T]) *Cell[T] {
	c := &Cell[T]{
		node: cellNode{
			id:    nextID(),
			graph: g,
		},
		value: initial,
	}
	for _, opt := range opts {
		opt(c)
	}
	g.cellCount.Add(1)
	return c
}

// Get returns the current value and, when called during a tracked
// evaluation, registers a dependency edge from this cell to the evaluating
// consumer. Outside tracked evaluation it is a plain read.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	value := c.value
	c.mu.RUnlock()

	c.node.graph.touch(&c.node)
	return value
}

// Peek returns the current value without registering a dependency.
func (c *Cell[T]) Peek() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set writes a new value. Writes judged equal to the current value are
// complete no-ops: no version bump, no notification. Unequal writes bump the
// version and invalidate every consumer, which arms the deferred flush.
//
// Set panics with *WriteDuringComputationError when called from inside a
// computed function and with *WriteDuringEffectError from an effect body
// lacking AllowWrites.
func (c *Cell[T]) Set(value T) {
	c.node.graph.checkWrite()

	c.mu.Lock()
	changed := !c.equals(c.value, value)
	if changed {
		c.value = value
		c.node.bumpVersion()
	}
	c.mu.Unlock()

	if changed {
		c.node.notifyConsumers(true)
	}
}

// Update applies fn to the current value and writes the result. The read of
// the current value is untracked; Update never subscribes anyone.
func (c *Cell[T]) Update(fn func(T) T) {
	c.node.graph.checkWrite()

	c.mu.Lock()
	next := fn(c.value)
	changed := !c.equals(c.value, next)
	if changed {
		c.value = next
		c.node.bumpVersion()
	}
	c.mu.Unlock()

	if changed {
		c.node.notifyConsumers(true)
	}
}

// Version returns the cell's current version stamp.
func (c *Cell[T]) Version() uint64 {
	return c.node.sourceVersion()
}

// ID returns the unique identifier of this cell.
func (c *Cell[T]) ID() uint64 {
	return c.node.id
}

func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}
