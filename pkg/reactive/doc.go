// Package reactive implements a fine-grained reactive dependency graph with
// a coalescing change-detection scheduler.
//
// The graph is built from four primitives. Cells hold values; computed nodes
// derive memoized values from other cells; effects run side effects after
// changes settle; views are opaque render units owned by an external
// collaborator. Dependencies are tracked automatically: reading a cell while
// a computed, effect, or view is evaluating records an edge, and the edge
// set is rebuilt on every evaluation so conditional reads stay precise.
//
//	g := reactive.New()
//	defer g.Close()
//
//	count := reactive.NewCell(g, 0)
//	double := reactive.NewComputed(g, func() int { return count.Get() * 2 })
//
//	reactive.NewEffect(g, func() reactive.Cleanup {
//	    fmt.Println("double is", double.Get())
//	    return nil
//	})
//
//	count.Set(21) // effect reruns after the deferred flush
//
// # Invalidation and scheduling
//
// Writes push invalidation through the graph immediately, but recomputation
// is pulled lazily. A computed node distinguishes a definite change in a
// source (Dirty) from a speculative one (Check); a node read while in Check
// verifies recorded source versions before recomputing, and a recomputation
// that produces an equal value stops propagation at that node. All
// notifications raised within one synchronous turn coalesce into a single
// deferred flush that refreshes dirty views first and then runs pending
// effects in the order they were queued.
//
// Graph.FlushSync forces the pending flush inline; Graph.Batch suppresses
// intermediate notification fan-out across several writes.
//
// # Concurrency
//
// The scheduling model is single-threaded and cooperative: the graph's run
// loop is the one place flushes execute, and outside goroutines marshal
// their writes in through Graph.Dispatch. The primitives themselves are
// mutex-guarded so misuse fails gracefully rather than corrupting state, but
// the ordering guarantees (one flush per turn, views before effects, at most
// one evaluation of a computed per flush) are defined with respect to the
// run loop.
package reactive
