// Package rtest provides testing helpers for reactive graphs.
//
// The rtest package reduces boilerplate when testing reactive code by
// providing deterministic graph constructors, diff-based assertions, and a
// value recorder.
//
// # Quick Start
//
//	func TestGreeting(t *testing.T) {
//	    g := rtest.NewGraph(t)
//	    name := reactive.NewCell(g, "world")
//	    greeting := reactive.NewComputed(g, func() string {
//	        return "hello, " + name.Get()
//	    })
//
//	    rec := rtest.Record(g, greeting.Get)
//	    name.Set("Ada")
//	    g.FlushSync()
//
//	    rec.ExpectSequence(t, "hello, world", "hello, Ada")
//	}
//
// # Deterministic Graphs
//
// NewGraph returns a graph in manual-flush mode: invalidations queue up
// until the test calls FlushSync, so every test controls exactly when
// effects and views run. NewBackgroundGraph keeps the normal flush loop for
// tests that exercise asynchronous behavior; pair it with Eventually.
package rtest
