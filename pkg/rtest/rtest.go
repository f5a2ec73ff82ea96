package rtest

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// NewGraph creates a manually flushed graph and closes it when the test
// ends. Manual flushing makes tests deterministic: nothing runs until the
// test calls g.FlushSync().
//
// Example:
//
//	g := rtest.NewGraph(t)
//	count := reactive.NewCell(g, 0)
func NewGraph(t *testing.T, opts ...reactive.Option) *reactive.Graph {
	t.Helper()
	opts = append([]reactive.Option{reactive.WithManualFlush()}, opts...)
	g := reactive.New(opts...)
	t.Cleanup(g.Close)
	return g
}

// NewBackgroundGraph creates a graph with the normal background flush loop,
// closed when the test ends. Use Settle or Eventually to wait for flushes.
func NewBackgroundGraph(t *testing.T, opts ...reactive.Option) *reactive.Graph {
	t.Helper()
	g := reactive.New(opts...)
	t.Cleanup(g.Close)
	return g
}

// ExpectValue asserts two values are equal, reporting a structured diff on
// mismatch.
//
// Example:
//
//	rtest.ExpectValue(t, total.Get(), 42)
func ExpectValue[T any](t *testing.T, got, want T) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

// ExpectCell asserts a cell's current value without subscribing to it.
func ExpectCell[T any](t *testing.T, c *reactive.Cell[T], want T) {
	t.Helper()
	if diff := cmp.Diff(want, c.Peek()); diff != "" {
		t.Errorf("cell value mismatch (-want +got):\n%s", diff)
	}
}

// ExpectComputed asserts a computed node's current value without
// subscribing, recomputing it first if it is stale.
func ExpectComputed[T any](t *testing.T, m *reactive.Computed[T], want T) {
	t.Helper()
	if diff := cmp.Diff(want, m.Peek()); diff != "" {
		t.Errorf("computed value mismatch (-want +got):\n%s", diff)
	}
}

// Eventually polls cond until it holds, failing the test after two seconds.
// Use it for asynchronous completions such as resource loads.
//
// Example:
//
//	rtest.Eventually(t, "user to load", func() bool {
//	    return user.Status() == resource.StatusResolved
//	})
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Recorder captures every value an expression produces as its dependencies
// change. It is backed by an effect, so values arrive in flush order.
type Recorder[T any] struct {
	effect *reactive.Effect

	mu     sync.Mutex
	values []T
}

// Record starts recording the expression's value. The first value is
// captured immediately; later ones on each flush where the value's
// dependencies changed.
//
// Example:
//
//	rec := rtest.Record(g, func() string { return greeting.Get() })
//	name.Set("Ada")
//	g.FlushSync()
//	rec.ExpectSequence(t, "hello, world", "hello, Ada")
func Record[T any](g *reactive.Graph, expr func() T) *Recorder[T] {
	r := &Recorder[T]{}
	r.effect = reactive.NewEffect(g, func() reactive.Cleanup {
		v := expr()
		r.mu.Lock()
		r.values = append(r.values, v)
		r.mu.Unlock()
		return nil
	})
	return r
}

// Values returns a copy of everything recorded so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns how many values have been recorded.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// ExpectSequence asserts the exact sequence of recorded values.
func (r *Recorder[T]) ExpectSequence(t *testing.T, want ...T) {
	t.Helper()
	if diff := cmp.Diff(want, r.Values()); diff != "" {
		t.Errorf("recorded sequence mismatch (-want +got):\n%s", diff)
	}
}

// Stop disposes the underlying effect. Recorded values stay readable.
func (r *Recorder[T]) Stop() {
	r.effect.Dispose()
}
