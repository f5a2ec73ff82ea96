package rtest

import (
	"testing"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

func TestRecorderCapturesFlushOrder(t *testing.T) {
	g := NewGraph(t)

	name := reactive.NewCell(g, "world")
	greeting := reactive.NewComputed(g, func() string {
		return "hello, " + name.Get()
	})

	rec := Record(g, greeting.Get)
	defer rec.Stop()

	name.Set("Ada")
	g.FlushSync()
	name.Set("Grace")
	g.FlushSync()

	rec.ExpectSequence(t, "hello, world", "hello, Ada", "hello, Grace")
}

func TestRecorderCoalescesWithinFlush(t *testing.T) {
	g := NewGraph(t)

	n := reactive.NewCell(g, 0)
	rec := Record(g, n.Get)
	defer rec.Stop()

	n.Set(1)
	n.Set(2)
	n.Set(3)
	g.FlushSync()

	// Three writes, one flush, one recorded rerun.
	rec.ExpectSequence(t, 0, 3)
}

func TestRecorderStop(t *testing.T) {
	g := NewGraph(t)

	n := reactive.NewCell(g, 0)
	rec := Record(g, n.Get)
	rec.Stop()

	n.Set(1)
	g.FlushSync()

	if rec.Len() != 1 {
		t.Errorf("stopped recorder kept recording: %v", rec.Values())
	}
}

func TestExpectHelpers(t *testing.T) {
	g := NewGraph(t)

	c := reactive.NewCell(g, []int{1, 2, 3})
	double := reactive.NewComputed(g, func() []int {
		in := c.Get()
		out := make([]int, len(in))
		for i, v := range in {
			out[i] = v * 2
		}
		return out
	})

	ExpectCell(t, c, []int{1, 2, 3})
	ExpectComputed(t, double, []int{2, 4, 6})
	ExpectValue(t, double.Peek(), []int{2, 4, 6})
}

func TestEventuallyWithBackgroundGraph(t *testing.T) {
	g := NewBackgroundGraph(t)

	n := reactive.NewCell(g, 0)
	rec := Record(g, n.Get)
	defer rec.Stop()

	n.Set(42)
	Eventually(t, "background flush", func() bool { return rec.Len() == 2 })
	rec.ExpectSequence(t, 0, 42)
}
