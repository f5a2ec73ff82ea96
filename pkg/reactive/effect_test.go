package reactive

import (
	"errors"
	"testing"
)

func TestEffectRunsImmediately(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		return nil
	})
	if runs != 1 {
		t.Errorf("expected immediate run, got %d", runs)
	}
}

func TestEffectRerunsAfterFlush(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	var seen []int
	NewEffect(g, func() Cleanup {
		seen = append(seen, c.Get())
		return nil
	})

	c.Set(1)
	// Not yet: reruns wait for the flush.
	if len(seen) != 1 {
		t.Fatalf("effect reran synchronously: %v", seen)
	}

	g.FlushSync()
	if len(seen) != 2 || seen[1] != 1 {
		t.Errorf("expected [0 1], got %v", seen)
	}
}

func TestEffectCleanupBeforeRerunAndOnDispose(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	var log []string
	e := NewEffect(g, func() Cleanup {
		c.Get()
		log = append(log, "run")
		return func() {
			log = append(log, "cleanup")
		}
	})

	c.Set(1)
	g.FlushSync()
	e.Dispose()

	want := []string{"run", "cleanup", "run", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}
}

func TestEffectDisposeStopsReruns(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	runs := 0
	e := NewEffect(g, func() Cleanup {
		c.Get()
		runs++
		return nil
	})

	e.Dispose()
	c.Set(1)
	g.FlushSync()
	if runs != 1 {
		t.Errorf("disposed effect reran: %d runs", runs)
	}
}

func TestEffectDisposeWhilePendingIsSafe(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	runs := 0
	e := NewEffect(g, func() Cleanup {
		c.Get()
		runs++
		return nil
	})

	c.Set(1) // queued
	e.Dispose()
	g.FlushSync()
	if runs != 1 {
		t.Errorf("effect ran after disposal: %d runs", runs)
	}
}

func TestEffectPanicDoesNotAbortSiblings(t *testing.T) {
	var handled []error
	g := New(WithManualFlush(), WithErrorHandler(func(err error) {
		handled = append(handled, err)
	}))
	defer g.Close()

	c := NewCell(g, 0)

	NewEffect(g, func() Cleanup {
		if c.Get() > 0 {
			panic("boom")
		}
		return nil
	})

	siblingRuns := 0
	NewEffect(g, func() Cleanup {
		c.Get()
		siblingRuns++
		return nil
	})

	c.Set(1)
	g.FlushSync()

	if siblingRuns != 2 {
		t.Errorf("sibling effect aborted by panic: %d runs", siblingRuns)
	}
	if len(handled) != 1 {
		t.Fatalf("expected 1 handled error, got %d", len(handled))
	}
	var pe *EffectPanicError
	if !errors.As(handled[0], &pe) {
		t.Fatalf("expected *EffectPanicError, got %T", handled[0])
	}
}

func TestEffectVerificationPanicDoesNotStrandQueue(t *testing.T) {
	var handled []error
	g := New(WithManualFlush(), WithErrorHandler(func(err error) {
		handled = append(handled, err)
	}))
	defer g.Close()

	a := NewCell(g, 0)
	b := NewCell(g, 0)

	// The panic fires while the effect verifies its sources, not in its own
	// body.
	poisoned := NewComputed(g, func() int {
		if a.Get() > 0 {
			panic("compute boom")
		}
		return 0
	})

	NewEffect(g, func() Cleanup {
		poisoned.Get()
		return nil
	})

	siblingRuns := 0
	NewEffect(g, func() Cleanup {
		b.Get()
		siblingRuns++
		return nil
	})

	a.Set(1)
	b.Set(1)
	g.FlushSync()

	if siblingRuns != 2 {
		t.Fatalf("sibling effect stranded by verification panic: %d runs", siblingRuns)
	}
	if len(handled) != 1 {
		t.Fatalf("expected 1 handled error, got %d", len(handled))
	}
	var pe *EffectPanicError
	if !errors.As(handled[0], &pe) {
		t.Fatalf("expected *EffectPanicError, got %T", handled[0])
	}

	b.Set(2)
	g.FlushSync()
	if siblingRuns != 3 {
		t.Errorf("sibling effect never ran again: %d runs", siblingRuns)
	}
}

func TestEffectsRunInRegistrationOrder(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	const n = 6
	var order []int
	for i := 0; i < n; i++ {
		i := i
		NewEffect(g, func() Cleanup {
			c.Get()
			order = append(order, i)
			return nil
		})
	}

	// The notification fan-out walks a map, so a single pass can come out
	// ordered by luck. Repeat enough flushes that a stray ordering would
	// show up.
	for trial := 1; trial <= 20; trial++ {
		order = nil
		c.Set(trial)
		g.FlushSync()

		if len(order) != n {
			t.Fatalf("trial %d: expected %d effect runs, got %v", trial, n, order)
		}
		for i, got := range order {
			if got != i {
				t.Fatalf("trial %d: effects ran out of registration order: got %v", trial, order)
			}
		}
	}
}

func TestEffectDeduplicatedWithinFlush(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	a := NewCell(g, 0)
	b := NewCell(g, 0)

	runs := 0
	NewEffect(g, func() Cleanup {
		a.Get()
		b.Get()
		runs++
		return nil
	})

	a.Set(1)
	b.Set(1)
	g.FlushSync()
	if runs != 2 {
		t.Errorf("expected one coalesced rerun, got %d total runs", runs)
	}
}

func TestEffectWriteFeedbackLoopsUntilSettled(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	counter := NewCell(g, 0)

	NewEffect(g, func() Cleanup {
		if v := counter.Get(); v < 3 {
			counter.Set(v + 1)
		}
		return nil
	}, AllowWrites())

	g.FlushSync()
	if got := counter.Peek(); got != 3 {
		t.Errorf("expected feedback loop to settle at 3, got %d", got)
	}
}

func TestEffectWriteLoopHitsIterationLimit(t *testing.T) {
	g := New(WithManualFlush(), WithFlushIterationLimit(10))
	defer g.Close()

	counter := NewCell(g, 0)
	NewEffect(g, func() Cleanup {
		counter.Set(counter.Get() + 1)
		return nil
	}, AllowWrites())

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		le, ok := r.(*FlushIterationLimitError)
		if !ok {
			t.Fatalf("expected *FlushIterationLimitError, got %T", r)
		}
		if le.Limit != 10 {
			t.Errorf("expected limit 10, got %d", le.Limit)
		}
	}()
	g.FlushSync()
}
