package reactive

import "testing"

func TestCellGetSet(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 42)
	if got := c.Get(); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	c.Set(100)
	if got := c.Get(); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestCellVersionOnlyAdvancesOnRealChange(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, "a")
	v0 := c.Version()

	c.Set("a") // equal write: no-op
	if c.Version() != v0 {
		t.Errorf("version advanced on equal write: %d -> %d", v0, c.Version())
	}

	c.Set("b")
	if c.Version() != v0+1 {
		t.Errorf("expected version %d, got %d", v0+1, c.Version())
	}
}

func TestCellEqualWriteDoesNotNotify(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 5)

	runs := 0
	NewEffect(g, func() Cleanup {
		c.Get()
		runs++
		return nil
	})
	if runs != 1 {
		t.Fatalf("expected 1 initial run, got %d", runs)
	}

	c.Set(5)
	g.FlushSync()
	if runs != 1 {
		t.Errorf("equal write triggered effect rerun: %d runs", runs)
	}
}

func TestCellUpdate(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 10)
	c.Update(func(n int) int { return n + 5 })
	if got := c.Peek(); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
}

func TestCellUpdateReadIsUntracked(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	src := NewCell(g, 1)
	dst := NewCell(g, 0)

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		v := src.Get()
		dst.Update(func(int) int { return v })
		return nil
	}, AllowWrites())

	if runs != 1 {
		t.Fatalf("expected 1 run, got %d", runs)
	}

	// The Update read of dst must not have subscribed the effect to dst;
	// otherwise this write would loop the effect through the flush.
	src.Set(2)
	g.FlushSync()
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestCellCustomEquality(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	// Treat values as equal mod 10.
	c := NewCell(g, 3, WithEquals[int](func(a, b int) bool {
		return a%10 == b%10
	}))

	v0 := c.Version()
	c.Set(13)
	if c.Version() != v0 {
		t.Errorf("write equal under custom equality bumped version")
	}
	c.Set(4)
	if c.Version() != v0+1 {
		t.Errorf("unequal write did not bump version")
	}
}

func TestCellPeekDoesNotSubscribe(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 1)

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		c.Peek()
		return nil
	})

	c.Set(2)
	g.FlushSync()
	if runs != 1 {
		t.Errorf("Peek subscribed the effect: %d runs", runs)
	}
}

func TestWriteDuringComputationPanics(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	victim := NewCell(g, 0)
	src := NewCell(g, 1)

	bad := NewComputed(g, func() int {
		victim.Set(99)
		return src.Get()
	})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if _, ok := r.(*WriteDuringComputationError); !ok {
			t.Fatalf("expected *WriteDuringComputationError, got %T", r)
		}
		// The graph must be left in its pre-call state.
		if victim.Peek() != 0 {
			t.Errorf("victim cell mutated despite rejected write: %d", victim.Peek())
		}
	}()
	bad.Get()
}

func TestWriteDuringEffectPanicsWithoutOptIn(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if _, ok := r.(*WriteDuringEffectError); !ok {
			t.Fatalf("expected *WriteDuringEffectError, got %T", r)
		}
	}()
	NewEffect(g, func() Cleanup {
		c.Set(1)
		return nil
	})
}

func TestWriteDuringEffectAllowedWithOptIn(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)
	NewEffect(g, func() Cleanup {
		c.Set(1)
		return nil
	}, AllowWrites())

	if c.Peek() != 1 {
		t.Errorf("expected 1, got %d", c.Peek())
	}
}

func TestUntrackedSuppressesSubscription(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	tracked := NewCell(g, 1)
	ignored := NewCell(g, 1)

	runs := 0
	NewEffect(g, func() Cleanup {
		runs++
		tracked.Get()
		g.Untracked(func() {
			ignored.Get()
		})
		return nil
	})

	ignored.Set(2)
	g.FlushSync()
	if runs != 1 {
		t.Errorf("untracked read subscribed the effect: %d runs", runs)
	}

	tracked.Set(2)
	g.FlushSync()
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}
