package reactive

import "testing"

func TestScopeDisposesAttached(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	c := NewCell(g, 0)
	sc := NewScope(nil)

	runs := 0
	sc.Attach(NewEffect(g, func() Cleanup {
		c.Get()
		runs++
		return nil
	}))

	sc.Dispose()
	c.Set(1)
	g.FlushSync()
	if runs != 1 {
		t.Errorf("effect survived scope disposal: %d runs", runs)
	}
}

func TestScopeDisposalOrder(t *testing.T) {
	var log []string

	root := NewScope(nil)
	child1 := NewScope(root)
	child2 := NewScope(root)

	child1.OnCleanup(func() { log = append(log, "child1") })
	child2.OnCleanup(func() { log = append(log, "child2") })
	root.OnCleanup(func() { log = append(log, "root") })

	root.Dispose()

	// Children go down in reverse creation order, before the root's own
	// cleanups.
	want := []string{"child2", "child1", "root"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}
}

func TestScopeAttachAfterDisposeDisposesImmediately(t *testing.T) {
	g := New(WithManualFlush())
	defer g.Close()

	sc := NewScope(nil)
	sc.Dispose()

	e := NewEffect(g, func() Cleanup { return nil })
	sc.Attach(e)

	if !e.isDisposed() {
		t.Error("attach to disposed scope did not dispose the effect")
	}
}

func TestScopeOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	sc := NewScope(nil)
	sc.Dispose()

	ran := false
	sc.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup on disposed scope did not run")
	}
}

func TestScopeDisposeIsIdempotent(t *testing.T) {
	count := 0
	sc := NewScope(nil)
	sc.OnCleanup(func() { count++ })

	sc.Dispose()
	sc.Dispose()
	if count != 1 {
		t.Errorf("cleanup ran %d times", count)
	}
}
