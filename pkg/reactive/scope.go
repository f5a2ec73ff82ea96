package reactive

import (
	"sync"
	"sync/atomic"
)

// Disposable is anything a Scope can tear down: effects, views, resources,
// child scopes.
type Disposable interface {
	Dispose()
}

// Scope groups reactive consumers so they can be disposed together. Scopes
// form a tree mirroring whatever unit structure the caller has (a widget, a
// session, a test); disposing a scope disposes its children in reverse
// creation order, then its attached consumers, then runs registered
// cleanups.
type Scope struct {
	id     uint64
	parent *Scope

	mu       sync.Mutex
	children []*Scope
	attached []Disposable
	cleanups []func()

	disposed atomic.Bool
}

// NewScope creates a scope. A nil parent makes a root scope; otherwise the
// new scope registers as a child and is torn down with its parent.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return s
}

// Attach registers a disposable with this scope and returns it unchanged,
// so constructions chain:
//
//	e := sc.Attach(reactive.NewEffect(g, body)).(*reactive.Effect)
//
// Attaching to an already disposed scope disposes d immediately.
func (s *Scope) Attach(d Disposable) Disposable {
	if d == nil {
		return nil
	}
	if s.disposed.Load() {
		d.Dispose()
		return d
	}
	s.mu.Lock()
	s.attached = append(s.attached, d)
	s.mu.Unlock()
	return d
}

// OnCleanup registers a function to run when the scope is disposed. On an
// already disposed scope fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.disposed.Load() {
		fn()
		return
	}
	s.mu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// IsDisposed reports whether Dispose has run.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

// Dispose tears the scope down: children in reverse order, then attached
// consumers in reverse order, then cleanups in reverse order. Idempotent.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.mu.Lock()
	children := s.children
	attached := s.attached
	cleanups := s.cleanups
	s.children = nil
	s.attached = nil
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
	for i := len(attached) - 1; i >= 0; i-- {
		attached[i].Dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

func (s *Scope) removeChild(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}
