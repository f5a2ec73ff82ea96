package reactive

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// defaultFlushIterationLimit bounds the view/effect re-dirty loop inside one
// flush. Hitting it means effects with AllowWrites are chasing each other.
const defaultFlushIterationLimit = 100

// FlushStats summarizes one completed flush for observers.
type FlushStats struct {
	// Duration is the wall time the flush took, including all iterations.
	Duration time.Duration

	// Iterations counts how many view+effect passes were needed before the
	// queues settled. 1 for the common case; more when effects wrote cells.
	Iterations int

	// ViewsRefreshed and EffectsRun count consumers actually executed.
	ViewsRefreshed int
	EffectsRun     int

	// EffectsSkipped counts effects whose speculative invalidation turned
	// out to be a false alarm after source verification.
	EffectsSkipped int

	// EffectErrors counts effect bodies that panicked and were recovered.
	EffectErrors int
}

// FlushObserver receives callbacks around every flush. Implementations must
// be fast; they run synchronously on the flushing goroutine.
type FlushObserver interface {
	FlushStart()
	FlushEnd(stats FlushStats)
}

// scheduler coalesces all invalidation notifications produced within one
// synchronous turn into a single deferred flush, then orders the flush:
// dirty views first, queued effects second.
type scheduler struct {
	graph *Graph

	mu             sync.Mutex
	cond           *sync.Cond
	dirtyViews     []*View
	pendingEffects []*Effect
	flushPending   bool
	flushing       bool

	// flushMu serializes the flush body between the run loop and FlushSync.
	flushMu sync.Mutex

	maxIterations int
	manual        bool
	flushes       atomic.Int64

	obsMu     sync.RWMutex
	observers []FlushObserver

	// Run loop plumbing. wake has capacity 1: the first notification in a
	// turn arms it, later ones find it armed and do nothing.
	wake     chan struct{}
	dispatch chan func()
	done     chan struct{}
	loopWG   sync.WaitGroup
}

func newScheduler(g *Graph) *scheduler {
	s := &scheduler{
		graph:         g,
		maxIterations: defaultFlushIterationLimit,
		wake:          make(chan struct{}, 1),
		dispatch:      make(chan func(), 128),
		done:          make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *scheduler) start() {
	s.loopWG.Add(1)
	go s.loop()
}

func (s *scheduler) stop() {
	close(s.done)
	if !s.manual {
		s.loopWG.Wait()
	}
	s.cond.Broadcast()
}

// loop is the graph's single reactive thread: it runs deferred flushes and
// dispatched functions until the graph is closed.
func (s *scheduler) loop() {
	defer s.loopWG.Done()
	for {
		select {
		case <-s.wake:
			s.runFlushRecovered()
		case fn := <-s.dispatch:
			s.runDispatchRecovered(fn)
		case <-s.done:
			return
		}
	}
}

// runFlushRecovered shields the loop goroutine from structural flush panics;
// with no synchronous caller to receive them they go to the error handler.
func (s *scheduler) runFlushRecovered() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				s.graph.reportError(err)
				return
			}
			panic(r)
		}
	}()
	s.flush()
}

func (s *scheduler) runDispatchRecovered(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.graph.logger.Error("dispatch panic", "panic", r)
		}
	}()
	fn()
}

// submit queues fn onto the run loop.
func (s *scheduler) submit(fn func()) error {
	select {
	case s.dispatch <- fn:
		return nil
	case <-s.done:
		return ErrGraphClosed
	}
}

// enqueueView adds a view to the dirty set and arms the deferred flush.
// Callers have already deduplicated via the view's pending flag.
func (s *scheduler) enqueueView(v *View) {
	s.mu.Lock()
	s.dirtyViews = append(s.dirtyViews, v)
	s.armFlushLocked()
	s.mu.Unlock()
}

// enqueueEffect adds an effect to the pending queue in notification order.
func (s *scheduler) enqueueEffect(e *Effect) {
	s.mu.Lock()
	s.pendingEffects = append(s.pendingEffects, e)
	s.armFlushLocked()
	s.mu.Unlock()
}

// armFlushLocked schedules exactly one deferred flush per turn. Subsequent
// notifications within the turn find flushPending set and are no-ops with
// respect to scheduling.
func (s *scheduler) armFlushLocked() {
	if s.flushPending {
		return
	}
	s.flushPending = true
	if s.manual {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// flush drains the queues: views first, then effects, looping while effect
// writes re-populate them. Panics with *FlushIterationLimitError when the
// loop exceeds the configured cap.
//
// A flush whose first drain finds nothing (a notification landed during the
// previous flush and re-armed flushPending, but the work was absorbed by
// that same flush) is a no-op: it never touches the flush counter or the
// observers.
func (s *scheduler) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	s.flushPending = false
	views := s.dirtyViews
	effects := s.pendingEffects
	s.dirtyViews = nil
	s.pendingEffects = nil
	if len(views) == 0 && len(effects) == 0 {
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()

	start := time.Now()
	var stats FlushStats
	s.notifyFlushStart()

	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.cond.Broadcast()
		s.mu.Unlock()

		stats.Duration = time.Since(start)
		s.flushes.Add(1)
		s.notifyFlushEnd(stats)
	}()

	for {
		if stats.Iterations >= s.maxIterations {
			// Put the undrained snapshot back so the consumers (whose
			// pending flags are still set) stay queued for the next
			// flush instead of being stranded forever.
			s.mu.Lock()
			s.dirtyViews = append(views, s.dirtyViews...)
			s.pendingEffects = append(effects, s.pendingEffects...)
			s.armFlushLocked()
			s.mu.Unlock()
			panic(&FlushIterationLimitError{Limit: s.maxIterations})
		}
		stats.Iterations++

		// Queues fill in notification order, which for consumers sharing a
		// source is map-iteration order. Run in registration order instead.
		sort.Slice(views, func(i, j int) bool { return views[i].id < views[j].id })
		sort.Slice(effects, func(i, j int) bool { return effects[i].id < effects[j].id })

		for _, v := range views {
			if v.refresh() {
				stats.ViewsRefreshed++
			}
		}
		for _, e := range effects {
			switch e.flushRun() {
			case effectRan:
				stats.EffectsRun++
			case effectSkipped:
				stats.EffectsSkipped++
			case effectPanicked:
				stats.EffectsRun++
				stats.EffectErrors++
			}
		}

		s.mu.Lock()
		views = s.dirtyViews
		effects = s.pendingEffects
		s.dirtyViews = nil
		s.pendingEffects = nil
		s.mu.Unlock()

		if len(views) == 0 && len(effects) == 0 {
			return
		}
	}
}

// settle blocks until no flush is pending or running and both queues are
// empty.
func (s *scheduler) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.flushPending || s.flushing || len(s.dirtyViews) > 0 || len(s.pendingEffects) > 0 {
		if s.graph.closed.Load() {
			return
		}
		s.cond.Wait()
	}
}

func (s *scheduler) addObserver(o FlushObserver) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *scheduler) removeObserver(o FlushObserver) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *scheduler) notifyFlushStart() {
	s.obsMu.RLock()
	obs := make([]FlushObserver, len(s.observers))
	copy(obs, s.observers)
	s.obsMu.RUnlock()
	for _, o := range obs {
		o.FlushStart()
	}
}

func (s *scheduler) notifyFlushEnd(stats FlushStats) {
	s.obsMu.RLock()
	obs := make([]FlushObserver, len(s.observers))
	copy(obs, s.observers)
	s.obsMu.RUnlock()
	for _, o := range obs {
		o.FlushEnd(stats)
	}
}
