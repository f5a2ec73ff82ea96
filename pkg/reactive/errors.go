package reactive

import (
	"errors"
	"fmt"
)

// ErrGraphClosed is returned by Dispatch when the graph's run loop has been
// shut down via Close. Work submitted after Close is never executed.
var ErrGraphClosed = errors.New("reflow: graph closed")

// The error types below describe structural defects: bugs in how the
// reactive graph is being used, not recoverable runtime conditions. They are
// raised as panics at the offending call site (a write, a read, or a flush)
// so the defect surfaces where it was introduced. Effect-body panics are the
// exception: those are recovered per-effect during flush and reported to the
// graph's error handler without aborting sibling effects.

// WriteDuringComputationError reports a cell write attempted while a
// computed node's function was evaluating. Computed functions must be pure;
// a write from inside one would make invalidation order undefined.
type WriteDuringComputationError struct {
	// ComputedID identifies the computed node whose function performed
	// the write.
	ComputedID uint64
}

func (e *WriteDuringComputationError) Error() string {
	return fmt.Sprintf("reflow: cell write during computation of computed node %d", e.ComputedID)
}

// WriteDuringEffectError reports a cell write from an effect body that was
// not created with AllowWrites. Effects that intentionally feed values back
// into the graph must opt in so the feedback loop is visible at the
// construction site.
type WriteDuringEffectError struct {
	// EffectID identifies the effect whose body performed the write.
	EffectID uint64
}

func (e *WriteDuringEffectError) Error() string {
	return fmt.Sprintf("reflow: cell write during effect %d (use AllowWrites to opt in)", e.EffectID)
}

// CyclicComputationError reports a computed node that read itself, directly
// or through a chain of other computed nodes, during its own evaluation.
type CyclicComputationError struct {
	// ComputedID identifies the node that re-entered its own computation.
	ComputedID uint64
}

func (e *CyclicComputationError) Error() string {
	return fmt.Sprintf("reflow: cyclic dependency detected while computing node %d", e.ComputedID)
}

// FlushIterationLimitError reports a flush that failed to settle within the
// configured iteration limit. This almost always means effects with
// AllowWrites are feeding each other in an unbounded loop.
type FlushIterationLimitError struct {
	// Limit is the configured iteration cap that was exceeded.
	Limit int
}

func (e *FlushIterationLimitError) Error() string {
	return fmt.Sprintf("reflow: flush did not settle within %d iterations", e.Limit)
}

// EffectPanicError wraps a panic recovered from an effect body. It is passed
// to the graph's error handler; it is never raised as a panic itself.
type EffectPanicError struct {
	// EffectID identifies the effect whose body panicked.
	EffectID uint64

	// Value is the recovered panic value.
	Value any
}

func (e *EffectPanicError) Error() string {
	return fmt.Sprintf("reflow: effect %d panicked: %v", e.EffectID, e.Value)
}

// ViewPanicError wraps a panic recovered from a view's render callback.
// Like effect panics it goes to the error handler so one broken view cannot
// abort the flush.
type ViewPanicError struct {
	// ViewID identifies the view whose render panicked.
	ViewID uint64

	// Value is the recovered panic value.
	Value any
}

func (e *ViewPanicError) Error() string {
	return fmt.Sprintf("reflow: view %d render panicked: %v", e.ViewID, e.Value)
}
