package coordinator

import "fmt"

// ErrNothingToDo is returned by Run when the checkpoint queue was
// empty: there is no work and no commit is needed (exit code 2, spec §6).
var ErrNothingToDo = fmt.Errorf("coordinator: nothing to do")

// ErrCancelled is returned by Run when ctx is cancelled between
// phases (spec §5: "finish the current batch, then abort cleanly";
// spec §7: "Cancelled: not an error; aborts cleanly"). Nothing from
// the in-flight run is committed; the checkpoint is left pending for
// the next invocation, same as any other aborted run.
var ErrCancelled = fmt.Errorf("coordinator: run cancelled")

// ReconcileInvariantViolationError wraps a failure of an internal
// consistency check the Reconciler or Diff Analyzer is supposed to
// guarantee by construction (spec §7's "internal invariant
// violation" class); reaching this means a bug in this module, not
// bad input.
type ReconcileInvariantViolationError struct {
	FilePath string
	Detail   string
}

func (e *ReconcileInvariantViolationError) Error() string {
	return fmt.Sprintf("coordinator: internal invariant violated for %s: %s", e.FilePath, e.Detail)
}

// StoreTransientError wraps a store failure the Coordinator already
// retried once inside the final commit attempt (spec §7) and is
// reporting as exhausted.
type StoreTransientError struct {
	Err error
}

func (e *StoreTransientError) Error() string {
	return fmt.Sprintf("coordinator: store commit failed after retry: %v", e.Err)
}

func (e *StoreTransientError) Unwrap() error { return e.Err }
