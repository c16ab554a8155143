package pool

import (
	"fmt"

	"github.com/sebastiencs/shared-arena/internal/debug"
)

// ErrAllocationFailure is returned by Alloc/AllocWith/AllocInPlace when a new
// page was needed and the system allocator could not provide one. The arena
// is left in a consistent state: no partial page is retained.
var ErrAllocationFailure = fmt.Errorf("shared-arena: allocation failure")

// ErrInitializerFailed wraps the error returned by, or the panic raised in,
// an AllocWith initializer. AllocInPlace never returns it: a panic in its
// initializer propagates to the caller. The slot is restored to free before this error is returned to
// the caller; no handle escapes, and T's destructor (if any, via the
// client's own Close/Release convention) never runs on the never-initialized
// slot.
type ErrInitializerFailed struct {
	Err error
}

func (e *ErrInitializerFailed) Error() string {
	return fmt.Sprintf("shared-arena: initializer failed: %v", e.Err)
}

func (e *ErrInitializerFailed) Unwrap() error { return e.Err }

// MisuseError reports a violation of the pool's single-release discipline:
// double-release of the same slot, or a release routed to the wrong page.
// These conditions are only checked in debug builds; release builds treat
// them as undefined behavior the caller must avoid rather than a reported
// error. This type exists so that debug-mode assertions and tests have a
// typed error to compare against, via internal/debug's panics and
// [github.com/sebastiencs/shared-arena/pkg/xerrors.AsA].
type MisuseError struct {
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("shared-arena: misuse: %s", e.Reason)
}

// assertSlot only runs in debug builds (internal/debug.Enabled is a
// compile-time constant, so the release build inlines this away to
// nothing), and it panics with a *MisuseError rather than
// internal/debug.Assert's plain error so that debug-mode tests can recover
// and type-assert the failure with
// [github.com/sebastiencs/shared-arena/pkg/xerrors.AsA].
func assertSlot(cond bool, format string, args ...any) {
	if debug.Enabled && !cond {
		panic(&MisuseError{Reason: fmt.Sprintf(format, args...)})
	}
}
