package weakref

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTarget is returned when a reference is requested for an
	// object whose type does not support weak references, or whose weak
	// references have already been torn down.
	ErrUnsupportedTarget = errors.New("weakref: cannot create weak reference")

	// ErrReferentGone is returned by proxy operations once the referent has
	// been destroyed. The handle stays usable; every call fails the same way.
	ErrReferentGone = errors.New("weakref: weakly-referenced object no longer exists")

	// ErrUnhashable is returned when hashing a dead reference that was never
	// hashed while alive, or a referent that cannot be hashed.
	ErrUnhashable = errors.New("weakref: unhashable")

	// ErrBadTeardownState reports a host invariant violation around ClearAll.
	ErrBadTeardownState = errors.New("weakref: bad teardown state")

	// ErrWrongKind is returned when an operation is not supported by the
	// handle's kind, e.g. Call on a non-callable proxy.
	ErrWrongKind = errors.New("weakref: operation not supported by this kind")
)

// UnraisableError describes a callback failure during teardown. It is never
// returned from ClearAll; it goes to Config.Unraisable and the logger.
type UnraisableError struct {
	Ref      *Ref
	Callback Callback
	Err      error
}

func (e *UnraisableError) Error() string {
	return fmt.Sprintf("exception ignored in weak reference callback %T: %v", e.Callback, e.Err)
}

func (e *UnraisableError) Unwrap() error {
	return e.Err
}
