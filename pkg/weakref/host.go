// Package weakref implements weak references and weak proxies for a host
// object system.
//
// A weak reference observes a referent without keeping it alive. When the
// host destroys the referent it calls ClearAll exactly once; every reference
// is then detached and emptied, and any callbacks registered at creation are
// invoked oldest first. Plain references degrade to "nothing" once the
// referent is gone; proxies fail every forwarded operation with
// ErrReferentGone.
//
// The per-referent bookkeeping lives in a List, which the host embeds in
// (or associates with) each object that supports weak references.
package weakref

import (
	"fmt"
	"reflect"
)

// Referent is implemented by host objects that may be weakly referenced.
//
// WeakRefList returns the per-referent list slot, or nil if the object's type
// does not support weak references. The returned List must be the same for
// the lifetime of the referent.
type Referent interface {
	WeakRefList() *List
}

// Callable is implemented by referents that can be invoked. Proxies to a
// Callable referent are created as KindCallableProxy.
type Callable interface {
	Call(arg any) (any, error)
}

// Hashable is implemented by referents that can be hashed.
type Hashable interface {
	Hash() (uint64, error)
}

// Equatable is implemented by referents with their own notion of equality.
// Referents that do not implement it compare by identity.
type Equatable interface {
	Equal(other Referent) bool
}

// Counted is implemented by hosts that expose the referent's ownership count.
// ClearAll refuses to run unless it is zero.
type Counted interface {
	RefCount() int
}

// Described provides the type name used in String and log output.
type Described interface {
	TypeName() string
}

// Named provides an optional display name used in String output.
type Named interface {
	Name() (string, bool)
}

// Callback is invoked once, with the already-cleared reference as its only
// argument, after the referent has been torn down.
type Callback interface {
	Invoke(ref *Ref) error
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(ref *Ref) error

// Invoke calls f(ref).
func (f CallbackFunc) Invoke(ref *Ref) error { return f(ref) }

// CallbackReleaser is implemented by callbacks that hold host resources.
// Release is called exactly once, when the owning node drops the callback.
type CallbackReleaser interface {
	Release()
}

func normalizeCallback(cb Callback) Callback {
	if f, ok := cb.(CallbackFunc); ok && f == nil {
		return nil
	}
	return cb
}

func releaseCallback(cb Callback) {
	if r, ok := cb.(CallbackReleaser); ok {
		r.Release()
	}
}

func typeName(v any) string {
	if d, ok := v.(Described); ok {
		return d.TypeName()
	}
	return fmt.Sprintf("%T", v)
}

// identity renders the address of pointer-like values.
func identity(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("0x%x", rv.Pointer())
	}
	return fmt.Sprintf("%v", v)
}
