// Package object is a small reference-counted object system that hosts weak
// references. Every object starts with one owner; when the last owner lets
// go the heap tears down the object's weak references, then frees it.
package object

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"weakref_go/pkg/weakref"
)

var (
	// ErrFreed is returned when an owner operation targets a freed object.
	ErrFreed = errors.New("object: use of freed object")

	// ErrNotCallable is returned by Call on an object whose type is not callable.
	ErrNotCallable = errors.New("object: not callable")
)

// Type describes a family of objects.
type Type struct {
	Name         string
	WeakRefable  bool // objects may be weakly referenced
	Callable     bool // objects run a Go function when called
	Hashable     bool
	ExternalSlot bool // weak reference list lives in the heap's side table
}

type state int

const (
	stateAlive state = iota
	stateTearingDown
	stateFreed
)

// Object is a heap object. Callable types produce *Func, which embeds Object.
type Object struct {
	heap  *Heap
	id    uint64
	typ   *Type
	name  string
	value string

	mu    sync.Mutex
	rc    int
	state state

	self weakref.Referent // *Object or *Func
	weak weakref.List
}

var (
	_ weakref.Referent  = (*Object)(nil)
	_ weakref.Hashable  = (*Object)(nil)
	_ weakref.Equatable = (*Object)(nil)
	_ weakref.Counted   = (*Object)(nil)
	_ weakref.Described = (*Object)(nil)
	_ weakref.Named     = (*Object)(nil)
	_ weakref.Callable  = (*Func)(nil)
)

// Func is an object of a callable type.
type Func struct {
	Object
	fn func(arg any) (any, error)
}

// Referent returns the value weak references observe: the enclosing *Func
// for callable objects, o itself otherwise.
func (o *Object) Referent() weakref.Referent { return o.self }

func (o *Object) ID() uint64 { return o.id }
func (o *Object) Type() *Type { return o.typ }
func (o *Object) Value() string { return o.value }

// Freed reports whether the object has been destroyed.
func (o *Object) Freed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateFreed
}

// Incref adds an owner. It fails while the object is being torn down, since
// nothing may resurrect an object whose weak references are being cleared.
func (o *Object) Incref() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case stateFreed:
		return fmt.Errorf("%w: incref on %s #%d", ErrFreed, o.typ.Name, o.id)
	case stateTearingDown:
		return fmt.Errorf("%w: incref on %s #%d during teardown", weakref.ErrBadTeardownState, o.typ.Name, o.id)
	}
	o.rc++
	return nil
}

// Decref drops an owner. Dropping the last one destroys the object: its weak
// references are cleared (running their callbacks) and it is freed.
func (o *Object) Decref() error {
	o.mu.Lock()
	switch o.state {
	case stateFreed:
		o.mu.Unlock()
		return fmt.Errorf("%w: decref on %s #%d", ErrFreed, o.typ.Name, o.id)
	case stateTearingDown:
		o.mu.Unlock()
		return fmt.Errorf("%w: decref on %s #%d during teardown", weakref.ErrBadTeardownState, o.typ.Name, o.id)
	}
	o.rc--
	if o.rc > 0 {
		o.mu.Unlock()
		return nil
	}
	o.state = stateTearingDown
	o.mu.Unlock()

	return o.heap.destroy(o)
}

// RefCount returns the number of owners.
func (o *Object) RefCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rc
}

// WeakRefList returns the object's weak reference list, or nil if the type
// does not support weak references or the object is gone.
func (o *Object) WeakRefList() *weakref.List {
	if !o.typ.WeakRefable || o.Freed() {
		return nil
	}
	if o.typ.ExternalSlot {
		return o.heap.side.Slot(o.id)
	}
	return &o.weak
}

// Hash hashes the object's type and value.
func (o *Object) Hash() (uint64, error) {
	if !o.typ.Hashable {
		return 0, fmt.Errorf("unhashable type: '%s'", o.typ.Name)
	}
	d := xxhash.New()
	_, _ = d.WriteString(o.typ.Name)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(o.value)
	return d.Sum64(), nil
}

// Equal reports whether other is an object of the same type and value.
func (o *Object) Equal(other weakref.Referent) bool {
	var x *Object
	switch v := other.(type) {
	case *Object:
		x = v
	case *Func:
		x = &v.Object
	default:
		return false
	}
	return x == o || (x.typ == o.typ && x.value == o.value)
}

func (o *Object) TypeName() string { return o.typ.Name }

func (o *Object) Name() (string, bool) { return o.name, o.name != "" }

// Call runs the function's body.
func (f *Func) Call(arg any) (any, error) {
	if f.Freed() {
		return nil, fmt.Errorf("%w: call on %s #%d", ErrFreed, f.typ.Name, f.id)
	}
	return f.fn(arg)
}

func (o *Object) String() string {
	if o.name != "" {
		return fmt.Sprintf("<%s %s #%d>", o.typ.Name, o.name, o.id)
	}
	return fmt.Sprintf("<%s #%d>", o.typ.Name, o.id)
}
