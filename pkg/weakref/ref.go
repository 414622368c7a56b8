package weakref

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"weakref_go/pkg/memory"
)

// Ref is an owning handle to a weak reference node. Several Refs may share a
// node (the basic reference and basic proxy are shared by all callback-less
// requests); the node is freed when the last of them is released.
//
// A released Ref behaves like a dead one.
type Ref struct {
	list     *List
	h        memory.Handle
	kind     Kind
	released atomic.Bool
}

var (
	_ Traceable             = (*Ref)(nil)
	_ StructurallyClearable = (*Ref)(nil)
	_ fmt.Stringer          = (*Ref)(nil)
)

// target reads the node's target under the list lock.
func (r *Ref) target() Referent {
	if r == nil || r.released.Load() {
		return nil
	}
	r.list.mu.Lock()
	defer r.list.mu.Unlock()
	if n := r.list.get(r.h); n != nil {
		return n.target
	}
	return nil
}

// Get dereferences a weak reference. It never fails: once the referent is
// gone it returns (nil, false).
func (r *Ref) Get() (Referent, bool) {
	target := r.target()
	return target, target != nil
}

// Alive reports whether the referent still exists.
func (r *Ref) Alive() bool {
	_, ok := r.Get()
	return ok
}

// Kind returns the node's kind, fixed at creation.
func (r *Ref) Kind() Kind {
	if r == nil {
		return KindRef
	}
	return r.kind
}

// Callback returns the callback still owned by the node, if any. It is nil
// for basic nodes and after the callback has run or been released.
func (r *Ref) Callback() Callback {
	if r == nil || r.released.Load() {
		return nil
	}
	r.list.mu.Lock()
	defer r.list.mu.Unlock()
	if n := r.list.get(r.h); n != nil {
		return n.callback
	}
	return nil
}

// Clone returns a new owning handle to the same node. Callbacks use it to
// keep their argument beyond the call.
func (r *Ref) Clone() *Ref {
	if r == nil || r.released.Load() {
		return nil
	}
	r.list.mu.Lock()
	defer r.list.mu.Unlock()
	n := r.list.get(r.h)
	if n == nil {
		return nil
	}
	n.holders++
	return &Ref{list: r.list, h: r.h, kind: r.kind}
}

// Release drops this handle's ownership. When the last handle goes the node
// is fully cleared (unlinked, callback released) and its slot freed.
// Release is idempotent per handle.
func (r *Ref) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	l := r.list
	l.mu.Lock()
	n := l.get(r.h)
	if n == nil {
		l.mu.Unlock()
		return
	}
	n.holders--
	if n.holders > 0 {
		l.mu.Unlock()
		return
	}
	l.unlink(r.h, n)
	cb := n.callback
	n.callback = nil
	l.nodes.Free(r.h)
	m := l.mgr
	l.mu.Unlock()

	m.counters().nodesFreed.Add(1)
	releaseCallback(cb)
}

// Hash returns the referent's hash, memoised on first success so that it
// survives the referent's death.
func (r *Ref) Hash() (uint64, error) {
	if r == nil || r.released.Load() {
		return 0, fmt.Errorf("%w: weak object has gone away", ErrUnhashable)
	}
	l := r.list
	l.mu.Lock()
	n := l.get(r.h)
	if n != nil && n.hashed {
		sum := n.hash
		l.mu.Unlock()
		return sum, nil
	}
	var target Referent
	if n != nil {
		target = n.target
	}
	l.mu.Unlock()

	if target == nil {
		return 0, fmt.Errorf("%w: weak object has gone away", ErrUnhashable)
	}
	hv, ok := target.(Hashable)
	if !ok {
		return 0, fmt.Errorf("%w: %s object", ErrUnhashable, typeName(target))
	}
	// host code runs without the lock
	sum, err := hv.Hash()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnhashable, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.get(r.h); n != nil {
		if n.hashed {
			return n.hash, nil
		}
		n.hash = sum
		n.hashed = true
	}
	return sum, nil
}

// Equal reports whether r and other are equal. Handles of different kinds
// are never equal. Two live handles are equal if their referents are; if
// either is dead they are equal only when they share the same node.
func (r *Ref) Equal(other *Ref) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.kind != other.kind {
		return false
	}
	at, bt := r.target(), other.target()
	if at == nil || bt == nil {
		return r.SameNode(other)
	}
	if eq, ok := at.(Equatable); ok {
		return eq.Equal(bt)
	}
	return sameReferent(at, bt)
}

func sameReferent(a, b Referent) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// SameNode reports whether r and other are handles to the same node.
func (r *Ref) SameNode(other *Ref) bool {
	if r == nil || other == nil {
		return false
	}
	return r.list == other.list && r.h == other.h
}

func (r *Ref) String() string {
	if r == nil {
		return "<weakref nil>"
	}
	kind := r.kind
	target := r.target()
	at := fmt.Sprintf("%p#%d", r.list, r.h.Index)
	if kind.IsProxy() {
		if target == nil {
			return fmt.Sprintf("<%s at %s; dead>", kind, at)
		}
		return fmt.Sprintf("<%s at %s to %s at %s>", kind, at, typeName(target), identity(target))
	}
	if target == nil {
		return fmt.Sprintf("<weakref at %s; dead>", at)
	}
	if nm, ok := target.(Named); ok {
		if name, ok := nm.Name(); ok {
			return fmt.Sprintf("<weakref at %s; to '%.50s' at %s (%s)>", at, typeName(target), identity(target), name)
		}
	}
	return fmt.Sprintf("<weakref at %s; to '%.50s' at %s>", at, typeName(target), identity(target))
}
