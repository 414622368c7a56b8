package weakref

// Visitor is called by Trace for each object a node keeps reachable.
// A non-nil error stops the traversal and is returned by Trace.
type Visitor func(obj any) error

// Traceable is implemented by objects that participate in cycle collection.
type Traceable interface {
	Trace(visit Visitor) error
}

// StructurallyClearable is implemented by objects a cycle collector may
// detach without running any user code.
type StructurallyClearable interface {
	StructuralClear()
}

// Trace visits the node's callback, the only object a weak reference owns.
func (r *Ref) Trace(visit Visitor) error {
	if cb := r.Callback(); cb != nil {
		return visit(cb)
	}
	return nil
}

// StructuralClear unlinks the node and empties its target, leaving the
// callback in place and uncalled. Releasing the last handle releases it.
func (r *Ref) StructuralClear() {
	if r == nil || r.released.Load() {
		return
	}
	l := r.list
	l.mu.Lock()
	n := l.get(r.h)
	cleared := n != nil && n.target != nil
	if cleared {
		l.unlink(r.h, n)
	}
	m := l.mgr
	l.mu.Unlock()
	if cleared {
		m.counters().structuralClears.Add(1)
	}
}

// Clear unlinks the node, empties its target and releases its callback
// without calling it.
func (r *Ref) Clear() {
	if r == nil || r.released.Load() {
		return
	}
	l := r.list
	l.mu.Lock()
	n := l.get(r.h)
	if n == nil {
		l.mu.Unlock()
		return
	}
	l.unlink(r.h, n)
	cb := n.callback
	n.callback = nil
	l.mu.Unlock()
	releaseCallback(cb)
}
