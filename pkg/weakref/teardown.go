package weakref

import (
	"fmt"

	"weakref_go/pkg/memory"
)

// pending is a callback detached from its node, waiting to run
type pending struct {
	ref      *Ref
	callback Callback
}

// ClearAll tears down every weak reference to referent. The host calls it
// exactly once, when the referent's ownership count has reached zero and
// before the referent is invalidated.
//
// All nodes are detached and emptied before any callback runs, so callbacks
// observe a fully torn-down state; a callback that asks for a new reference
// to the referent gets ErrUnsupportedTarget. Callbacks then run oldest first.
// Callback failures are reported through Config.Unraisable and the logger and
// never returned. The only errors are host invariant violations
// (ErrBadTeardownState), in which case nothing is modified.
func (m *Manager) ClearAll(referent Referent) error {
	if referent == nil {
		return fmt.Errorf("%w: nil referent", ErrBadTeardownState)
	}
	l := referent.WeakRefList()
	if l == nil {
		return fmt.Errorf("%w: %s object does not support weak references", ErrBadTeardownState, typeName(referent))
	}
	if c, ok := referent.(Counted); ok {
		if n := c.RefCount(); n != 0 {
			return fmt.Errorf("%w: %s object still has %d owners", ErrBadTeardownState, typeName(referent), n)
		}
	}

	single, batch, cleared, err := l.detachAll(m)
	if err != nil {
		return fmt.Errorf("%w: %s object", err, typeName(referent))
	}

	c := m.counters()
	c.teardowns.Add(1)
	c.nodesCleared.Add(int64(cleared))

	callbacks := len(batch)
	if single.callback != nil {
		callbacks = 1
	}
	m.logger().Debug().
		Str("referent", typeName(referent)).
		Int("nodes", cleared).
		Int("callbacks", callbacks).
		Log("cleared weak references")

	if single.callback != nil {
		m.handleCallback(single)
		return nil
	}
	for _, p := range batch {
		m.handleCallback(p)
	}
	return nil
}

// detachAll empties the list in one critical section. Each callback is moved
// out of its node together with a temporary owning handle, so the node stays
// alive until its callback has run. A lone callback is returned in single
// without allocating a batch.
func (l *List) detachAll(m *Manager) (single pending, batch []pending, cleared int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.torn {
		return single, nil, 0, fmt.Errorf("%w: weak references already cleared", ErrBadTeardownState)
	}
	l.torn = true
	l.bind(m)

	callbacks := 0
	l.each(func(_ memory.Handle, n *node) {
		if n.callback != nil {
			callbacks++
		}
	})
	if callbacks > 1 {
		batch = make([]pending, 0, callbacks)
	}

	l.each(func(h memory.Handle, n *node) {
		cb := n.callback
		n.callback = nil
		l.unlink(h, n)
		cleared++
		if cb == nil {
			return
		}
		n.holders++
		p := pending{ref: &Ref{list: l, h: h, kind: n.kind}, callback: cb}
		if callbacks == 1 {
			single = p
			return
		}
		batch = append(batch, p)
	})
	return single, batch, cleared, nil
}

// handleCallback runs one detached callback, contains its failure, then
// releases both the callback and the temporary handle.
func (m *Manager) handleCallback(p pending) {
	defer p.ref.Release()
	defer releaseCallback(p.callback)

	c := m.counters()
	c.callbacksRun.Add(1)
	if err := invokeCallback(p.callback, p.ref); err != nil {
		c.callbackFailures.Add(1)
		m.reportUnraisable(&UnraisableError{Ref: p.ref, Callback: p.callback, Err: err})
	}
}

func invokeCallback(cb Callback, ref *Ref) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb.Invoke(ref)
}

func (m *Manager) reportUnraisable(e *UnraisableError) {
	m.logger().Err().
		Err(e.Err).
		Str("callback", fmt.Sprintf("%T", e.Callback)).
		Str("ref", e.Ref.String()).
		Log("exception ignored in weak reference callback")

	if m == nil || m.cfg.Unraisable == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger().Err().
				Str("panic", fmt.Sprint(r)).
				Log("unraisable hook panicked")
		}
	}()
	m.cfg.Unraisable(e)
}
