package weakref

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// Config configures a Manager. The zero value is usable.
type Config struct {
	// Logger receives teardown diagnostics and callback failures.
	// May be nil.
	Logger *logiface.Logger[logiface.Event]

	// Unraisable, if set, is called for every callback failure during
	// teardown, after it has been logged. It must not panic; if it does the
	// panic is logged and teardown continues.
	Unraisable func(err *UnraisableError)
}

// Manager creates weak references and tears them down. A Manager holds no
// per-referent state; any number of referents may be torn down concurrently
// as long as each referent's teardown is serialised by the host.
type Manager struct {
	cfg   Config
	stats counters
}

// Default is the Manager used by the package-level functions.
var Default = New(Config{})

// New creates a Manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) logger() *logiface.Logger[logiface.Event] {
	if m == nil {
		return nil
	}
	return m.cfg.Logger
}

func (m *Manager) counters() *counters {
	if m == nil {
		return &discard
	}
	return &m.stats
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return m.counters().snapshot()
}

// NewRef returns a weak reference to referent. Without a callback, the
// referent's existing basic reference is shared rather than a new node
// allocated.
func (m *Manager) NewRef(referent Referent, callback Callback) (*Ref, error) {
	return m.acquire(referent, normalizeCallback(callback), KindRef)
}

// NewProxy returns a weak proxy to referent. The proxy is KindCallableProxy
// if the referent implements Callable. Without a callback, the referent's
// existing basic proxy is shared.
func (m *Manager) NewProxy(referent Referent, callback Callback) (*Ref, error) {
	kind := KindProxy
	if _, ok := referent.(Callable); ok {
		kind = KindCallableProxy
	}
	return m.acquire(referent, normalizeCallback(callback), kind)
}

func (m *Manager) acquire(referent Referent, callback Callback, kind Kind) (*Ref, error) {
	if referent == nil {
		return nil, fmt.Errorf("%w: nil referent", ErrUnsupportedTarget)
	}
	l := referent.WeakRefList()
	if l == nil {
		return nil, fmt.Errorf("%w to '%s' object", ErrUnsupportedTarget, typeName(referent))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.torn {
		return nil, fmt.Errorf("%w to '%s' object: referent is being destroyed", ErrUnsupportedTarget, typeName(referent))
	}
	l.bind(m)

	basicRef, basicProxy := l.basicPair()
	if callback == nil {
		existing := basicRef
		if kind.IsProxy() {
			existing = basicProxy
		}
		if n := l.get(existing); n != nil {
			n.holders++
			m.counters().basicReused.Add(1)
			return &Ref{list: l, h: existing, kind: kind}, nil
		}
	}

	h := l.nodes.Alloc(node{
		target:   referent,
		callback: callback,
		kind:     kind,
		holders:  1,
	})
	switch {
	case callback != nil:
		l.appendTail(h)
	case kind == KindRef:
		l.insertHead(h)
	case !basicRef.IsZero():
		l.insertAfter(h, basicRef)
	default:
		l.insertHead(h)
	}

	if kind == KindRef {
		m.counters().refsCreated.Add(1)
	} else {
		m.counters().proxiesCreated.Add(1)
	}
	return &Ref{list: l, h: h, kind: kind}, nil
}

// Count returns the number of weak references linked to referent.
func (m *Manager) Count(referent Referent) int {
	if referent == nil {
		return 0
	}
	l := referent.WeakRefList()
	if l == nil {
		return 0
	}
	return l.Len()
}

// Refs returns new owning handles to every weak reference linked to
// referent, in list order. The caller releases them.
func (m *Manager) Refs(referent Referent) []*Ref {
	if referent == nil {
		return nil
	}
	l := referent.WeakRefList()
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	refs := make([]*Ref, 0, l.count)
	for h := l.head; !h.IsZero(); {
		n := l.get(h)
		n.holders++
		refs = append(refs, &Ref{list: l, h: h, kind: n.kind})
		h = n.next
	}
	return refs
}

// NewRef calls Default.NewRef.
func NewRef(referent Referent, callback Callback) (*Ref, error) {
	return Default.NewRef(referent, callback)
}

// NewProxy calls Default.NewProxy.
func NewProxy(referent Referent, callback Callback) (*Ref, error) {
	return Default.NewProxy(referent, callback)
}

// ClearAll calls Default.ClearAll.
func ClearAll(referent Referent) error {
	return Default.ClearAll(referent)
}

// Count calls Default.Count.
func Count(referent Referent) int {
	return Default.Count(referent)
}
