package weakref

import (
	"sync"

	"weakref_go/pkg/memory"
)

// Kind discriminates the three flavours of weak reference node.
type Kind int

const (
	KindRef           Kind = iota // Plain reference, dereferenced explicitly
	KindProxy                     // Proxy to a non-callable referent
	KindCallableProxy             // Proxy to a callable referent
)

// IsProxy reports whether k forwards operations to its referent.
func (k Kind) IsProxy() bool {
	return k == KindProxy || k == KindCallableProxy
}

func (k Kind) String() string {
	switch k {
	case KindRef:
		return "weakref"
	case KindProxy:
		return "weakproxy"
	case KindCallableProxy:
		return "weakcallableproxy"
	default:
		return "unknown"
	}
}

// node is one weak observation of a referent
type node struct {
	target   Referent // nil once cleared; never owning
	callback Callback // owned; nil for basic nodes
	kind     Kind
	prev     memory.Handle
	next     memory.Handle
	hash     uint64
	hashed   bool
	holders  int // owning *Ref handles
}

// List is the per-referent registry of weak references.
//
// Nodes live in an arena and are linked by handle in this order: the basic
// (callback-less) reference, the basic proxy, then callback-bearing nodes in
// creation order. The zero value is an empty list. A List must not be copied
// after first use.
type List struct {
	mu    sync.Mutex
	nodes memory.Arena[node]
	head  memory.Handle
	tail  memory.Handle
	count int  // linked nodes
	torn  bool // ClearAll has run
	mgr   *Manager
}

func (l *List) bind(m *Manager) {
	if l.mgr == nil {
		l.mgr = m
	}
}

func (l *List) get(h memory.Handle) *node {
	n, ok := l.nodes.Get(h)
	if !ok {
		return nil
	}
	return n
}

// basicPair returns the callback-less reference and proxy, which are always
// at the head of the list.
func (l *List) basicPair() (ref, proxy memory.Handle) {
	h := l.head
	n := l.get(h)
	if n == nil || n.callback != nil {
		return
	}
	if n.kind == KindRef {
		ref = h
		h = n.next
		n = l.get(h)
		if n == nil || n.callback != nil {
			return
		}
	}
	if n.kind.IsProxy() {
		proxy = h
	}
	return
}

func (l *List) insertHead(h memory.Handle) {
	n := l.get(h)
	n.prev = memory.Handle{}
	n.next = l.head
	if next := l.get(l.head); next != nil {
		next.prev = h
	} else {
		l.tail = h
	}
	l.head = h
	l.count++
}

func (l *List) insertAfter(h, prev memory.Handle) {
	n := l.get(h)
	p := l.get(prev)
	n.prev = prev
	n.next = p.next
	if next := l.get(p.next); next != nil {
		next.prev = h
	} else {
		l.tail = h
	}
	p.next = h
	l.count++
}

func (l *List) appendTail(h memory.Handle) {
	if l.tail.IsZero() {
		l.insertHead(h)
		return
	}
	l.insertAfter(h, l.tail)
}

// unlink removes a linked node and empties its target
func (l *List) unlink(h memory.Handle, n *node) {
	if n.target == nil {
		return
	}
	if prev := l.get(n.prev); prev != nil {
		prev.next = n.next
	} else {
		l.head = n.next
	}
	if next := l.get(n.next); next != nil {
		next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = memory.Handle{}
	n.next = memory.Handle{}
	n.target = nil
	l.count--
}

// each walks linked nodes in list order
func (l *List) each(fn func(h memory.Handle, n *node)) {
	for h := l.head; !h.IsZero(); {
		n := l.get(h)
		next := n.next
		fn(h, n)
		h = next
	}
}

// Len returns the number of weak references currently linked to the referent.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Cleared reports whether ClearAll has already torn this list down.
func (l *List) Cleared() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.torn
}
