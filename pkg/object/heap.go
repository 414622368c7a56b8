package object

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"

	"weakref_go/pkg/weakref"
)

// HeapConfig configures a Heap. The zero value is usable.
type HeapConfig struct {
	Logger *logiface.Logger[logiface.Event]

	// Manager tears down weak references. Defaults to weakref.Default.
	Manager *weakref.Manager
}

// HeapStats tracks object lifetimes
type HeapStats struct {
	ObjectsCreated int64
	ObjectsFreed   int64
	TeardownErrors int64
}

// Heap allocates objects and destroys them when their last owner goes.
type Heap struct {
	log  *logiface.Logger[logiface.Event]
	mgr  *weakref.Manager
	side *weakref.SideTable[uint64]

	nextID atomic.Uint64

	mu    sync.Mutex
	live  map[uint64]*Object
	stats HeapStats
}

// NewHeap creates an empty heap.
func NewHeap(cfg HeapConfig) *Heap {
	mgr := cfg.Manager
	if mgr == nil {
		mgr = weakref.Default
	}
	return &Heap{
		log:  cfg.Logger,
		mgr:  mgr,
		side: weakref.NewSideTable[uint64](),
		live: make(map[uint64]*Object),
	}
}

// Manager returns the weak reference manager objects are torn down with.
func (h *Heap) Manager() *weakref.Manager { return h.mgr }

func (h *Heap) init(o *Object, self weakref.Referent, typ *Type, name, value string) {
	o.heap = h
	o.self = self
	o.id = h.nextID.Add(1)
	o.typ = typ
	o.name = name
	o.value = value
	o.rc = 1

	h.mu.Lock()
	h.live[o.id] = o
	h.stats.ObjectsCreated++
	h.mu.Unlock()

	h.log.Debug().
		Uint64("id", o.id).
		Str("type", typ.Name).
		Str("name", name).
		Log("allocated object")
}

// New allocates an object with one owner. typ must not be callable.
func (h *Heap) New(typ *Type, name, value string) *Object {
	if typ.Callable {
		panic(fmt.Sprintf("object: type %s is callable, use NewFunc", typ.Name))
	}
	o := new(Object)
	h.init(o, o, typ, name, value)
	return o
}

// NewFunc allocates a callable object with one owner.
func (h *Heap) NewFunc(typ *Type, name string, fn func(arg any) (any, error)) *Func {
	if !typ.Callable {
		panic(fmt.Sprintf("object: type %s is not callable", typ.Name))
	}
	f := &Func{fn: fn}
	h.init(&f.Object, f, typ, name, name)
	return f
}

func (h *Heap) destroy(o *Object) error {
	var err error
	if o.typ.WeakRefable {
		err = h.mgr.ClearAll(o.self)
	}

	o.mu.Lock()
	o.state = stateFreed
	o.mu.Unlock()
	if o.typ.ExternalSlot {
		h.side.Drop(o.id)
	}

	h.mu.Lock()
	delete(h.live, o.id)
	h.stats.ObjectsFreed++
	if err != nil {
		h.stats.TeardownErrors++
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Err().
			Err(err).
			Uint64("id", o.id).
			Str("type", o.typ.Name).
			Log("weak reference teardown failed")
		return err
	}
	h.log.Debug().
		Uint64("id", o.id).
		Str("type", o.typ.Name).
		Log("freed object")
	return nil
}

// Live returns the number of objects not yet freed.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// Stats returns a snapshot of the heap's counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
