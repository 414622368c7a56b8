package weakref

import (
	"github.com/llxisdsh/pb"
)

// SideTable associates Lists with objects that have no room to embed one.
// Keys are typically object identities (pointers or ids). It is safe for
// concurrent use.
//
// The host drops an entry after ClearAll has run for its object; until then
// the List must stay reachable so that ClearAll can find it.
type SideTable[K comparable] struct {
	m *pb.MapOf[K, *List]
}

// NewSideTable creates an empty SideTable.
func NewSideTable[K comparable]() *SideTable[K] {
	return &SideTable[K]{m: pb.NewMapOf[K, *List](pb.WithShrinkEnabled())}
}

// Slot returns key's List, creating it on first use.
func (t *SideTable[K]) Slot(key K) *List {
	l, _ := t.m.LoadOrStoreFn(key, func() *List { return new(List) })
	return l
}

// Lookup returns key's List if one has been created.
func (t *SideTable[K]) Lookup(key K) (*List, bool) {
	return t.m.Load(key)
}

// Drop forgets key's List.
func (t *SideTable[K]) Drop(key K) {
	t.m.Delete(key)
}

// Len returns the number of Lists in the table.
func (t *SideTable[K]) Len() int {
	return t.m.Size()
}
