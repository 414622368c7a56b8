package memory

import (
	"crypto/rand"
	"encoding/binary"
)

// Generational Handles - slot arena with use-after-free detection
//
// Each occupied slot has a random non-zero 64-bit generation.
// Each handle remembers the slot index and the generation it was issued with.
// On lookup: if handle.Gen != slot.gen → stale handle, lookup fails
// On free: slot.gen = 0 and the index is recycled; the next Alloc into that
// index draws a fresh generation, so old handles never alias the new value.
//
// Random vs Sequential:
// - Sequential: slot.gen++ on each reuse (requires overflow handling)
// - Random: slot.gen = random64() on alloc, 0 on free (simpler)
//
// Collision probability: 1/2^64 per check (negligible)

// Generation is a 64-bit random generation number. Zero means "unoccupied".
type Generation uint64

// Handle is a generation-checked index into an Arena.
// The zero Handle never refers to anything.
type Handle struct {
	Index uint32
	Gen   Generation
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

type slot[T any] struct {
	gen Generation
	val T
}

// Arena stores values of type T in stable slots addressed by Handles.
// The zero value is an empty arena ready for use.
//
// Arena is not safe for concurrent use; the owner serialises access.
type Arena[T any] struct {
	slots []*slot[T]
	free  []uint32
	live  int
}

// randomGeneration generates a cryptographically random non-zero generation
func randomGeneration() Generation {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// Fallback to less random but still usable
		return Generation(0xDEADBEEF)
	}
	g := Generation(binary.LittleEndian.Uint64(buf[:]))
	if g == 0 {
		g = 1
	}
	return g
}

// Alloc stores v in a free slot and returns its handle
func (a *Arena[T]) Alloc(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, &slot[T]{})
	}
	s := a.slots[idx]
	s.gen = randomGeneration()
	s.val = v
	a.live++
	return Handle{Index: idx, Gen: s.gen}
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.Gen == 0 || int(h.Index) >= len(a.slots) {
		return nil
	}
	s := a.slots[h.Index]
	// The key check: remembered generation must match current generation
	if s.gen != h.Gen {
		return nil
	}
	return s
}

// Get returns a pointer to the value stored under h.
// The pointer stays valid until h is freed; slots never move.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	s := a.lookup(h)
	if s == nil {
		return nil, false
	}
	return &s.val, true
}

// Valid checks if a handle still refers to an occupied slot (O(1))
func (a *Arena[T]) Valid(h Handle) bool {
	return a.lookup(h) != nil
}

// Free zeroes the slot's generation, invalidating every copy of h,
// and recycles the index. Returns false if h was already stale.
func (a *Arena[T]) Free(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	var zero T
	s.gen = 0
	s.val = zero
	a.free = append(a.free, h.Index)
	a.live--
	return true
}

// Len returns the number of occupied slots
func (a *Arena[T]) Len() int {
	return a.live
}

// Cap returns the number of slots ever allocated (occupied or free)
func (a *Arena[T]) Cap() int {
	return len(a.slots)
}

// Each calls fn for every occupied slot in index order until fn returns false.
// fn must not Alloc or Free.
func (a *Arena[T]) Each(fn func(h Handle, v *T) bool) {
	for i, s := range a.slots {
		if s.gen == 0 {
			continue
		}
		if !fn(Handle{Index: uint32(i), Gen: s.gen}, &s.val) {
			return
		}
	}
}
