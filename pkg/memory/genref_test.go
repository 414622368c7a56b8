package memory

import (
	"testing"
)

func TestArenaBasicAllocation(t *testing.T) {
	var a Arena[string]

	h := a.Alloc("hello")
	if h.IsZero() {
		t.Error("handle should not be zero")
	}
	v, ok := a.Get(h)
	if !ok {
		t.Fatal("fresh handle should resolve")
	}
	if *v != "hello" {
		t.Errorf("expected 'hello', got %v", *v)
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 live slot, got %d", a.Len())
	}
}

func TestArenaZeroHandle(t *testing.T) {
	var a Arena[int]
	a.Alloc(1)

	var h Handle
	if !h.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if a.Valid(h) {
		t.Error("zero handle should never be valid")
	}
	if _, ok := a.Get(h); ok {
		t.Error("zero handle should not resolve")
	}
}

func TestArenaUseAfterFree(t *testing.T) {
	var a Arena[string]

	h := a.Alloc("will be freed")
	if !a.Free(h) {
		t.Fatal("first free should succeed")
	}

	if a.Valid(h) {
		t.Error("handle should be invalid after free")
	}
	if _, ok := a.Get(h); ok {
		t.Error("stale handle should not resolve")
	}
	if a.Free(h) {
		t.Error("double free should report false")
	}
	if a.Len() != 0 {
		t.Errorf("expected 0 live slots, got %d", a.Len())
	}
}

func TestArenaSlotReuseDoesNotAlias(t *testing.T) {
	var a Arena[string]

	old := a.Alloc("old")
	a.Free(old)
	fresh := a.Alloc("new")

	if fresh.Index != old.Index {
		t.Fatalf("expected index %d to be recycled, got %d", old.Index, fresh.Index)
	}
	if fresh.Gen == old.Gen {
		t.Error("recycled slot should draw a new generation")
	}
	if a.Valid(old) {
		t.Error("old handle must not see the recycled slot")
	}
	v, ok := a.Get(fresh)
	if !ok || *v != "new" {
		t.Errorf("expected 'new', got %v (ok=%v)", v, ok)
	}
	if a.Cap() != 1 {
		t.Errorf("expected a single slot, got %d", a.Cap())
	}
}

func TestArenaPointersAreStable(t *testing.T) {
	var a Arena[int]

	h := a.Alloc(42)
	p, _ := a.Get(h)

	// grow the arena well past its initial capacity
	for i := 0; i < 1000; i++ {
		a.Alloc(i)
	}

	q, ok := a.Get(h)
	if !ok {
		t.Fatal("handle should still resolve")
	}
	if p != q {
		t.Error("slot pointer moved after growth")
	}
	*p = 7
	if *q != 7 {
		t.Errorf("expected write through stable pointer, got %d", *q)
	}
}

func TestArenaOutOfRangeIndex(t *testing.T) {
	var a Arena[int]
	h := a.Alloc(1)
	h.Index = 99
	if a.Valid(h) {
		t.Error("out of range index should be invalid")
	}
}

func TestArenaEach(t *testing.T) {
	var a Arena[int]

	h1 := a.Alloc(1)
	h2 := a.Alloc(2)
	h3 := a.Alloc(3)
	a.Free(h2)

	var seen []int
	a.Each(func(h Handle, v *int) bool {
		seen = append(seen, *v)
		return true
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("expected [1 3], got %v", seen)
	}

	// early stop
	count := 0
	a.Each(func(h Handle, v *int) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("expected early stop after 1, got %d", count)
	}

	if !a.Valid(h1) || !a.Valid(h3) {
		t.Error("untouched handles should stay valid")
	}
}

func TestArenaRandomGenerationUniqueness(t *testing.T) {
	var a Arena[int]

	seen := make(map[Generation]bool)
	for i := 0; i < 1000; i++ {
		h := a.Alloc(i)
		if h.Gen == 0 {
			t.Fatal("generation must never be 0")
		}
		if seen[h.Gen] {
			// Collision is possible but extremely unlikely (1/2^64)
			t.Logf("warning: generation collision detected (extremely rare)")
		}
		seen[h.Gen] = true
	}
}

func TestArenaMassiveChurn(t *testing.T) {
	var a Arena[int]

	handles := make([]Handle, 0, 1000)
	for i := 0; i < 1000; i++ {
		handles = append(handles, a.Alloc(i))
	}
	for i := 0; i < 1000; i += 2 {
		a.Free(handles[i])
	}
	for i := 0; i < 500; i++ {
		a.Alloc(-i)
	}

	if a.Len() != 1000 {
		t.Errorf("expected 1000 live slots, got %d", a.Len())
	}
	if a.Cap() != 1000 {
		t.Errorf("expected freed slots to be recycled, cap=%d", a.Cap())
	}
	for i := 0; i < 1000; i++ {
		if (i%2 == 0) == a.Valid(handles[i]) {
			t.Fatalf("handle %d has wrong validity", i)
		}
	}
}
