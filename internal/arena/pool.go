package arena

import "fmt"

// Handle is an opaque, generation-checked reference into a Pool slot. The
// zero Handle (Index 0, any generation) is reserved as the invalid handle —
// index 0 is pre-consumed at pool construction and never handed out by Alloc.
// The generation field lets Get reject a stale handle whose slot has been
// freed and reallocated since the handle was issued.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Invalid is the reserved zero handle.
var Invalid = Handle{}

// IsValid reports whether h could plausibly reference a live slot (index != 0).
// It does not check the slot's current generation; use Pool.Get for that.
func (h Handle) IsValid() bool {
	return h.Index != 0
}

// Pool is a fixed-capacity slot array with a LIFO free-index stack. Slot 0 is
// reserved at construction so it can serve as the invalid sentinel; Alloc
// therefore never returns Handle{Index: 0}.
type Pool[T any] struct {
	slots       []T
	generations []uint32
	used        []bool
	free        []uint32 // LIFO stack of free indices
}

// NewPool creates a Pool with room for capacity live slots (plus the reserved
// index 0 sentinel).
func NewPool[T any](capacity uint32) *Pool[T] {
	total := capacity + 1
	p := &Pool[T]{
		slots:       make([]T, total),
		generations: make([]uint32, total),
		used:        make([]bool, total),
		free:        make([]uint32, 0, capacity),
	}
	// Descending push so index 1 pops first, index 0 excluded.
	for i := total - 1; i >= 1; i-- {
		p.free = append(p.free, i)
	}
	p.used[0] = true // permanently consumed, never freed
	return p
}

// Alloc pops a free slot and returns its handle along with a pointer to the
// zero-valued slot storage. Panics if the pool is exhausted — capacity
// exhaustion is a fatal precondition per the RHI's error taxonomy.
func (p *Pool[T]) Alloc() (Handle, *T) {
	if len(p.free) == 0 {
		panic("arena: pool exhausted")
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[idx] = true
	var zero T
	p.slots[idx] = zero
	return Handle{Index: idx, Generation: p.generations[idx]}, &p.slots[idx]
}

// Free returns h's slot to the free-index stack and bumps its generation so
// any handle copy still referencing the old generation is rejected by Get.
func (p *Pool[T]) Free(h Handle) {
	if !h.IsValid() || int(h.Index) >= len(p.slots) {
		panic(fmt.Sprintf("arena: free of invalid handle %+v", h))
	}
	if !p.used[h.Index] || p.generations[h.Index] != h.Generation {
		panic(fmt.Sprintf("arena: double-free or stale handle %+v", h))
	}
	p.used[h.Index] = false
	p.generations[h.Index]++
	p.free = append(p.free, h.Index)
}

// Get returns a pointer to h's slot, or nil if h is invalid, out of range, or
// stale (its generation no longer matches — the slot was freed and reused).
func (p *Pool[T]) Get(h Handle) *T {
	if !h.IsValid() || int(h.Index) >= len(p.slots) {
		return nil
	}
	if !p.used[h.Index] || p.generations[h.Index] != h.Generation {
		return nil
	}
	return &p.slots[h.Index]
}

// IndexOf recovers a handle from a slot pointer previously returned by Alloc
// or Get, without resorting to pointer arithmetic.
func (p *Pool[T]) IndexOf(ptr *T) (Handle, bool) {
	for i := range p.slots {
		if &p.slots[i] == ptr {
			if !p.used[i] {
				return Invalid, false
			}
			return Handle{Index: uint32(i), Generation: p.generations[i]}, true
		}
	}
	return Invalid, false
}

// Each calls fn for every currently allocated (used) slot, in index order.
// Used by the context to scan pools for Initialized slots at shutdown.
func (p *Pool[T]) Each(fn func(Handle, *T)) {
	for i := 1; i < len(p.slots); i++ {
		if p.used[i] {
			fn(Handle{Index: uint32(i), Generation: p.generations[i]}, &p.slots[i])
		}
	}
}

// Len returns the number of currently allocated slots.
func (p *Pool[T]) Len() int {
	n := 0
	for _, u := range p.used[1:] {
		if u {
			n++
		}
	}
	return n
}

// Capacity returns the maximum number of live slots this pool can hold.
func (p *Pool[T]) Capacity() int {
	return len(p.slots) - 1
}
