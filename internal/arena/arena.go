// Package arena implements bump allocation with scoped save/restore, plus
// the fixed-capacity slot pools the RHI's resource handles index into.
package arena

import (
	"fmt"
	"sync"
)

// Arena is a linear allocator over a contiguous byte region. Allocations are
// never freed individually; the offset can only be rewound via Save/Restore
// or reset to zero via Reset.
type Arena struct {
	buf    []byte
	offset int
}

// Temp is a scoped save point returned by Save, or by Scratch for one of the
// two process-wide scratch arenas. Release rewinds the arena to the position
// captured when the Temp was created.
type Temp struct {
	a   *Arena
	pos int
}

// New allocates a new Arena with the given byte capacity.
func New(capacity int) *Arena {
	return &Arena{buf: make([]byte, capacity)}
}

// AlignUp rounds n up to the nearest multiple of alignment. alignment must be
// a power of two.
func AlignUp(n, alignment uint64) uint64 {
	if alignment == 0 || (alignment&(alignment-1)) != 0 {
		panic(fmt.Sprintf("arena: alignment %d is not a power of two", alignment))
	}
	return (n + alignment - 1) &^ (alignment - 1)
}

// Push carves out size bytes from the arena, aligned to alignment, optionally
// zero-filling the returned region. It panics on capacity overflow — arena
// exhaustion is a precondition violation per the RHI's fatal error taxonomy.
func (a *Arena) Push(size int, alignment int, zero bool) []byte {
	aligned := int(AlignUp(uint64(a.offset), uint64(alignment)))
	if aligned+size > len(a.buf) {
		panic(fmt.Sprintf("arena: out of memory (requested %d bytes at offset %d, capacity %d)", size, aligned, len(a.buf)))
	}
	region := a.buf[aligned : aligned+size]
	if zero {
		clear(region)
	}
	a.offset = aligned + size
	return region
}

// Save captures the current offset so a later Release rewinds to this point.
func (a *Arena) Save() Temp {
	return Temp{a: a, pos: a.offset}
}

// Release rewinds the owning arena back to the position captured by Save or
// Scratch. Safe to call multiple times; subsequent calls are no-ops once the
// arena has moved further back than pos via an unrelated Reset.
func (t Temp) Release() {
	if t.a.offset > t.pos {
		t.a.offset = t.pos
	}
}

// Reset rewinds the arena to empty, invalidating all outstanding allocations.
func (a *Arena) Reset() {
	a.offset = 0
}

// Size returns the number of bytes currently in use.
func (a *Arena) Size() int {
	return a.offset
}

// Capacity returns the total byte capacity of the arena.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

const scratchCapacity = 4 << 20

var (
	scratchOnce [2]sync.Once
	scratchPool [2]*Arena
)

func scratch(i int) *Arena {
	scratchOnce[i].Do(func() {
		scratchPool[i] = New(scratchCapacity)
	})
	return scratchPool[i]
}

// Scratch returns a scoped temp region from one of the two process-wide
// scratch arenas — specifically the one that is not conflict — so a caller
// can use scratch memory while another scratch allocation from a different
// call site (the conflict arena) is still live, without aliasing.
func Scratch(conflict *Arena) Temp {
	var a *Arena
	if conflict == scratch(0) {
		a = scratch(1)
	} else {
		a = scratch(0)
	}
	return a.Save()
}
