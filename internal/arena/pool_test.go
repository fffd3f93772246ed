package arena

import "testing"

func TestAllocNeverReturnsZeroHandle(t *testing.T) {
	p := NewPool[int](4)
	for i := 0; i < 4; i++ {
		h, _ := p.Alloc()
		if !h.IsValid() {
			t.Fatalf("Alloc returned invalid handle %+v", h)
		}
	}
}

func TestGetRoundTrip(t *testing.T) {
	p := NewPool[string](4)
	h, slot := p.Alloc()
	*slot = "hello"
	if got := p.Get(h); got == nil || *got != "hello" {
		t.Fatalf("Get(%v) = %v, want hello", h, got)
	}
}

func TestFreeThenGetFails(t *testing.T) {
	p := NewPool[int](4)
	h, _ := p.Alloc()
	p.Free(h)
	if p.Get(h) != nil {
		t.Fatal("Get should return nil for a freed handle")
	}
}

func TestStaleGenerationRejected(t *testing.T) {
	p := NewPool[int](1)
	h1, _ := p.Alloc()
	p.Free(h1)
	h2, _ := p.Alloc()
	if h1.Index != h2.Index {
		t.Fatalf("expected slot reuse, got different indices %d vs %d", h1.Index, h2.Index)
	}
	if h1.Generation == h2.Generation {
		t.Fatal("expected generation to change across reuse")
	}
	if p.Get(h1) != nil {
		t.Fatal("stale handle from before reuse must not resolve")
	}
	if p.Get(h2) == nil {
		t.Fatal("current handle after reuse must resolve")
	}
}

func TestDoubleFreePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	p := NewPool[int](1)
	h, _ := p.Alloc()
	p.Free(h)
	p.Free(h)
}

func TestAllocExhaustionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on pool exhaustion")
		}
	}()
	p := NewPool[int](1)
	p.Alloc()
	p.Alloc()
}

func TestIndexOfRoundTrip(t *testing.T) {
	p := NewPool[int](4)
	h, slot := p.Alloc()
	found, ok := p.IndexOf(slot)
	if !ok || found != h {
		t.Fatalf("IndexOf = %+v, %v; want %+v, true", found, ok, h)
	}
}

func TestEachVisitsOnlyUsedSlots(t *testing.T) {
	p := NewPool[int](4)
	h1, _ := p.Alloc()
	h2, _ := p.Alloc()
	p.Free(h1)

	seen := map[uint32]bool{}
	p.Each(func(h Handle, _ *int) { seen[h.Index] = true })

	if seen[h1.Index] {
		t.Fatal("Each visited a freed slot")
	}
	if !seen[h2.Index] {
		t.Fatal("Each skipped a live slot")
	}
}

func TestLenAndCapacity(t *testing.T) {
	p := NewPool[int](3)
	if p.Capacity() != 3 {
		t.Fatalf("Capacity() = %d, want 3", p.Capacity())
	}
	p.Alloc()
	p.Alloc()
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}
