package hashtrie

import (
	"strconv"
	"testing"
)

func TestGetOrInsertIsInsertOnce(t *testing.T) {
	tr := New[int]()
	v1, existed := tr.GetOrInsert(42)
	if existed {
		t.Fatal("first GetOrInsert should report existed=false")
	}
	*v1 = 7

	v2, existed := tr.GetOrInsert(42)
	if !existed {
		t.Fatal("second GetOrInsert for the same hash should report existed=true")
	}
	if v1 != v2 {
		t.Fatal("second GetOrInsert returned a different pointer than the first")
	}
	if *v2 != 7 {
		t.Fatalf("value = %d, want 7", *v2)
	}
}

func TestLookupMiss(t *testing.T) {
	tr := New[int]()
	if _, ok := tr.Lookup(1); ok {
		t.Fatal("Lookup on empty trie should miss")
	}
}

func TestLenTracksDistinctHashes(t *testing.T) {
	tr := New[int]()
	hashes := []uint64{1, 2, 3, 1, 2}
	for _, h := range hashes {
		tr.GetOrInsert(h)
	}
	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}
}

func TestManyHashesAllResolve(t *testing.T) {
	tr := New[uint64]()
	const n = 2000
	for i := uint64(0); i < n; i++ {
		h := Hash64(strconv.FormatUint(i, 10) + "-key")
		v, _ := tr.GetOrInsert(h)
		*v = h
	}
	for i := uint64(0); i < n; i++ {
		h := Hash64(strconv.FormatUint(i, 10) + "-key")
		got, ok := tr.Lookup(h)
		if !ok {
			t.Fatalf("Lookup(%d) missed for key index %d", h, i)
		}
		if got != h {
			t.Fatalf("Lookup(%d) = %d, want %d", h, got, h)
		}
	}
}

func TestHash64Deterministic(t *testing.T) {
	a := Hash64("vertex.wgsl")
	b := Hash64("vertex.wgsl")
	if a != b {
		t.Fatal("Hash64 is not deterministic for the same input")
	}
	if Hash64("vertex.wgsl") == Hash64("fragment.wgsl") {
		t.Fatal("Hash64 collided on distinct simple inputs")
	}
}
