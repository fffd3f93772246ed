package staging

import "testing"

func TestWriteReturnsAbsoluteOffset(t *testing.T) {
	r := New(256, 2, 16)
	r.BeginFrame(0)
	off, err := r.Write(0, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if off != 0 {
		t.Fatalf("first write offset = %d, want 0", off)
	}

	r.BeginFrame(1)
	off, err = r.Write(1, []byte{5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if off != r.Stride() {
		t.Fatalf("frame 1 write offset = %d, want %d", off, r.Stride())
	}
}

func TestBeginFrameResetsCursor(t *testing.T) {
	r := New(128, 2, 8)
	r.BeginFrame(0)
	r.Write(0, make([]byte, 16))
	if r.Offset(0) != 16 {
		t.Fatalf("Offset(0) = %d, want 16", r.Offset(0))
	}
	r.BeginFrame(0)
	if r.Offset(0) != 0 {
		t.Fatalf("Offset(0) after BeginFrame = %d, want 0", r.Offset(0))
	}
}

func TestWriteAlignsUp(t *testing.T) {
	r := New(256, 1, 16)
	r.BeginFrame(0)
	r.Write(0, []byte{1, 2, 3}) // advances cursor to 3
	off, err := r.Write(0, []byte{4})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if off%16 != 0 {
		t.Fatalf("second write offset %d is not 16-byte aligned", off)
	}
}

func TestWriteExceedingStrideErrors(t *testing.T) {
	r := New(32, 2, 1) // stride = 16 bytes per frame
	r.BeginFrame(0)
	if _, err := r.Write(0, make([]byte, 17)); err == nil {
		t.Fatal("expected error writing past frame stride")
	}
}

func TestBytesViewMatchesWrittenData(t *testing.T) {
	r := New(256, 1, 8)
	r.BeginFrame(0)
	data := []byte{9, 8, 7, 6}
	off, _ := r.Write(0, data)
	got := r.Bytes(off, uint64(len(data)))
	for i, b := range data {
		if got[i] != b {
			t.Fatalf("byte %d = %x, want %x", i, got[i], b)
		}
	}
}

func TestFrameIndexOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range frame index")
		}
	}()
	r := New(64, 2, 8)
	r.BeginFrame(5)
}
