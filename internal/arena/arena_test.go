package arena

import "testing"

func TestPushAlignment(t *testing.T) {
	a := New(64)
	a.Push(3, 1, false)
	region := a.Push(8, 8, false)
	if a.Size()%8 != 0 {
		t.Fatalf("expected 8-byte aligned offset after push, got size %d", a.Size())
	}
	if len(region) != 8 {
		t.Fatalf("expected 8-byte region, got %d", len(region))
	}
}

func TestPushZeroFill(t *testing.T) {
	a := New(16)
	region := a.Push(4, 4, false)
	for i := range region {
		region[i] = 0xFF
	}
	a.Reset()
	region = a.Push(4, 4, true)
	for i, b := range region {
		if b != 0 {
			t.Fatalf("expected zeroed byte at %d, got %x", i, b)
		}
	}
}

func TestSaveRelease(t *testing.T) {
	a := New(32)
	a.Push(8, 8, false)
	temp := a.Save()
	a.Push(8, 8, false)
	if a.Size() != 16 {
		t.Fatalf("expected size 16 before release, got %d", a.Size())
	}
	temp.Release()
	if a.Size() != 8 {
		t.Fatalf("expected size 8 after release, got %d", a.Size())
	}
}

func TestPushOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on arena overflow")
		}
	}()
	a := New(4)
	a.Push(8, 1, false)
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want uint64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{255, 256, 256},
	}
	for _, c := range cases {
		if got := AlignUp(c.n, c.align); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}

func TestScratchNeverAliases(t *testing.T) {
	a := Scratch(nil)
	b := Scratch(a.a)
	if a.a == b.a {
		t.Fatal("Scratch returned the same arena for conflicting calls")
	}
	a.Release()
	b.Release()
}
