package pushconstant

import "testing"

func TestSlotStrideCapsAtMaxSize(t *testing.T) {
	if got := SlotStride(1024, 256); got != 256 {
		t.Fatalf("SlotStride(1024, 256) = %d, want 256 (capped at MaxSize then aligned)", got)
	}
}

func TestSlotStrideAlignsUp(t *testing.T) {
	if got := SlotStride(100, 64); got != 128 {
		t.Fatalf("SlotStride(100, 64) = %d, want 128", got)
	}
}

func TestSlotStrideDefaultsZeroToMaxSize(t *testing.T) {
	if got := SlotStride(0, 1); got != MaxSize {
		t.Fatalf("SlotStride(0, 1) = %d, want %d", got, MaxSize)
	}
}

func TestSlotStrideZeroAlignmentTreatedAsOne(t *testing.T) {
	if got := SlotStride(50, 0); got != 50 {
		t.Fatalf("SlotStride(50, 0) = %d, want 50", got)
	}
}
