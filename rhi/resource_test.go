package rhi

import (
	"testing"

	"github.com/kestrel-engine/rhi/engine/renderer/bind_group_provider"
	"github.com/kestrel-engine/rhi/internal/arena"
)

// testContext builds a Context with just enough state for the host-side
// resource bookkeeping (pools, frame striding); no device calls happen.
func testContext() *Context {
	return &Context{
		uniformAlignment: 256,
		framesInFlight:   2,
		resources:        arena.NewPool[Resource](8),
	}
}

// insertResource hand-places a Resource slot the way ResourceCreate would,
// minus the GPU objects a unit test has no device to create.
func insertResource(c *Context, maxInstances uint32, strides map[int]uint64) ResourceHandle {
	h, slot := c.resources.Alloc()
	slot.state = stateInitialized
	slot.provider = bind_group_provider.NewBindGroupProvider("test", bind_group_provider.WithIdentity(bind_group_provider.ProviderIdentityMaterial))
	slot.maxInstances = maxInstances
	slot.strides = strides
	return ResourceHandle(h)
}

func TestResourceSlotOffsetAddressesFrameAndInstance(t *testing.T) {
	c := testContext()
	h := insertResource(c, 4, map[int]uint64{0: 256})

	off, err := c.ResourceSlotOffset(h, 0, 3)
	if err != nil {
		t.Fatalf("ResourceSlotOffset: %v", err)
	}
	if off != 3*256 {
		t.Fatalf("frame 0 instance 3 offset = %d, want %d", off, 3*256)
	}

	c.frameIndex = 1
	off, err = c.ResourceSlotOffset(h, 0, 2)
	if err != nil {
		t.Fatalf("ResourceSlotOffset: %v", err)
	}
	if off != (1*4+2)*256 {
		t.Fatalf("frame 1 instance 2 offset = %d, want %d", off, (1*4+2)*256)
	}
}

func TestResourceSlotOffsetsNeverAliasAcrossFrameInstancePairs(t *testing.T) {
	c := testContext()
	const maxInstances = 3
	h := insertResource(c, maxInstances, map[int]uint64{0: 256})

	seen := map[uint32]bool{}
	for frame := 0; frame < c.framesInFlight; frame++ {
		c.frameIndex = frame
		for instance := uint32(0); instance < maxInstances; instance++ {
			off, err := c.ResourceSlotOffset(h, 0, instance)
			if err != nil {
				t.Fatalf("ResourceSlotOffset(frame %d, instance %d): %v", frame, instance, err)
			}
			if seen[off] {
				t.Fatalf("offset %d aliased by two (frame, instance) pairs", off)
			}
			seen[off] = true
		}
	}
}

func TestResourceSlotOffsetRejectsOutOfRangeInstance(t *testing.T) {
	c := testContext()
	h := insertResource(c, 2, map[int]uint64{0: 256})

	if _, err := c.ResourceSlotOffset(h, 0, 2); err == nil {
		t.Fatal("expected error for instance index >= maxInstances")
	}
}

func TestResourceSlotOffsetRejectsNonDynamicBinding(t *testing.T) {
	c := testContext()
	h := insertResource(c, 1, map[int]uint64{0: 256})

	if _, err := c.ResourceSlotOffset(h, 5, 0); err == nil {
		t.Fatal("expected error for a binding with no dynamic-offset buffer")
	}
}

func TestResourceSlotOffsetRejectsStaleHandle(t *testing.T) {
	c := testContext()
	h := insertResource(c, 1, map[int]uint64{0: 256})
	if err := c.ResourceDestroy(h); err != nil {
		t.Fatalf("ResourceDestroy: %v", err)
	}
	if _, err := c.ResourceSlotOffset(h, 0, 0); err == nil {
		t.Fatal("expected error resolving a destroyed resource handle")
	}
}

func TestResourceCreateWithoutEntriesRecordsIdentity(t *testing.T) {
	c := testContext()
	h, err := c.ResourceCreate(ResourceDesc{
		Label:    "empty",
		Identity: bind_group_provider.ProviderIdentityGlobal,
	})
	if err != nil {
		t.Fatalf("ResourceCreate: %v", err)
	}
	r := c.Resource(h)
	if r == nil {
		t.Fatal("Resource() returned nil for a just-created handle")
	}
	if got := r.Identity(); got != bind_group_provider.ProviderIdentityGlobal {
		t.Fatalf("Identity() = %q, want global", got)
	}
	if err := c.ResourceDestroy(h); err != nil {
		t.Fatalf("ResourceDestroy: %v", err)
	}
	if c.Resource(h) != nil {
		t.Fatal("destroyed handle still resolves")
	}
}

func TestWriteResourceSlotFailsOnUnboundBinding(t *testing.T) {
	c := testContext()
	h := insertResource(c, 1, map[int]uint64{0: 256})

	// No wgpu.Buffer was ever set at binding 0, so the write must fail
	// before touching the (absent) device queue.
	if err := c.WriteResourceSlot(h, 0, 0, []byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected error writing a slot with no backing buffer")
	}
}

func TestResourceBindInstanceOutsideFrameErrors(t *testing.T) {
	c := testContext()
	h := insertResource(c, 1, map[int]uint64{0: 256})

	if err := c.ResourceBindInstance(0, h, 0); err == nil {
		t.Fatal("expected error binding a resource with no active frame pass")
	}
}
