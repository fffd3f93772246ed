package rhi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/internal/arena"
)

// Buffer is a pooled GPU buffer. Vertex and index buffers are single,
// device-resident allocations uploaded once through the staging ring.
// Uniform buffers are allocated framesInFlight-wide so each frame writes its
// own slot without waiting on the GPU to finish reading a previous frame's
// data — the dynamic offset UniformSlotOffset computes lands on the right
// slot.
type Buffer struct {
	state        lifecycleState
	typ          BufferType
	label        string
	size         uint64 // size of a single logical copy (pre frames-in-flight multiply)
	stride       uint64 // per-instance slot stride for uniform buffers; 0 otherwise
	maxInstances uint32 // instances per frame for uniform buffers; 1 otherwise
	handle       *wgpu.Buffer
}

// Size returns the logical (single-copy) size the buffer was created with.
func (b *Buffer) Size() uint64 { return b.size }

// Type returns the buffer's role.
func (b *Buffer) Type() BufferType { return b.typ }

// Handle returns the underlying wgpu.Buffer for draw-call binding.
func (b *Buffer) Handle() *wgpu.Buffer { return b.handle }

// BufferCreate allocates a Buffer. For BufferTypeUniform, the backing
// allocation is size rounded up to the device's uniform alignment,
// multiplied by maxInstances and by c.framesInFlight, giving each
// (frame, instance) pair a distinct dynamic-offset slot; data, if non-nil,
// seeds frame slot 0 only (subsequent frames are populated by BufferWrite as
// the scene updates). maxInstances is ignored for vertex/index buffers.
// Vertex/index buffers stage data through the staging ring before a single
// queue.WriteBuffer, so every vertex/index upload goes through one accounting
// path; uniform data is written with queue.WriteBuffer directly.
func (c *Context) BufferCreate(typ BufferType, label string, size uint64, maxInstances uint32, data []byte) (BufferHandle, error) {
	if size == 0 {
		return BufferHandle{}, fmt.Errorf("rhi: buffer %q must have non-zero size", label)
	}
	if maxInstances == 0 {
		maxInstances = 1
	}

	stride := uint64(0)
	allocSize := size
	if typ == BufferTypeUniform {
		stride = arena.AlignUp(size, c.uniformAlignment)
		allocSize = stride * uint64(maxInstances) * uint64(c.framesInFlight)
	}

	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  allocSize,
		Usage: bufferUsage(typ),
	})
	if err != nil {
		return BufferHandle{}, wrapErr(fmt.Sprintf("create buffer %q", label), err)
	}

	if len(data) > 0 {
		if typ == BufferTypeUniform {
			c.queue.WriteBuffer(buf, 0, data)
		} else if off, werr := c.staging.Write(c.frameIndex, data); werr == nil {
			c.queue.WriteBuffer(buf, 0, c.staging.Bytes(off, uint64(len(data))))
		} else {
			buf.Release()
			return BufferHandle{}, wrapErr(fmt.Sprintf("stage buffer %q", label), werr)
		}
	}

	h, slot := c.buffers.Alloc()
	slot.state = stateInitialized
	slot.typ = typ
	slot.label = label
	slot.size = size
	slot.stride = stride
	slot.maxInstances = maxInstances
	slot.handle = buf

	return BufferHandle(h), nil
}

// Buffer resolves h to its pooled Buffer, or nil if h is invalid or stale.
func (c *Context) Buffer(h BufferHandle) *Buffer {
	return c.buffers.Get(arena.Handle(h))
}

// BufferDestroy releases the buffer's GPU resource and returns its slot to
// the pool.
func (c *Context) BufferDestroy(h BufferHandle) error {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return ErrInvalidHandle
	}
	buf.handle.Release()
	*buf = Buffer{}
	c.buffers.Free(arena.Handle(h))
	return nil
}

// BufferWrite writes data at offset into the current frame's slot of buf
// (for uniform buffers, offset is relative to the logical per-frame region;
// for vertex/index buffers frame slotting doesn't apply and offset is
// absolute). Vertex/index writes route through the staging ring exactly like
// BufferCreate's initial upload; uniform writes go straight to the device
// since WebGPU's queue.WriteBuffer already performs the host-visible copy
// the Vulkan staging path exists to emulate.
func (c *Context) BufferWrite(h BufferHandle, offset uint64, data []byte) error {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return ErrInvalidHandle
	}
	if buf.typ == BufferTypeUniform {
		slotOffset := buf.stride*uint64(buf.maxInstances)*uint64(c.frameIndex) + offset
		c.queue.WriteBuffer(buf.handle, slotOffset, data)
		return nil
	}
	stagedOffset, err := c.staging.Write(c.frameIndex, data)
	if err != nil {
		return wrapErr(fmt.Sprintf("write buffer %q", buf.label), err)
	}
	c.queue.WriteBuffer(buf.handle, offset, c.staging.Bytes(stagedOffset, uint64(len(data))))
	return nil
}

// BufferBindVertex binds buf as vertex buffer slot 0 of the current frame's
// render pass.
func (c *Context) BufferBindVertex(h BufferHandle) error {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return ErrInvalidHandle
	}
	if c.framePass == nil {
		return fmt.Errorf("rhi: BufferBindVertex called outside a frame")
	}
	c.framePass.SetVertexBuffer(0, buf.handle, 0, wgpu.WholeSize)
	return nil
}

// BufferBindIndex binds buf as the current frame's index buffer. indexSize
// must be 2 (uint16) or 4 (uint32) and selects the index format.
func (c *Context) BufferBindIndex(h BufferHandle, indexSize int) error {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return ErrInvalidHandle
	}
	if c.framePass == nil {
		return fmt.Errorf("rhi: BufferBindIndex called outside a frame")
	}
	format := wgpu.IndexFormatUint32
	if indexSize == 2 {
		format = wgpu.IndexFormatUint16
	} else if indexSize != 4 {
		return fmt.Errorf("rhi: unsupported index size %d", indexSize)
	}
	c.framePass.SetIndexBuffer(buf.handle, format, 0, wgpu.WholeSize)
	return nil
}

// UniformSlotOffset returns the dynamic offset for instance within the
// current frame's region of a uniform buffer sized for maxInstances,
// computing (frame * maxInstances + instance) * stride exactly as the
// descriptor-resource module's per-instance UBO addressing requires.
func (c *Context) UniformSlotOffset(h BufferHandle, instance uint32) (uint64, error) {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return 0, ErrInvalidHandle
	}
	if buf.typ != BufferTypeUniform {
		return 0, fmt.Errorf("rhi: buffer %q is not a uniform buffer", buf.label)
	}
	return (uint64(c.frameIndex)*uint64(buf.maxInstances) + uint64(instance)) * buf.stride, nil
}
