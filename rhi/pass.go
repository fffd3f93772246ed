package rhi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/pipeline"
	"github.com/kestrel-engine/rhi/internal/arena"
)

// MaxPassColorAttachments bounds how many color attachments one pass can
// carry.
const MaxPassColorAttachments = 4

// PassColorAttachment describes one color attachment of a pass. A
// zero-valued Texture means the attachment targets the acquired swapchain
// view PassBegin receives; otherwise it targets that explicit color Image
// (a render texture for a shadow or post pass). MSAA names a SampleCount>1
// scratch Image the pass renders into and resolves from when the pass
// multisamples.
type PassColorAttachment struct {
	Texture      ImageHandle
	MSAA         ImageHandle
	Format       wgpu.TextureFormat
	ClearColor   wgpu.Color
	LoadExisting bool // true: LoadOpLoad instead of LoadOpClear
}

// PassDesc describes a render pass's attachments at creation time: between
// one and MaxPassColorAttachments color attachments plus an optional depth
// attachment. DepthImage is a handle to a depth-format Image the pass clears
// every PassBegin and discards every PassEnd; the image itself persists and
// is reused frame to frame.
type PassDesc struct {
	Label       string
	Colors      []PassColorAttachment
	DepthImage  ImageHandle
	SampleCount uint32
}

// Pass is a pooled render pass: a cached wgpu.RenderPassDescriptor template
// plus the attachment images it draws into, the RHI's analogue of a
// VkRenderPass combined with the "dynamic rendering" attachment list a
// caller would otherwise rebuild by hand every frame.
type Pass struct {
	state      lifecycleState
	desc       PassDesc
	descriptor *wgpu.RenderPassDescriptor
}

// PassCreate validates desc and caches a wgpu.RenderPassDescriptor template
// holding everything that never changes frame to frame (load/store ops,
// clear values); attachment views are patched in by PassBegin on every call,
// so a scratch image recreated at a new extent is picked up automatically.
func (c *Context) PassCreate(desc PassDesc) (PassHandle, error) {
	if len(desc.Colors) == 0 {
		return PassHandle{}, fmt.Errorf("rhi: pass %q has no color attachments", desc.Label)
	}
	if len(desc.Colors) > MaxPassColorAttachments {
		return PassHandle{}, fmt.Errorf("rhi: pass %q has %d color attachments, max %d", desc.Label, len(desc.Colors), MaxPassColorAttachments)
	}
	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	msaaEnabled := sampleCount > 1

	colorAttachments := make([]wgpu.RenderPassColorAttachment, len(desc.Colors))
	for i, color := range desc.Colors {
		if msaaEnabled && !arena.Handle(color.MSAA).IsValid() {
			return PassHandle{}, fmt.Errorf("rhi: pass %q attachment %d requests SampleCount %d but has no MSAA image", desc.Label, i, sampleCount)
		}
		loadOp := wgpu.LoadOpClear
		if color.LoadExisting {
			loadOp = wgpu.LoadOpLoad
		}
		storeOp := wgpu.StoreOpStore
		if msaaEnabled {
			storeOp = wgpu.StoreOpDiscard
		}
		colorAttachments[i] = wgpu.RenderPassColorAttachment{
			LoadOp:     loadOp,
			StoreOp:    storeOp,
			ClearValue: color.ClearColor,
		}
	}

	descriptor := &wgpu.RenderPassDescriptor{
		ColorAttachments: colorAttachments,
	}

	if arena.Handle(desc.DepthImage).IsValid() {
		if c.images.Get(arena.Handle(desc.DepthImage)) == nil {
			return PassHandle{}, ErrInvalidHandle
		}
		descriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		}
	}

	h, slot := c.passes.Alloc()
	slot.state = stateInitialized
	slot.desc = desc
	slot.desc.SampleCount = sampleCount
	slot.descriptor = descriptor

	return PassHandle(h), nil
}

// Pass resolves h to its pooled Pass, or nil if h is invalid.
func (c *Context) Pass(h PassHandle) *Pass {
	return c.passes.Get(arena.Handle(h))
}

// PassDestroy returns h's slot to the pool. It does not release the
// underlying images — ImageDestroy owns that, since a pass's MSAA/depth
// images can outlive (or be shared across) multiple passes.
func (c *Context) PassDestroy(h PassHandle) error {
	p := c.passes.Get(arena.Handle(h))
	if p == nil {
		return ErrInvalidHandle
	}
	*p = Pass{}
	c.passes.Free(arena.Handle(h))
	return nil
}

// PassBegin begins recording h against the current frame's command encoder.
// For every color attachment the view chain is resolved fresh from the image
// pools: an explicit Texture renders to its own view, a zero-valued Texture
// renders to targetView (the acquired swapchain view), and when the pass
// multisamples the MSAA scratch image becomes the View with the real target
// as its ResolveTarget. The resulting wgpu.RenderPassEncoder becomes the
// context's current frame pass for subsequent
// DrawIndexed/ResourceBind/BufferBind* calls.
func (c *Context) PassBegin(h PassHandle, targetView *wgpu.TextureView) error {
	p := c.passes.Get(arena.Handle(h))
	if p == nil {
		return ErrInvalidHandle
	}
	if c.frameEncoder == nil {
		return fmt.Errorf("rhi: PassBegin called outside BeginFrame/EndFrame")
	}

	msaaEnabled := p.desc.SampleCount > 1
	for i, color := range p.desc.Colors {
		target := targetView
		if arena.Handle(color.Texture).IsValid() {
			img := c.images.Get(arena.Handle(color.Texture))
			if img == nil {
				return fmt.Errorf("rhi: pass %q attachment %d: %w", p.desc.Label, i, ErrInvalidHandle)
			}
			target = img.View()
		}
		if msaaEnabled {
			msaaImg := c.images.Get(arena.Handle(color.MSAA))
			if msaaImg == nil {
				return fmt.Errorf("rhi: pass %q attachment %d MSAA image: %w", p.desc.Label, i, ErrInvalidHandle)
			}
			p.descriptor.ColorAttachments[i].View = msaaImg.View()
			p.descriptor.ColorAttachments[i].ResolveTarget = target
		} else {
			p.descriptor.ColorAttachments[i].View = target
		}
	}

	if p.descriptor.DepthStencilAttachment != nil {
		depthImg := c.images.Get(arena.Handle(p.desc.DepthImage))
		if depthImg == nil {
			return fmt.Errorf("rhi: pass %q depth attachment: %w", p.desc.Label, ErrInvalidHandle)
		}
		p.descriptor.DepthStencilAttachment.View = depthImg.View()
	}

	c.framePass = c.frameEncoder.BeginRenderPass(p.descriptor)
	return nil
}

// BindPipeline sets p as the current frame pass's active pipeline. p must be
// a render pipeline (pipeline.PipelineTypeRender) already registered via the
// shader package's VariantCache.
func (c *Context) BindPipeline(p pipeline.Pipeline) error {
	if c.framePass == nil {
		return fmt.Errorf("rhi: BindPipeline called outside a pass")
	}
	rp, ok := p.Pipeline().(*wgpu.RenderPipeline)
	if !ok || rp == nil {
		return fmt.Errorf("rhi: pipeline %q has no render pipeline registered", p.PipelineKey())
	}
	c.framePass.SetPipeline(rp)
	c.boundPipeline = p
	return nil
}

// DrawIndexed issues a draw call against the current frame pass with the
// given index count and instance count, after bind groups and vertex/index
// buffers have been bound via ResourceBind/BufferBindVertex/BufferBindIndex.
func (c *Context) DrawIndexed(indexCount, instanceCount uint32) error {
	if c.framePass == nil {
		return fmt.Errorf("rhi: DrawIndexed called outside a pass")
	}
	c.framePass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
	return nil
}

// DrawIndexedIndirect issues an indirect indexed draw call reading its
// arguments from indirectBuffer at byte offset 0.
func (c *Context) DrawIndexedIndirect(h BufferHandle) error {
	buf := c.buffers.Get(arena.Handle(h))
	if buf == nil {
		return ErrInvalidHandle
	}
	if c.framePass == nil {
		return fmt.Errorf("rhi: DrawIndexedIndirect called outside a pass")
	}
	c.framePass.DrawIndexedIndirect(buf.handle, 0)
	return nil
}

// PassEnd ends the current frame pass. It does not submit the encoder —
// EndFrame does, after every pass for the frame has ended.
func (c *Context) PassEnd() error {
	if c.framePass == nil {
		return fmt.Errorf("rhi: PassEnd called with no active pass")
	}
	c.framePass.End()
	c.framePass = nil
	return nil
}
