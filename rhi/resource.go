package rhi

import (
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/common"
	"github.com/kestrel-engine/rhi/engine/renderer/bind_group_provider"
	"github.com/kestrel-engine/rhi/internal/arena"
	"github.com/kestrel-engine/rhi/internal/pushconstant"
)

// ResourceDesc describes a descriptor-resource (a bind group plus the
// buffers/textures/samplers backing it) at creation time. Layout is the
// reflected wgpu.BindGroupLayoutDescriptor for the group — typically
// obtained from shader.Shader.BindGroupLayoutDescriptor after merging vertex
// and fragment stage visibility the way MergeBindGroupLayouts does.
type ResourceDesc struct {
	Label               string
	Layout              wgpu.BindGroupLayoutDescriptor
	BufferUsageOverride map[int]wgpu.BufferUsage
	BufferSizeOverride  map[int]uint64
	// MaxInstances is the number of per-instance slots each dynamic-offset
	// buffer entry carries per frame in flight: 1 (the default) for a global
	// per-frame resource, or the material's instance capacity for a group
	// resource whose draws select a slot via ResourceBindInstance.
	MaxInstances uint32
	// Identity classifies the descriptor-resource frequency this resource
	// serves (global per-frame vs. per-material), mirroring the identity a
	// shader's @oxy:provider annotation reflects for the same group. Leave
	// zero-valued for resources with no frequency split (e.g. push-constant
	// backing, vertex-pulling buffers).
	Identity bind_group_provider.ProviderIdentity
}

// Resource is a pooled descriptor resource: the RHI's analogue of a
// VkDescriptorSet plus its backing VkBuffer/VkImageView/VkSampler writes. It
// wraps a bind_group_provider.BindGroupProvider, adding pool-tracked
// lifetime and per-(frame, instance) slot addressing on top of the
// provider's bind-group bookkeeping.
type Resource struct {
	state        lifecycleState
	provider     bind_group_provider.BindGroupProvider
	maxInstances uint32
	// strides maps each dynamic-offset buffer binding to its aligned
	// per-slot stride; bindings absent from the map have no dynamic offset.
	strides map[int]uint64
}

// Provider exposes the underlying BindGroupProvider for callers that need
// direct access (texture/sampler staging, buffer writes through
// Context.WriteResourceBuffers).
func (r *Resource) Provider() bind_group_provider.BindGroupProvider { return r.provider }

// Identity returns the descriptor-resource frequency this resource serves,
// as set on the ResourceDesc it was created from.
func (r *Resource) Identity() bind_group_provider.ProviderIdentity { return r.provider.Identity() }

// ResourceCreate builds the bind group layout (if the provider doesn't
// already carry one), allocates a backing buffer for every buffer-type entry
// in desc.Layout that doesn't already have one, and creates the bind group,
// all under pooled ownership. Dynamic-offset buffer entries are allocated
// stride x MaxInstances x framesInFlight bytes — one aligned slot per
// (frame, instance) pair, the same striding BufferCreate applies to pooled
// uniform buffers — and bound with a window of one slot so
// ResourceBindInstance's dynamic offsets select the rest.
// Texture and sampler entries must be populated first via
// ResourceSetTexture/ResourceSetSampler; ResourceCreate fails with an error
// naming the unfilled binding otherwise.
func (c *Context) ResourceCreate(desc ResourceDesc) (ResourceHandle, error) {
	provider := bind_group_provider.NewBindGroupProvider(desc.Label, bind_group_provider.WithIdentity(desc.Identity))

	maxInstances := desc.MaxInstances
	if maxInstances == 0 {
		maxInstances = 1
	}
	strides := make(map[int]uint64)

	if len(desc.Layout.Entries) > 0 {
		layout, err := c.device.CreateBindGroupLayout(&desc.Layout)
		if err != nil {
			return ResourceHandle{}, wrapErr(fmt.Sprintf("create bind group layout %q", desc.Label), err)
		}
		provider.SetBindGroupLayout(layout)

		entries := make([]wgpu.BindGroupEntry, len(desc.Layout.Entries))
		for i, entry := range desc.Layout.Entries {
			binding := int(entry.Binding)
			isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
			isSampler := entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined

			switch {
			case isTexture:
				tv := provider.TextureView(binding)
				if tv == nil {
					return ResourceHandle{}, fmt.Errorf("rhi: texture binding %d of %q has no view — call ResourceSetTexture first", binding, desc.Label)
				}
				entries[i] = wgpu.BindGroupEntry{Binding: entry.Binding, TextureView: tv}
			case isSampler:
				samp := provider.Sampler(binding)
				if samp == nil {
					return ResourceHandle{}, fmt.Errorf("rhi: sampler binding %d of %q has no sampler — call ResourceSetSampler first", binding, desc.Label)
				}
				entries[i] = wgpu.BindGroupEntry{Binding: entry.Binding, Sampler: samp}
			default:
				usage := bufferEntryUsage(entry.Buffer.Type)
				if override, ok := desc.BufferUsageOverride[binding]; ok {
					usage |= override
				}
				size := entry.Buffer.MinBindingSize
				if override, ok := desc.BufferSizeOverride[binding]; ok {
					size = override
				}
				if size == 0 {
					return ResourceHandle{}, fmt.Errorf("rhi: buffer binding %d of %q has no reflected size — set BufferSizeOverride", binding, desc.Label)
				}
				allocSize := size
				bindingSize := uint64(wgpu.WholeSize)
				if entry.Buffer.HasDynamicOffset {
					stride := arena.AlignUp(size, c.uniformAlignment)
					strides[binding] = stride
					allocSize = stride * uint64(maxInstances) * uint64(c.framesInFlight)
					bindingSize = size
				}
				buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: desc.Label + " Buffer",
					Size:  allocSize,
					Usage: usage,
				})
				if err != nil {
					return ResourceHandle{}, wrapErr(fmt.Sprintf("create resource buffer %q binding %d", desc.Label, binding), err)
				}
				provider.SetBuffer(binding, buf)
				entries[i] = wgpu.BindGroupEntry{Binding: entry.Binding, Buffer: buf, Offset: 0, Size: bindingSize}
			}
		}

		bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   desc.Label + " Bind Group",
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return ResourceHandle{}, wrapErr(fmt.Sprintf("create bind group %q", desc.Label), err)
		}
		provider.SetBindGroup(bindGroup)
	}

	h, slot := c.resources.Alloc()
	slot.state = stateInitialized
	slot.provider = provider
	slot.maxInstances = maxInstances
	slot.strides = strides
	return ResourceHandle(h), nil
}

func bufferEntryUsage(t wgpu.BufferBindingType) wgpu.BufferUsage {
	switch t {
	case wgpu.BufferBindingTypeUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageCopyDst
	}
}

// Resource resolves h to its pooled Resource, or nil if h is invalid.
func (c *Context) Resource(h ResourceHandle) *Resource {
	return c.resources.Get(arena.Handle(h))
}

// ResourceDestroy releases the resource's GPU objects and returns its slot
// to the pool.
func (c *Context) ResourceDestroy(h ResourceHandle) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	r.provider.Release()
	*r = Resource{}
	c.resources.Free(arena.Handle(h))
	return nil
}

// ResourceSetTexture uploads stagingData into a GPU texture, creates its
// view, and binds it at bindingKey.
func (c *Context) ResourceSetTexture(h ResourceHandle, bindingKey int, stagingData common.TextureStagingData) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     r.provider.Label() + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              stagingData.Width,
			Height:             stagingData.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return wrapErr("create resource texture", err)
	}
	c.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		stagingData.Pixels,
		&wgpu.TextureDataLayout{BytesPerRow: stagingData.Width * 4, RowsPerImage: stagingData.Height},
		&wgpu.Extent3D{Width: stagingData.Width, Height: stagingData.Height, DepthOrArrayLayers: 1},
	)
	view, err := tex.CreateView(nil)
	if err != nil {
		return wrapErr("create resource texture view", err)
	}
	r.provider.SetTextureView(bindingKey, view)
	return nil
}

// ResourceSetSampler creates a GPU sampler from samplerStagingData and binds
// it at bindingKey.
func (c *Context) ResourceSetSampler(h ResourceHandle, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	samp, err := c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         r.provider.Label() + " Sampler",
		AddressModeU:  common.Coalesce(samplerStagingData.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(samplerStagingData.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(samplerStagingData.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(samplerStagingData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerStagingData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerStagingData.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(samplerStagingData.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(samplerStagingData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerStagingData.MaxAnisotropy, 1),
		Compare:       samplerStagingData.Compare,
	})
	if err != nil {
		return wrapErr("create resource sampler", err)
	}
	r.provider.SetSampler(bindingKey, samp)
	return nil
}

// ResourceBind binds r at group index within the current frame's render
// pass, with dynamicOffsets applied in binding order — pass nil for
// resources with no dynamic-offset entries.
func (c *Context) ResourceBind(group uint32, h ResourceHandle, dynamicOffsets []uint32) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	if c.framePass == nil {
		return fmt.Errorf("rhi: ResourceBind called outside a frame")
	}
	c.framePass.SetBindGroup(group, r.provider.BindGroup(), dynamicOffsets)
	return nil
}

// ResourceSlotOffset returns the dynamic offset selecting the (current
// frame, instance) slot of the dynamic-offset buffer bound at binding:
// (frame x maxInstances + instance) x stride, the same addressing
// UniformSlotOffset applies to pooled uniform buffers.
func (c *Context) ResourceSlotOffset(h ResourceHandle, binding int, instance uint32) (uint32, error) {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return 0, ErrInvalidHandle
	}
	stride, ok := r.strides[binding]
	if !ok {
		return 0, fmt.Errorf("rhi: resource %q has no dynamic-offset buffer at binding %d", r.provider.Label(), binding)
	}
	if instance >= r.maxInstances {
		return 0, fmt.Errorf("rhi: resource %q instance %d out of range [0,%d)", r.provider.Label(), instance, r.maxInstances)
	}
	return uint32((uint64(c.frameIndex)*uint64(r.maxInstances) + uint64(instance)) * stride), nil
}

// ResourceBindInstance binds h at group with one dynamic offset per
// dynamic-offset buffer binding (in ascending binding order), each selecting
// instance's slot within the current frame's region. A global per-frame
// resource passes instance 0; a group (material) resource passes the draw's
// instance index.
func (c *Context) ResourceBindInstance(group uint32, h ResourceHandle, instance uint32) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	bindings := make([]int, 0, len(r.strides))
	for binding := range r.strides {
		bindings = append(bindings, binding)
	}
	sort.Ints(bindings)

	offsets := make([]uint32, len(bindings))
	for i, binding := range bindings {
		offset, err := c.ResourceSlotOffset(h, binding, instance)
		if err != nil {
			return err
		}
		offsets[i] = offset
	}
	return c.ResourceBind(group, h, offsets)
}

// WriteResourceSlot writes data into the (current frame, instance) slot of
// the dynamic-offset buffer bound at binding, the per-instance uniform
// update a material issues before drawing with ResourceBindInstance.
func (c *Context) WriteResourceSlot(h ResourceHandle, binding int, instance uint32, data []byte) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	buf := r.provider.Buffer(binding)
	if buf == nil {
		return fmt.Errorf("rhi: resource %q has no buffer at binding %d", r.provider.Label(), binding)
	}
	offset, err := c.ResourceSlotOffset(h, binding, instance)
	if err != nil {
		return err
	}
	c.queue.WriteBuffer(buf, uint64(offset), data)
	return nil
}

// WriteResourceBuffer writes data at offset into the buffer bound at binding
// within r with a direct queue.WriteBuffer, as Context.BufferWrite does for
// uniform buffers; the staging ring is not used.
func (c *Context) WriteResourceBuffer(h ResourceHandle, binding int, offset uint64, data []byte) error {
	r := c.resources.Get(arena.Handle(h))
	if r == nil {
		return ErrInvalidHandle
	}
	buf := r.provider.Buffer(binding)
	if buf == nil {
		return fmt.Errorf("rhi: resource %q has no buffer at binding %d", r.provider.Label(), binding)
	}
	c.queue.WriteBuffer(buf, offset, data)
	return nil
}

// WriteResourceBuffers applies every write in writes against their target
// resources' buffers in order, stopping at the first error. Each
// bind_group_provider.BufferWrite.Provider names its own resource's provider
// (obtained via Resource(h).Provider()), letting a renderer batch updates
// across every material/global resource touched in a frame into one call
// instead of repeated WriteResourceBuffer calls.
func (c *Context) WriteResourceBuffers(writes []bind_group_provider.BufferWrite) error {
	return bind_group_provider.ApplyBufferWrites(c.queue, writes)
}

// pushConstantSlotOffset computes the dynamic offset for push-constant slot index
// within the context's emulated push-constant buffer, sized by
// pushconstant.SlotStride at Context construction.
func (c *Context) pushConstantSlotOffset(slot uint32) uint64 {
	return uint64(slot) * pushconstant.SlotStride(pushconstant.MaxSize, c.uniformAlignment)
}

// PushConstants emulates vkCmdPushConstants by writing data (at most
// pushconstant.MaxSize bytes) into slot's region of the context's
// push-constant ring buffer and binding that buffer's dynamic offset at
// group. WebGPU's stable API has no equivalent command, so every "push
// constant" write is really a small dynamic-offset uniform write.
//
// When the currently bound pipeline's vertex or fragment shader declares an
// @oxy:push_constant struct, data is also validated against the merged
// vertex+fragment range reflected from that struct, catching an oversized
// write against the bound shader before it silently clips at the device's
// much larger cap.
func (c *Context) PushConstants(group uint32, slot uint32, data []byte) error {
	if len(data) > pushconstant.MaxSize {
		return fmt.Errorf("rhi: push-constant write of %d bytes exceeds max %d", len(data), pushconstant.MaxSize)
	}
	if limit := c.boundPushConstantLimit(); limit > 0 && uint64(len(data)) > limit {
		return fmt.Errorf("rhi: push-constant write of %d bytes exceeds bound shader's reflected range of %d bytes", len(data), limit)
	}
	offset := c.pushConstantSlotOffset(slot)
	c.queue.WriteBuffer(c.pushConstantBuffer, offset, data)
	if c.framePass == nil {
		return fmt.Errorf("rhi: PushConstants called outside a frame")
	}
	c.framePass.SetBindGroup(group, c.pushConstantGroup, []uint32{uint32(offset)})
	return nil
}

// boundPushConstantLimit returns the bound pipeline's merged push-constant
// range (pipeline.Pipeline.PushConstantSize), or 0 if no pipeline is bound.
func (c *Context) boundPushConstantLimit() uint64 {
	if c.boundPipeline == nil {
		return 0
	}
	return c.boundPipeline.PushConstantSize()
}
