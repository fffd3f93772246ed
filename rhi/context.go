package rhi

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/pipeline"
	"github.com/kestrel-engine/rhi/internal/arena"
	"github.com/kestrel-engine/rhi/internal/pushconstant"
	"github.com/kestrel-engine/rhi/internal/staging"
)

// Default pool capacities and staging sizes, generous enough for a
// single-scene engine without becoming unbounded. Override via
// ContextOption at construction.
const (
	defaultImagePoolCapacity    = 512
	defaultBufferPoolCapacity   = 1024
	defaultResourcePoolCapacity = 1024
	defaultPassPoolCapacity     = 32
	defaultStagingCapacity      = 64 << 20 // 64 MiB total, split across frames in flight
	defaultFramesInFlight       = 2
	defaultUniformAlignment     = 256 // WebGPU's baseline minUniformBufferOffsetAlignment
	defaultPushConstantSlots    = 256
)

// Context owns every pooled GPU resource this package creates (images,
// buffers, descriptor resources, render passes) and the device/queue/
// surface triplet they're built against. It is the sole teardown authority:
// Shutdown scans every pool for still-Initialized slots and releases them.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	uniformAlignment uint64
	framesInFlight   int
	frameIndex       int

	images    *arena.Pool[Image]
	buffers   *arena.Pool[Buffer]
	resources *arena.Pool[Resource]
	passes    *arena.Pool[Pass]

	staging *staging.Ring

	pushConstantBuffer *wgpu.Buffer
	pushConstantLayout *wgpu.BindGroupLayout
	pushConstantGroup  *wgpu.BindGroup

	// Per-frame recording state, valid only between BeginFrame and EndFrame.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// boundPipeline is the pipeline most recently set via BindPipeline, used
	// to validate PushConstants writes against the bound shaders' reflected
	// @oxy:push_constant struct size instead of only the device's capped
	// maximum.
	boundPipeline pipeline.Pipeline
}

// ContextOption configures Context construction.
type ContextOption func(*contextConfig)

type contextConfig struct {
	forceFallbackAdapter bool
	framesInFlight       int
	stagingCapacity      uint64
	imageCapacity        uint32
	bufferCapacity       uint32
	resourceCapacity     uint32
	passCapacity         uint32
}

// WithForceFallbackAdapter forces WebGPU to pick a software adapter,
// useful for headless or CI environments with no GPU.
func WithForceFallbackAdapter(force bool) ContextOption {
	return func(c *contextConfig) { c.forceFallbackAdapter = force }
}

// WithFramesInFlight overrides the default double-buffered frame count.
func WithFramesInFlight(n int) ContextOption {
	return func(c *contextConfig) {
		if n > 0 {
			c.framesInFlight = n
		}
	}
}

// WithStagingCapacity overrides the default total staging-ring byte budget.
func WithStagingCapacity(bytes uint64) ContextOption {
	return func(c *contextConfig) {
		if bytes > 0 {
			c.stagingCapacity = bytes
		}
	}
}

// WithPoolCapacities overrides the default image/buffer/resource/pass pool
// sizes. Pass 0 for any argument to keep its default.
func WithPoolCapacities(images, buffers, resources, passes uint32) ContextOption {
	return func(c *contextConfig) {
		if images > 0 {
			c.imageCapacity = images
		}
		if buffers > 0 {
			c.bufferCapacity = buffers
		}
		if resources > 0 {
			c.resourceCapacity = resources
		}
		if passes > 0 {
			c.passCapacity = passes
		}
	}
}

// NewContext creates the WebGPU instance/adapter/device/queue against
// surfaceDescriptor and returns an owning Context with every pool allocated.
// It locks the OS thread (wgpu-native's surface/adapter calls are not safe
// to migrate across OS threads), creates the instance and surface, requests
// an adapter compatible with that surface, then requests a device with a
// raised MaxBindGroups limit for the multi-group material/lighting layouts
// this RHI expects shaders to declare.
func NewContext(surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...ContextOption) (*Context, error) {
	cfg := contextConfig{
		framesInFlight:   defaultFramesInFlight,
		stagingCapacity:  defaultStagingCapacity,
		imageCapacity:    defaultImagePoolCapacity,
		bufferCapacity:   defaultBufferPoolCapacity,
		resourceCapacity: defaultResourcePoolCapacity,
		passCapacity:     defaultPassPoolCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(surfaceDescriptor)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, wrapErr("request adapter", err)
	}

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "RHI Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, wrapErr("request device", err)
	}

	c := &Context{
		instance:         instance,
		adapter:          adapter,
		device:           device,
		queue:            device.GetQueue(),
		surface:          surface,
		presentMode:      wgpu.PresentModeFifo,
		uniformAlignment: defaultUniformAlignment,
		framesInFlight:   cfg.framesInFlight,
		images:           arena.NewPool[Image](cfg.imageCapacity),
		buffers:          arena.NewPool[Buffer](cfg.bufferCapacity),
		resources:        arena.NewPool[Resource](cfg.resourceCapacity),
		passes:           arena.NewPool[Pass](cfg.passCapacity),
		staging:          staging.New(cfg.stagingCapacity, cfg.framesInFlight, defaultUniformAlignment),
	}

	if err := c.initPushConstants(); err != nil {
		return nil, err
	}

	return c, nil
}

// initPushConstants allocates the small dynamic-offset uniform buffer and
// single-entry bind group that emulate VkCmdPushConstants, sized for
// defaultPushConstantSlots concurrent draw calls per frame.
func (c *Context) initPushConstants() error {
	stride := pushconstant.SlotStride(pushconstant.MaxSize, c.uniformAlignment)
	size := stride * uint64(defaultPushConstantSlots)

	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Push Constant Ring",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return wrapErr("create push constant buffer", err)
	}

	layout, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Push Constant Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   uint64(pushconstant.MaxSize),
				},
			},
		},
	})
	if err != nil {
		buf.Release()
		return wrapErr("create push constant layout", err)
	}

	group, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Push Constant Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: uint64(pushconstant.MaxSize)},
		},
	})
	if err != nil {
		buf.Release()
		return wrapErr("create push constant group", err)
	}

	c.pushConstantBuffer = buf
	c.pushConstantLayout = layout
	c.pushConstantGroup = group
	return nil
}

// Device, Queue, Adapter, Instance and Surface expose the underlying WebGPU
// handles for callers that need to hand them to other packages (window
// resize plumbing, for example).
func (c *Context) Device() *wgpu.Device     { return c.device }
func (c *Context) Queue() *wgpu.Queue       { return c.queue }
func (c *Context) Adapter() *wgpu.Adapter   { return c.adapter }
func (c *Context) Instance() *wgpu.Instance { return c.instance }
func (c *Context) Surface() *wgpu.Surface   { return c.surface }

// FramesInFlight returns the configured number of frames the context
// double/triple-buffers.
func (c *Context) FramesInFlight() int { return c.framesInFlight }

// Shutdown releases every still-Initialized pooled resource and the
// device-level objects Context itself owns, so callers do not have to
// track and destroy their own handles before exit.
func (c *Context) Shutdown() {
	c.images.Each(func(h arena.Handle, img *Image) {
		if img.state == stateInitialized {
			c.ImageDestroy(ImageHandle(h))
		}
	})
	c.buffers.Each(func(h arena.Handle, buf *Buffer) {
		if buf.state == stateInitialized {
			c.BufferDestroy(BufferHandle(h))
		}
	})
	c.resources.Each(func(h arena.Handle, r *Resource) {
		if r.state == stateInitialized {
			c.ResourceDestroy(ResourceHandle(h))
		}
	})
	c.passes.Each(func(h arena.Handle, p *Pass) {
		if p.state == stateInitialized {
			c.PassDestroy(PassHandle(h))
		}
	})

	if c.pushConstantGroup != nil {
		c.pushConstantGroup.Release()
	}
	if c.pushConstantLayout != nil {
		c.pushConstantLayout.Release()
	}
	if c.pushConstantBuffer != nil {
		c.pushConstantBuffer.Release()
	}
	c.device.Release()
	c.surface.Release()
	c.adapter.Release()
	c.instance.Release()
}
