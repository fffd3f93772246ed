package rhi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode selects the swapchain presentation policy, one level above
// wgpu.PresentMode so callers don't need the backend enum.
type PresentMode int

const (
	PresentModeVSync PresentMode = iota
	PresentModeUncapped
)

// SetPresentMode records the present mode to apply on the next Configure
// call; the mode only takes effect once the surface is reconfigured.
func (c *Context) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeVSync:
		c.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		c.presentMode = wgpu.PresentModeImmediate
	}
}

// Configure (re)configures the swapchain surface at width x height, picking
// the surface's first reported format and alpha mode. Call it once at
// startup and again after every resize.
func (c *Context) Configure(width, height int) error {
	capabilities := c.surface.GetCapabilities(c.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("rhi: surface reports no supported formats")
	}
	c.surfaceFormat = &capabilities.Formats[0]

	c.surface.Configure(c.adapter, c.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *c.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: c.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

// OnResize reconfigures the swapchain surface for a new width x height.
// wgpu-native's queue submission already serializes in-flight GPU work per
// encoder, so reconfiguring the surface is sufficient to invalidate the old
// swapchain images and hand back freshly sized ones on the next BeginFrame.
// Render targets sized off the window (MSAA scratch/depth Images) are lazily
// recreated at the new dimensions by ImageEnsure; passes holding their
// handles pick up the fresh views on the next PassBegin.
func (c *Context) OnResize(width, height int) error {
	return c.Configure(width, height)
}

// SurfaceFormat returns the format Configure picked for the swapchain, the
// format a caller should use for a swapchain-targeting attachment's MSAA
// scratch Image.
func (c *Context) SurfaceFormat() wgpu.TextureFormat {
	if c.surfaceFormat == nil {
		return wgpu.TextureFormatUndefined
	}
	return *c.surfaceFormat
}

// FrameIndex returns the current in-flight frame slot — a value in
// [0, FramesInFlight()) that advances each Present — the index every
// per-frame staging/uniform addressing call in this package keys off.
func (c *Context) FrameIndex() int { return c.frameIndex }

// BeginFrame acquires the next swapchain image, begins a staging-ring
// partition for the current frame slot, and opens a fresh command encoder.
// A second BeginFrame before EndFrame/Present closes out the prior one
// returns an error rather than leaking an acquired surface texture.
func (c *Context) BeginFrame() error {
	if c.frameSurface != nil {
		return fmt.Errorf("rhi: previous frame surface not yet presented")
	}

	c.staging.BeginFrame(c.frameIndex)

	surfaceTexture, err := c.surface.GetCurrentTexture()
	if err != nil {
		return wrapErr("acquire surface texture", err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return wrapErr("create surface view", err)
	}

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return wrapErr("create command encoder", err)
	}

	c.frameEncoder = encoder
	c.frameSurface = surfaceTexture
	c.frameView = view

	return nil
}

// SurfaceView returns the current frame's acquired swapchain view, the
// targetView callers pass to PassBegin for the main render pass.
func (c *Context) SurfaceView() *wgpu.TextureView {
	return c.frameView
}

// EndFrame finishes and submits the frame's command encoder. It does not
// present — Present does — so a caller can run multiple passes (shadow,
// main, post) against the same encoder between BeginFrame and EndFrame
// before a single submit.
func (c *Context) EndFrame() error {
	if c.frameEncoder == nil {
		return fmt.Errorf("rhi: EndFrame called outside BeginFrame")
	}
	if c.framePass != nil {
		return fmt.Errorf("rhi: EndFrame called with an unended pass still open")
	}

	commandBuffer, err := c.frameEncoder.Finish(nil)
	if err != nil {
		c.frameEncoder.Release()
		c.frameView.Release()
		c.frameSurface.Release()
		c.frameEncoder, c.frameSurface, c.frameView = nil, nil, nil
		return wrapErr("finish command encoder", err)
	}

	c.queue.Submit(commandBuffer)

	commandBuffer.Release()
	c.frameEncoder.Release()
	c.frameEncoder = nil

	return nil
}

// Present presents the frame's acquired swapchain image and advances
// FrameIndex to the next in-flight slot. Call it once per frame after
// EndFrame.
func (c *Context) Present() {
	if c.frameSurface == nil {
		return
	}

	c.surface.Present()

	c.frameView.Release()
	c.frameSurface.Release()
	c.frameView, c.frameSurface = nil, nil

	c.frameIndex = (c.frameIndex + 1) % c.framesInFlight
}
