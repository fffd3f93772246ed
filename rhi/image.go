package rhi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/internal/arena"
)

// ImageType mirrors the handful of texture dimensionalities the engine
// actually creates: 2D color/depth targets, cube maps for environment
// lighting, and the MSAA/depth scratch targets a RenderPass resolves into.
type ImageType int

const (
	ImageType2D ImageType = iota
	ImageTypeCube
	ImageTypeDepth
)

// ImageDesc describes an Image at creation time.
type ImageDesc struct {
	Label       string
	Type        ImageType
	Width       uint32
	Height      uint32
	Format      wgpu.TextureFormat
	SampleCount uint32 // 1 disables MSAA; >1 creates an MSAA-only scratch image
	Usage       wgpu.TextureUsage
}

// Image is a pooled GPU texture plus its tracked Layout, the RHI's analogue
// of a VkImage/VkImageView/VkDeviceMemory triplet. Images created with
// SampleCount > 1 are scratch-lifetime: they exist solely as the
// multisampled render target a pass resolves from and are never sampled.
type Image struct {
	state   lifecycleState
	desc    ImageDesc
	texture *wgpu.Texture
	view    *wgpu.TextureView
	layout  Layout
}

// View returns the image's texture view for use as a render pass attachment
// or a sampled-texture binding.
func (img *Image) View() *wgpu.TextureView { return img.view }

// Layout returns the image's currently tracked logical layout.
func (img *Image) Layout() Layout { return img.layout }

// Desc returns the descriptor the image was created with.
func (img *Image) Desc() ImageDesc { return img.desc }

// createImageObjects creates the wgpu.Texture and default view for desc,
// returning the normalized descriptor (sample count and usage defaults
// applied) alongside them. MSAA scratch images (SampleCount > 1) are never
// given TextureUsageTextureBinding — they exist only to be resolved into the
// swapchain or target view.
func (c *Context) createImageObjects(desc ImageDesc) (*wgpu.Texture, *wgpu.TextureView, ImageDesc, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, nil, desc, fmt.Errorf("rhi: image %q must have non-zero dimensions", desc.Label)
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	if desc.Usage == 0 {
		if desc.Type == ImageTypeDepth {
			desc.Usage = wgpu.TextureUsageRenderAttachment
		} else {
			desc.Usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
		}
	}
	if desc.SampleCount > 1 {
		desc.Usage = wgpu.TextureUsageRenderAttachment
	}

	depthOrArrayLayers := uint32(1)
	if desc.Type == ImageTypeCube {
		depthOrArrayLayers = 6
	}

	texture, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: depthOrArrayLayers,
		},
		MipLevelCount: 1,
		SampleCount:   desc.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, nil, desc, wrapErr(fmt.Sprintf("create image %q", desc.Label), err)
	}

	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, nil, desc, wrapErr(fmt.Sprintf("create image view %q", desc.Label), err)
	}

	return texture, view, desc, nil
}

// ImageCreate allocates a pool slot, creates the backing wgpu.Texture and a
// default view, and returns a handle good until ImageDestroy.
func (c *Context) ImageCreate(desc ImageDesc) (ImageHandle, error) {
	texture, view, normalized, err := c.createImageObjects(desc)
	if err != nil {
		return ImageHandle{}, err
	}

	h, slot := c.images.Alloc()
	slot.state = stateInitialized
	slot.desc = normalized
	slot.texture = texture
	slot.view = view
	slot.layout = LayoutUndefined

	return ImageHandle(h), nil
}

// ImageEnsure lazily creates or recreates an image to match desc: an invalid
// h creates a fresh image, a live image whose extent/format/sample count
// already match is returned untouched, and a mismatched one has its GPU
// objects destroyed and recreated in place — the handle stays valid, so a
// pass holding it picks up the new view on its next PassBegin. This is the
// lifecycle MSAA scratch and window-sized depth images follow across
// swapchain resizes.
func (c *Context) ImageEnsure(h ImageHandle, desc ImageDesc) (ImageHandle, error) {
	img := c.images.Get(arena.Handle(h))
	if img == nil {
		return c.ImageCreate(desc)
	}

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	if img.desc.Width == desc.Width && img.desc.Height == desc.Height &&
		img.desc.Format == desc.Format && img.desc.SampleCount == sampleCount {
		return h, nil
	}

	texture, view, normalized, err := c.createImageObjects(desc)
	if err != nil {
		return h, err
	}
	img.view.Release()
	img.texture.Release()
	img.desc = normalized
	img.texture = texture
	img.view = view
	img.layout = LayoutUndefined

	return h, nil
}

// Image resolves h to its pooled Image, or nil if h is invalid or stale.
func (c *Context) Image(h ImageHandle) *Image {
	return c.images.Get(arena.Handle(h))
}

// ImageDestroy releases the image's GPU resources and returns its slot to
// the pool.
func (c *Context) ImageDestroy(h ImageHandle) error {
	img := c.images.Get(arena.Handle(h))
	if img == nil {
		return ErrInvalidHandle
	}
	img.view.Release()
	img.texture.Release()
	*img = Image{}
	c.images.Free(arena.Handle(h))
	return nil
}

// TransitionAuto moves img's tracked layout to target and returns the
// computed barrier, per the testable property that after transitioning, the
// image's tracked layout equals target. The transition never issues a wgpu
// call: the target API has no explicit image-layout barrier, so attachment
// and binding usage alone drive synchronization, and this call exists purely
// to keep caller-side bookkeeping honest.
func (c *Context) TransitionAuto(h ImageHandle, target Layout) (barrier, error) {
	img := c.images.Get(arena.Handle(h))
	if img == nil {
		return barrier{}, ErrInvalidHandle
	}
	b := transitionFor(img.layout, target)
	img.layout = target
	return b, nil
}
