// Package shader builds on the engine's WGSL shader reflection
// (github.com/kestrel-engine/rhi/engine/renderer/shader) and pipeline
// builder (.../pipeline) to add a bounded, LRU-evicted cache of pipeline
// variants keyed by rasterization/depth/blend state, so two draw calls
// against the same shader pair that differ only in (say) cull mode or
// wireframe don't each force a pipeline rebuild, and the live variant set
// never grows past MaxVariants.
package shader

import (
	"container/list"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/pipeline"
	"github.com/kestrel-engine/rhi/engine/renderer/shader"
)

// MaxVariants bounds the number of live pipeline variants one VariantCache
// holds, counted across every shader key in it; the least-recently-bound
// variant is evicted past this point.
const MaxVariants = 8

// StateFlags packs the rasterization/depth/blend axes a pipeline variant can
// vary across into a single comparable key. It deliberately only covers the
// fields pipeline.Pipeline exposes as builder options — anything reflected
// from the shader itself (vertex layout, bind group layouts) is identical
// for every variant of the same shader pair and so isn't part of the key.
type StateFlags struct {
	DepthTestEnabled  bool
	DepthWriteEnabled bool
	BlendEnabled      bool
	CullMode          wgpu.CullMode
	Topology          wgpu.PrimitiveTopology
	FrontFace         wgpu.FrontFace
}

// VariantKey identifies one cached pipeline: the vertex+fragment shader pair
// (or the single compute shader) plus its StateFlags.
type VariantKey struct {
	ShaderKey string
	Flags     StateFlags
}

// PipelineFactory creates the underlying GPU pipeline for a not-yet-cached
// variant, e.g. a Context method that registers a render or compute
// pipeline against the device.
type PipelineFactory func(p pipeline.Pipeline) error

// VariantCache is an LRU-bounded map from VariantKey to a built
// pipeline.Pipeline. Get either returns an already-built variant (and
// promotes it to most-recently-used) or builds one via factory, evicting the
// least-recently-used variant first if the cache is at MaxVariants.
type VariantCache struct {
	capacity int
	entries  map[VariantKey]*list.Element
	order    *list.List // front = most recently used
}

type variantEntry struct {
	key VariantKey
	p   pipeline.Pipeline
}

// NewVariantCache creates an empty cache bounded at MaxVariants.
func NewVariantCache() *VariantCache {
	return &VariantCache{
		capacity: MaxVariants,
		entries:  make(map[VariantKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached pipeline for key, building and inserting it via
// factory if absent. factory receives a freshly constructed pipeline.Pipeline
// (vertex/fragment shaders and state already applied from key); if it
// returns an error, Get returns that error and caches nothing.
func (c *VariantCache) Get(key VariantKey, vs, fs shader.Shader, factory PipelineFactory) (pipeline.Pipeline, error) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*variantEntry).p, nil
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithDepthTestEnabled(key.Flags.DepthTestEnabled),
		pipeline.WithDepthWriteEnabled(key.Flags.DepthWriteEnabled),
		pipeline.WithBlendEnabled(key.Flags.BlendEnabled),
		pipeline.WithCullMode(key.Flags.CullMode),
		pipeline.WithTopology(key.Flags.Topology),
		pipeline.WithFrontFace(key.Flags.FrontFace),
	}
	pipelineType := pipeline.PipelineTypeCompute
	if vs != nil && fs != nil {
		pipelineType = pipeline.PipelineTypeRender
		opts = append(opts, pipeline.WithVertexShader(vs), pipeline.WithFragmentShader(fs))
	} else if vs != nil {
		opts = append(opts, pipeline.WithComputeShader(vs))
	}

	p := pipeline.NewPipeline(key.ShaderKey, pipelineType, opts...)
	if err := factory(p); err != nil {
		return nil, fmt.Errorf("shader: build variant %+v: %w", key, err)
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushFront(&variantEntry{key: key, p: p})
	c.entries[key] = el
	return p, nil
}

// Release evicts every cached variant, releasing each one's GPU pipeline.
// Call at teardown.
func (c *VariantCache) Release() {
	for c.order.Len() > 0 {
		c.evictOldest()
	}
}

// Len returns the number of live variants currently cached.
func (c *VariantCache) Len() int {
	return c.order.Len()
}

// evictOldest removes the least-recently-used variant and releases its GPU
// pipeline object.
func (c *VariantCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*variantEntry)
	c.order.Remove(oldest)
	delete(c.entries, entry.key)
	switch p := entry.p.Pipeline().(type) {
	case *wgpu.RenderPipeline:
		if p != nil {
			p.Release()
		}
	case *wgpu.ComputePipeline:
		if p != nil {
			p.Release()
		}
	}
}
