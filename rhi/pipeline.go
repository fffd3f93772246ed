package rhi

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/pipeline"
	"github.com/kestrel-engine/rhi/engine/renderer/shader"
	"github.com/kestrel-engine/rhi/internal/arena"
	shadercache "github.com/kestrel-engine/rhi/rhi/shader"
)

// MergeBindGroupLayouts merges the reflected bind group layout descriptors of
// a vertex and fragment shader by group index. A group present in only one
// stage is used as-is; a group present in both has its entries merged by
// binding number, ORing the stage visibility when the same binding appears in
// both stages.
func MergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			// sort by binding for deterministic layout
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}

// ApplyProviderDynamicOffsets marks every uniform-buffer entry named by an
// @oxy:provider declaration in any of shaders as a dynamic-offset binding in
// merged. A provider declaration assigns the binding a global (per-frame) or
// material (per-instance) frequency, and those frequencies select their slot
// with a dynamic offset at bind time, so the layout entry must carry the
// flag both in the pipeline layout and in the ResourceCreate layout for the
// two to stay compatible.
func ApplyProviderDynamicOffsets(merged map[int]wgpu.BindGroupLayoutDescriptor, shaders ...shader.Shader) {
	for _, s := range shaders {
		if s == nil {
			continue
		}
		for _, decl := range s.Declarations() {
			if decl.Type != shader.AnnotationTypeProvider || decl.Group == nil || decl.Binding == nil {
				continue
			}
			desc, ok := merged[*decl.Group]
			if !ok {
				continue
			}
			for i := range desc.Entries {
				entry := &desc.Entries[i]
				if entry.Binding == uint32(*decl.Binding) && entry.Buffer.Type == wgpu.BufferBindingTypeUniform {
					entry.Buffer.HasDynamicOffset = true
				}
			}
		}
	}
}

// RegisterRenderPipeline creates the wgpu.RenderPipeline for p against the
// attachments of the pass it will draw inside: color target format, sample
// count, and depth state are all seeded from the pass rather than from
// context-wide state, so a shadow pass and the main pass can register
// otherwise-identical pipelines that differ only in what they render into.
// When p's shaders declare a push-constant struct, the context's emulated
// push-constant bind group layout is appended after the last reflected group.
func (c *Context) RegisterRenderPipeline(p pipeline.Pipeline, h PassHandle) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("rhi: both vertex and fragment shaders must be set to create a render pipeline")
	}

	pass := c.passes.Get(arena.Handle(h))
	if pass == nil {
		return ErrInvalidHandle
	}

	vs, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexShader.Source(),
		},
	})
	if err != nil {
		return wrapErr("create vertex shader module", err)
	}
	fs, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fragmentShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragmentShader.Source(),
		},
	})
	if err != nil {
		return wrapErr("create fragment shader module", err)
	}

	merged := MergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	ApplyProviderDynamicOffsets(merged, vertexShader, fragmentShader)
	maxGroup := -1
	for g := range merged {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range merged {
		layout, layoutErr := c.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return wrapErr(fmt.Sprintf("create bind group layout for group %d", g), layoutErr)
		}
		bindGroupLayouts[g] = layout
	}
	if p.PushConstantSize() > 0 {
		bindGroupLayouts = append(bindGroupLayouts, c.pushConstantLayout)
	}

	pipelineLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return wrapErr("create pipeline layout", err)
	}

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(vertexShader.VertexLayouts()))
	for i := range vertexShader.VertexLayouts() {
		vertexLayouts = append(vertexLayouts, vertexShader.VertexLayout(i)...)
	}

	colorTargets := make([]wgpu.ColorTargetState, len(pass.desc.Colors))
	for i, color := range pass.desc.Colors {
		format := color.Format
		if format == wgpu.TextureFormatUndefined {
			format = c.SurfaceFormat()
		}
		target := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			target.Blend = p.BlendState()
		}
		colorTargets[i] = target
	}

	var depthStencil *wgpu.DepthStencilState
	if arena.Handle(pass.desc.DepthImage).IsValid() {
		depthFormat := wgpu.TextureFormatDepth24Plus
		if depthImg := c.images.Get(arena.Handle(pass.desc.DepthImage)); depthImg != nil {
			depthFormat = depthImg.desc.Format
		}
		depthCompare := wgpu.CompareFunctionLess
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:              depthFormat,
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        depthCompare,
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    colorTargets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: pass.desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return wrapErr("create render pipeline", err)
	}

	p.SetRenderPipeline(created)

	return nil
}

// ShaderBind resolves the pipeline variant for key in cache — building and
// inserting it against h's attachments on a miss, promoting it on a hit — and
// binds it to the current frame pass. Two calls with the same key between
// evictions bind the same pipeline object.
func (c *Context) ShaderBind(cache *shadercache.VariantCache, key shadercache.VariantKey, vs, fs shader.Shader, h PassHandle) error {
	p, err := cache.Get(key, vs, fs, func(p pipeline.Pipeline) error {
		return c.RegisterRenderPipeline(p, h)
	})
	if err != nil {
		return err
	}
	return c.BindPipeline(p)
}
