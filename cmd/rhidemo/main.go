// Command rhidemo opens a window and drives the RHI core's frame
// orchestrator against it: a single clear-and-draw pass rendering one
// tinted triangle every frame, with the tint fed through a dynamic-offset
// material resource, reconfiguring the swapchain on resize.
package main

import (
	"encoding/binary"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/bind_group_provider"
	"github.com/kestrel-engine/rhi/engine/renderer/shader"
	"github.com/kestrel-engine/rhi/engine/window"
	"github.com/kestrel-engine/rhi/rhi"
	shadercache "github.com/kestrel-engine/rhi/rhi/shader"
)

const vertexSource = `//@oxy:include vertex

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4f {
	return vec4f(in.position, 1.0);
}
`

const fragmentSource = `//@oxy:provider 0 0 material
@group(0) @binding(0) var<uniform> tint: vec4<f32>;

@fragment
fn fs_main() -> @location(0) vec4f {
	return tint;
}
`

// tintColor packs an RGBA color the way the shader's vec4<f32> uniform
// expects it.
func tintColor(r, g, b, a float32) []byte {
	buf := make([]byte, 0, 16)
	for _, f := range []float32{r, g, b, a} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// triangleVertices packs three vertices in the engine's fixed layout
// (position float3, normal float3, uv float2, tangent float4; 48 bytes each).
func triangleVertices() []byte {
	positions := [][3]float32{
		{0.0, 0.6, 0.0},
		{-0.6, -0.6, 0.0},
		{0.6, -0.6, 0.0},
	}
	buf := make([]byte, 0, 3*48)
	for _, p := range positions {
		vertex := []float32{
			p[0], p[1], p[2], // position
			0, 0, 1, // normal
			0, 0, // uv
			1, 0, 0, 1, // tangent
		}
		for _, f := range vertex {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func writeShaderFile(dir, name, source string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		log.Fatalf("rhidemo: write shader %q: %v", path, err)
	}
	return path
}

func main() {
	win := window.NewWindow(
		window.WithTitle("kestrel rhi demo"),
		window.WithWidth(1280),
		window.WithHeight(720),
	)
	defer win.Close()

	ctx, err := rhi.NewContext(win.SurfaceDescriptor())
	if err != nil {
		log.Fatalf("rhidemo: create context: %v", err)
	}
	defer ctx.Shutdown()

	if err := ctx.Configure(win.Width(), win.Height()); err != nil {
		log.Fatalf("rhidemo: configure surface: %v", err)
	}

	passHandle, err := ctx.PassCreate(rhi.PassDesc{
		Label: "main",
		Colors: []rhi.PassColorAttachment{
			{
				Format:     ctx.SurfaceFormat(),
				ClearColor: wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1.0},
			},
		},
	})
	if err != nil {
		log.Fatalf("rhidemo: create pass: %v", err)
	}

	shaderDir, err := os.MkdirTemp("", "rhidemo-shaders")
	if err != nil {
		log.Fatalf("rhidemo: shader temp dir: %v", err)
	}
	defer os.RemoveAll(shaderDir)
	vs := shader.NewShader("unlit.vert", shader.ShaderTypeVertex, writeShaderFile(shaderDir, "unlit.vert.wgsl", vertexSource))
	fs := shader.NewShader("unlit.frag", shader.ShaderTypeFragment, writeShaderFile(shaderDir, "unlit.frag.wgsl", fragmentSource))
	cache := shadercache.NewVariantCache()
	defer cache.Release()

	layouts := rhi.MergeBindGroupLayouts(vs.BindGroupLayoutDescriptors(), fs.BindGroupLayoutDescriptors())
	rhi.ApplyProviderDynamicOffsets(layouts, vs, fs)
	tintResource, err := ctx.ResourceCreate(rhi.ResourceDesc{
		Label:    "triangle tint",
		Layout:   layouts[0],
		Identity: bind_group_provider.ProviderIdentityMaterial,
	})
	if err != nil {
		log.Fatalf("rhidemo: create tint resource: %v", err)
	}

	vertexBuf, err := ctx.BufferCreate(rhi.BufferTypeVertex, "triangle vertices", 3*48, 1, triangleVertices())
	if err != nil {
		log.Fatalf("rhidemo: create vertex buffer: %v", err)
	}
	indices := make([]byte, 0, 3*4)
	for _, i := range []uint32{0, 1, 2} {
		indices = binary.LittleEndian.AppendUint32(indices, i)
	}
	indexBuf, err := ctx.BufferCreate(rhi.BufferTypeIndex, "triangle indices", 3*4, 1, indices)
	if err != nil {
		log.Fatalf("rhidemo: create index buffer: %v", err)
	}

	variantKey := shadercache.VariantKey{
		ShaderKey: "unlit",
		Flags: shadercache.StateFlags{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
	}

	win.SetResizeCallback(func(width, height int) {
		if err := ctx.OnResize(width, height); err != nil {
			log.Printf("rhidemo: resize to %dx%d: %v", width, height, err)
		}
	})

	win.SetUpdateCallback(func() {
		if err := ctx.BeginFrame(); err != nil {
			log.Printf("rhidemo: begin frame: %v", err)
			return
		}
		if err := ctx.PassBegin(passHandle, ctx.SurfaceView()); err != nil {
			log.Printf("rhidemo: begin pass: %v", err)
			return
		}
		if err := ctx.ShaderBind(cache, variantKey, vs, fs, passHandle); err != nil {
			log.Printf("rhidemo: bind shader: %v", err)
			return
		}
		if err := ctx.WriteResourceSlot(tintResource, 0, 0, tintColor(0.9, 0.5, 0.1, 1.0)); err != nil {
			log.Printf("rhidemo: write tint: %v", err)
			return
		}
		if err := ctx.ResourceBindInstance(0, tintResource, 0); err != nil {
			log.Printf("rhidemo: bind tint resource: %v", err)
			return
		}
		if err := ctx.BufferBindVertex(vertexBuf); err != nil {
			log.Printf("rhidemo: bind vertex buffer: %v", err)
			return
		}
		if err := ctx.BufferBindIndex(indexBuf, 4); err != nil {
			log.Printf("rhidemo: bind index buffer: %v", err)
			return
		}
		if err := ctx.DrawIndexed(3, 1); err != nil {
			log.Printf("rhidemo: draw: %v", err)
			return
		}
		if err := ctx.PassEnd(); err != nil {
			log.Printf("rhidemo: end pass: %v", err)
			return
		}
		if err := ctx.EndFrame(); err != nil {
			log.Printf("rhidemo: end frame: %v", err)
			return
		}
		ctx.Present()
	})

	win.ProcessMessages()
}
