package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrel-engine/rhi/engine/renderer/shader"
)

func writeShaderSource(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	return path
}

const vertexSrc = `
//@oxy:push_constant VertexConstants

struct VertexConstants {
	model: mat4x4<f32>,
}

@vertex
fn vs_main() -> @builtin(position) vec4f {
	return vec4f(0.0, 0.0, 0.0, 1.0);
}
`

const fragmentSrcWiderPushConstant = `
//@oxy:push_constant FragmentConstants

struct FragmentConstants {
	model: mat4x4<f32>,
	tint: vec4<f32>,
}

@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0, 1.0, 1.0, 1.0);
}
`

const fragmentSrcNoPushConstant = `
@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0, 1.0, 1.0, 1.0);
}
`

func TestPipelinePushConstantSizeMergesWiderStage(t *testing.T) {
	vs := shader.NewShader("vs", shader.ShaderTypeVertex, writeShaderSource(t, "vs.wgsl", vertexSrc))
	fs := shader.NewShader("fs", shader.ShaderTypeFragment, writeShaderSource(t, "fs.wgsl", fragmentSrcWiderPushConstant))

	p := NewPipeline("test-pipeline", PipelineTypeRender, WithVertexShader(vs), WithFragmentShader(fs))

	// vertex: mat4x4<f32> = 64 bytes. fragment: mat4x4<f32> + vec4<f32> = 80 bytes.
	if got, want := p.PushConstantSize(), uint64(80); got != want {
		t.Fatalf("PushConstantSize() = %d, want %d (the wider of the two stages)", got, want)
	}
}

func TestPipelinePushConstantSizeZeroWhenNoStageDeclaresOne(t *testing.T) {
	vs := shader.NewShader("vs", shader.ShaderTypeVertex, writeShaderSource(t, "vs.wgsl", vertexSrc))
	fs := shader.NewShader("fs", shader.ShaderTypeFragment, writeShaderSource(t, "fs.wgsl", fragmentSrcNoPushConstant))

	p := NewPipeline("test-pipeline", PipelineTypeRender, WithVertexShader(vs))
	if got := p.PushConstantSize(); got != 64 {
		t.Fatalf("PushConstantSize() = %d, want 64 for the vertex-only pipeline", got)
	}

	p2 := NewPipeline("no-push-constant", PipelineTypeRender, WithFragmentShader(fs))
	if got := p2.PushConstantSize(); got != 0 {
		t.Fatalf("PushConstantSize() = %d, want 0 when no bound shader declares @oxy:push_constant", got)
	}
}
