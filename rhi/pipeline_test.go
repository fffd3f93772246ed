package rhi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/engine/renderer/shader"
)

func TestMergeBindGroupLayoutsUnionsVisibilityForSharedBindings(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex},
		}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
		}},
	}

	merged := MergeBindGroupLayouts(vertex, fragment)
	entries := merged[0].Entries
	if len(entries) != 2 {
		t.Fatalf("merged group 0 has %d entries, want 2", len(entries))
	}
	if entries[0].Binding != 0 || entries[1].Binding != 1 {
		t.Fatalf("merged entries not sorted by binding: %+v", entries)
	}
	want := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if entries[0].Visibility != want {
		t.Fatalf("shared binding visibility = %v, want vertex|fragment", entries[0].Visibility)
	}
	if entries[1].Visibility != wgpu.ShaderStageFragment {
		t.Fatalf("fragment-only binding visibility = %v, want fragment", entries[1].Visibility)
	}
}

func TestApplyProviderDynamicOffsetsMarksAnnotatedUniforms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tinted.frag.wgsl")
	src := `//@oxy:provider 0 0 material
@group(0) @binding(0) var<uniform> tint: vec4<f32>;
@group(0) @binding(1) var<uniform> extra: vec4<f32>;

@fragment
fn fs_main() -> @location(0) vec4f {
	return tint + extra;
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	fs := shader.NewShader("tinted.frag", shader.ShaderTypeFragment, path)

	merged := MergeBindGroupLayouts(nil, fs.BindGroupLayoutDescriptors())
	ApplyProviderDynamicOffsets(merged, nil, fs)

	entries := merged[0].Entries
	if len(entries) != 2 {
		t.Fatalf("group 0 has %d entries, want 2", len(entries))
	}
	if !entries[0].Buffer.HasDynamicOffset {
		t.Fatal("provider-annotated uniform at binding 0 must be dynamic-offset")
	}
	if entries[1].Buffer.HasDynamicOffset {
		t.Fatal("unannotated uniform at binding 1 must not be dynamic-offset")
	}
}

func TestMergeBindGroupLayoutsKeepsSingleStageGroupsAsIs(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageVertex}}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
	}

	merged := MergeBindGroupLayouts(vertex, fragment)
	if len(merged) != 2 {
		t.Fatalf("merged layout count = %d, want 2", len(merged))
	}
	if merged[0].Entries[0].Visibility != wgpu.ShaderStageVertex {
		t.Fatal("vertex-only group lost its visibility")
	}
	if merged[1].Entries[0].Visibility != wgpu.ShaderStageFragment {
		t.Fatal("fragment-only group lost its visibility")
	}
}
