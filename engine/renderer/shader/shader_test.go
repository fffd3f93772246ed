package shader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeShaderSource(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wgsl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	return path
}

func TestNewShaderReflectsPushConstantStructSize(t *testing.T) {
	src := `
//@oxy:push_constant DrawConstants

struct DrawConstants {
	model: mat4x4<f32>,
	tint: vec4<f32>,
}

@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0, 1.0, 1.0, 1.0);
}
`
	path := writeShaderSource(t, src)
	s := NewShader("test", ShaderTypeFragment, path)

	// mat4x4<f32> (64 bytes, align 16) + vec4<f32> (16 bytes, align 16) = 80 bytes.
	if got, want := s.PushConstantSize(), uint64(80); got != want {
		t.Fatalf("PushConstantSize() = %d, want %d", got, want)
	}
}

func TestNewShaderWithoutPushConstantAnnotationReflectsZero(t *testing.T) {
	src := `
@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0, 1.0, 1.0, 1.0);
}
`
	path := writeShaderSource(t, src)
	s := NewShader("test", ShaderTypeFragment, path)

	if got := s.PushConstantSize(); got != 0 {
		t.Fatalf("PushConstantSize() = %d, want 0 for a shader declaring no @oxy:push_constant", got)
	}
}

func TestNewShaderPanicsOnUnknownPushConstantStruct(t *testing.T) {
	src := `
//@oxy:push_constant NotDeclared

@fragment
fn fs_main() -> @location(0) vec4f {
	return vec4f(1.0, 1.0, 1.0, 1.0);
}
`
	path := writeShaderSource(t, src)

	defer func() {
		if recover() == nil {
			t.Fatal("expected NewShader to panic on an @oxy:push_constant struct that doesn't exist in source")
		}
	}()
	NewShader("test", ShaderTypeFragment, path)
}

func TestParseAnnotationAcceptsPushConstant(t *testing.T) {
	a, err := parseAnnotation("//@oxy:push_constant DrawConstants", 1)
	if err != nil {
		t.Fatalf("parseAnnotation: %v", err)
	}
	if a == nil {
		t.Fatal("parseAnnotation returned nil for a valid @oxy:push_constant line")
	}
	if a.Type != AnnotationTypePushConstant {
		t.Fatalf("Type = %v, want %v", a.Type, AnnotationTypePushConstant)
	}
	if len(a.Args) != 1 || a.Args[0] != "DrawConstants" {
		t.Fatalf("Args = %v, want [DrawConstants]", a.Args)
	}
}

func TestParseAnnotationRejectsPushConstantWithWrongArgCount(t *testing.T) {
	if _, err := parseAnnotation("//@oxy:push_constant", 1); err == nil {
		t.Fatal("expected error for @oxy:push_constant with no arguments")
	}
	if _, err := parseAnnotation("//@oxy:push_constant A B", 1); err == nil {
		t.Fatal("expected error for @oxy:push_constant with too many arguments")
	}
}
