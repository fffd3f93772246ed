package assets

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// tinyPNG is the smallest possible valid 1x1 grayscale PNG (67 bytes): an
// 8-byte signature, an IHDR chunk describing a single pixel, a 10-byte
// zlib-compressed IDAT scanline, and an IEND chunk.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x00, 0x00, 0x00, 0x00, 0x3a, 0x7e, 0x9b,
	0x55, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x60, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x48, 0xaf, 0xa4, 0x71, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func TestClassifyByExtension(t *testing.T) {
	cases := map[string]Type{
		"albedo.png":  TypeImage,
		"albedo.JPG":  TypeImage,
		"photo.jpeg":  TypeImage,
		"unlit.wgsl":  TypeShader,
		"scene.gltf":  TypeModel,
		"scene.glb":   TypeModel,
		"readme.txt":  TypeUnknown,
		"noextension": TypeUnknown,
	}
	for path, want := range cases {
		if got := classify(path); got != want {
			t.Errorf("classify(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestKeyIgnoresPathSeparatorStyleButNotSubdirectory(t *testing.T) {
	a := key(filepath.FromSlash("models/hero/albedo.png"))
	b := key("models/hero/albedo.png")
	if a != b {
		t.Fatal("key() should be stable across path separator styles for the same logical path")
	}

	c := key("models/villain/albedo.png")
	if a == c {
		t.Fatal("key() collided two distinct subdirectories sharing a basename")
	}
}

func TestFallbackImageIsSentinelMagentaPixel(t *testing.T) {
	pixels, w, h := FallbackImage()
	if w != 1 || h != 1 {
		t.Fatalf("FallbackImage dims = %dx%d, want 1x1", w, h)
	}
	want := [4]byte{255, 0, 255, 255}
	if len(pixels) != 4 || [4]byte{pixels[0], pixels[1], pixels[2], pixels[3]} != want {
		t.Fatalf("FallbackImage pixel = %v, want %v", pixels, want)
	}
}

func TestTrackFileRejectsUnknownExtension(t *testing.T) {
	l := New(1, 8)
	if err := l.TrackFile("notes.txt"); err == nil {
		t.Fatal("expected error tracking an unrecognized extension")
	}
}

func TestTrackDirectorySkipsUnrecognizedFilesAndTracksRest(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "shader.wgsl"), "fn main() {}")
	mustWrite(t, filepath.Join(dir, "README.md"), "not an asset")
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(sub, "model.gltf"), "{}")

	l := New(2, 16)
	if err := l.TrackDirectory(dir); err != nil {
		t.Fatalf("TrackDirectory: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (shader + model, README skipped)", l.Len())
	}
}

func TestRequestShaderResolvesSiblingStagePair(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "unlit.vert.wgsl"), "fn vs_main() {}")
	mustWrite(t, filepath.Join(dir, "unlit.frag.wgsl"), "fn fs_main() {}")

	l := New(1, 8)
	src, err := l.RequestShader(filepath.Join(dir, "unlit.wgsl"))
	if err != nil {
		t.Fatalf("RequestShader: %v", err)
	}
	if src.VertexContent != "fn vs_main() {}" {
		t.Fatalf("VertexContent = %q, want the .vert.wgsl sibling's text", src.VertexContent)
	}
	if src.FragmentContent != "fn fs_main() {}" {
		t.Fatalf("FragmentContent = %q, want the .frag.wgsl sibling's text", src.FragmentContent)
	}
	if src.UUID == 0 {
		t.Fatal("UUID must be stamped from the logical key's hash")
	}

	again, err := l.RequestShader(filepath.Join(dir, "unlit.wgsl"))
	if err != nil {
		t.Fatalf("RequestShader (cached): %v", err)
	}
	if again != src {
		t.Fatal("second request returned a different ShaderSource than the cached one")
	}
}

func TestRequestShaderCachesUnderBothSiblingEntries(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "unlit.vert.wgsl"), "fn vs_main() {}")
	mustWrite(t, filepath.Join(dir, "unlit.frag.wgsl"), "fn fs_main() {}")

	l := New(1, 8)
	if _, err := l.RequestShader(filepath.Join(dir, "unlit.wgsl")); err != nil {
		t.Fatalf("RequestShader: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (one entry per sibling stage file)", l.Len())
	}
}

func TestRequestShaderFailsWhenSiblingMissing(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "unlit.vert.wgsl"), "fn vs_main() {}")

	l := New(1, 8)
	if _, err := l.RequestShader(filepath.Join(dir, "unlit.wgsl")); err == nil {
		t.Fatal("expected error when the .frag.wgsl sibling does not exist")
	}
}

func TestRequestShaderHotSwapAfterClearCache(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "light.wgsl")
	vertPath := filepath.Join(dir, "light.vert.wgsl")
	mustWrite(t, vertPath, "fn vs_main() { /* v1 */ }")
	mustWrite(t, filepath.Join(dir, "light.frag.wgsl"), "fn fs_main() {}")

	l := New(1, 8)
	first, err := l.RequestShader(keyPath)
	if err != nil {
		t.Fatalf("RequestShader: %v", err)
	}

	mustWrite(t, vertPath, "fn vs_main() { /* v2 */ }")
	cached, err := l.RequestShader(keyPath)
	if err != nil {
		t.Fatalf("RequestShader (cached): %v", err)
	}
	if cached.VertexContent != first.VertexContent {
		t.Fatal("mutating the sibling on disk must not change the cached pair before ClearCache")
	}

	l.ClearCache()
	swapped, err := l.RequestShader(keyPath)
	if err != nil {
		t.Fatalf("RequestShader (after ClearCache): %v", err)
	}
	if swapped.VertexContent == first.VertexContent {
		t.Fatal("vertex bytecode must differ after mutating the sibling and clearing the cache")
	}
	if swapped.UUID != first.UUID {
		t.Fatal("the logical key's UUID must be stable across a hot swap")
	}
}

func TestExtractEmbeddedTextureDedupsIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "scene.gltf")
	mustWrite(t, modelPath, "{}")

	l := New(1, 8)
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	p1, err := l.ExtractEmbeddedTexture(modelPath, data, ".png")
	if err != nil {
		t.Fatalf("ExtractEmbeddedTexture: %v", err)
	}
	p2, err := l.ExtractEmbeddedTexture(modelPath, data, ".png")
	if err != nil {
		t.Fatalf("ExtractEmbeddedTexture (second call): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("identical embedded texture bytes produced two different paths: %q vs %q", p1, p2)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	pngCount := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			pngCount++
		}
	}
	if pngCount != 1 {
		t.Fatalf("expected exactly one extracted texture file on disk, found %d", pngCount)
	}
}

func TestClearCacheResetsLen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.wgsl")
	mustWrite(t, path, "fn main() {}")

	l := New(1, 8)
	if err := l.TrackFile(path); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	l.ClearCache()
	if l.Len() != 0 {
		t.Fatalf("Len() after ClearCache = %d, want 0", l.Len())
	}
}

func TestRequestModelResolvesExternalImageReference(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "albedo.png"), tinyPNG, 0o644); err != nil {
		t.Fatal(err)
	}
	modelPath := filepath.Join(dir, "scene.gltf")
	mustWrite(t, modelPath, `{"images":[{"uri":"albedo.png"}]}`)

	l := New(1, 8)
	model, err := l.RequestModel(modelPath)
	if err != nil {
		t.Fatalf("RequestModel: %v", err)
	}
	if len(model.Images) != 1 {
		t.Fatalf("len(model.Images) = %d, want 1", len(model.Images))
	}
	img := model.Images[0]
	if img.Width != 1 || img.Height != 1 {
		t.Fatalf("resolved image dims = %dx%d, want 1x1", img.Width, img.Height)
	}
	if len(img.Pixels) != 4 {
		t.Fatalf("resolved image pixels len = %d, want 4 (RGBA8)", len(img.Pixels))
	}
	if img.Path != filepath.Join(dir, "albedo.png") {
		t.Fatalf("resolved image path = %q, want the sibling albedo.png", img.Path)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (model + image tracked)", l.Len())
	}
}

func TestRequestModelExtractsEmbeddedImageExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	b64 := base64.StdEncoding.EncodeToString(tinyPNG)
	doc := fmt.Sprintf(`{
		"buffers":[{"uri":"data:application/octet-stream;base64,%s","byteLength":%d}],
		"bufferViews":[{"buffer":0,"byteOffset":0,"byteLength":%d}],
		"images":[{"mimeType":"image/png","bufferView":0}]
	}`, b64, len(tinyPNG), len(tinyPNG))
	modelPath := filepath.Join(dir, "scene.gltf")
	mustWrite(t, modelPath, doc)

	l := New(1, 8)
	model, err := l.RequestModel(modelPath)
	if err != nil {
		t.Fatalf("RequestModel: %v", err)
	}
	if len(model.Images) != 1 || model.Images[0].Width != 1 || model.Images[0].Height != 1 {
		t.Fatalf("resolved embedded image = %+v, want 1x1", model.Images)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	pngCount := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			pngCount++
		}
	}
	if pngCount != 1 {
		t.Fatalf("expected exactly one extracted sibling .png, found %d", pngCount)
	}

	l.ClearCache()
	again, err := l.RequestModel(modelPath)
	if err != nil {
		t.Fatalf("RequestModel (second call): %v", err)
	}
	entries, err = os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	pngCount = 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			pngCount++
		}
	}
	if pngCount != 1 {
		t.Fatalf("re-extracting identical embedded bytes after ClearCache wrote a second file, found %d .png files", pngCount)
	}
	if again.Images[0].Path != model.Images[0].Path {
		t.Fatalf("content-hash dedup produced a different sibling path on re-extraction: %q vs %q", again.Images[0].Path, model.Images[0].Path)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}
