// Package assets is the RHI's asset library: it tracks directories of
// source files on disk, classifies them by extension, and serves
// cached-or-load requests for images, shader sources, and raw model bytes,
// keyed by a radix-4 hash trie the way the rest of this RHI's resource
// caches are keyed. Concurrent directory tracking is farmed out to a
// bounded worker pool so large asset trees classify in parallel.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/kestrel-engine/rhi/common"
	"github.com/kestrel-engine/rhi/internal/hashtrie"
)

// Type classifies a tracked file by the extension-based rules request_image/
// request_shader/request_model route on.
type Type int

const (
	TypeUnknown Type = iota
	TypeImage
	TypeShader
	TypeModel
)

var extensionTypes = map[string]Type{
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".wgsl": TypeShader,
	".gltf": TypeModel,
	".glb":  TypeModel,
}

// classify returns the Type a path's extension maps to, or TypeUnknown for
// anything the library doesn't track.
func classify(path string) Type {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return TypeUnknown
}

// fallbackColor is the sentinel 1x1 RGBA pixel substituted when an image
// asset fails to load or decode — an unmistakable magenta rather than a
// silent black/white default.
var fallbackColor = [4]byte{255, 0, 255, 255}

// entry is the cached payload for one tracked path. Exactly one of the
// type-specific fields is populated, matching the path's classify() result.
type entry struct {
	path string
	typ  Type

	image       *common.ImportedTexture
	imagePixels []byte
	imageW      uint32
	imageH      uint32

	shader *ShaderSource

	modelBytes []byte
	model      *Model
}

// ImageSource is a resolved image binding inside a Model's Images array —
// the RGBA8 pixel data request_model ends up writing back once an image
// reference has been tracked and requested/loaded by its resolved path.
type ImageSource struct {
	Path   string
	Pixels []byte
	Width  uint32
	Height uint32
}

// ShaderSource is RequestShader's result: the paired vertex and fragment
// stage sources a logical shader key resolves to, stamped with the UUID both
// sibling entries share in the cache.
type ShaderSource struct {
	UUID            uint64
	VertexContent   string
	FragmentContent string
}

// Model is RequestModel's result: the raw geometry bytes (meshes,
// materials, skins, animations, parsed by an external decoder) plus the
// Images array the asset library itself resolves, in the same order as
// the document's "images" array.
type Model struct {
	Bytes  []byte
	Images []*ImageSource
}

// Library is the asset library's concurrent-safe cache and directory
// tracker. Zero value is not usable; construct with New.
type Library struct {
	mu    sync.RWMutex
	cache *hashtrie.Trie[*entry]
	pool  worker.DynamicWorkerPool

	// contentHashes dedups embedded-texture sibling extraction: the same
	// embedded PNG/JPEG bytes appearing in two GLTF materials only get
	// written to disk and cached once.
	contentHashes map[uint64]string
}

// New creates an empty Library backed by a worker pool of workers goroutines
// with the given task queue depth.
func New(workers, queueSize int) *Library {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Library{
		cache:         hashtrie.New[*entry](),
		pool:          worker.NewDynamicWorkerPool(workers, queueSize, 5*time.Second),
		contentHashes: make(map[uint64]string),
	}
}

// key hashes a normalized, cleaned absolute-or-relative path. Joined paths —
// not bare basenames — are hashed, since two assets sharing a basename in
// different subdirectories (e.g. two materials each with their own
// "albedo.png") are common enough in a multi-scene engine that colliding
// them in the cache would silently serve the wrong texture.
func key(path string) uint64 {
	return hashtrie.Hash64(filepath.ToSlash(filepath.Clean(path)))
}

// TrackFile registers a single file with the library without loading it —
// classify() determines its Type so later RequestImage/RequestShader/
// RequestModel calls against the same path know which decode path to use.
func (l *Library) TrackFile(path string) error {
	typ := classify(path)
	if typ == TypeUnknown {
		return fmt.Errorf("assets: %q has no recognized asset extension", path)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v, existed := l.cache.GetOrInsert(key(path))
	if !existed {
		*v = &entry{path: path, typ: typ}
	}
	return nil
}

// TrackDirectory walks root recursively and submits one worker task per
// recognized file to register it concurrently, returning once every file
// under root has been classified and tracked. Unrecognized files (anything
// classify doesn't map) are silently skipped, not an error — a model
// directory mixing in a README or a .gitignore is normal.
func (l *Library) TrackDirectory(root string) error {
	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if classify(path) == TypeUnknown {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("assets: walk %q: %w", root, walkErr)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		idx, path := i, p
		l.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				errs[idx] = l.TrackFile(path)
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// RequestImage returns the decoded RGBA pixels, width and height for path,
// decoding and caching them on first request. Subsequent calls for the same
// path return the cached decode without touching disk again.
func (l *Library) RequestImage(path string) ([]byte, uint32, uint32, error) {
	l.mu.Lock()
	v, existed := l.cache.GetOrInsert(key(path))
	if !existed {
		*v = &entry{path: path, typ: TypeImage}
	}
	e := *v
	l.mu.Unlock()

	if e.typ != TypeImage {
		return nil, 0, 0, fmt.Errorf("assets: %q is not an image asset", path)
	}

	l.mu.RLock()
	cached := e.imagePixels != nil
	l.mu.RUnlock()
	if cached {
		return e.imagePixels, e.imageW, e.imageH, nil
	}

	tex := &common.ImportedTexture{Name: filepath.Base(path), Path: path}
	pixels, w, h, err := tex.Decode()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("assets: decode %q: %w", path, err)
	}

	l.mu.Lock()
	e.image = tex
	e.imagePixels = pixels
	e.imageW = w
	e.imageH = h
	l.mu.Unlock()

	return pixels, w, h, nil
}

// FallbackImage returns the sentinel 1x1 magenta RGBA pixel substituted for
// a shader-declared material binding no imported asset populates.
func FallbackImage() ([]byte, uint32, uint32) {
	return fallbackColor[:], 1, 1
}

// RequestShader resolves a logical shader key (a ".wgsl" path such as
// "shaders/light.wgsl") to its sibling stage files "<stem>.vert.wgsl" and
// "<stem>.frag.wgsl", reads both, and caches the combined ShaderSource under
// both sibling entries with the same UUID (the hash of the logical key's
// normalized path). Both files must exist; a later request for the same key
// returns the cached pair without touching disk, until ClearCache.
func (l *Library) RequestShader(keyPath string) (*ShaderSource, error) {
	if !strings.EqualFold(filepath.Ext(keyPath), ".wgsl") {
		return nil, fmt.Errorf("assets: shader key %q must be a .wgsl path", keyPath)
	}
	stem := strings.TrimSuffix(keyPath, filepath.Ext(keyPath))
	vertPath := stem + ".vert.wgsl"
	fragPath := stem + ".frag.wgsl"

	l.mu.Lock()
	vertEntry := l.shaderEntry(vertPath)
	fragEntry := l.shaderEntry(fragPath)
	l.mu.Unlock()

	if vertEntry.typ != TypeShader {
		return nil, fmt.Errorf("assets: %q is not a shader asset", vertPath)
	}
	if fragEntry.typ != TypeShader {
		return nil, fmt.Errorf("assets: %q is not a shader asset", fragPath)
	}

	l.mu.RLock()
	cached := vertEntry.shader
	l.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	vertData, err := os.ReadFile(vertPath)
	if err != nil {
		return nil, fmt.Errorf("assets: read vertex shader %q: %w", vertPath, err)
	}
	fragData, err := os.ReadFile(fragPath)
	if err != nil {
		return nil, fmt.Errorf("assets: read fragment shader %q: %w", fragPath, err)
	}

	src := &ShaderSource{
		UUID:            key(keyPath),
		VertexContent:   string(vertData),
		FragmentContent: string(fragData),
	}

	l.mu.Lock()
	vertEntry.shader = src
	fragEntry.shader = src
	l.mu.Unlock()

	return src, nil
}

// shaderEntry returns the tracked entry for path, inserting a fresh
// TypeShader entry if the path was never tracked. Callers must hold l.mu.
func (l *Library) shaderEntry(path string) *entry {
	v, existed := l.cache.GetOrInsert(key(path))
	if !existed {
		*v = &entry{path: path, typ: TypeShader}
	}
	return *v
}

// RequestModel reads, caches, and returns path's raw .gltf/.glb bytes along
// with its resolved Images array. Parsing the bytes into mesh/material
// geometry is external to this package, but for every image the document
// references, RequestModel ensures it is tracked, requests it (cached) or
// loads it (fresh) by its resolved path, and writes the resolved pixels back into
// Model.Images. Embedded images (a bufferView + mimeType, or a base64 data
// URI) are extracted to a sibling file via ExtractEmbeddedTexture before
// being requested the same way an external URI image would be.
func (l *Library) RequestModel(path string) (*Model, error) {
	l.mu.Lock()
	v, existed := l.cache.GetOrInsert(key(path))
	if !existed {
		*v = &entry{path: path, typ: TypeModel}
	}
	e := *v
	l.mu.Unlock()

	if e.typ != TypeModel {
		return nil, fmt.Errorf("assets: %q is not a model asset", path)
	}

	l.mu.RLock()
	cachedModel := e.model
	l.mu.RUnlock()
	if cachedModel != nil {
		return cachedModel, nil
	}

	l.mu.RLock()
	data := e.modelBytes
	l.mu.RUnlock()
	if data == nil {
		read, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("assets: read model %q: %w", path, err)
		}
		data = read
		l.mu.Lock()
		e.modelBytes = data
		l.mu.Unlock()
	}

	doc, bufferData, err := parseGLTFImageRefs(path, data)
	if err != nil {
		return nil, err
	}

	images := make([]*ImageSource, len(doc.Images))
	for i, ref := range doc.Images {
		imgPath, err := l.resolveModelImage(path, ref, doc, bufferData)
		if err != nil {
			return nil, fmt.Errorf("assets: %q: resolve image %d: %w", path, i, err)
		}
		pixels, w, h, err := l.RequestImage(imgPath)
		if err != nil {
			return nil, fmt.Errorf("assets: %q: request image %d: %w", path, i, err)
		}
		images[i] = &ImageSource{Path: imgPath, Pixels: pixels, Width: w, Height: h}
	}

	model := &Model{Bytes: data, Images: images}
	l.mu.Lock()
	e.model = model
	l.mu.Unlock()

	return model, nil
}

// resolveModelImage turns one glTF "images" array entry into a tracked,
// on-disk path RequestImage loads and caches by path: an external/data URI
// resolves (and is tracked) directly, while an embedded bufferView image is
// extracted to a content-hashed sibling file first.
func (l *Library) resolveModelImage(modelPath string, ref gltfImageRef, doc *gltfImageDocument, bufferData [][]byte) (string, error) {
	if ref.URI != "" && !strings.HasPrefix(ref.URI, "data:") {
		resolved := filepath.Join(filepath.Dir(modelPath), ref.URI)
		if err := l.TrackFile(resolved); err != nil {
			return "", err
		}
		return resolved, nil
	}

	var raw []byte
	mime := ref.MimeType
	switch {
	case ref.URI != "":
		decoded, err := loadBufferURI("", ref.URI)
		if err != nil {
			return "", err
		}
		raw = decoded
		if mime == "" {
			if header, _, ok := strings.Cut(strings.TrimPrefix(ref.URI, "data:"), ";"); ok {
				mime = header
			}
		}
	case ref.BufferView != nil:
		bv := doc.BufferViews[*ref.BufferView]
		buf := bufferData[bv.Buffer]
		raw = buf[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	default:
		return "", fmt.Errorf("image has neither uri nor bufferView")
	}

	return l.ExtractEmbeddedTexture(modelPath, raw, imageExt(mime))
}

// ExtractEmbeddedTexture writes data (an embedded GLTF/GLB texture's raw
// bytes) to a sibling file next to modelPath named by a content hash plus
// ext, deduplicating repeated embedded textures — the same bytes appearing
// in two materials are written and tracked only once — and returns the
// written path.
func (l *Library) ExtractEmbeddedTexture(modelPath string, data []byte, ext string) (string, error) {
	h := hashtrie.Hash64(string(data))

	l.mu.Lock()
	if existing, ok := l.contentHashes[h]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.mu.Unlock()

	dir := filepath.Dir(modelPath)
	name := fmt.Sprintf("%s_%016x%s", strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)), h, ext)
	out := filepath.Join(dir, name)

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("assets: write embedded texture %q: %w", out, err)
	}

	l.mu.Lock()
	l.contentHashes[h] = out
	l.mu.Unlock()

	if err := l.TrackFile(out); err != nil {
		return "", err
	}

	return out, nil
}

// ClearCache drops every tracked entry and content-hash record, forcing the
// next request for any previously-cached path to re-read and re-decode from
// disk.
func (l *Library) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = hashtrie.New[*entry]()
	l.contentHashes = make(map[uint64]string)
}

// Len returns the number of distinct paths currently tracked.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.Len()
}
