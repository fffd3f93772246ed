// Package rhi is the resource-pooled rendering hardware interface built over
// WebGPU (wgpu-native, via cogentcore/webgpu). It owns every GPU resource the
// engine creates — images, buffers, descriptor resources, render passes —
// behind generation-checked handles from internal/arena, and drives
// the per-frame submit/present lifecycle through pooled, destroy-checked
// slots.
package rhi

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel-engine/rhi/internal/arena"
)

// ErrInvalidHandle is returned whenever a caller passes a handle that does not
// resolve to a live, Initialized pool slot.
var ErrInvalidHandle = errors.New("rhi: invalid or stale handle")

// ImageHandle, BufferHandle, PassHandle and ResourceHandle are the opaque
// pooled-resource handles callers hold. They wrap arena.Handle directly —
// a thin distinct type per pool so a BufferHandle can never be passed where
// an ImageHandle is expected.
type (
	ImageHandle    arena.Handle
	BufferHandle   arena.Handle
	PassHandle     arena.Handle
	ResourceHandle arena.Handle
)

// lifecycleState tracks whether a pooled slot has been fully constructed.
// Every pooled resource type in this package embeds one; Context.Shutdown
// scans pools for Initialized slots at teardown, so a half-built slot (an
// Alloc that panicked partway through GPU object creation) is never
// double-destroyed.
type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
)

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("rhi: %s: %w", op, err)
}

// BufferType identifies the GPU-side role of a Buffer: vertex, index or
// uniform. Uniform buffers get one slot per frame-in-flight; vertex/index
// buffers are uploaded once through the staging ring.
type BufferType int

const (
	BufferTypeVertex BufferType = iota
	BufferTypeIndex
	BufferTypeUniform
)

func (t BufferType) String() string {
	switch t {
	case BufferTypeVertex:
		return "vertex"
	case BufferTypeIndex:
		return "index"
	case BufferTypeUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

func bufferUsage(t BufferType) wgpu.BufferUsage {
	switch t {
	case BufferTypeVertex:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case BufferTypeIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	case BufferTypeUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageCopyDst
	}
}
