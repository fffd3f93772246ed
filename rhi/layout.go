package rhi

import "log"

// Layout is the tracked logical state of an Image, the Go analogue of a
// VkImageLayout. WebGPU's render/compute pass descriptors make barrier
// insertion implicit (the backend schedules synchronization from attachment
// and binding usage alone), so TransitionAuto never issues a device call —
// it only updates Image.layout and returns the computed StageMask/AccessMask
// pair a caller can log or assert against, preserving the explicit
// transition bookkeeping a Vulkan-style caller expects without a barrier API
// to hang it on.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutPresentSrc
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutDepthStencilAttachment:
		return "depth-stencil-attachment"
	case LayoutDepthStencilReadOnly:
		return "depth-stencil-read-only"
	case LayoutTransferSrc:
		return "transfer-src"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutShaderReadOnly:
		return "shader-read-only"
	case LayoutPresentSrc:
		return "present-src"
	default:
		return "unknown"
	}
}

// StageMask and AccessMask are bitmasks describing which pipeline stages and
// memory access types a layout transition spans, kept for parity with the
// Vulkan barrier fields a transition would otherwise carry.
type StageMask uint32
type AccessMask uint32

const (
	StageTop StageMask = 1 << iota
	StageTransfer
	StageVertexShader
	StageFragmentShader
	StageComputeShader
	StageColorAttachmentOutput
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageBottom
	StageAllCommands
)

const (
	AccessNone AccessMask = 1 << iota
	AccessTransferRead
	AccessTransferWrite
	AccessShaderRead
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessMemoryRead
	AccessMemoryWrite
)

// stageAccess is one half of a barrier: the stage/access pair contributed by
// either the source (old layout) or destination (new layout) side.
type stageAccess struct {
	Stage  StageMask
	Access AccessMask
}

// barrier is the computed stage/access pair for an old->new layout
// transition.
type barrier struct {
	SrcStage  StageMask
	DstStage  StageMask
	SrcAccess AccessMask
	DstAccess AccessMask
}

// The source and destination sides of a transition are independent: the old
// layout alone determines what work must finish before the barrier, and the
// new layout alone determines what work waits on it. transitionFor composes
// one entry from each table rather than enumerating every (old, new) pair.
var (
	anyShaderStage = StageVertexShader | StageFragmentShader | StageComputeShader

	srcTransitions = map[Layout]stageAccess{
		LayoutUndefined:              {StageTop, AccessNone},
		LayoutPresentSrc:             {StageTop, AccessNone},
		LayoutColorAttachment:        {StageColorAttachmentOutput, AccessColorAttachmentRead | AccessColorAttachmentWrite},
		LayoutDepthStencilAttachment: {StageEarlyFragmentTests | StageLateFragmentTests, AccessDepthStencilAttachmentRead | AccessDepthStencilAttachmentWrite},
		LayoutTransferDst:            {StageTransfer, AccessTransferWrite},
		LayoutShaderReadOnly:         {anyShaderStage, AccessShaderRead},
		LayoutDepthStencilReadOnly:   {anyShaderStage, AccessShaderRead},
	}

	dstTransitions = map[Layout]stageAccess{
		LayoutColorAttachment:        {StageColorAttachmentOutput, AccessColorAttachmentRead | AccessColorAttachmentWrite},
		LayoutDepthStencilAttachment: {StageEarlyFragmentTests | StageLateFragmentTests, AccessDepthStencilAttachmentRead | AccessDepthStencilAttachmentWrite},
		LayoutTransferDst:            {StageTransfer, AccessTransferWrite},
		LayoutShaderReadOnly:         {anyShaderStage, AccessShaderRead},
		LayoutDepthStencilReadOnly:   {anyShaderStage, AccessShaderRead},
		LayoutPresentSrc:             {StageBottom, AccessNone},
	}
)

// transitionFor composes the barrier for an old->new pair from the source and
// destination tables. A layout absent from its table degrades that side to a
// full all-commands/memory-read-write barrier (with a warning).
func transitionFor(old, new Layout) barrier {
	src, ok := srcTransitions[old]
	if !ok {
		log.Printf("rhi: unhandled source layout %s in transition to %s, using full barrier", old, new)
		src = stageAccess{StageAllCommands, AccessMemoryRead | AccessMemoryWrite}
	}
	dst, ok := dstTransitions[new]
	if !ok {
		log.Printf("rhi: unhandled destination layout %s in transition from %s, using full barrier", new, old)
		dst = stageAccess{StageAllCommands, AccessMemoryRead | AccessMemoryWrite}
	}
	return barrier{
		SrcStage: src.Stage, DstStage: dst.Stage,
		SrcAccess: src.Access, DstAccess: dst.Access,
	}
}
