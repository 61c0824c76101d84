// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// State is the logical state a pass needs a resource in.
type State uint8

const (
	StateUndefined State = iota
	// StateGeneral allows any shader access. Use it for resources a pass
	// both reads and writes through several bindings.
	StateGeneral
	StateSampled
	StateStorageRead
	StateStorageWrite
	StateStorageReadWrite
	StateColorAttachment
	StateDepthStencilWrite
	StateDepthStencilRead
	StateCopySrc
	StateCopyDst
	StatePresent
	StateVertexBuffer
	StateIndexBuffer
	StateUniformBuffer
	StateIndirectBuffer
	StateHostRead
	StateHostWrite

	stateCount
)

// Stage is a set of pipeline stages.
type Stage uint32

const (
	StageNone                Stage = 0
	StageDrawIndirect        Stage = 1 << 0
	StageVertexInput         Stage = 1 << 1
	StageVertexShader        Stage = 1 << 2
	StageFragmentShader      Stage = 1 << 3
	StageEarlyFragmentTests  Stage = 1 << 4
	StageLateFragmentTests   Stage = 1 << 5
	StageColorOutput         Stage = 1 << 6
	StageCompute             Stage = 1 << 7
	StageCopy                Stage = 1 << 8
	StageHost                Stage = 1 << 9
	StageFragmentTests             = StageEarlyFragmentTests | StageLateFragmentTests
	StageShaders                   = StageVertexShader | StageFragmentShader | StageCompute
	StageAllGraphics               = StageDrawIndirect | StageVertexInput | StageVertexShader | StageFragmentShader | StageFragmentTests | StageColorOutput
	StageAll                       = StageAllGraphics | StageCompute | StageCopy | StageHost
)

var stageNames = []string{
	"draw-indirect", "vertex-input", "vertex", "fragment", "early-tests",
	"late-tests", "color-output", "compute", "copy", "host",
}

func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	if s == StageAll {
		return "all"
	}
	var parts []string
	for i, name := range stageNames {
		if s&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Access is a set of memory access types.
type Access uint32

const (
	AccessNone                Access = 0
	AccessIndirectRead        Access = 1 << 0
	AccessIndexRead           Access = 1 << 1
	AccessVertexRead          Access = 1 << 2
	AccessUniformRead         Access = 1 << 3
	AccessShaderRead          Access = 1 << 4
	AccessShaderWrite         Access = 1 << 5
	AccessColorRead           Access = 1 << 6
	AccessColorWrite          Access = 1 << 7
	AccessDepthStencilRead    Access = 1 << 8
	AccessDepthStencilWrite   Access = 1 << 9
	AccessCopyRead            Access = 1 << 10
	AccessCopyWrite           Access = 1 << 11
	AccessHostRead            Access = 1 << 12
	AccessHostWrite           Access = 1 << 13
	AccessMemoryRead          Access = 1 << 14
	AccessMemoryWrite         Access = 1 << 15
	accessWriteMask                  = AccessShaderWrite | AccessColorWrite | AccessDepthStencilWrite | AccessCopyWrite | AccessHostWrite | AccessMemoryWrite
)

var accessNames = []string{
	"indirect-read", "index-read", "vertex-read", "uniform-read", "shader-read",
	"shader-write", "color-read", "color-write", "ds-read", "ds-write",
	"copy-read", "copy-write", "host-read", "host-write", "memory-read", "memory-write",
}

func (a Access) String() string {
	if a == AccessNone {
		return "none"
	}
	var parts []string
	for i, name := range accessNames {
		if a&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Writes reports whether a contains a write access.
func (a Access) Writes() bool { return a&accessWriteMask != 0 }

// Layout is the image layout a state requires. Buffers have no layout.
type Layout uint8

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutShaderRead
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilRead
	LayoutCopySrc
	LayoutCopyDst
	LayoutPresent
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutShaderRead:
		return "shader-read"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutDepthStencilAttachment:
		return "depth-stencil-attachment"
	case LayoutDepthStencilRead:
		return "depth-stencil-read"
	case LayoutCopySrc:
		return "copy-src"
	case LayoutCopyDst:
		return "copy-dst"
	case LayoutPresent:
		return "present"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// stateInfo is one row of the state table.
type stateInfo struct {
	name    string
	access  Access
	allowed Stage
	stage   Stage
	layout  Layout
	images  bool
	buffers bool
	texture gputypes.TextureUsage
	buffer  gputypes.BufferUsage
}

var stateTable = [stateCount]stateInfo{
	StateUndefined: {name: "undefined"},
	StateGeneral: {
		name: "general", access: AccessShaderRead | AccessShaderWrite,
		allowed: StageAll, stage: StageCompute, layout: LayoutGeneral,
		images: true, buffers: true,
		texture: gputypes.TextureUsageStorageBinding, buffer: gputypes.BufferUsageStorage,
	},
	StateSampled: {
		name: "sampled", access: AccessShaderRead,
		allowed: StageShaders, stage: StageFragmentShader, layout: LayoutShaderRead,
		images: true, texture: gputypes.TextureUsageTextureBinding,
	},
	StateStorageRead: {
		name: "storage-read", access: AccessShaderRead,
		allowed: StageShaders, stage: StageCompute, layout: LayoutGeneral,
		images: true, buffers: true,
		texture: gputypes.TextureUsageStorageBinding, buffer: gputypes.BufferUsageStorage,
	},
	StateStorageWrite: {
		name: "storage-write", access: AccessShaderWrite,
		allowed: StageShaders, stage: StageCompute, layout: LayoutGeneral,
		images: true, buffers: true,
		texture: gputypes.TextureUsageStorageBinding, buffer: gputypes.BufferUsageStorage,
	},
	StateStorageReadWrite: {
		name: "storage-read-write", access: AccessShaderRead | AccessShaderWrite,
		allowed: StageShaders, stage: StageCompute, layout: LayoutGeneral,
		images: true, buffers: true,
		texture: gputypes.TextureUsageStorageBinding, buffer: gputypes.BufferUsageStorage,
	},
	StateColorAttachment: {
		name: "color-attachment", access: AccessColorRead | AccessColorWrite,
		allowed: StageColorOutput, stage: StageColorOutput, layout: LayoutColorAttachment,
		images: true, texture: gputypes.TextureUsageRenderAttachment,
	},
	StateDepthStencilWrite: {
		name: "depth-stencil-write", access: AccessDepthStencilRead | AccessDepthStencilWrite,
		allowed: StageFragmentTests, stage: StageFragmentTests, layout: LayoutDepthStencilAttachment,
		images: true, texture: gputypes.TextureUsageRenderAttachment,
	},
	StateDepthStencilRead: {
		name: "depth-stencil-read", access: AccessDepthStencilRead | AccessShaderRead,
		allowed: StageFragmentTests | StageShaders, stage: StageFragmentTests, layout: LayoutDepthStencilRead,
		images: true, texture: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	},
	StateCopySrc: {
		name: "copy-src", access: AccessCopyRead,
		allowed: StageCopy, stage: StageCopy, layout: LayoutCopySrc,
		images: true, buffers: true,
		texture: gputypes.TextureUsageCopySrc, buffer: gputypes.BufferUsageCopySrc,
	},
	StateCopyDst: {
		name: "copy-dst", access: AccessCopyWrite,
		allowed: StageCopy, stage: StageCopy, layout: LayoutCopyDst,
		images: true, buffers: true,
		texture: gputypes.TextureUsageCopyDst, buffer: gputypes.BufferUsageCopyDst,
	},
	StatePresent: {
		name: "present", layout: LayoutPresent, images: true,
	},
	StateVertexBuffer: {
		name: "vertex-buffer", access: AccessVertexRead,
		allowed: StageVertexInput, stage: StageVertexInput,
		buffers: true, buffer: gputypes.BufferUsageVertex,
	},
	StateIndexBuffer: {
		name: "index-buffer", access: AccessIndexRead,
		allowed: StageVertexInput, stage: StageVertexInput,
		buffers: true, buffer: gputypes.BufferUsageIndex,
	},
	StateUniformBuffer: {
		name: "uniform-buffer", access: AccessUniformRead,
		allowed: StageShaders, stage: StageShaders,
		buffers: true, buffer: gputypes.BufferUsageUniform,
	},
	StateIndirectBuffer: {
		name: "indirect-buffer", access: AccessIndirectRead,
		allowed: StageDrawIndirect | StageCompute, stage: StageDrawIndirect,
		buffers: true, buffer: gputypes.BufferUsageIndirect,
	},
	StateHostRead: {
		name: "host-read", access: AccessHostRead,
		allowed: StageHost, stage: StageHost,
		buffers: true, buffer: gputypes.BufferUsageMapRead,
	},
	StateHostWrite: {
		name: "host-write", access: AccessHostWrite,
		allowed: StageHost, stage: StageHost,
		buffers: true, buffer: gputypes.BufferUsageMapWrite,
	},
}

func (s State) info() *stateInfo {
	if s >= stateCount {
		return &stateTable[StateUndefined]
	}
	return &stateTable[s]
}

func (s State) String() string {
	if s >= stateCount {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateTable[s].name
}

// Access returns the memory accesses a resource in state s performs.
func (s State) Access() Access { return s.info().access }

// IsWrite reports whether s modifies the resource.
func (s State) IsWrite() bool { return s.info().access.Writes() }

// Layout returns the image layout of s.
func (s State) Layout() Layout { return s.info().layout }

// DefaultStage returns the stages assumed when a usage leaves Stage zero.
func (s State) DefaultStage() Stage { return s.info().stage }

// AllowedStages returns the stages a resource in state s can be used in.
// StatePresent allows none.
func (s State) AllowedStages() Stage { return s.info().allowed }

// TextureUsage returns the texture usage flags an image in state s needs.
func (s State) TextureUsage() gputypes.TextureUsage { return s.info().texture }

// BufferUsage returns the buffer usage flags a buffer in state s needs.
func (s State) BufferUsage() gputypes.BufferUsage { return s.info().buffer }

// check validates s and stage for a resource kind and returns the effective
// stage.
func (s State) check(kind ResourceType, stage Stage) (Stage, error) {
	if s == StateUndefined || s >= stateCount {
		return 0, fmt.Errorf("%w: state %v cannot be requested", ErrInvalidUsage, s)
	}
	info := s.info()
	if kind == ResourceImage && !info.images {
		return 0, fmt.Errorf("%w: state %v does not apply to images", ErrInvalidUsage, s)
	}
	if kind == ResourceBuffer && !info.buffers {
		return 0, fmt.Errorf("%w: state %v does not apply to buffers", ErrInvalidUsage, s)
	}
	if stage == StageNone {
		return info.stage, nil
	}
	if stage&^info.allowed != 0 {
		return 0, fmt.Errorf("%w: state %v cannot be used in stage %v", ErrInvalidUsage, s, stage&^info.allowed)
	}
	return stage, nil
}
