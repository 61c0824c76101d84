// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMaxMipLevels(t *testing.T) {
	tests := []struct {
		w, h, d uint32
		want    uint32
	}{
		{1, 1, 1, 1},
		{2, 1, 1, 2},
		{64, 64, 1, 7},
		{1920, 1080, 1, 11},
		{4, 4, 32, 6},
		{0, 0, 0, 1},
	}
	for _, tt := range tests {
		if got := MaxMipLevels(tt.w, tt.h, tt.d); got != tt.want {
			t.Errorf("MaxMipLevels(%d, %d, %d) = %d, want %d", tt.w, tt.h, tt.d, got, tt.want)
		}
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		name string
		desc ImageDescription
		want uint64
	}{
		{"rgba8", ImageDescription{Format: gputypes.TextureFormatRGBA8Unorm, Width: 64, Height: 64}, 64 * 64 * 4},
		{"mips", ImageDescription{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4, MipLevels: 3}, (16 + 4 + 1) * 4},
		{"layers", ImageDescription{Format: gputypes.TextureFormatR8Unorm, Width: 8, Height: 8, ArrayLayers: 6}, 64 * 6},
		{"msaa", ImageDescription{Format: gputypes.TextureFormatRGBA16Float, Width: 8, Height: 8, SampleCount: 4}, 64 * 8 * 4},
		{"3d", ImageDescription{Type: Image3D, Format: gputypes.TextureFormatRGBA32Float, Width: 4, Height: 4, Depth: 4, MipLevels: 2}, (64 + 8) * 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageSize(&tt.desc); got != tt.want {
				t.Errorf("ImageSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImageViewResolve(t *testing.T) {
	img := ImageDescription{Format: gputypes.TextureFormatRGBA8Unorm, Width: 16, Height: 16, MipLevels: 4, ArrayLayers: 6}
	if err := img.normalize(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		view    ImageViewDescription
		want    ImageRange
		dim     gputypes.TextureViewDimension
		wantErr bool
	}{
		{"full", ImageViewDescription{}, ImageRange{0, 4, 0, 6}, gputypes.TextureViewDimension2DArray, false},
		{"one layer", ImageViewDescription{BaseArrayLayer: 2, ArrayLayerCount: 1}, ImageRange{0, 4, 2, 1}, gputypes.TextureViewDimension2D, false},
		{"tail mips", ImageViewDescription{BaseMipLevel: 2}, ImageRange{2, 2, 0, 6}, gputypes.TextureViewDimension2DArray, false},
		{"base mip out of range", ImageViewDescription{BaseMipLevel: 4}, ImageRange{}, 0, true},
		{"too many layers", ImageViewDescription{BaseArrayLayer: 5, ArrayLayerCount: 2}, ImageRange{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.view
			got, err := v.resolve(&img)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescription) {
					t.Fatalf("resolve() = %v, want ErrInvalidDescription", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve() = %v", err)
			}
			if got != tt.want {
				t.Errorf("range = %+v, want %+v", got, tt.want)
			}
			if v.Dimension != tt.dim || v.Format != img.Format || v.Aspect != gputypes.TextureAspectAll {
				t.Errorf("defaults = %v %v %v", v.Dimension, v.Format, v.Aspect)
			}
		})
	}
}

func TestBufferViewResolve(t *testing.T) {
	buf := BufferDescription{Size: 1024}
	v := BufferViewDescription{Offset: 256}
	got, err := v.resolve(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != (BufferRange{Offset: 256, Size: 768}) {
		t.Errorf("range = %+v", got)
	}
	for _, bad := range []BufferViewDescription{{Offset: 1024}, {Offset: 512, Size: 600}} {
		if _, err := bad.resolve(&buf); !errors.Is(err, ErrInvalidDescription) {
			t.Errorf("resolve(%+v) = %v, want ErrInvalidDescription", bad, err)
		}
	}
}

func TestImageSpans(t *testing.T) {
	desc := ImageDescription{MipLevels: 3, ArrayLayers: 4}
	tests := []struct {
		name string
		rng  ImageRange
		want []span
	}{
		{"whole chains merge", ImageRange{0, 3, 1, 2}, []span{{3, 9}}},
		{"one mip per layer", ImageRange{1, 1, 0, 2}, []span{{1, 2}, {4, 5}}},
		{"tail mips", ImageRange{1, 2, 3, 1}, []span{{10, 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := imageSpans(&desc, tt.rng)
			if len(got) != len(tt.want) {
				t.Fatalf("imageSpans() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("imageSpans()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStateCheck(t *testing.T) {
	tests := []struct {
		state   State
		kind    ResourceType
		stage   Stage
		want    Stage
		wantErr bool
	}{
		{StateSampled, ResourceImage, 0, StageFragmentShader, false},
		{StateSampled, ResourceImage, StageCompute | StageVertexShader, StageCompute | StageVertexShader, false},
		{StateSampled, ResourceBuffer, 0, 0, true},
		{StateUniformBuffer, ResourceBuffer, 0, StageShaders, false},
		{StateColorAttachment, ResourceImage, StageFragmentShader, 0, true},
		{StateCopyDst, ResourceBuffer, 0, StageCopy, false},
		{StateUndefined, ResourceImage, 0, 0, true},
		{stateCount, ResourceImage, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := tt.state.check(tt.kind, tt.stage)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidUsage) {
				t.Errorf("%v.check(%v, %v) = %v, want ErrInvalidUsage", tt.state, tt.kind, tt.stage, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%v.check(%v, %v) = %v, %v; want %v", tt.state, tt.kind, tt.stage, got, err, tt.want)
		}
	}
}

func TestStateTable(t *testing.T) {
	for s := StateGeneral; s < stateCount; s++ {
		if s.String() == "" {
			t.Errorf("state %d has no name", s)
		}
		if s != StatePresent && s.DefaultStage()&^s.AllowedStages() != 0 {
			t.Errorf("%v: default stage %v not allowed", s, s.DefaultStage())
		}
		info := s.info()
		if info.images && s != StatePresent && s.TextureUsage() == 0 {
			t.Errorf("%v: image state without texture usage", s)
		}
		if info.buffers && s.BufferUsage() == 0 {
			t.Errorf("%v: buffer state without buffer usage", s)
		}
	}
	writes := map[State]bool{
		StateGeneral: true, StateStorageWrite: true, StateStorageReadWrite: true,
		StateColorAttachment: true, StateDepthStencilWrite: true, StateCopyDst: true, StateHostWrite: true,
	}
	for s := StateGeneral; s < stateCount; s++ {
		if s.IsWrite() != writes[s] {
			t.Errorf("%v.IsWrite() = %t", s, s.IsWrite())
		}
	}
}

func TestStageAndAccessStrings(t *testing.T) {
	if got := (StageVertexShader | StageCompute).String(); got != "vertex|compute" {
		t.Errorf("Stage.String() = %q", got)
	}
	if got := StageAll.String(); got != "all" {
		t.Errorf("StageAll.String() = %q", got)
	}
	if got := (AccessShaderRead | AccessShaderWrite).String(); got != "shader-read|shader-write" {
		t.Errorf("Access.String() = %q", got)
	}
	if !AccessMemoryWrite.Writes() || AccessUniformRead.Writes() {
		t.Error("Access.Writes() misclassifies")
	}
}
