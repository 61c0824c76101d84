// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// StateRange is the state of a run of subresources at the end of a frame.
//
// Subresource keys are layer*MipLevels+mip for images and byte offsets for
// buffers; a range covers keys [Begin, End).
type StateRange struct {
	Begin, End uint64
	State      State
	// Stage holds the stages of the last accesses.
	Stage Stage
	// Family owns the subresources, or QueueFamilyIgnored.
	Family uint32
	// Deferred is set when the last pass did not declare an exit state. The
	// next frame then treats the range as written by any stage.
	Deferred bool
}

// ResourceStateData carries an imported resource's synchronization state
// from one frame to the next. The caller owns it and keeps it with the
// resource; the graph reads it on import and rewrites it after Execute.
// The zero value means "contents undefined".
type ResourceStateData struct {
	// Size is the number of subresource keys the ranges cover. A record
	// whose size no longer matches the resource is ignored.
	Size   uint64
	Ranges []StateRange
}

// Reset forgets the recorded state, for example after the resource's
// contents were replaced outside the graph.
func (d *ResourceStateData) Reset() {
	d.Size = 0
	d.Ranges = nil
}

// At returns the recorded state of one subresource key.
func (d *ResourceStateData) At(key uint64) (StateRange, bool) {
	i, found := slices.BinarySearchFunc(d.Ranges, key, func(r StateRange, k uint64) int {
		switch {
		case r.End <= k:
			return -1
		case r.Begin > k:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return StateRange{}, false
	}
	return d.Ranges[i], true
}

func (d *ResourceStateData) usable(size uint64) bool {
	return d != nil && d.Size == size && len(d.Ranges) > 0
}

// ExternalQueue describes an imported resource that arrives from, and must
// be returned to, a queue family outside the graph (a presentation queue,
// for example).
type ExternalQueue struct {
	Family uint32
}

// ImportOptions configures ImportImage and ImportBuffer.
type ImportOptions struct {
	// Concurrent resources are shared by all queue families and never need
	// ownership transfers.
	Concurrent bool
	// Transfer, if set, makes the graph acquire the resource from the
	// external family on first use and release it back after the last use.
	Transfer *ExternalQueue
}

type imageRes struct {
	desc     ImageDescription
	imported bool
	id       ImageID
	state    *ResourceStateData
	opts     ImportOptions
	usage    gputypes.TextureUsage
}

type bufferRes struct {
	desc     BufferDescription
	imported bool
	id       BufferID
	state    *ResourceStateData
	opts     ImportOptions
	usage    gputypes.BufferUsage
	mapped   bool
}

type imageViewRes struct {
	desc  ImageViewDescription
	image int
	rng   ImageRange
	id    ImageViewID
}

type bufferViewRes struct {
	desc   BufferViewDescription
	buffer int
	rng    BufferRange
	id     BufferViewID
}

// arena holds everything created for one frame.
type arena struct {
	gen         uint32
	images      []imageRes
	buffers     []bufferRes
	imageViews  []imageViewRes
	bufferViews []bufferViewRes
	passes      []pass
}

func (a *arena) reset(gen uint32) {
	clear(a.images)
	clear(a.buffers)
	clear(a.imageViews)
	clear(a.bufferViews)
	clear(a.passes)
	a.images = a.images[:0]
	a.buffers = a.buffers[:0]
	a.imageViews = a.imageViews[:0]
	a.bufferViews = a.bufferViews[:0]
	a.passes = a.passes[:0]
	a.gen = gen
}

func (a *arena) check(h handle, n int) error {
	switch {
	case !h.valid():
		return ErrUnknownHandle
	case h.gen != a.gen:
		return ErrExpiredHandle
	case int(h.index) >= n:
		return ErrUnknownHandle
	}
	return nil
}

func (a *arena) image(h ImageHandle) (*imageRes, error) {
	if err := a.check(h.h, len(a.images)); err != nil {
		return nil, err
	}
	return &a.images[h.h.index], nil
}

func (a *arena) buffer(h BufferHandle) (*bufferRes, error) {
	if err := a.check(h.h, len(a.buffers)); err != nil {
		return nil, err
	}
	return &a.buffers[h.h.index], nil
}

func (a *arena) imageView(h ImageViewHandle) (*imageViewRes, error) {
	if err := a.check(h.h, len(a.imageViews)); err != nil {
		return nil, err
	}
	return &a.imageViews[h.h.index], nil
}

func (a *arena) bufferView(h BufferViewHandle) (*bufferViewRes, error) {
	if err := a.check(h.h, len(a.bufferViews)); err != nil {
		return nil, err
	}
	return &a.bufferViews[h.h.index], nil
}

func (a *arena) imageHandle(i int) ImageHandle {
	return ImageHandle{handle{index: uint32(i), gen: a.gen}}
}

func (a *arena) bufferHandle(i int) BufferHandle {
	return BufferHandle{handle{index: uint32(i), gen: a.gen}}
}

// imageName returns a readable name for diagnostics.
func (a *arena) imageName(i int) string {
	if l := a.images[i].desc.Label; l != "" {
		return fmt.Sprintf("image %q", l)
	}
	return a.imageHandle(i).String()
}

func (a *arena) bufferName(i int) string {
	if l := a.buffers[i].desc.Label; l != "" {
		return fmt.Sprintf("buffer %q", l)
	}
	return a.bufferHandle(i).String()
}

// imageSpans returns the tracking key ranges covered by r.
func imageSpans(desc *ImageDescription, r ImageRange) []span {
	spans := make([]span, 0, r.ArrayLayerCount)
	mips := uint64(desc.MipLevels)
	for l := r.BaseArrayLayer; l < r.BaseArrayLayer+r.ArrayLayerCount; l++ {
		base := uint64(l) * mips
		spans = append(spans, span{base + uint64(r.BaseMipLevel), base + uint64(r.BaseMipLevel+r.MipLevelCount)})
	}
	// Whole mip chains of consecutive layers form one span.
	if r.BaseMipLevel == 0 && uint64(r.MipLevelCount) == mips {
		return []span{{spans[0].begin, spans[len(spans)-1].end}}
	}
	return spans
}
