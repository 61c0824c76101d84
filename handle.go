// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "fmt"

// handle indexes a per-frame arena. gen is the generation of the frame the
// handle was created in; generation 0 is never used, so the zero handle is
// invalid.
type handle struct {
	index uint32
	gen   uint32
}

func (h handle) valid() bool { return h.gen != 0 }

// ImageHandle names an image for the current frame.
type ImageHandle struct{ h handle }

// ImageViewHandle names a view of an image for the current frame.
type ImageViewHandle struct{ h handle }

// BufferHandle names a buffer for the current frame.
type BufferHandle struct{ h handle }

// BufferViewHandle names a byte range of a buffer for the current frame.
type BufferViewHandle struct{ h handle }

// PassHandle names a pass added to the current frame.
type PassHandle struct{ h handle }

// IsValid reports whether the handle was returned by a successful call.
// It does not check that the handle belongs to the current frame.
func (h ImageHandle) IsValid() bool { return h.h.valid() }

// IsValid reports whether the handle was returned by a successful call.
func (h ImageViewHandle) IsValid() bool { return h.h.valid() }

// IsValid reports whether the handle was returned by a successful call.
func (h BufferHandle) IsValid() bool { return h.h.valid() }

// IsValid reports whether the handle was returned by a successful call.
func (h BufferViewHandle) IsValid() bool { return h.h.valid() }

// IsValid reports whether the handle was returned by a successful call.
func (h PassHandle) IsValid() bool { return h.h.valid() }

func (h ImageHandle) String() string      { return fmt.Sprintf("image#%d", h.h.index) }
func (h ImageViewHandle) String() string  { return fmt.Sprintf("image-view#%d", h.h.index) }
func (h BufferHandle) String() string     { return fmt.Sprintf("buffer#%d", h.h.index) }
func (h BufferViewHandle) String() string { return fmt.Sprintf("buffer-view#%d", h.h.index) }
func (h PassHandle) String() string       { return fmt.Sprintf("pass#%d", h.h.index) }

// ResourceType tells which variant a ResourceView holds.
type ResourceType uint8

const (
	ResourceImage ResourceType = iota + 1
	ResourceBuffer
)

func (t ResourceType) String() string {
	switch t {
	case ResourceImage:
		return "image"
	case ResourceBuffer:
		return "buffer"
	default:
		return "none"
	}
}

// ResourceView is either an image view or a buffer view. It is the resource
// reference of a Usage.
type ResourceView struct {
	typ    ResourceType
	image  ImageViewHandle
	buffer BufferViewHandle
}

// ImageResource wraps an image view.
func ImageResource(v ImageViewHandle) ResourceView {
	return ResourceView{typ: ResourceImage, image: v}
}

// BufferResource wraps a buffer view.
func BufferResource(v BufferViewHandle) ResourceView {
	return ResourceView{typ: ResourceBuffer, buffer: v}
}

// Type returns which variant r holds. The zero ResourceView holds neither.
func (r ResourceView) Type() ResourceType { return r.typ }

// Image returns the image view and true if r holds one.
func (r ResourceView) Image() (ImageViewHandle, bool) {
	return r.image, r.typ == ResourceImage
}

// Buffer returns the buffer view and true if r holds one.
func (r ResourceView) Buffer() (BufferViewHandle, bool) {
	return r.buffer, r.typ == ResourceBuffer
}

func (r ResourceView) String() string {
	switch r.typ {
	case ResourceImage:
		return r.image.String()
	case ResourceBuffer:
		return r.buffer.String()
	default:
		return "<no resource>"
	}
}
