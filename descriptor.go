// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
)

// ImageType is the dimensionality of an image.
type ImageType uint8

const (
	Image2D ImageType = iota
	Image1D
	Image3D
)

func (t ImageType) String() string {
	switch t {
	case Image1D:
		return "1d"
	case Image2D:
		return "2d"
	case Image3D:
		return "3d"
	default:
		return fmt.Sprintf("ImageType(%d)", uint8(t))
	}
}

// TextureDimension converts t to the gputypes dimension.
func (t ImageType) TextureDimension() gputypes.TextureDimension {
	switch t {
	case Image1D:
		return gputypes.TextureDimension1D
	case Image3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

// ImageDescription describes an image the graph should provide.
//
// Zero Depth, ArrayLayers, MipLevels and SampleCount mean 1. Usage flags the
// declared states require are added automatically; Usage only needs extra
// flags for accesses the graph does not see.
type ImageDescription struct {
	Label       string
	Type        ImageType
	Format      gputypes.TextureFormat
	Width       uint32
	Height      uint32
	Depth       uint32
	ArrayLayers uint32
	MipLevels   uint32
	SampleCount uint32
	Usage       gputypes.TextureUsage

	// Clear requests that the first pass rendering to the image clears it;
	// see Registry.LoadOp.
	Clear      bool
	ClearValue gputypes.Color

	// NonAliasable gives the image dedicated memory.
	NonAliasable bool
}

// BufferDescription describes a buffer the graph should provide.
type BufferDescription struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage

	// HostVisible buffers can be mapped with Registry.Map. They never share
	// memory with other resources.
	HostVisible bool

	// NonAliasable gives the buffer dedicated memory.
	NonAliasable bool
}

// ImageViewDescription describes a view of an image.
//
// A zero MipLevelCount or ArrayLayerCount covers all remaining levels or
// layers. Format and Dimension default to the image's.
type ImageViewDescription struct {
	Image           ImageHandle
	Label           string
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	Aspect          gputypes.TextureAspect
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// BufferViewDescription describes a byte range of a buffer. A zero Size
// covers the rest of the buffer. Format is only meaningful for texel
// buffer views.
type BufferViewDescription struct {
	Buffer BufferHandle
	Label  string
	Offset uint64
	Size   uint64
	Format gputypes.TextureFormat
}

// ImageRange is a mip/layer rectangle of an image.
type ImageRange struct {
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// BufferRange is a byte range of a buffer.
type BufferRange struct {
	Offset uint64
	Size   uint64
}

// MaxMipLevels returns the length of a full mip chain for the given extent.
func MaxMipLevels(width, height, depth uint32) uint32 {
	return uint32(bits.Len32(max(width, height, depth, 1)))
}

// normalize fills defaults and validates d.
func (d *ImageDescription) normalize() error {
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.Type == Image1D && d.Height == 0 {
		d.Height = 1
	}

	switch {
	case d.Width == 0 || d.Height == 0:
		return fmt.Errorf("%w: image %q has zero extent %dx%d", ErrInvalidDescription, d.Label, d.Width, d.Height)
	case d.Format == gputypes.TextureFormatUndefined:
		return fmt.Errorf("%w: image %q has no format", ErrInvalidDescription, d.Label)
	case d.Type > Image3D:
		return fmt.Errorf("%w: image %q has unknown type %v", ErrInvalidDescription, d.Label, d.Type)
	case d.Type == Image1D && (d.Height != 1 || d.Depth != 1):
		return fmt.Errorf("%w: 1d image %q must have height and depth 1", ErrInvalidDescription, d.Label)
	case d.Type == Image2D && d.Depth != 1:
		return fmt.Errorf("%w: 2d image %q has depth %d", ErrInvalidDescription, d.Label, d.Depth)
	case d.Type == Image3D && d.ArrayLayers != 1:
		return fmt.Errorf("%w: 3d image %q cannot have array layers", ErrInvalidDescription, d.Label)
	case d.MipLevels > MaxMipLevels(d.Width, d.Height, d.Depth):
		return fmt.Errorf("%w: image %q has %d mip levels, at most %d fit %dx%dx%d",
			ErrInvalidDescription, d.Label, d.MipLevels, MaxMipLevels(d.Width, d.Height, d.Depth), d.Width, d.Height, d.Depth)
	case d.SampleCount&(d.SampleCount-1) != 0 || d.SampleCount > 16:
		return fmt.Errorf("%w: image %q has sample count %d", ErrInvalidDescription, d.Label, d.SampleCount)
	case d.SampleCount > 1 && (d.MipLevels != 1 || d.Type != Image2D):
		return fmt.Errorf("%w: multisampled image %q must be 2d with one mip level", ErrInvalidDescription, d.Label)
	case IsDepthFormat(d.Format) && d.Type == Image3D:
		return fmt.Errorf("%w: depth image %q cannot be 3d", ErrInvalidDescription, d.Label)
	}
	return nil
}

// subresources returns the number of tracked subresources.
func (d *ImageDescription) subresources() uint64 {
	return uint64(d.MipLevels) * uint64(d.ArrayLayers)
}

func (d *BufferDescription) normalize() error {
	if d.Size == 0 {
		return fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescription, d.Label)
	}
	return nil
}

// resolve validates v against its image and returns the concrete range.
func (v *ImageViewDescription) resolve(img *ImageDescription) (ImageRange, error) {
	if v.BaseMipLevel >= img.MipLevels {
		return ImageRange{}, fmt.Errorf("%w: view %q base mip %d of %d", ErrInvalidDescription, v.Label, v.BaseMipLevel, img.MipLevels)
	}
	if v.BaseArrayLayer >= img.ArrayLayers {
		return ImageRange{}, fmt.Errorf("%w: view %q base layer %d of %d", ErrInvalidDescription, v.Label, v.BaseArrayLayer, img.ArrayLayers)
	}
	r := ImageRange{
		BaseMipLevel:    v.BaseMipLevel,
		MipLevelCount:   v.MipLevelCount,
		BaseArrayLayer:  v.BaseArrayLayer,
		ArrayLayerCount: v.ArrayLayerCount,
	}
	if r.MipLevelCount == 0 {
		r.MipLevelCount = img.MipLevels - r.BaseMipLevel
	}
	if r.ArrayLayerCount == 0 {
		r.ArrayLayerCount = img.ArrayLayers - r.BaseArrayLayer
	}
	if r.BaseMipLevel+r.MipLevelCount > img.MipLevels {
		return ImageRange{}, fmt.Errorf("%w: view %q mips [%d,%d) exceed %d",
			ErrInvalidDescription, v.Label, r.BaseMipLevel, r.BaseMipLevel+r.MipLevelCount, img.MipLevels)
	}
	if r.BaseArrayLayer+r.ArrayLayerCount > img.ArrayLayers {
		return ImageRange{}, fmt.Errorf("%w: view %q layers [%d,%d) exceed %d",
			ErrInvalidDescription, v.Label, r.BaseArrayLayer, r.BaseArrayLayer+r.ArrayLayerCount, img.ArrayLayers)
	}

	if v.Format == gputypes.TextureFormatUndefined {
		v.Format = img.Format
	}
	if v.Dimension == gputypes.TextureViewDimensionUndefined {
		v.Dimension = defaultViewDimension(img.Type, r.ArrayLayerCount)
	}
	if v.Aspect == 0 {
		v.Aspect = gputypes.TextureAspectAll
	}
	v.BaseMipLevel, v.MipLevelCount = r.BaseMipLevel, r.MipLevelCount
	v.BaseArrayLayer, v.ArrayLayerCount = r.BaseArrayLayer, r.ArrayLayerCount
	return r, nil
}

func defaultViewDimension(t ImageType, layers uint32) gputypes.TextureViewDimension {
	switch t {
	case Image1D:
		return gputypes.TextureViewDimension1D
	case Image3D:
		return gputypes.TextureViewDimension3D
	}
	if layers > 1 {
		return gputypes.TextureViewDimension2DArray
	}
	return gputypes.TextureViewDimension2D
}

func (v *BufferViewDescription) resolve(buf *BufferDescription) (BufferRange, error) {
	if v.Offset >= buf.Size {
		return BufferRange{}, fmt.Errorf("%w: view %q offset %d beyond buffer size %d", ErrInvalidDescription, v.Label, v.Offset, buf.Size)
	}
	if v.Size == 0 {
		v.Size = buf.Size - v.Offset
	}
	if v.Offset+v.Size > buf.Size {
		return BufferRange{}, fmt.Errorf("%w: view %q range [%d,%d) exceeds buffer size %d",
			ErrInvalidDescription, v.Label, v.Offset, v.Offset+v.Size, buf.Size)
	}
	return BufferRange{Offset: v.Offset, Size: v.Size}, nil
}

// BytesPerPixel returns the texel size of a format, or 4 for formats the
// table does not know.
func BytesPerPixel(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// IsDepthFormat reports whether f has a depth aspect.
func IsDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float:
		return true
	}
	return false
}

// ImageSize estimates the bytes an image needs: the sum of its mip levels
// over all layers and samples, without padding.
func ImageSize(d *ImageDescription) uint64 {
	bpp := BytesPerPixel(d.Format)
	depth, layers := max(d.Depth, 1), max(d.ArrayLayers, 1)
	var total uint64
	for m := uint32(0); m < max(d.MipLevels, 1); m++ {
		w := uint64(max(d.Width>>m, 1))
		h := uint64(max(d.Height>>m, 1))
		dd := uint64(max(depth>>m, 1))
		if d.Type != Image3D {
			dd = 1
		}
		total += w * h * dd * bpp
	}
	return total * uint64(layers) * uint64(max(d.SampleCount, 1))
}
