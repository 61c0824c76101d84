// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
)

const (
	shadowMapSize = 1024
	bloomMips     = 4
	histogramBins = 256
	uniformsSize  = 256
)

// workKind is the kind of GPU work a demo pass records.
type workKind uint8

const (
	workHost workKind = iota
	workRender
	workCompute
)

// passWork describes the commands of one demo pass. The encoder of the
// active backend turns it into real commands.
type passWork struct {
	name  string
	kind  workKind
	color []rendergraph.ImageViewHandle
	depth rendergraph.ImageViewHandle
	// groups is the dispatch size of compute work.
	groups [3]uint32
}

// passEncoder records w into cmd. It reports false when cmd belongs to a
// backend it does not handle.
type passEncoder func(dev rendergraph.Device, cmd rendergraph.CommandList, reg *rendergraph.Registry, w *passWork) (bool, error)

var encoders = []passEncoder{encodeNull}

func encode(dev rendergraph.Device, cmd rendergraph.CommandList, reg *rendergraph.Registry, w *passWork) error {
	for _, enc := range encoders {
		ok, err := enc(dev, cmd, reg, w)
		if err != nil {
			return fmt.Errorf("%s: %w", w.name, err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%s: no encoder for %T", w.name, cmd)
}

// encodeNull marks the work on a null command list.
func encodeNull(_ rendergraph.Device, cmd rendergraph.CommandList, _ *rendergraph.Registry, w *passWork) (bool, error) {
	cl, ok := cmd.(*rendergraph.NullCommandList)
	if !ok {
		return false, nil
	}
	switch w.kind {
	case workRender:
		cl.Mark("draw " + w.name)
	case workCompute:
		cl.Mark(fmt.Sprintf("dispatch %s %dx%dx%d", w.name, w.groups[0], w.groups[1], w.groups[2]))
	}
	return true, nil
}

// demo owns the resources that live across frames and builds each frame's
// graph.
type demo struct {
	dev           rendergraph.Device
	width, height uint32

	backbuffer      rendergraph.ImageID
	backbufferDesc  rendergraph.ImageDescription
	backbufferState rendergraph.ResourceStateData

	exposure      rendergraph.BufferID
	exposureDesc  rendergraph.BufferDescription
	exposureState rendergraph.ResourceStateData

	// overlay adds a pass whose output nobody reads.
	overlay bool
}

func newDemo(dev rendergraph.Device, width, height uint32) (*demo, error) {
	d := &demo{
		dev:    dev,
		width:  width,
		height: height,
		backbufferDesc: rendergraph.ImageDescription{
			Label:       "backbuffer",
			Format:      gputypes.TextureFormatRGBA8Unorm,
			Width:       width,
			Height:      height,
			Depth:       1,
			ArrayLayers: 1,
			MipLevels:   1,
			SampleCount: 1,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		},
		exposureDesc: rendergraph.BufferDescription{
			Label: "exposure",
			Size:  16,
			Usage: gputypes.BufferUsageStorage,
		},
		overlay: true,
	}
	var err error
	if d.backbuffer, err = dev.CreateImage(&d.backbufferDesc, rendergraph.InvalidID, 0); err != nil {
		return nil, fmt.Errorf("create backbuffer: %w", err)
	}
	if d.exposure, err = dev.CreateBuffer(&d.exposureDesc, rendergraph.InvalidID, 0); err != nil {
		dev.DestroyImage(d.backbuffer)
		return nil, fmt.Errorf("create exposure buffer: %w", err)
	}
	return d, nil
}

// close destroys the persistent resources. The device must be idle.
func (d *demo) close() {
	d.dev.DestroyBuffer(d.exposure)
	d.dev.DestroyImage(d.backbuffer)
}

func imageDesc(label string, format gputypes.TextureFormat, w, h uint32) rendergraph.ImageDescription {
	return rendergraph.ImageDescription{Label: label, Format: format, Width: w, Height: h}
}

func (d *demo) groups(size uint32) [3]uint32 {
	return [3]uint32{(d.width + size - 1) / size, (d.height + size - 1) / size, 1}
}

// build declares one frame: a shadow pass, the scene, a bloom mip chain, an
// auto-exposure reduction on the compute queue and the tonemap into the
// imported backbuffer.
func (d *demo) build(g *rendergraph.Graph) {
	frame := g.Frame()

	backbuffer := g.ImportImage(d.backbuffer, d.backbufferDesc, &d.backbufferState, rendergraph.ImportOptions{})
	exposure := g.ImportBuffer(d.exposure, d.exposureDesc, &d.exposureState, rendergraph.ImportOptions{})

	uniforms := g.CreateBuffer(rendergraph.BufferDescription{Label: "uniforms", Size: uniformsSize, HostVisible: true})
	histogram := g.CreateBuffer(rendergraph.BufferDescription{Label: "histogram", Size: histogramBins * 4})

	shadow := g.CreateImage(imageDesc("shadow-map", gputypes.TextureFormatDepth32Float, shadowMapSize, shadowMapSize))

	sceneDesc := imageDesc("scene-color", gputypes.TextureFormatRGBA16Float, d.width, d.height)
	sceneDesc.Clear = true
	sceneDesc.ClearValue = gputypes.Color{R: 0.1, G: 0.1, B: 0.12, A: 1}
	scene := g.CreateImage(sceneDesc)

	depthDesc := imageDesc("depth", gputypes.TextureFormatDepth24PlusStencil8, d.width, d.height)
	depthDesc.Clear = true
	depth := g.CreateImage(depthDesc)

	bloomDesc := imageDesc("bloom", gputypes.TextureFormatRGBA16Float, max(d.width/2, 1), max(d.height/2, 1))
	bloomDesc.MipLevels = min(bloomMips, rendergraph.MaxMipLevels(bloomDesc.Width, bloomDesc.Height, 1))
	bloom := g.CreateImage(bloomDesc)

	ldr := g.CreateImage(imageDesc("ldr", gputypes.TextureFormatRGBA8Unorm, d.width, d.height))

	g.AddPass("upload", rendergraph.QueueGraphics, []rendergraph.Usage{
		rendergraph.UseBuffer(g.FullBufferView(uniforms), rendergraph.StateHostWrite, 0),
	}, rendergraph.RecordFunc(func(cmd rendergraph.CommandList, reg *rendergraph.Registry) error {
		data, err := reg.Map(uniforms)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(data[0:], frame)
		binary.LittleEndian.PutUint32(data[8:], math.Float32bits(float32(frame)/60))
		binary.LittleEndian.PutUint32(data[12:], d.width)
		binary.LittleEndian.PutUint32(data[16:], d.height)
		if err := reg.Unmap(uniforms); err != nil {
			return err
		}
		return encode(d.dev, cmd, reg, &passWork{name: "upload", kind: workHost})
	}))

	shadowView := g.FullImageView(shadow)
	g.AddPass("shadow", rendergraph.QueueGraphics, []rendergraph.Usage{
		rendergraph.UseImage(shadowView, rendergraph.StateDepthStencilWrite, 0),
		rendergraph.UseBuffer(g.FullBufferView(uniforms), rendergraph.StateUniformBuffer, rendergraph.StageVertexShader),
	}, d.render("shadow", nil, shadowView))

	sceneView := g.FullImageView(scene)
	depthView := g.FullImageView(depth)
	g.AddPass("scene", rendergraph.QueueGraphics, []rendergraph.Usage{
		rendergraph.UseImage(shadowView, rendergraph.StateSampled, rendergraph.StageFragmentShader),
		rendergraph.UseImage(sceneView, rendergraph.StateColorAttachment, 0),
		rendergraph.UseImage(depthView, rendergraph.StateDepthStencilWrite, 0),
		rendergraph.UseBuffer(g.FullBufferView(uniforms), rendergraph.StateUniformBuffer, 0),
	}, d.render("scene", []rendergraph.ImageViewHandle{sceneView}, depthView))

	// The downsample chain writes mip 0 from the scene, then each mip from
	// the one above it.
	bloomUsages := []rendergraph.Usage{
		rendergraph.UseImage(sceneView, rendergraph.StateSampled, rendergraph.StageCompute),
		rendergraph.UseImage(g.MipView(bloom, 0), rendergraph.StateStorageWrite, 0).InChain(),
	}
	for m := uint32(1); m < bloomDesc.MipLevels; m++ {
		bloomUsages = append(bloomUsages,
			rendergraph.UseImage(g.MipView(bloom, m-1), rendergraph.StateSampled, rendergraph.StageCompute).InChain(),
			rendergraph.UseImage(g.MipView(bloom, m), rendergraph.StateStorageWrite, 0).InChain())
	}
	g.AddPass("bloom", rendergraph.QueueGraphics, bloomUsages,
		rendergraph.RecordFunc(func(cmd rendergraph.CommandList, reg *rendergraph.Registry) error {
			w, h := bloomDesc.Width, bloomDesc.Height
			for step := 0; ; step++ {
				// Odd steps only transition the mip that was just written.
				if step%2 == 0 {
					work := &passWork{name: fmt.Sprintf("bloom-mip%d", step/2), kind: workCompute,
						groups: [3]uint32{(w + 7) / 8, (h + 7) / 8, 1}}
					if err := encode(d.dev, cmd, reg, work); err != nil {
						return err
					}
					w, h = max(w/2, 1), max(h/2, 1)
				}
				if !reg.AdvanceChain() {
					return nil
				}
			}
		}))

	g.AddPass("luminance", rendergraph.QueueCompute, []rendergraph.Usage{
		rendergraph.UseImage(sceneView, rendergraph.StateSampled, rendergraph.StageCompute),
		rendergraph.UseBuffer(g.FullBufferView(histogram), rendergraph.StateStorageWrite, 0),
	}, d.compute("luminance", d.groups(16)))

	g.AddPass("exposure", rendergraph.QueueCompute, []rendergraph.Usage{
		rendergraph.UseBuffer(g.FullBufferView(histogram), rendergraph.StateStorageRead, 0),
		rendergraph.UseBuffer(g.FullBufferView(exposure), rendergraph.StateStorageReadWrite, 0),
	}, d.compute("exposure", [3]uint32{1, 1, 1}))

	ldrView := g.FullImageView(ldr)
	g.AddPass("tonemap", rendergraph.QueueGraphics, []rendergraph.Usage{
		rendergraph.UseImage(sceneView, rendergraph.StateSampled, 0),
		rendergraph.UseImage(g.FullImageView(bloom), rendergraph.StateSampled, 0),
		rendergraph.UseBuffer(g.FullBufferView(exposure), rendergraph.StateStorageRead, rendergraph.StageFragmentShader),
		rendergraph.UseImage(ldrView, rendergraph.StateColorAttachment, 0),
	}, d.render("tonemap", []rendergraph.ImageViewHandle{ldrView}, rendergraph.ImageViewHandle{}))

	backbufferView := g.FullImageView(backbuffer)
	g.AddPass("present", rendergraph.QueueGraphics, []rendergraph.Usage{
		rendergraph.UseImage(ldrView, rendergraph.StateSampled, 0),
		rendergraph.UseImage(backbufferView, rendergraph.StateColorAttachment, 0).
			LeaveIn(rendergraph.StatePresent, 0),
	}, d.render("present", []rendergraph.ImageViewHandle{backbufferView}, rendergraph.ImageViewHandle{}))

	if d.overlay {
		overlay := g.CreateImage(imageDesc("debug-overlay", gputypes.TextureFormatRGBA8Unorm, d.width, d.height))
		overlayView := g.FullImageView(overlay)
		g.AddPass("debug-overlay", rendergraph.QueueGraphics, []rendergraph.Usage{
			rendergraph.UseImage(sceneView, rendergraph.StateSampled, 0),
			rendergraph.UseImage(overlayView, rendergraph.StateColorAttachment, 0),
		}, d.render("debug-overlay", []rendergraph.ImageViewHandle{overlayView}, rendergraph.ImageViewHandle{}))
	}
}

func (d *demo) render(name string, color []rendergraph.ImageViewHandle, depth rendergraph.ImageViewHandle) rendergraph.Recorder {
	return rendergraph.RecordFunc(func(cmd rendergraph.CommandList, reg *rendergraph.Registry) error {
		return encode(d.dev, cmd, reg, &passWork{name: name, kind: workRender, color: color, depth: depth})
	})
}

func (d *demo) compute(name string, groups [3]uint32) rendergraph.Recorder {
	return rendergraph.RecordFunc(func(cmd rendergraph.CommandList, reg *rendergraph.Registry) error {
		return encode(d.dev, cmd, reg, &passWork{name: name, kind: workCompute, groups: groups})
	})
}
