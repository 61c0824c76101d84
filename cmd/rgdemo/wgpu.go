// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package main

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/backend/wgpu"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// nameNoop is the backend that runs the wgpu device on the hal noop API.
const nameNoop = "noop"

func init() {
	backend.Register(nameNoop, func() (rendergraph.Device, error) {
		d, err := openNoop()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
	onLogger = append(onLogger, wgpu.SetLogger)
	encoders = append(encoders, encodeHAL)
	moduleLoaders = append(moduleLoaders, loadHALModules)
}

// noopDevice is a wgpu device over the hal noop API. It owns the hal
// objects the wrapped device borrows.
type noopDevice struct {
	*wgpu.Device
	instance hal.Instance
	device   hal.Device
}

func openNoop() (*noopDevice, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("noop: no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("noop device: %w", err)
	}
	d, err := wgpu.New(open.Device, open.Queue)
	if err != nil {
		open.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	return &noopDevice{Device: d, instance: instance, device: open.Device}, nil
}

func (d *noopDevice) Close() error {
	err := d.Device.Close()
	d.device.Destroy()
	d.instance.Destroy()
	return err
}

type textureViews interface {
	TextureView(id rendergraph.ImageViewID) (hal.TextureView, bool)
}

// encodeHAL opens a hal render or compute pass for w. No pipelines are
// bound: render passes only load, clear and store their attachments. Depth
// clears to the far plane.
func encodeHAL(dev rendergraph.Device, cmd rendergraph.CommandList, reg *rendergraph.Registry, w *passWork) (bool, error) {
	enc, ok := wgpu.Encoder(cmd)
	if !ok {
		return false, nil
	}
	views, ok := dev.(textureViews)
	if !ok {
		return true, fmt.Errorf("device %T has no texture views", dev)
	}
	view := func(h rendergraph.ImageViewHandle) (hal.TextureView, error) {
		v, ok := views.TextureView(reg.ImageView(h))
		if !ok {
			if err := reg.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("no texture view for %v", h)
		}
		return v, nil
	}

	switch w.kind {
	case workRender:
		desc := &hal.RenderPassDescriptor{Label: w.name}
		for _, h := range w.color {
			v, err := view(h)
			if err != nil {
				return true, err
			}
			desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
				View:       v,
				LoadOp:     reg.LoadOp(h),
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: reg.ClearValue(h),
			})
		}
		if w.depth.IsValid() {
			v, err := view(w.depth)
			if err != nil {
				return true, err
			}
			desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
				View:            v,
				DepthLoadOp:     reg.LoadOp(w.depth),
				DepthStoreOp:    gputypes.StoreOpStore,
				DepthClearValue: 1.0,
			}
		}
		rp := enc.BeginRenderPass(desc)
		rp.End()
	case workCompute:
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: w.name})
		cp.End()
	}
	return true, nil
}

type halDevice interface {
	HalDevice() hal.Device
}

// loadHALModules creates and releases a shader module per shader, which
// makes the hal backend validate the SPIR-V.
func loadHALModules(dev rendergraph.Device, shaders []shader) (int, bool, error) {
	hd, ok := dev.(halDevice)
	if !ok {
		return 0, false, nil
	}
	device := hd.HalDevice()
	for _, s := range shaders {
		module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  s.name,
			Source: hal.ShaderSource{SPIRV: s.spirv},
		})
		if err != nil {
			return 0, true, fmt.Errorf("create %s shader module: %w", s.name, err)
		}
		device.DestroyShaderModule(module)
	}
	return len(shaders), true, nil
}
