// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu runs render graphs on a gogpu/wgpu hal device.
//
// Device implements rendergraph.Device over a hal.Device and its hal.Queue.
// It can wrap a device the caller already owns (New), share the device of a
// gpucontext.DeviceProvider such as a gogpu window (NewFromProvider), or
// open one on a registered hal backend (Open). Importing the package
// registers the "wgpu" backend with package backend.
//
// # Memory
//
// hal exposes no placed resources, so heaps are bookkeeping. Images and
// buffers report a memory key derived from their full description; the
// graph therefore only aliases resources with identical descriptions, and
// such resources share one hal object per heap. The graph's aliasing
// barriers order the hand-over between them.
//
// # Queues
//
// hal has a single queue. Every queue type maps to slot 0.0, batches are
// submitted in order, and semaphore waits are satisfied by that order.
//
// # Barriers
//
// Image barriers are recorded with CommandEncoder.TransitionTextures using
// the texture usages of the logical states. Buffer barriers are counted in
// Stats but not encoded: hal orders buffer access between submissions on
// its single queue.
//
// # Mapping
//
// Buffers created for host reads are mapped with Device.MapBuffer and the
// returned slice aliases the hal mapping until UnmapBuffer. Buffers created
// for host writes are mapped through a host shadow; UnmapBuffer uploads the
// mapped range with Queue.WriteBuffer.
//
// # Native objects
//
// Recorders reach the hal objects behind registry IDs through Texture,
// TextureView and Buffer, and the encoder of their command list through
// Encoder:
//
//	enc, _ := wgpu.Encoder(cmd)
//	view, _ := dev.TextureView(reg.ImageView(target))
//	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{...})
package wgpu
