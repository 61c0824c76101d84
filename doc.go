// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rendergraph provides a per-frame render graph (frame graph) for
// real-time GPU renderers.
//
// # Overview
//
// A frame is described as a list of passes. Each pass declares which images
// and buffers it touches, in which state and pipeline stage, and supplies a
// Recorder that records its commands. From these declarations alone the graph
//
//   - orders passes by their data dependencies, keeping submission order when
//     several passes could run next,
//   - culls passes whose results nobody consumes,
//   - places short-lived transient resources into shared memory when their
//     lifetimes do not overlap,
//   - inserts layout transitions, execution and memory barriers, queue
//     ownership transfers and cross-queue semaphores,
//   - and finally invokes every surviving recorder with a Registry that
//     resolves the pass's handles to device objects.
//
// # Quick Start
//
//	g, err := rendergraph.New(dev)
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
//
//	// Per frame:
//	hdr := g.CreateImage(rendergraph.ImageDescription{
//	    Label:  "hdr",
//	    Width:  1920,
//	    Height: 1080,
//	    Format: gputypes.TextureFormatRGBA16Float,
//	})
//	swap := g.ImportImage(swapchainImage, swapDesc, &swapState, rendergraph.ImportOptions{})
//
//	g.AddPass("lighting", rendergraph.QueueCompute, []rendergraph.Usage{
//	    rendergraph.UseImage(g.FullImageView(hdr), rendergraph.StateStorageWrite, rendergraph.StageCompute),
//	}, lightingPass)
//	g.AddPass("tonemap", rendergraph.QueueGraphics, []rendergraph.Usage{
//	    rendergraph.UseImage(g.FullImageView(hdr), rendergraph.StateSampled, rendergraph.StageFragmentShader),
//	    rendergraph.UseImage(g.FullImageView(swap), rendergraph.StateColorAttachment, 0),
//	}, tonemapPass)
//
//	stats, err := g.Execute()
//
// # Handles
//
// Handles are small values indexing a per-frame arena. They are valid until
// the next Execute or Reset; using one afterwards is reported as
// ErrExpiredHandle. Imported resources outlive frames; the graph carries their
// synchronization state across frames in a caller-owned ResourceStateData.
//
// # Errors
//
// Build calls never fail directly. The first configuration error is kept and
// returned by Compile or Execute as a *GraphError; WithFailFast turns it into
// a panic at the offending call instead.
//
// # Devices
//
// The graph drives any implementation of Device. NullDevice is a headless
// device that records every call, used for tests and tooling. Package
// backend/wgpu implements Device on top of gogpu/wgpu's HAL.
package rendergraph
