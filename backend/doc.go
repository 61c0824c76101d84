// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend selects the rendergraph.Device a graph runs on.
//
// Backends register a factory under a name, usually from an init()
// function. The null backend (rendergraph.NullDevice) is registered by this
// package; importing backend/wgpu adds the native one:
//
//	import _ "github.com/gogpu/rendergraph/backend/wgpu"
//
// # Backend Selection
//
// Use Default to open the best available device, or Get to request a
// specific backend by name:
//
//	dev, name, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer backend.Close(dev)
//
//	g, err := rendergraph.New(dev)
//
// Default tries wgpu first and falls back to null when no GPU device can be
// opened.
//
// # Available Backends
//
//   - "null": records device calls without executing them (always available)
//   - "wgpu": gogpu/wgpu hal device (requires importing backend/wgpu)
package backend
