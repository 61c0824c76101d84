// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
)

// DefaultBackend is the hal backend the registered factory opens.
var DefaultBackend = gputypes.BackendVulkan

func init() {
	backend.Register(backend.NameWGPU, func() (rendergraph.Device, error) {
		d, err := Open(DefaultBackend)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
