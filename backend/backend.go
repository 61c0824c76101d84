// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"io"

	"github.com/gogpu/rendergraph"
)

// Backend names.
const (
	// NameNull is the headless rendergraph.NullDevice.
	NameNull = "null"
	// NameWGPU is the native device built on gogpu/wgpu hal. It registers
	// itself when package backend/wgpu is imported.
	NameWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none of the registered backends could open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNilDevice is returned when a factory reports success without a device.
	ErrNilDevice = errors.New("backend: factory returned no device")
)

// Factory opens a device. Factories may fail, for example when no GPU is
// present; Default then moves on to the next backend.
type Factory func() (rendergraph.Device, error)

func init() {
	Register(NameNull, func() (rendergraph.Device, error) {
		return rendergraph.NewNullDevice(), nil
	})
}

// Close releases dev if its backend holds resources that need releasing.
func Close(dev rendergraph.Device) error {
	if c, ok := dev.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
