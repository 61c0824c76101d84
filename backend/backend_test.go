// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
)

// withRegistry swaps the registry for the duration of a test.
func withRegistry(t *testing.T, regs map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = regs
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func nullFactory() (rendergraph.Device, error) { return rendergraph.NewNullDevice(), nil }

func TestNullRegistered(t *testing.T) {
	if !IsRegistered(NameNull) {
		t.Fatal("null backend not registered")
	}
	dev, err := Get(NameNull)
	if err != nil {
		t.Fatalf("Get(null) error = %v", err)
	}
	if _, ok := dev.(*rendergraph.NullDevice); !ok {
		t.Errorf("Get(null) = %T, want *rendergraph.NullDevice", dev)
	}
	if err := Close(dev); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("vulkan-9000"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(unknown) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegisterUnregister(t *testing.T) {
	withRegistry(t, map[string]Factory{})
	Register("custom", nullFactory)
	if !IsRegistered("custom") {
		t.Fatal("custom not registered")
	}
	if got := Available(); !slices.Equal(got, []string{"custom"}) {
		t.Errorf("Available() = %v", got)
	}
	Unregister("custom")
	if IsRegistered("custom") {
		t.Error("custom still registered")
	}
}

func TestGetFactoryErrors(t *testing.T) {
	boom := errors.New("no adapter")
	withRegistry(t, map[string]Factory{
		"broken": func() (rendergraph.Device, error) { return nil, boom },
		"empty":  func() (rendergraph.Device, error) { return nil, nil },
	})
	if _, err := Get("broken"); !errors.Is(err, boom) {
		t.Errorf("Get(broken) error = %v", err)
	}
	if _, err := Get("empty"); !errors.Is(err, ErrNilDevice) {
		t.Errorf("Get(empty) error = %v", err)
	}
}

func TestDefaultPriority(t *testing.T) {
	failing := func() (rendergraph.Device, error) { return nil, errors.New("no GPU") }
	tests := []struct {
		name string
		regs map[string]Factory
		want string
	}{
		{"wgpu wins", map[string]Factory{NameWGPU: nullFactory, NameNull: nullFactory, "aaa": nullFactory}, NameWGPU},
		{"fallback to null", map[string]Factory{NameWGPU: failing, NameNull: nullFactory}, NameNull},
		{"unlisted backends last", map[string]Factory{NameWGPU: failing, "zzz": nullFactory, "mmm": nullFactory}, "mmm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t, tt.regs)
			dev, name, err := Default()
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			if name != tt.want || dev == nil {
				t.Errorf("Default() = %T, %q; want %q", dev, name, tt.want)
			}
		})
	}
}

func TestDefaultNoneAvailable(t *testing.T) {
	withRegistry(t, map[string]Factory{
		NameWGPU: func() (rendergraph.Device, error) { return nil, errors.New("no GPU") },
	})
	if _, _, err := Default(); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustDefault() did not panic")
		}
	}()
	MustDefault()
}

func TestDefaultDeviceRunsGraph(t *testing.T) {
	withRegistry(t, map[string]Factory{NameNull: nullFactory})
	dev := MustDefault()
	g, err := rendergraph.New(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	img := g.FullImageView(g.CreateImage(rendergraph.ImageDescription{
		Label: "target", Format: gputypes.TextureFormatRGBA8Unorm, Width: 8, Height: 8,
	}))
	g.AddPass("clear", rendergraph.QueueGraphics,
		[]rendergraph.Usage{rendergraph.UseImage(img, rendergraph.StateColorAttachment, 0)},
		rendergraph.RecordFunc(func(rendergraph.CommandList, *rendergraph.Registry) error { return nil }),
		rendergraph.ForceExecution())
	stats, err := g.Execute()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stats.Passes != 1 {
		t.Errorf("Passes = %d, want 1", stats.Passes)
	}
}
