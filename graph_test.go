// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestGraph(t *testing.T, opts ...Option) (*Graph, *NullDevice) {
	t.Helper()
	dev := NewNullDevice()
	g, err := New(dev, opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, dev
}

func nop() Recorder {
	return RecordFunc(func(CommandList, *Registry) error { return nil })
}

func rgba(label string, size uint32) ImageDescription {
	return ImageDescription{Label: label, Format: gputypes.TextureFormatRGBA8Unorm, Width: size, Height: size}
}

// importImage creates a device image outside the graph and imports it.
func importImage(t *testing.T, g *Graph, dev *NullDevice, desc ImageDescription, state *ResourceStateData, opts ImportOptions) ImageHandle {
	t.Helper()
	id, err := dev.CreateImage(&desc, InvalidID, 0)
	if err != nil {
		t.Fatalf("CreateImage(%q) = %v", desc.Label, err)
	}
	return g.ImportImage(id, desc, state, opts)
}

func importBuffer(t *testing.T, g *Graph, dev *NullDevice, desc BufferDescription, state *ResourceStateData, opts ImportOptions) BufferHandle {
	t.Helper()
	id, err := dev.CreateBuffer(&desc, InvalidID, 0)
	if err != nil {
		t.Fatalf("CreateBuffer(%q) = %v", desc.Label, err)
	}
	return g.ImportBuffer(id, desc, state, opts)
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil) = %v, want ErrNilDevice", err)
	}
}

func TestCreateImageNormalizes(t *testing.T) {
	g, _ := newTestGraph(t)
	h := g.CreateImage(rgba("color", 64))
	if !h.IsValid() {
		t.Fatalf("CreateImage returned invalid handle: %v", g.Err())
	}
	desc, ok := g.ImageDescription(h)
	if !ok {
		t.Fatal("ImageDescription() not found")
	}
	if desc.Depth != 1 || desc.ArrayLayers != 1 || desc.MipLevels != 1 || desc.SampleCount != 1 {
		t.Errorf("defaults not filled: %+v", desc)
	}
}

func TestInvalidDescriptions(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *Graph)
	}{
		{"zero extent", func(g *Graph) { g.CreateImage(rgba("a", 0)) }},
		{"no format", func(g *Graph) { g.CreateImage(ImageDescription{Width: 4, Height: 4}) }},
		{"too many mips", func(g *Graph) {
			d := rgba("a", 8)
			d.MipLevels = 5
			g.CreateImage(d)
		}},
		{"3d with layers", func(g *Graph) {
			d := rgba("a", 8)
			d.Type, d.Depth, d.ArrayLayers = Image3D, 8, 2
			g.CreateImage(d)
		}},
		{"multisampled mips", func(g *Graph) {
			d := rgba("a", 8)
			d.SampleCount, d.MipLevels = 4, 2
			g.CreateImage(d)
		}},
		{"bad sample count", func(g *Graph) {
			d := rgba("a", 8)
			d.SampleCount = 3
			g.CreateImage(d)
		}},
		{"zero buffer", func(g *Graph) { g.CreateBuffer(BufferDescription{Label: "b"}) }},
		{"view beyond mips", func(g *Graph) { g.MipView(g.CreateImage(rgba("a", 8)), 1) }},
		{"view beyond buffer", func(g *Graph) {
			b := g.CreateBuffer(BufferDescription{Label: "b", Size: 16})
			g.CreateBufferView(BufferViewDescription{Buffer: b, Offset: 8, Size: 16})
		}},
		{"imported without id", func(g *Graph) { g.ImportImage(InvalidID, rgba("a", 8), nil, ImportOptions{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGraph(t)
			tt.build(g)
			err := g.Err()
			if !errors.Is(err, ErrInvalidDescription) {
				t.Fatalf("Err() = %v, want ErrInvalidDescription", err)
			}
			if !IsConfiguration(err) {
				t.Errorf("IsConfiguration(%v) = false", err)
			}
			if _, err := g.Compile(); err == nil {
				t.Error("Compile() succeeded after a configuration error")
			}
			if g.Err() != nil {
				t.Errorf("Err() after failed Compile = %v, want nil", g.Err())
			}
		})
	}
}

func TestInvalidUsages(t *testing.T) {
	tests := []struct {
		name  string
		usage func(g *Graph) Usage
		want  error
	}{
		{"buffer state on image", func(g *Graph) Usage {
			return UseImage(g.FullImageView(g.CreateImage(rgba("a", 8))), StateVertexBuffer, 0)
		}, ErrInvalidUsage},
		{"image state on buffer", func(g *Graph) Usage {
			return UseBuffer(g.FullBufferView(g.CreateBuffer(BufferDescription{Size: 4})), StateSampled, 0)
		}, ErrInvalidUsage},
		{"undefined state", func(g *Graph) Usage {
			return UseImage(g.FullImageView(g.CreateImage(rgba("a", 8))), StateUndefined, 0)
		}, ErrInvalidUsage},
		{"stage not allowed", func(g *Graph) Usage {
			return UseImage(g.FullImageView(g.CreateImage(rgba("a", 8))), StateColorAttachment, StageCompute)
		}, ErrInvalidUsage},
		{"bad exit stage", func(g *Graph) Usage {
			return UseImage(g.FullImageView(g.CreateImage(rgba("a", 8))), StateColorAttachment, 0).
				LeaveIn(StateSampled, StageCopy)
		}, ErrInvalidUsage},
		{"no view", func(*Graph) Usage { return Usage{State: StateSampled} }, ErrUnknownHandle},
		{"zero view handle", func(*Graph) Usage { return UseImage(ImageViewHandle{}, StateSampled, 0) }, ErrUnknownHandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGraph(t)
			u := tt.usage(g)
			if h := g.AddPass("p", QueueGraphics, []Usage{u}, nop()); h.IsValid() {
				t.Error("AddPass returned a valid handle")
			}
			err := g.Err()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Err() = %v, want %v", err, tt.want)
			}
			var ge *GraphError
			if !errors.As(err, &ge) || ge.Pass != "p" {
				t.Errorf("error %v does not name the pass", err)
			}
		})
	}
}

func TestConflictingLayoutsInOnePass(t *testing.T) {
	g, _ := newTestGraph(t)
	v := g.FullImageView(g.CreateImage(rgba("a", 8)))
	g.AddPass("p", QueueGraphics, []Usage{
		UseImage(v, StateSampled, 0),
		UseImage(v, StateColorAttachment, 0),
	}, nop())
	if !errors.Is(g.Err(), ErrInvalidUsage) {
		t.Errorf("Err() = %v, want ErrInvalidUsage", g.Err())
	}
}

func TestNilRecorder(t *testing.T) {
	var fn RecordFunc
	tests := []struct {
		name string
		rec  Recorder
	}{
		{"nil interface", nil},
		{"nil RecordFunc", fn},
		{"nil RecordFunc conversion", RecordFunc(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGraph(t)
			if h := g.AddPass("p", QueueGraphics, nil, tt.rec); h.IsValid() {
				t.Error("AddPass() returned a valid handle")
			}
			if !errors.Is(g.Err(), ErrNilRecorder) {
				t.Errorf("Err() = %v, want ErrNilRecorder", g.Err())
			}
			var ge *GraphError
			if !errors.As(g.Err(), &ge) || ge.Pass != "p" {
				t.Errorf("Err() = %#v, want a GraphError naming pass p", g.Err())
			}
		})
	}
}

func TestExpiredHandles(t *testing.T) {
	g, _ := newTestGraph(t)
	old := g.CreateImage(rgba("a", 8))
	g.Reset()

	if _, ok := g.ImageDescription(old); ok {
		t.Error("ImageDescription() found an image of a reset frame")
	}
	g.FullImageView(old)
	if !errors.Is(g.Err(), ErrExpiredHandle) {
		t.Fatalf("Err() = %v, want ErrExpiredHandle", g.Err())
	}
}

func TestHandlesExpireAfterExecute(t *testing.T) {
	g, _ := newTestGraph(t)
	img := g.CreateImage(rgba("a", 8))
	v := g.FullImageView(img)
	g.AddPass("p", QueueGraphics, []Usage{UseImage(v, StateColorAttachment, 0)}, nop(), ForceExecution())
	if _, err := g.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	g.AddPass("q", QueueGraphics, []Usage{UseImage(v, StateSampled, 0)}, nop())
	if !errors.Is(g.Err(), ErrExpiredHandle) {
		t.Errorf("Err() = %v, want ErrExpiredHandle", g.Err())
	}
}

func TestFailFastPanics(t *testing.T) {
	g, _ := newTestGraph(t, WithFailFast())
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInvalidDescription) {
			t.Errorf("recover() = %v, want ErrInvalidDescription", r)
		}
	}()
	g.CreateImage(rgba("a", 0))
	t.Error("CreateImage did not panic")
}

func TestClosedGraph(t *testing.T) {
	g, dev := newTestGraph(t)
	g.AddPass("p", QueueGraphics, []Usage{
		UseImage(g.FullImageView(g.CreateImage(rgba("a", 8))), StateColorAttachment, 0),
	}, nop(), ForceExecution())
	if _, err := g.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if heaps, images, buffers := dev.Live(); heaps != 0 || images != 0 || buffers != 0 {
		t.Errorf("Live() after Close = %d heaps, %d images, %d buffers", heaps, images, buffers)
	}
	if _, err := g.Compile(); !errors.Is(err, ErrClosed) {
		t.Errorf("Compile() after Close = %v, want ErrClosed", err)
	}
	g.CreateImage(rgba("b", 8))
	if !errors.Is(g.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", g.Err())
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestCompileCachesPlan(t *testing.T) {
	g, _ := newTestGraph(t)
	img := g.CreateImage(rgba("a", 8))
	g.AddPass("p", QueueGraphics, []Usage{UseImage(g.FullImageView(img), StateColorAttachment, 0)}, nop(), ForceExecution())
	p1, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	p2, _ := g.Compile()
	if p1 != p2 {
		t.Error("Compile() recompiled an unchanged frame")
	}
	g.AddPass("q", QueueGraphics, []Usage{UseImage(g.FullImageView(img), StateSampled, 0)}, nop(), ForceExecution())
	p3, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if p3 == p1 || len(p3.Steps) != 2 {
		t.Errorf("plan not rebuilt after AddPass: %d steps", len(p3.Steps))
	}
}

func TestGraphErrorMessage(t *testing.T) {
	err := &GraphError{Kind: KindRecord, Pass: "blur", Resource: `image "hdr"`, Err: errors.New("boom")}
	want := `rendergraph: record error in pass "blur" on image "hdr": boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
