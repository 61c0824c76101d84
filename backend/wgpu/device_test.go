// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	d, err := New(device, queue)
	if err != nil {
		cleanup()
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		cleanup()
	})
	return d
}

func target(label string) rendergraph.ImageDescription {
	return rendergraph.ImageDescription{
		Label:       label,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		Width:       64,
		Height:      64,
		Depth:       1,
		ArrayLayers: 1,
		MipLevels:   1,
		SampleCount: 1,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	}
}

func TestNewRejectsNil(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil, nil) succeeded")
	}
}

func TestRequirements(t *testing.T) {
	d := newTestDevice(t)
	a, b := target("a"), target("b")
	ra, rb := d.ImageRequirements(&a), d.ImageRequirements(&b)
	if ra != rb {
		t.Errorf("labels changed requirements: %+v vs %+v", ra, rb)
	}
	if ra.Size != 64*64*4 || ra.Alignment != placementAlignment {
		t.Errorf("ImageRequirements() = %+v", ra)
	}

	c := target("c")
	c.Usage |= gputypes.TextureUsageTextureBinding
	if d.ImageRequirements(&c).Key == ra.Key {
		t.Error("different usages share a memory key")
	}

	buf := rendergraph.BufferDescription{Label: "vb", Size: 100, Usage: gputypes.BufferUsageVertex}
	if got := d.BufferRequirements(&buf); got.Size != 256 {
		t.Errorf("BufferRequirements().Size = %d, want 256", got.Size)
	}
}

func TestImagesShareTexturesInHeap(t *testing.T) {
	d := newTestDevice(t)
	desc := target("a")
	req := d.ImageRequirements(&desc)
	heapID, err := d.CreateHeap(&rendergraph.HeapDescription{Label: "heap", Size: req.Size, Key: req.Key})
	if err != nil {
		t.Fatal(err)
	}

	first, err := d.CreateImage(&desc, heapID, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.CreateImage(&desc, heapID, 0)
	if err != nil {
		t.Fatal(err)
	}
	t1, _ := d.Texture(first)
	t2, _ := d.Texture(second)
	if t1 != t2 {
		t.Error("images in one heap slot did not share a texture")
	}

	d.DestroyImage(first)
	d.DestroyImage(second)
	third, err := d.CreateImage(&desc, heapID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if t3, _ := d.Texture(third); t3 != t1 {
		t.Error("pooled texture not reused after its images were destroyed")
	}

	s := d.Stats()
	if s.TexturesCreated != 1 || s.TexturesReused != 2 {
		t.Errorf("created %d reused %d, want 1 and 2", s.TexturesCreated, s.TexturesReused)
	}

	d.DestroyHeap(heapID)
	d.DestroyImage(third)
	if s := d.Stats(); s.HeapsLive != 0 || s.ImagesLive != 0 {
		t.Errorf("live heaps %d images %d after destroy", s.HeapsLive, s.ImagesLive)
	}
}

func TestDedicatedImages(t *testing.T) {
	d := newTestDevice(t)
	desc := target("history")
	a, err := d.CreateImage(&desc, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.CreateImage(&desc, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	ta, _ := d.Texture(a)
	tb, _ := d.Texture(b)
	if ta == tb {
		t.Error("dedicated images share a texture")
	}
	if _, err := d.CreateImage(&desc, rendergraph.HeapID(999), 0); !errors.Is(err, errUnknown) {
		t.Errorf("CreateImage(unknown heap) error = %v", err)
	}
}

func TestImageViews(t *testing.T) {
	d := newTestDevice(t)
	desc := target("color")
	img, err := d.CreateImage(&desc, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	view, err := d.CreateImageView(img, &rendergraph.ImageViewDescription{
		Label:           "color view",
		Format:          desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := d.TextureView(view); !ok || v == nil {
		t.Error("TextureView() did not find the view")
	}
	d.DestroyImageView(view)
	if _, ok := d.TextureView(view); ok {
		t.Error("view still live after DestroyImageView")
	}
	if _, err := d.CreateImageView(rendergraph.ImageID(12345), &rendergraph.ImageViewDescription{}); err == nil {
		t.Error("CreateImageView(unknown image) succeeded")
	}
}

func TestBufferMapping(t *testing.T) {
	d := newTestDevice(t)
	staging := rendergraph.BufferDescription{
		Label:       "staging",
		Size:        64,
		Usage:       gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
		HostVisible: true,
	}
	id, err := d.CreateBuffer(&staging, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := d.MapBuffer(id, 16, 32)
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	if len(data) != 32 {
		t.Fatalf("len(data) = %d, want 32", len(data))
	}
	if _, err := d.MapBuffer(id, 0, 8); err == nil {
		t.Error("mapping a mapped buffer succeeded")
	}
	if err := d.UnmapBuffer(id); err != nil {
		t.Fatalf("UnmapBuffer() error = %v", err)
	}
	if err := d.UnmapBuffer(id); err == nil {
		t.Error("second UnmapBuffer succeeded")
	}
	if got := d.Stats().BytesUploaded; got != 32 {
		t.Errorf("BytesUploaded = %d, want 32", got)
	}

	vb := rendergraph.BufferDescription{Label: "vb", Size: 64, Usage: gputypes.BufferUsageVertex}
	vid, err := d.CreateBuffer(&vb, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.MapBuffer(vid, 0, 64); !errors.Is(err, rendergraph.ErrNotHostVisible) {
		t.Errorf("MapBuffer(device-local) error = %v, want ErrNotHostVisible", err)
	}
}

func TestBufferMappingHostRead(t *testing.T) {
	d := newTestDevice(t)
	readback := rendergraph.BufferDescription{
		Label:       "readback",
		Size:        64,
		Usage:       gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		HostVisible: true,
	}
	id, err := d.CreateBuffer(&readback, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	buf, ok := d.Buffer(id)
	if !ok {
		t.Fatal("Buffer() found no hal buffer")
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := d.queue.WriteBuffer(buf, 8, want); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}

	data, err := d.MapBuffer(id, 8, 8)
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	if string(data) != string(want) {
		t.Errorf("mapped data = %v, want %v", data, want)
	}
	if err := d.UnmapBuffer(id); err != nil {
		t.Fatalf("UnmapBuffer() error = %v", err)
	}
	st := d.Stats()
	if st.BytesReadBack != 8 || st.BytesUploaded != 0 {
		t.Errorf("BytesReadBack = %d, BytesUploaded = %d, want 8 and 0", st.BytesReadBack, st.BytesUploaded)
	}
	if _, err := d.MapBuffer(id, 60, 8); err == nil {
		t.Error("MapBuffer past the end succeeded")
	}
}

func TestBufferUsage(t *testing.T) {
	tests := []struct {
		name string
		in   gputypes.BufferUsage
		want gputypes.BufferUsage
	}{
		{"device local", gputypes.BufferUsageStorage, gputypes.BufferUsageStorage},
		{"host write", gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc, gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc},
		{"host read", gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := rendergraph.BufferDescription{Size: 4, Usage: tt.in}
			if got := bufferUsage(&desc); got != tt.want {
				t.Errorf("bufferUsage() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestBufferViews(t *testing.T) {
	d := newTestDevice(t)
	desc := rendergraph.BufferDescription{Label: "ub", Size: 512, Usage: gputypes.BufferUsageUniform}
	id, err := d.CreateBuffer(&desc, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	view, err := d.CreateBufferView(id, &rendergraph.BufferViewDescription{Offset: 256, Size: 256})
	if err != nil {
		t.Fatal(err)
	}
	buf, rng, ok := d.BufferViewRange(view)
	if !ok || buf == nil || rng != (rendergraph.BufferRange{Offset: 256, Size: 256}) {
		t.Errorf("BufferViewRange() = %v, %+v, %t", buf, rng, ok)
	}
	if _, err := d.CreateBufferView(id, &rendergraph.BufferViewDescription{Offset: 256, Size: 512}); err == nil {
		t.Error("out-of-range view succeeded")
	}
}

func TestSingleQueue(t *testing.T) {
	d := newTestDevice(t)
	for _, q := range []rendergraph.QueueType{rendergraph.QueueGraphics, rendergraph.QueueCompute, rendergraph.QueueTransfer} {
		if got := d.QueueSlot(q); got != (rendergraph.QueueSlot{}) {
			t.Errorf("QueueSlot(%v) = %v", q, got)
		}
	}
	if _, err := d.BeginCommandList(rendergraph.QueueSlot{Family: 1}, "x"); err == nil {
		t.Error("BeginCommandList on a missing queue succeeded")
	}
}

type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halMockProvider also exposes hal objects, like a gogpu window does.
type halMockProvider struct {
	mockProvider
	device hal.Device
	queue  hal.Queue
}

func (m *halMockProvider) HalDevice() any { return m.device }
func (m *halMockProvider) HalQueue() any  { return m.queue }

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(&mockProvider{}); !errors.Is(err, ErrNoHAL) {
		t.Errorf("NewFromProvider(no HAL) error = %v, want ErrNoHAL", err)
	}

	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	d, err := NewFromProvider(&halMockProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("NewFromProvider() error = %v", err)
	}
	defer d.Close()
	if d.HalDevice() != device || d.HalQueue() != queue {
		t.Error("provider objects not used")
	}
}

func TestGraphOnNoopDevice(t *testing.T) {
	d := newTestDevice(t)
	g, err := rendergraph.New(d, rendergraph.WithFramesInFlight(1))
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	out := target("output")
	out.Usage = gputypes.TextureUsageCopyDst
	outID, err := d.CreateImage(&out, rendergraph.InvalidID, 0)
	if err != nil {
		t.Fatal(err)
	}
	var outState rendergraph.ResourceStateData

	var barriers int
	for frame := 0; frame < 2; frame++ {
		color := g.FullImageView(g.CreateImage(rendergraph.ImageDescription{
			Label:  "color",
			Format: gputypes.TextureFormatRGBA8Unorm,
			Width:  64,
			Height: 64,
		}))
		dst := g.FullImageView(g.ImportImage(outID, out, &outState, rendergraph.ImportOptions{}))

		var sawEncoder, sawView bool
		g.AddPass("draw", rendergraph.QueueGraphics,
			[]rendergraph.Usage{rendergraph.UseImage(color, rendergraph.StateColorAttachment, 0)},
			rendergraph.RecordFunc(func(cmd rendergraph.CommandList, reg *rendergraph.Registry) error {
				_, sawEncoder = Encoder(cmd)
				_, sawView = d.TextureView(reg.ImageView(color))
				return nil
			}))
		g.AddPass("copy", rendergraph.QueueGraphics, []rendergraph.Usage{
			rendergraph.UseImage(color, rendergraph.StateCopySrc, 0),
			rendergraph.UseImage(dst, rendergraph.StateCopyDst, 0),
		}, rendergraph.RecordFunc(func(rendergraph.CommandList, *rendergraph.Registry) error { return nil }))

		stats, err := g.Execute()
		if err != nil {
			t.Fatalf("frame %d: Execute() error = %v", frame, err)
		}
		if !sawEncoder || !sawView {
			t.Errorf("frame %d: encoder %t view %t", frame, sawEncoder, sawView)
		}
		barriers += stats.Barriers
	}

	s := d.Stats()
	if s.Submits != 2 {
		t.Errorf("Submits = %d, want 2", s.Submits)
	}
	if s.TextureBarriers != barriers || s.BufferBarriers != 0 {
		t.Errorf("texture barriers %d buffer barriers %d, want %d and 0", s.TextureBarriers, s.BufferBarriers, barriers)
	}
	// The output texture plus one transient texture reused by frame 2.
	if s.TexturesCreated != 2 || s.TexturesReused != 1 {
		t.Errorf("created %d reused %d, want 2 and 1", s.TexturesCreated, s.TexturesReused)
	}
}
