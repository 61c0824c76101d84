// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/internal/alias"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned by Device.
var (
	// ErrClosed is returned by calls on a closed Device.
	ErrClosed = errors.New("wgpu: device closed")
	// ErrTimeout is returned when the GPU does not finish a frame in time.
	ErrTimeout = errors.New("wgpu: timed out waiting for GPU")
	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose hal objects.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")

	errUnknown = errors.New("wgpu: unknown device object")
)

// placementAlignment is the alignment reported for every resource.
const placementAlignment = 256

// defaultWaitTimeout bounds WaitFrame.
const defaultWaitTimeout = 5 * time.Second

// Stats counts the hal work a Device did.
type Stats struct {
	TexturesCreated  int
	TexturesReused   int
	BuffersCreated   int
	BuffersReused    int
	TextureBarriers  int
	BufferBarriers   int
	CommandBuffers   int
	Submits          int
	BytesUploaded    uint64
	BytesReadBack    uint64

	HeapsLive      int
	ImagesLive     int
	BuffersLive    int
	FramesInFlight int
}

// heap groups the hal objects placed in one graph heap. Objects with the
// same description key share one hal object.
type heap struct {
	desc     rendergraph.HeapDescription
	textures map[string]*sharedTexture
	buffers  map[string]*sharedBuffer
	// destroyed is set by DestroyHeap; objects still in use are destroyed
	// with their last user.
	destroyed bool
}

type sharedTexture struct {
	tex  hal.Texture
	refs int
}

type sharedBuffer struct {
	buf  hal.Buffer
	refs int
}

type image struct {
	desc rendergraph.ImageDescription
	tex  *sharedTexture
	// heap is nil for dedicated and external textures.
	heap     *heap
	key      string
	external bool
}

type imageView struct {
	image rendergraph.ImageID
	view  hal.TextureView
}

type buffer struct {
	desc     rendergraph.BufferDescription
	buf      *sharedBuffer
	heap     *heap
	key      string
	external bool

	host              []byte
	mapped, halMapped bool
	mapOffset, mapSz  uint64
}

type bufferView struct {
	buffer rendergraph.BufferID
	desc   rendergraph.BufferViewDescription
}

// Device is a rendergraph.Device over a hal device and queue.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	// owned is set when Close must destroy the hal device.
	owned       bool
	waitTimeout time.Duration
	closed      bool

	nextID      uint64
	heaps       map[rendergraph.HeapID]*heap
	images      map[rendergraph.ImageID]*image
	imageViews  map[rendergraph.ImageViewID]*imageView
	buffers     map[rendergraph.BufferID]*buffer
	bufferViews map[rendergraph.BufferViewID]bufferView

	submitted uint64
	completed uint64
	// inFlight holds the fences and command buffers of submitted frames
	// until they complete.
	inFlight map[uint64]*frameWork
	stats    Stats
}

// New wraps a hal device and queue the caller owns. Close does not
// destroy them.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: nil device or queue")
	}
	return &Device{
		device:      device,
		queue:       queue,
		waitTimeout: defaultWaitTimeout,
		heaps:       make(map[rendergraph.HeapID]*heap),
		images:      make(map[rendergraph.ImageID]*image),
		imageViews:  make(map[rendergraph.ImageViewID]*imageView),
		buffers:     make(map[rendergraph.BufferID]*buffer),
		bufferViews: make(map[rendergraph.BufferViewID]bufferView),
		inFlight:    make(map[uint64]*frameWork),
	}, nil
}

// NewFromProvider shares the GPU device of a provider such as a gogpu
// window. The provider must implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	d, err := New(device, queue)
	if err != nil {
		return nil, err
	}
	slogger().Info("wgpu: using shared GPU device")
	return d, nil
}

// Open opens a device on a registered hal backend, preferring discrete and
// integrated GPUs. Close destroys the device.
func Open(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("wgpu: hal backend %v not available", backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	d, err := New(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// SetWaitTimeout changes how long WaitFrame waits for the GPU.
func (d *Device) SetWaitTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitTimeout = timeout
}

// HalDevice returns the wrapped hal device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the wrapped hal queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// imageKey identifies the hal texture an image description needs. Labels
// do not take part.
func imageKey(desc *rendergraph.ImageDescription) string {
	return fmt.Sprintf("texture %v %v %dx%dx%d layers=%d mips=%d samples=%d usage=%#x",
		desc.Type, desc.Format, desc.Width, desc.Height, desc.Depth,
		desc.ArrayLayers, desc.MipLevels, desc.SampleCount, uint64(desc.Usage))
}

func bufferKey(desc *rendergraph.BufferDescription) string {
	return fmt.Sprintf("buffer %d usage=%#x host=%t", desc.Size, uint64(bufferUsage(desc)), desc.HostVisible)
}

// bufferUsage maps host access onto what hal supports: host writes go
// through Queue.WriteBuffer, which needs CopyDst.
func bufferUsage(desc *rendergraph.BufferDescription) gputypes.BufferUsage {
	u := desc.Usage
	if u&gputypes.BufferUsageMapWrite != 0 {
		u = u&^gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopyDst
	}
	return u
}

// ImageRequirements implements rendergraph.Device.
func (d *Device) ImageRequirements(desc *rendergraph.ImageDescription) rendergraph.MemoryRequirements {
	return rendergraph.MemoryRequirements{
		Size:      alias.AlignUp(rendergraph.ImageSize(desc), placementAlignment),
		Alignment: placementAlignment,
		Key:       imageKey(desc),
	}
}

// BufferRequirements implements rendergraph.Device.
func (d *Device) BufferRequirements(desc *rendergraph.BufferDescription) rendergraph.MemoryRequirements {
	return rendergraph.MemoryRequirements{
		Size:      alias.AlignUp(desc.Size, placementAlignment),
		Alignment: placementAlignment,
		Key:       bufferKey(desc),
	}
}

// CreateHeap implements rendergraph.Device.
func (d *Device) CreateHeap(desc *rendergraph.HeapDescription) (rendergraph.HeapID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return rendergraph.InvalidID, ErrClosed
	}
	id := rendergraph.HeapID(d.id())
	d.heaps[id] = &heap{
		desc:     *desc,
		textures: make(map[string]*sharedTexture),
		buffers:  make(map[string]*sharedBuffer),
	}
	return id, nil
}

// DestroyHeap implements rendergraph.Device. The hal objects of the heap
// are destroyed once no image or buffer uses them.
func (d *Device) DestroyHeap(id rendergraph.HeapID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.heaps[id]
	if !ok {
		return
	}
	delete(d.heaps, id)
	h.destroyed = true
	for key, st := range h.textures {
		if st.refs == 0 {
			d.device.DestroyTexture(st.tex)
			delete(h.textures, key)
		}
	}
	for key, sb := range h.buffers {
		if sb.refs == 0 {
			d.device.DestroyBuffer(sb.buf)
			delete(h.buffers, key)
		}
	}
	slogger().Debug("wgpu: heap destroyed", "heap", h.desc.Label)
}

func (d *Device) lookupHeap(id rendergraph.HeapID) (*heap, error) {
	if id == rendergraph.InvalidID {
		return nil, nil
	}
	h, ok := d.heaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: heap %d", errUnknown, id)
	}
	return h, nil
}

func (d *Device) createTexture(desc *rendergraph.ImageDescription) (hal.Texture, error) {
	depth := desc.Depth
	if desc.Type != rendergraph.Image3D {
		depth = desc.ArrayLayers
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: max(depth, 1)},
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     desc.Type.TextureDimension(),
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	d.stats.TexturesCreated++
	return tex, nil
}

// CreateImage implements rendergraph.Device. Images with equal
// descriptions in one heap share a texture; heap may be InvalidID for a
// dedicated texture.
func (d *Device) CreateImage(desc *rendergraph.ImageDescription, heapID rendergraph.HeapID, offset uint64) (rendergraph.ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return rendergraph.InvalidID, ErrClosed
	}
	h, err := d.lookupHeap(heapID)
	if err != nil {
		return rendergraph.InvalidID, err
	}
	img := &image{desc: *desc, heap: h, key: fmt.Sprintf("%s @%d", imageKey(desc), offset)}
	if h != nil {
		if st, ok := h.textures[img.key]; ok {
			st.refs++
			img.tex = st
			d.stats.TexturesReused++
		}
	}
	if img.tex == nil {
		tex, err := d.createTexture(desc)
		if err != nil {
			return rendergraph.InvalidID, err
		}
		img.tex = &sharedTexture{tex: tex, refs: 1}
		if h != nil {
			h.textures[img.key] = img.tex
		}
	}
	id := rendergraph.ImageID(d.id())
	d.images[id] = img
	return id, nil
}

// ImportTexture registers a texture the caller owns, such as a surface
// texture, so that it can be imported into a graph. DestroyImage forgets
// it without destroying it.
func (d *Device) ImportTexture(tex hal.Texture, desc rendergraph.ImageDescription) rendergraph.ImageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := rendergraph.ImageID(d.id())
	d.images[id] = &image{desc: desc, tex: &sharedTexture{tex: tex, refs: 1}, external: true}
	return id
}

// DestroyImage implements rendergraph.Device.
func (d *Device) DestroyImage(id rendergraph.ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	if !ok {
		return
	}
	delete(d.images, id)
	if img.external {
		return
	}
	img.tex.refs--
	if img.tex.refs > 0 {
		return
	}
	// Pooled textures stay with their heap for the next frame unless the
	// heap is already gone.
	if img.heap != nil {
		if !img.heap.destroyed {
			return
		}
		delete(img.heap.textures, img.key)
	}
	d.device.DestroyTexture(img.tex.tex)
}

// CreateImageView implements rendergraph.Device.
func (d *Device) CreateImageView(imageID rendergraph.ImageID, desc *rendergraph.ImageViewDescription) (rendergraph.ImageViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[imageID]
	if !ok {
		return rendergraph.InvalidID, fmt.Errorf("%w: image %d", errUnknown, imageID)
	}
	view, err := d.device.CreateTextureView(img.tex.tex, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          desc.Aspect,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err != nil {
		return rendergraph.InvalidID, fmt.Errorf("wgpu: create view %q: %w", desc.Label, err)
	}
	id := rendergraph.ImageViewID(d.id())
	d.imageViews[id] = &imageView{image: imageID, view: view}
	return id, nil
}

// DestroyImageView implements rendergraph.Device.
func (d *Device) DestroyImageView(id rendergraph.ImageViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.imageViews[id]; ok {
		delete(d.imageViews, id)
		d.device.DestroyTextureView(v.view)
	}
}

func (d *Device) createBuffer(desc *rendergraph.BufferDescription) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	d.stats.BuffersCreated++
	return buf, nil
}

// CreateBuffer implements rendergraph.Device.
func (d *Device) CreateBuffer(desc *rendergraph.BufferDescription, heapID rendergraph.HeapID, offset uint64) (rendergraph.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return rendergraph.InvalidID, ErrClosed
	}
	h, err := d.lookupHeap(heapID)
	if err != nil {
		return rendergraph.InvalidID, err
	}
	b := &buffer{desc: *desc, heap: h, key: fmt.Sprintf("%s @%d", bufferKey(desc), offset)}
	if h != nil {
		if sb, ok := h.buffers[b.key]; ok {
			sb.refs++
			b.buf = sb
			d.stats.BuffersReused++
		}
	}
	if b.buf == nil {
		buf, err := d.createBuffer(desc)
		if err != nil {
			return rendergraph.InvalidID, err
		}
		b.buf = &sharedBuffer{buf: buf, refs: 1}
		if h != nil {
			h.buffers[b.key] = b.buf
		}
	}
	id := rendergraph.BufferID(d.id())
	d.buffers[id] = b
	return id, nil
}

// ImportBuffer registers a buffer the caller owns so that it can be
// imported into a graph.
func (d *Device) ImportBuffer(buf hal.Buffer, desc rendergraph.BufferDescription) rendergraph.BufferID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := rendergraph.BufferID(d.id())
	d.buffers[id] = &buffer{desc: desc, buf: &sharedBuffer{buf: buf, refs: 1}, external: true}
	return id
}

// DestroyBuffer implements rendergraph.Device.
func (d *Device) DestroyBuffer(id rendergraph.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	delete(d.buffers, id)
	if b.external {
		return
	}
	b.buf.refs--
	if b.buf.refs > 0 {
		return
	}
	if b.heap != nil {
		if !b.heap.destroyed {
			return
		}
		delete(b.heap.buffers, b.key)
	}
	d.device.DestroyBuffer(b.buf.buf)
}

// CreateBufferView implements rendergraph.Device. hal has no buffer views;
// the view only records the range.
func (d *Device) CreateBufferView(bufferID rendergraph.BufferID, desc *rendergraph.BufferViewDescription) (rendergraph.BufferViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[bufferID]
	if !ok {
		return rendergraph.InvalidID, fmt.Errorf("%w: buffer %d", errUnknown, bufferID)
	}
	if desc.Offset+desc.Size > b.desc.Size {
		return rendergraph.InvalidID, fmt.Errorf("wgpu: view [%d,%d) exceeds buffer %q", desc.Offset, desc.Offset+desc.Size, b.desc.Label)
	}
	id := rendergraph.BufferViewID(d.id())
	d.bufferViews[id] = bufferView{buffer: bufferID, desc: *desc}
	return id, nil
}

// DestroyBufferView implements rendergraph.Device.
func (d *Device) DestroyBufferView(id rendergraph.BufferViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bufferViews, id)
}

// MapBuffer implements rendergraph.Device.
func (d *Device) MapBuffer(id rendergraph.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", errUnknown, id)
	}
	if !b.desc.HostVisible {
		return nil, rendergraph.ErrNotHostVisible
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("wgpu: map [%d,%d) exceeds buffer %q", offset, offset+size, b.desc.Label)
	}
	if b.mapped {
		return nil, fmt.Errorf("wgpu: buffer %q is already mapped", b.desc.Label)
	}
	if b.desc.Usage&gputypes.BufferUsageMapRead != 0 && size > 0 {
		m, err := d.device.MapBuffer(b.buf.buf, offset, size)
		if err != nil {
			return nil, fmt.Errorf("wgpu: map %q: %w", b.desc.Label, err)
		}
		b.mapped, b.halMapped, b.mapOffset, b.mapSz = true, true, offset, size
		d.stats.BytesReadBack += size
		return unsafe.Slice((*byte)(m.Ptr), size), nil
	}
	if b.host == nil {
		b.host = make([]byte, b.desc.Size)
	}
	b.mapped, b.halMapped, b.mapOffset, b.mapSz = true, false, offset, size
	return b.host[offset : offset+size], nil
}

// UnmapBuffer implements rendergraph.Device.
func (d *Device) UnmapBuffer(id rendergraph.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", errUnknown, id)
	}
	if !b.mapped {
		return fmt.Errorf("wgpu: buffer %q is not mapped", b.desc.Label)
	}
	b.mapped = false
	if b.halMapped {
		if err := d.device.UnmapBuffer(b.buf.buf); err != nil {
			return fmt.Errorf("wgpu: unmap %q: %w", b.desc.Label, err)
		}
		return nil
	}
	if b.mapSz == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(b.buf.buf, b.mapOffset, b.host[b.mapOffset:b.mapOffset+b.mapSz]); err != nil {
		return fmt.Errorf("wgpu: upload %q: %w", b.desc.Label, err)
	}
	d.stats.BytesUploaded += b.mapSz
	return nil
}

// Texture returns the hal texture behind an image ID.
func (d *Device) Texture(id rendergraph.ImageID) (hal.Texture, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	if !ok {
		return nil, false
	}
	return img.tex.tex, true
}

// TextureView returns the hal view behind an image view ID.
func (d *Device) TextureView(id rendergraph.ImageViewID) (hal.TextureView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.imageViews[id]
	if !ok {
		return nil, false
	}
	return v.view, true
}

// Buffer returns the hal buffer behind a buffer ID.
func (d *Device) Buffer(id rendergraph.BufferID) (hal.Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, false
	}
	return b.buf.buf, true
}

// BufferViewRange returns the buffer and range of a buffer view.
func (d *Device) BufferViewRange(id rendergraph.BufferViewID) (hal.Buffer, rendergraph.BufferRange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.bufferViews[id]
	if !ok {
		return nil, rendergraph.BufferRange{}, false
	}
	b, ok := d.buffers[v.buffer]
	if !ok {
		return nil, rendergraph.BufferRange{}, false
	}
	return b.buf.buf, rendergraph.BufferRange{Offset: v.desc.Offset, Size: v.desc.Size}, true
}

// Stats returns the work counters and live object counts.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.HeapsLive = len(d.heaps)
	s.ImagesLive = len(d.images)
	s.BuffersLive = len(d.buffers)
	s.FramesInFlight = len(d.inFlight)
	return s
}

// Close waits for the GPU, destroys every object the device still holds
// and, for devices opened with Open, the hal device itself.
func (d *Device) Close() error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil
	}
	err := d.WaitIdle()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for id, v := range d.imageViews {
		d.device.DestroyTextureView(v.view)
		delete(d.imageViews, id)
	}
	destroyed := make(map[*sharedTexture]bool)
	for id, img := range d.images {
		if !img.external && !destroyed[img.tex] {
			d.device.DestroyTexture(img.tex.tex)
			destroyed[img.tex] = true
		}
		delete(d.images, id)
	}
	freed := make(map[*sharedBuffer]bool)
	for id, b := range d.buffers {
		if !b.external && !freed[b.buf] {
			d.device.DestroyBuffer(b.buf.buf)
			freed[b.buf] = true
		}
		delete(d.buffers, id)
	}
	for id, h := range d.heaps {
		for _, st := range h.textures {
			if !destroyed[st] {
				d.device.DestroyTexture(st.tex)
			}
		}
		for _, sb := range h.buffers {
			if !freed[sb] {
				d.device.DestroyBuffer(sb.buf)
			}
		}
		delete(d.heaps, id)
	}
	for frame, w := range d.inFlight {
		d.release(w)
		delete(d.inFlight, frame)
	}
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	return err
}

var _ rendergraph.Device = (*Device)(nil)
