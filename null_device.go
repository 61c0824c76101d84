// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rendergraph/internal/alias"
)

// NullDevice errors.
var (
	// ErrOutOfMemory is returned by NullDevice when a heap would exceed the
	// configured budget.
	ErrOutOfMemory = errors.New("rendergraph: out of device memory")

	errNullObject = errors.New("rendergraph: unknown device object")
)

// nullAlignment is the placement alignment NullDevice reports.
const nullAlignment = 256

// NullDevice is a Device that executes nothing. It checks the calls it
// receives and records them, which makes it useful for tests and for
// running a graph without a GPU.
//
// By default graphics, compute and transfer passes run on three queue
// families (0, 1 and 2).
//
// NullDevice is safe for concurrent use.
type NullDevice struct {
	mu sync.Mutex

	slots      [queueTypeCount]QueueSlot
	heapBudget uint64
	heapBytes  uint64
	failSubmit error

	nextID      uint64
	heaps       map[HeapID]HeapDescription
	images      map[ImageID]ImageDescription
	imageViews  map[ImageViewID]ImageID
	buffers     map[BufferID]*nullBuffer
	bufferViews map[BufferViewID]BufferID

	submissions []NullSubmission
	submitted   uint64
	completed   uint64
	stats       NullStats
}

type nullBuffer struct {
	desc   BufferDescription
	host   []byte
	mapped bool
}

// NullStats counts the calls a NullDevice received.
type NullStats struct {
	HeapsCreated   int
	HeapsDestroyed int
	ImagesCreated  int
	BuffersCreated int
	Maps           int
	Unmaps         int
	Submits        int
}

// NullSubmission is a recorded Submission.
type NullSubmission struct {
	Frame  uint64
	Slot   QueueSlot
	Lists  []*NullCommandList
	Wait   []SemaphoreWait
	Signal bool
}

// NewNullDevice returns a NullDevice with three queue families and no
// memory limit.
func NewNullDevice() *NullDevice {
	d := &NullDevice{
		heaps:       make(map[HeapID]HeapDescription),
		images:      make(map[ImageID]ImageDescription),
		imageViews:  make(map[ImageViewID]ImageID),
		buffers:     make(map[BufferID]*nullBuffer),
		bufferViews: make(map[BufferViewID]BufferID),
	}
	d.slots[QueueGraphics] = QueueSlot{Family: 0}
	d.slots[QueueCompute] = QueueSlot{Family: 1}
	d.slots[QueueTransfer] = QueueSlot{Family: 2}
	return d
}

// SetQueueSlot changes the queue passes of type q run on.
func (d *NullDevice) SetQueueSlot(q QueueType, slot QueueSlot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots[q] = slot
}

// SetHeapBudget limits the total size of live heaps; 0 removes the limit.
func (d *NullDevice) SetHeapBudget(bytes uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heapBudget = bytes
}

// FailSubmit makes the following Submit calls fail with err; nil restores
// normal behaviour.
func (d *NullDevice) FailSubmit(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSubmit = err
}

func (d *NullDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

// ImageRequirements implements Device.
func (d *NullDevice) ImageRequirements(desc *ImageDescription) MemoryRequirements {
	return MemoryRequirements{
		Size:      alias.AlignUp(ImageSize(desc), nullAlignment),
		Alignment: nullAlignment,
		Key:       "image",
	}
}

// BufferRequirements implements Device.
func (d *NullDevice) BufferRequirements(desc *BufferDescription) MemoryRequirements {
	key := "buffer"
	if desc.HostVisible {
		key = "host-buffer"
	}
	return MemoryRequirements{
		Size:      alias.AlignUp(desc.Size, nullAlignment),
		Alignment: nullAlignment,
		Key:       key,
	}
}

// CreateHeap implements Device.
func (d *NullDevice) CreateHeap(desc *HeapDescription) (HeapID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Size == 0 {
		return InvalidID, fmt.Errorf("rendergraph: heap %q has zero size", desc.Label)
	}
	if d.heapBudget > 0 && d.heapBytes+desc.Size > d.heapBudget {
		return InvalidID, fmt.Errorf("%w: heap %q needs %d bytes, %d of %d in use",
			ErrOutOfMemory, desc.Label, desc.Size, d.heapBytes, d.heapBudget)
	}
	id := HeapID(d.id())
	d.heaps[id] = *desc
	d.heapBytes += desc.Size
	d.stats.HeapsCreated++
	return id, nil
}

// DestroyHeap implements Device.
func (d *NullDevice) DestroyHeap(id HeapID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.heaps[id]; ok {
		d.heapBytes -= h.Size
		delete(d.heaps, id)
		d.stats.HeapsDestroyed++
	}
}

// checkPlacement verifies that size bytes fit at offset in heap. The
// invalid heap id stands for a dedicated allocation.
func (d *NullDevice) checkPlacement(heap HeapID, offset, size uint64) error {
	if heap == InvalidID {
		return nil
	}
	h, ok := d.heaps[heap]
	if !ok {
		return fmt.Errorf("%w: heap %d", errNullObject, heap)
	}
	if offset+size > h.Size {
		return fmt.Errorf("rendergraph: %d bytes at offset %d exceed heap %q of %d bytes", size, offset, h.Label, h.Size)
	}
	return nil
}

// CreateImage implements Device. heap may be InvalidID for images the
// caller imports into a graph.
func (d *NullDevice) CreateImage(desc *ImageDescription, heap HeapID, offset uint64) (ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPlacement(heap, offset, d.ImageRequirements(desc).Size); err != nil {
		return InvalidID, err
	}
	id := ImageID(d.id())
	d.images[id] = *desc
	d.stats.ImagesCreated++
	return id, nil
}

// DestroyImage implements Device.
func (d *NullDevice) DestroyImage(id ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, id)
}

// CreateImageView implements Device.
func (d *NullDevice) CreateImageView(image ImageID, desc *ImageViewDescription) (ImageViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[image]; !ok {
		return InvalidID, fmt.Errorf("%w: image %d", errNullObject, image)
	}
	id := ImageViewID(d.id())
	d.imageViews[id] = image
	return id, nil
}

// DestroyImageView implements Device.
func (d *NullDevice) DestroyImageView(id ImageViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.imageViews, id)
}

// CreateBuffer implements Device. heap may be InvalidID for buffers the
// caller imports into a graph.
func (d *NullDevice) CreateBuffer(desc *BufferDescription, heap HeapID, offset uint64) (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPlacement(heap, offset, d.BufferRequirements(desc).Size); err != nil {
		return InvalidID, err
	}
	if heap != InvalidID && desc.HostVisible && !d.heaps[heap].HostVisible {
		return InvalidID, fmt.Errorf("rendergraph: host-visible buffer %q placed in device-local heap", desc.Label)
	}
	id := BufferID(d.id())
	d.buffers[id] = &nullBuffer{desc: *desc}
	d.stats.BuffersCreated++
	return id, nil
}

// DestroyBuffer implements Device.
func (d *NullDevice) DestroyBuffer(id BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// CreateBufferView implements Device.
func (d *NullDevice) CreateBufferView(buffer BufferID, desc *BufferViewDescription) (BufferViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buffer]
	if !ok {
		return InvalidID, fmt.Errorf("%w: buffer %d", errNullObject, buffer)
	}
	if desc.Offset+desc.Size > b.desc.Size {
		return InvalidID, fmt.Errorf("rendergraph: view [%d,%d) exceeds buffer %q", desc.Offset, desc.Offset+desc.Size, b.desc.Label)
	}
	id := BufferViewID(d.id())
	d.bufferViews[id] = buffer
	return id, nil
}

// DestroyBufferView implements Device.
func (d *NullDevice) DestroyBufferView(id BufferViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bufferViews, id)
}

// MapBuffer implements Device. The host memory of a buffer survives
// unmapping, so tests can read back what a pass wrote.
func (d *NullDevice) MapBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", errNullObject, id)
	}
	if !b.desc.HostVisible {
		return nil, ErrNotHostVisible
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("rendergraph: map [%d,%d) exceeds buffer %q", offset, offset+size, b.desc.Label)
	}
	if b.host == nil {
		b.host = make([]byte, b.desc.Size)
	}
	b.mapped = true
	d.stats.Maps++
	return b.host[offset : offset+size], nil
}

// UnmapBuffer implements Device.
func (d *NullDevice) UnmapBuffer(id BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", errNullObject, id)
	}
	if !b.mapped {
		return fmt.Errorf("rendergraph: buffer %q is not mapped", b.desc.Label)
	}
	b.mapped = false
	d.stats.Unmaps++
	return nil
}

// BufferContents returns a copy of the host memory of a buffer.
func (d *NullDevice) BufferContents(id BufferID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		return slices.Clone(b.host)
	}
	return nil
}

// Image returns the description a live image was created with.
func (d *NullDevice) Image(id ImageID) (ImageDescription, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.images[id]
	return desc, ok
}

// QueueSlot implements Device.
func (d *NullDevice) QueueSlot(q QueueType) QueueSlot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slots[q]
}

// BeginCommandList implements Device.
func (d *NullDevice) BeginCommandList(slot QueueSlot, label string) (CommandList, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.slots[:], slot) {
		return nil, fmt.Errorf("rendergraph: no queue %v", slot)
	}
	return &NullCommandList{slot: slot, Label: label}, nil
}

// Submit implements Device. It checks that every list was ended on the
// right queue and that waits point at earlier signalling submissions.
func (d *NullDevice) Submit(frame uint64, subs []Submission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSubmit != nil {
		return d.failSubmit
	}
	if frame <= d.submitted {
		return fmt.Errorf("rendergraph: frame %d submitted after frame %d", frame, d.submitted)
	}
	recs := make([]NullSubmission, 0, len(subs))
	for i, s := range subs {
		rec := NullSubmission{Frame: frame, Slot: s.Slot, Wait: slices.Clone(s.Wait), Signal: s.Signal}
		for _, l := range s.Lists {
			nl, ok := l.(*NullCommandList)
			if !ok {
				return fmt.Errorf("rendergraph: submission %d holds a foreign command list", i)
			}
			if !nl.ended || nl.discarded {
				return fmt.Errorf("rendergraph: submission %d holds unfinished list %q", i, nl.Label)
			}
			if nl.slot != s.Slot {
				return fmt.Errorf("rendergraph: list %q recorded for %v submitted to %v", nl.Label, nl.slot, s.Slot)
			}
			rec.Lists = append(rec.Lists, nl)
		}
		for _, w := range s.Wait {
			if w.Submission < 0 || w.Submission >= i || !subs[w.Submission].Signal {
				return fmt.Errorf("rendergraph: submission %d waits for %d which does not signal before it", i, w.Submission)
			}
		}
		recs = append(recs, rec)
	}
	d.submissions = append(d.submissions, recs...)
	d.submitted = frame
	d.stats.Submits++
	return nil
}

// WaitFrame implements Device. Work completes when it is waited for.
func (d *NullDevice) WaitFrame(frame uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if frame > d.submitted {
		return fmt.Errorf("rendergraph: frame %d was not submitted", frame)
	}
	d.completed = max(d.completed, frame)
	return nil
}

// WaitIdle implements Device.
func (d *NullDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = d.submitted
	return nil
}

// Submissions returns every recorded submission.
func (d *NullDevice) Submissions() []NullSubmission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.submissions)
}

// FrameSubmissions returns the submissions of one frame.
func (d *NullDevice) FrameSubmissions(frame uint64) []NullSubmission {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []NullSubmission
	for _, s := range d.submissions {
		if s.Frame == frame {
			out = append(out, s)
		}
	}
	return out
}

// Stats returns the call counters.
func (d *NullDevice) Stats() NullStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Live returns the number of live heaps, images and buffers.
func (d *NullDevice) Live() (heaps, images, buffers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.heaps), len(d.images), len(d.buffers)
}

// HeapBytes returns the total size of live heaps.
func (d *NullDevice) HeapBytes() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heapBytes
}

// NullCommandList records what a pass put into it.
type NullCommandList struct {
	Label string
	// Events lists barriers and marks in recording order.
	Events   []string
	Barriers []Barrier

	slot      QueueSlot
	ended     bool
	discarded bool
}

// Slot implements CommandList.
func (l *NullCommandList) Slot() QueueSlot { return l.slot }

// Barrier implements CommandList.
func (l *NullCommandList) Barrier(barriers []Barrier) {
	for _, b := range barriers {
		l.Events = append(l.Events, "barrier "+b.String())
	}
	l.Barriers = append(l.Barriers, barriers...)
}

// Mark records a command with the given name, standing in for the draws
// and dispatches of a pass.
func (l *NullCommandList) Mark(name string) {
	l.Events = append(l.Events, "mark "+name)
}

// End implements CommandList.
func (l *NullCommandList) End() error {
	if l.ended {
		return fmt.Errorf("rendergraph: list %q ended twice", l.Label)
	}
	l.ended = true
	return nil
}

// Discard implements CommandList.
func (l *NullCommandList) Discard() { l.discarded = true }

// Discarded reports whether the list was abandoned.
func (l *NullCommandList) Discarded() bool { return l.discarded }
