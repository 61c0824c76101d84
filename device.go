// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "fmt"

// Device object identifiers. They are opaque to the graph; 0 is invalid.
type (
	ImageID      uint64
	ImageViewID  uint64
	BufferID     uint64
	BufferViewID uint64
	HeapID       uint64
)

// InvalidID is the zero identifier, never returned for a live object.
const InvalidID = 0

// QueueFamilyIgnored marks a barrier that does not transfer queue ownership.
const QueueFamilyIgnored = ^uint32(0)

// MemoryRequirements describes the memory a resource needs.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	// Key identifies the memory type. Resources with different keys never
	// share a heap.
	Key string
}

// HeapDescription describes a block of device memory.
type HeapDescription struct {
	Label       string
	Size        uint64
	Alignment   uint64
	Key         string
	HostVisible bool
}

// QueueSlot names a physical queue.
type QueueSlot struct {
	Family uint32
	Index  uint32
}

func (s QueueSlot) String() string { return fmt.Sprintf("queue %d.%d", s.Family, s.Index) }

// BarrierKind tells why a barrier exists.
type BarrierKind uint8

const (
	// BarrierInitial is the first transition of a resource in a frame.
	BarrierInitial BarrierKind = iota
	// BarrierTransition separates two passes on one queue.
	BarrierTransition
	// BarrierChain separates two chain steps inside one pass.
	BarrierChain
	// BarrierAliasing hands memory over from the resources that used it
	// earlier in the frame.
	BarrierAliasing
	// BarrierRelease gives up queue family ownership.
	BarrierRelease
	// BarrierAcquire takes queue family ownership.
	BarrierAcquire
)

func (k BarrierKind) String() string {
	switch k {
	case BarrierInitial:
		return "initial"
	case BarrierTransition:
		return "transition"
	case BarrierChain:
		return "chain"
	case BarrierAliasing:
		return "aliasing"
	case BarrierRelease:
		return "release"
	case BarrierAcquire:
		return "acquire"
	default:
		return fmt.Sprintf("BarrierKind(%d)", uint8(k))
	}
}

// BarrierScope is one side of a barrier.
type BarrierScope struct {
	State  State
	Stage  Stage
	Access Access
	Layout Layout
	Family uint32
}

// Barrier is one synchronization command. Image and Buffer name the logical
// resource; ImageID and BufferID are filled in when the barrier is recorded.
type Barrier struct {
	Kind     BarrierKind
	Type     ResourceType
	Image    ImageHandle
	Buffer   BufferHandle
	ImageID  ImageID
	BufferID BufferID
	Range    ImageRange
	Bytes    BufferRange
	Src, Dst BarrierScope
}

// TransfersOwnership reports whether b moves a resource between queue
// families.
func (b *Barrier) TransfersOwnership() bool {
	return b.Src.Family != QueueFamilyIgnored && b.Dst.Family != QueueFamilyIgnored && b.Src.Family != b.Dst.Family
}

// CommandList records commands for one queue.
type CommandList interface {
	// Slot returns the queue the list will be submitted to.
	Slot() QueueSlot
	// Barrier records synchronization commands.
	Barrier(barriers []Barrier)
	// End finishes recording.
	End() error
	// Discard abandons the list without submitting it.
	Discard()
}

// SemaphoreWait makes a submission wait for an earlier one.
type SemaphoreWait struct {
	// Submission is the index of the signalling submission in the same
	// Submit call.
	Submission int
	// Stage is where the waiting submission blocks.
	Stage Stage
}

// Submission is one batch of command lists for one queue.
type Submission struct {
	Slot  QueueSlot
	Lists []CommandList
	Wait  []SemaphoreWait
	// Signal is set when a later submission waits for this one.
	Signal bool
}

// Device is the GPU abstraction the graph drives. Implementations must be
// safe for concurrent use.
type Device interface {
	// ImageRequirements and BufferRequirements report the memory a resource
	// created from the description would need.
	ImageRequirements(desc *ImageDescription) MemoryRequirements
	BufferRequirements(desc *BufferDescription) MemoryRequirements

	CreateHeap(desc *HeapDescription) (HeapID, error)
	DestroyHeap(id HeapID)

	// CreateImage places an image at offset in heap.
	CreateImage(desc *ImageDescription, heap HeapID, offset uint64) (ImageID, error)
	DestroyImage(id ImageID)
	// CreateImageView creates a view; desc.Image is ignored in favour of
	// image and all defaults are already resolved.
	CreateImageView(image ImageID, desc *ImageViewDescription) (ImageViewID, error)
	DestroyImageView(id ImageViewID)

	// CreateBuffer places a buffer at offset in heap.
	CreateBuffer(desc *BufferDescription, heap HeapID, offset uint64) (BufferID, error)
	DestroyBuffer(id BufferID)
	CreateBufferView(buffer BufferID, desc *BufferViewDescription) (BufferViewID, error)
	DestroyBufferView(id BufferViewID)

	// MapBuffer returns host memory for a host-visible buffer range.
	// Writes become visible to the device after UnmapBuffer.
	MapBuffer(id BufferID, offset, size uint64) ([]byte, error)
	UnmapBuffer(id BufferID) error

	// QueueSlot returns the queue passes of type q run on.
	QueueSlot(q QueueType) QueueSlot
	BeginCommandList(slot QueueSlot, label string) (CommandList, error)
	// Submit submits the frame's batches in order.
	Submit(frame uint64, subs []Submission) error
	// WaitFrame blocks until the device finished all work of frame.
	WaitFrame(frame uint64) error
	WaitIdle() error
}
