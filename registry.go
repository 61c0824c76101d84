// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BufferInfo locates a buffer view in device memory.
type BufferInfo struct {
	ID     BufferID
	Offset uint64
	Size   uint64
}

// Registry resolves the handles of a pass to device objects while the pass
// records. It is only valid during Recorder.Record; later calls fail with
// ErrRegistryExpired.
//
// Lookups of resources the pass did not declare fail with ErrUndeclared.
// Failed lookups return zero values and record the error, which fails the
// frame even if the recorder ignores it.
type Registry struct {
	ex    *execution
	step  *Step
	pass  *pass
	list  CommandList
	chain int
	live  bool
	err   error
}

// Pass returns the name of the recording pass.
func (r *Registry) Pass() string { return r.pass.name }

// Queue returns the queue type of the recording pass.
func (r *Registry) Queue() QueueType { return r.pass.queue }

// Frame returns the number of the frame being recorded.
func (r *Registry) Frame() uint64 { return r.ex.g.frame }

// Err returns the first lookup error of the pass.
func (r *Registry) Err() error { return r.err }

func (r *Registry) fail(resource string, err error) {
	if r.err == nil {
		r.err = configErr(r.pass.name, resource, err)
	}
}

func (r *Registry) usable(resource string) bool {
	if !r.live {
		r.fail(resource, ErrRegistryExpired)
		return false
	}
	return true
}

func (r *Registry) declares(kind ResourceType, res int) bool {
	for i := range r.pass.uses {
		if u := &r.pass.uses[i]; u.kind == kind && u.res == res {
			return true
		}
	}
	return false
}

func (r *Registry) declaresView(kind ResourceType, view int) bool {
	for i := range r.pass.uses {
		if u := &r.pass.uses[i]; u.kind == kind && u.view == view {
			return true
		}
	}
	return false
}

func (r *Registry) image(h ImageHandle) (*imageRes, bool) {
	if !r.usable(h.String()) {
		return nil, false
	}
	a := &r.ex.g.arena
	img, err := a.image(h)
	if err != nil {
		r.fail(h.String(), err)
		return nil, false
	}
	if !r.declares(ResourceImage, int(h.h.index)) {
		r.fail(a.imageName(int(h.h.index)), ErrUndeclared)
		return nil, false
	}
	return img, true
}

func (r *Registry) buffer(h BufferHandle) (*bufferRes, bool) {
	if !r.usable(h.String()) {
		return nil, false
	}
	a := &r.ex.g.arena
	buf, err := a.buffer(h)
	if err != nil {
		r.fail(h.String(), err)
		return nil, false
	}
	if !r.declares(ResourceBuffer, int(h.h.index)) {
		r.fail(a.bufferName(int(h.h.index)), ErrUndeclared)
		return nil, false
	}
	return buf, true
}

func (r *Registry) imageView(h ImageViewHandle) (*imageViewRes, bool) {
	if !r.usable(h.String()) {
		return nil, false
	}
	v, err := r.ex.g.arena.imageView(h)
	if err != nil {
		r.fail(h.String(), err)
		return nil, false
	}
	if !r.declaresView(ResourceImage, int(h.h.index)) {
		r.fail(h.String(), ErrUndeclared)
		return nil, false
	}
	return v, true
}

func (r *Registry) bufferView(h BufferViewHandle) (*bufferViewRes, bool) {
	if !r.usable(h.String()) {
		return nil, false
	}
	v, err := r.ex.g.arena.bufferView(h)
	if err != nil {
		r.fail(h.String(), err)
		return nil, false
	}
	if !r.declaresView(ResourceBuffer, int(h.h.index)) {
		r.fail(h.String(), ErrUndeclared)
		return nil, false
	}
	return v, true
}

// Image returns the device image behind h.
func (r *Registry) Image(h ImageHandle) ImageID {
	img, ok := r.image(h)
	if !ok {
		return InvalidID
	}
	return img.id
}

// ImageView returns the device view behind h.
func (r *Registry) ImageView(h ImageViewHandle) ImageViewID {
	v, ok := r.imageView(h)
	if !ok {
		return InvalidID
	}
	return v.id
}

// Buffer returns the device buffer behind h.
func (r *Registry) Buffer(h BufferHandle) BufferID {
	buf, ok := r.buffer(h)
	if !ok {
		return InvalidID
	}
	return buf.id
}

// BufferView returns the device view behind h.
func (r *Registry) BufferView(h BufferViewHandle) BufferViewID {
	v, ok := r.bufferView(h)
	if !ok {
		return InvalidID
	}
	return v.id
}

// BufferInfo returns the buffer and byte range of h.
func (r *Registry) BufferInfo(h BufferViewHandle) BufferInfo {
	v, ok := r.bufferView(h)
	if !ok {
		return BufferInfo{}
	}
	return BufferInfo{
		ID:     r.ex.g.arena.buffers[v.buffer].id,
		Offset: v.rng.Offset,
		Size:   v.rng.Size,
	}
}

// Map returns host memory for a host-visible buffer. The memory stays
// valid until Unmap or the end of the pass.
func (r *Registry) Map(h BufferHandle) ([]byte, error) {
	buf, ok := r.buffer(h)
	if !ok {
		return nil, r.err
	}
	if !buf.desc.HostVisible {
		err := configErrf(r.pass.name, r.ex.g.arena.bufferName(int(h.h.index)), ErrNotHostVisible, "cannot map")
		if r.err == nil {
			r.err = err
		}
		return nil, err
	}
	data, err := r.ex.g.dev.MapBuffer(buf.id, 0, buf.desc.Size)
	if err != nil {
		return nil, deviceErr(r.pass.name, err)
	}
	buf.mapped = true
	return data, nil
}

// Unmap publishes the writes made through Map.
func (r *Registry) Unmap(h BufferHandle) error {
	buf, ok := r.buffer(h)
	if !ok {
		return r.err
	}
	if !buf.mapped {
		return nil
	}
	buf.mapped = false
	if err := r.ex.g.dev.UnmapBuffer(buf.id); err != nil {
		return deviceErr(r.pass.name, err)
	}
	return nil
}

// LoadOp returns the load operation for a render attachment: clear when
// the image asked to be cleared and this pass is its first user in the
// frame, load otherwise.
func (r *Registry) LoadOp(h ImageViewHandle) gputypes.LoadOp {
	v, ok := r.imageView(h)
	if !ok {
		return gputypes.LoadOpLoad
	}
	img := &r.ex.g.arena.images[v.image]
	if img.desc.Clear && r.ex.plan.life.images[v.image].first == r.ex.pos {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

// ClearValue returns the clear color of the image behind h.
func (r *Registry) ClearValue(h ImageViewHandle) gputypes.Color {
	v, ok := r.imageView(h)
	if !ok {
		return gputypes.Color{}
	}
	return r.ex.g.arena.images[v.image].desc.ClearValue
}

// AdvanceChain records the barriers of the pass's next chain step. It
// returns false when every step has been recorded.
func (r *Registry) AdvanceChain() bool {
	if !r.usable(fmt.Sprintf("chain of %q", r.pass.name)) {
		return false
	}
	if r.chain >= len(r.step.Chain) {
		return false
	}
	r.ex.barriers(r.list, r.step.Chain[r.chain])
	r.chain++
	return true
}

// ChainSteps returns the number of chain steps after the first.
func (r *Registry) ChainSteps() int { return len(r.step.Chain) }
