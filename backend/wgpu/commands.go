// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/wgpu/hal"
)

// frameWork is the GPU work of one submitted frame.
type frameWork struct {
	fence hal.Fence
	cmds  []hal.CommandBuffer
}

// CommandList records into a hal command encoder.
type CommandList struct {
	dev     *Device
	encoder hal.CommandEncoder
	label   string
	cmd     hal.CommandBuffer

	ended     bool
	discarded bool
}

// Encoder returns the hal encoder of a command list created by a Device.
// Recorders use it to begin render and compute passes.
func Encoder(cl rendergraph.CommandList) (hal.CommandEncoder, bool) {
	l, ok := cl.(*CommandList)
	if !ok || l.ended || l.discarded {
		return nil, false
	}
	return l.encoder, true
}

// Slot implements rendergraph.CommandList.
func (l *CommandList) Slot() rendergraph.QueueSlot { return rendergraph.QueueSlot{} }

// Barrier implements rendergraph.CommandList. Image barriers become
// texture usage transitions.
func (l *CommandList) Barrier(barriers []rendergraph.Barrier) {
	textures := make([]hal.TextureBarrier, 0, len(barriers))
	nbuf := 0
	l.dev.mu.Lock()
	for i := range barriers {
		b := &barriers[i]
		if b.Type != rendergraph.ResourceImage {
			nbuf++
			continue
		}
		img, ok := l.dev.images[b.ImageID]
		if !ok {
			continue
		}
		textures = append(textures, hal.TextureBarrier{
			Texture: img.tex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: b.Src.State.TextureUsage(),
				NewUsage: b.Dst.State.TextureUsage(),
			},
		})
	}
	l.dev.stats.TextureBarriers += len(textures)
	l.dev.stats.BufferBarriers += nbuf
	l.dev.mu.Unlock()

	if len(textures) > 0 {
		l.encoder.TransitionTextures(textures)
	}
}

// End implements rendergraph.CommandList.
func (l *CommandList) End() error {
	if l.ended || l.discarded {
		return fmt.Errorf("wgpu: list %q already finished", l.label)
	}
	cmd, err := l.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding %q: %w", l.label, err)
	}
	l.cmd = cmd
	l.ended = true
	return nil
}

// Discard implements rendergraph.CommandList.
func (l *CommandList) Discard() {
	switch {
	case l.discarded:
	case l.ended:
		l.dev.device.FreeCommandBuffer(l.cmd)
		l.cmd = nil
	default:
		l.encoder.DiscardEncoding()
	}
	l.discarded = true
}

// QueueSlot implements rendergraph.Device. hal has one queue.
func (d *Device) QueueSlot(rendergraph.QueueType) rendergraph.QueueSlot {
	return rendergraph.QueueSlot{}
}

// BeginCommandList implements rendergraph.Device.
func (d *Device) BeginCommandList(slot rendergraph.QueueSlot, label string) (rendergraph.CommandList, error) {
	if slot != (rendergraph.QueueSlot{}) {
		return nil, fmt.Errorf("wgpu: no queue %v", slot)
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding %q: %w", label, err)
	}
	return &CommandList{dev: d, encoder: encoder, label: label}, nil
}

// Submit implements rendergraph.Device. The batches go to the queue in one
// submission, in order, followed by a fence WaitFrame waits on.
func (d *Device) Submit(frame uint64, subs []rendergraph.Submission) error {
	var cmds []hal.CommandBuffer
	for i, s := range subs {
		for _, w := range s.Wait {
			if w.Submission < 0 || w.Submission >= i {
				return fmt.Errorf("wgpu: submission %d waits for %d", i, w.Submission)
			}
		}
		for _, cl := range s.Lists {
			l, ok := cl.(*CommandList)
			if !ok || l.dev != d {
				return fmt.Errorf("wgpu: submission %d holds a foreign command list", i)
			}
			if !l.ended || l.discarded {
				return fmt.Errorf("wgpu: submission %d holds unfinished list %q", i, l.label)
			}
			cmds = append(cmds, l.cmd)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if frame <= d.submitted {
		return fmt.Errorf("wgpu: frame %d submitted after frame %d", frame, d.submitted)
	}
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	if err := d.queue.Submit(cmds, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		return fmt.Errorf("wgpu: submit frame %d: %w", frame, err)
	}
	d.inFlight[frame] = &frameWork{fence: fence, cmds: cmds}
	d.submitted = frame
	d.stats.Submits++
	d.stats.CommandBuffers += len(cmds)
	return nil
}

// release frees the hal objects of finished work. Callers hold d.mu.
func (d *Device) release(w *frameWork) {
	for _, c := range w.cmds {
		d.device.FreeCommandBuffer(c)
	}
	d.device.DestroyFence(w.fence)
}

// WaitFrame implements rendergraph.Device. It waits for frame and every
// earlier frame still in flight.
func (d *Device) WaitFrame(frame uint64) error {
	d.mu.Lock()
	if frame > d.submitted {
		d.mu.Unlock()
		return fmt.Errorf("wgpu: frame %d was not submitted", frame)
	}
	var pending []uint64
	for f := range d.inFlight {
		if f <= frame {
			pending = append(pending, f)
		}
	}
	timeout := d.waitTimeout
	d.mu.Unlock()

	for _, f := range pending {
		d.mu.Lock()
		w, ok := d.inFlight[f]
		d.mu.Unlock()
		if !ok {
			continue
		}
		done, err := d.device.Wait(w.fence, 1, timeout)
		if err != nil {
			return fmt.Errorf("wgpu: wait for frame %d: %w", f, err)
		}
		if !done {
			return fmt.Errorf("%w: frame %d after %v", ErrTimeout, f, timeout)
		}
		d.mu.Lock()
		if w, ok := d.inFlight[f]; ok {
			d.release(w)
			delete(d.inFlight, f)
		}
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.completed = max(d.completed, frame)
	d.mu.Unlock()
	return nil
}

// WaitIdle implements rendergraph.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	last := d.submitted
	d.mu.Unlock()
	if last == 0 {
		return nil
	}
	return d.WaitFrame(last)
}
