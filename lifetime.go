// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"

	"github.com/gogpu/rendergraph/internal/alias"
)

// interval is an inclusive range of schedule positions; first is -1 for
// resources no live pass touches.
type interval struct {
	first, last int
}

// resourceRef names an image or buffer of the arena.
type resourceRef struct {
	kind  ResourceType
	index int
}

// lifetimes is the output of the lifetime and aliasing allocator.
type lifetimes struct {
	images  []interval
	buffers []interval

	imageReqs  []MemoryRequirements
	bufferReqs []MemoryRequirements

	// imageSlot and bufferSlot give the memory slot of each transient
	// resource, or -1.
	imageSlot  []int
	bufferSlot []int
	// prev lists the resources that used a slot before the keyed one.
	prev map[resourceRef][]resourceRef

	slots     []alias.Slot
	members   [][]resourceRef
	peak      uint64
	unaliased uint64
}

func (l *lifetimes) interval(r resourceRef) interval {
	if r.kind == ResourceImage {
		return l.images[r.index]
	}
	return l.buffers[r.index]
}

// planLifetimes computes liveness intervals over the schedule, derives usage
// flags, and assigns memory slots to transient resources.
func (g *Graph) planLifetimes(s *schedule) (*lifetimes, error) {
	a := &g.arena
	l := &lifetimes{
		images:     make([]interval, len(a.images)),
		buffers:    make([]interval, len(a.buffers)),
		imageReqs:  make([]MemoryRequirements, len(a.images)),
		bufferReqs: make([]MemoryRequirements, len(a.buffers)),
		imageSlot:  make([]int, len(a.images)),
		bufferSlot: make([]int, len(a.buffers)),
		prev:       make(map[resourceRef][]resourceRef),
	}
	for i := range l.images {
		l.images[i] = interval{-1, -1}
		l.imageSlot[i] = -1
	}
	for i := range l.buffers {
		l.buffers[i] = interval{-1, -1}
		l.bufferSlot[i] = -1
	}

	touch := func(iv *interval, pos int) {
		if iv.first < 0 {
			iv.first = pos
		}
		iv.last = pos
	}
	for pos, p := range s.order {
		for _, u := range a.passes[p].uses {
			if u.kind == ResourceImage {
				touch(&l.images[u.res], pos)
				img := &a.images[u.res]
				img.usage |= u.state.TextureUsage()
				if u.exit != nil {
					img.usage |= u.exit.State.TextureUsage()
				}
			} else {
				touch(&l.buffers[u.res], pos)
				buf := &a.buffers[u.res]
				buf.usage |= u.state.BufferUsage()
				if u.exit != nil {
					buf.usage |= u.exit.State.BufferUsage()
				}
			}
		}
	}

	var reqs []alias.Request
	var refs []resourceRef
	for i := range a.images {
		img := &a.images[i]
		if img.imported || l.images[i].first < 0 {
			continue
		}
		desc := img.desc
		desc.Usage |= img.usage
		req := g.dev.ImageRequirements(&desc)
		l.imageReqs[i] = req
		reqs = append(reqs, alias.Request{
			ID:        len(refs),
			Key:       req.Key,
			Size:      req.Size,
			Alignment: req.Alignment,
			First:     l.images[i].first,
			Last:      l.images[i].last,
			Dedicated: desc.NonAliasable,
		})
		refs = append(refs, resourceRef{ResourceImage, i})
	}
	for i := range a.buffers {
		buf := &a.buffers[i]
		if buf.imported || l.buffers[i].first < 0 {
			continue
		}
		desc := buf.desc
		desc.Usage |= buf.usage
		req := g.dev.BufferRequirements(&desc)
		l.bufferReqs[i] = req
		reqs = append(reqs, alias.Request{
			ID:        len(refs),
			Key:       req.Key,
			Size:      req.Size,
			Alignment: req.Alignment,
			First:     l.buffers[i].first,
			Last:      l.buffers[i].last,
			Dedicated: desc.NonAliasable || desc.HostVisible,
		})
		refs = append(refs, resourceRef{ResourceBuffer, i})
	}

	res, err := alias.Assign(reqs, g.opts.aliasing)
	if err != nil {
		return nil, &GraphError{Kind: KindDevice, Err: fmt.Errorf("%w: %w", ErrDevice, err)}
	}
	l.slots = res.Slots
	l.peak = res.Peak
	l.unaliased = res.Unaliased
	l.members = make([][]resourceRef, len(res.Slots))
	for si, slot := range res.Slots {
		for _, id := range slot.Members {
			l.members[si] = append(l.members[si], refs[id])
		}
	}
	for id, ref := range refs {
		as := res.Assignments[id]
		if ref.kind == ResourceImage {
			l.imageSlot[ref.index] = as.Slot
		} else {
			l.bufferSlot[ref.index] = as.Slot
		}
		if len(as.Prev) > 0 {
			prev := make([]resourceRef, len(as.Prev))
			for i, pid := range as.Prev {
				prev[i] = refs[pid]
			}
			l.prev[ref] = prev
		}
	}
	return l, nil
}
