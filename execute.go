// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"fmt"
)

// FrameStats summarizes an executed frame.
type FrameStats struct {
	Frame      uint64
	Passes     int
	Culled     int
	Batches    int
	Barriers   int
	Semaphores int

	// Heaps and HeapBytes describe the heap pool after the frame.
	Heaps     int
	HeapBytes uint64
	// PeakBytes is the transient memory the frame placed; UnaliasedBytes is
	// what it would have needed without aliasing.
	PeakBytes      uint64
	UnaliasedBytes uint64

	PoolHits   uint64
	PoolMisses uint64
}

func (s *FrameStats) String() string {
	return fmt.Sprintf("frame %d: %d passes (%d culled), %d batches, %d barriers, %d semaphores, "+
		"%d heaps (%d bytes), peak %d of %d bytes, pool %d hits %d misses",
		s.Frame, s.Passes, s.Culled, s.Batches, s.Barriers, s.Semaphores,
		s.Heaps, s.HeapBytes, s.PeakBytes, s.UnaliasedBytes, s.PoolHits, s.PoolMisses)
}

// execution is the state of one Execute call.
type execution struct {
	g    *Graph
	plan *Plan
	// pos is the step being recorded.
	pos   int
	lists []CommandList
	ret   retiredFrame
}

// Execute compiles the current frame if needed, allocates its transient
// resources, records every pass and submits the work. Imported resources'
// state records are updated on success. Afterwards every handle of the
// frame is expired and the next frame can be built.
//
// On error nothing is submitted and the frame is reset; the frame number
// does not advance.
func (g *Graph) Execute() (*FrameStats, error) {
	plan, err := g.Compile()
	if err != nil {
		return nil, err
	}
	if err := g.waitForSlot(); err != nil {
		g.Reset()
		return nil, err
	}
	g.releaseRetired()
	g.heaps.evict(g.frame, g.completed, g.opts.retainFrames, g.log)
	hits, misses := g.heaps.hits, g.heaps.misses

	ex := &execution{g: g, plan: plan, ret: retiredFrame{frame: g.frame}}
	if err := ex.materialize(); err != nil {
		return nil, ex.abort(err)
	}
	subs, err := ex.record()
	if err != nil {
		return nil, ex.abort(err)
	}
	if err := g.dev.Submit(g.frame, subs); err != nil {
		return nil, ex.abort(deviceErr("", err))
	}

	ex.commitStates()
	g.retired = append(g.retired, ex.ret)
	g.heaps.endFrame()

	stats := &FrameStats{
		Frame:          g.frame,
		Passes:         len(plan.Steps),
		Culled:         len(plan.Culled),
		Batches:        len(plan.Batches),
		Barriers:       plan.BarrierCount(),
		PeakBytes:      plan.PeakBytes,
		UnaliasedBytes: plan.UnaliasedBytes,
		PoolHits:       g.heaps.hits - hits,
		PoolMisses:     g.heaps.misses - misses,
	}
	for i := range plan.Batches {
		stats.Semaphores += len(plan.Batches[i].Wait)
	}
	stats.Heaps, stats.HeapBytes = g.heaps.bytes()

	g.log.Debug("rendergraph: executed frame",
		"frame", stats.Frame,
		"passes", stats.Passes,
		"batches", stats.Batches,
		"barriers", stats.Barriers,
		"semaphores", stats.Semaphores,
		"heaps", stats.Heaps,
		"poolHits", stats.PoolHits,
		"poolMisses", stats.PoolMisses)

	g.frame++
	g.Reset()
	return stats, nil
}

// materialize places the transient resources in pooled heaps and creates
// the views the live passes use.
func (ex *execution) materialize() error {
	g, life := ex.g, ex.plan.life
	a := &g.arena

	heaps := make([]*heapEntry, len(life.slots))
	for si, s := range life.slots {
		host := false
		for _, r := range life.members[si] {
			if r.kind == ResourceBuffer && a.buffers[r.index].desc.HostVisible {
				host = true
			}
		}
		e, err := g.heaps.acquire(HeapDescription{
			Label:       fmt.Sprintf("%sheap %d", g.opts.labelPrefix, si),
			Size:        s.Size,
			Alignment:   s.Alignment,
			Key:         s.Key,
			HostVisible: host,
		}, g.frame, g.completed, g.log)
		if err != nil {
			return deviceErr("", err)
		}
		heaps[si] = e
	}

	for i := range a.images {
		img := &a.images[i]
		si := life.imageSlot[i]
		if img.imported || si < 0 {
			continue
		}
		desc := img.desc
		desc.Label = g.opts.labelPrefix + desc.Label
		desc.Usage |= img.usage
		id, err := g.dev.CreateImage(&desc, heaps[si].id, 0)
		if err != nil {
			return resourceErr(a.imageName(i), err)
		}
		img.id = id
		ex.ret.images = append(ex.ret.images, id)
	}
	for i := range a.buffers {
		buf := &a.buffers[i]
		si := life.bufferSlot[i]
		if buf.imported || si < 0 {
			continue
		}
		desc := buf.desc
		desc.Label = g.opts.labelPrefix + desc.Label
		desc.Usage |= buf.usage
		id, err := g.dev.CreateBuffer(&desc, heaps[si].id, 0)
		if err != nil {
			return resourceErr(a.bufferName(i), err)
		}
		buf.id = id
		ex.ret.buffers = append(ex.ret.buffers, id)
	}

	for si := range ex.plan.Steps {
		ps := &a.passes[ex.plan.Steps[si].pass]
		for _, u := range ps.uses {
			if err := ex.createView(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ex *execution) createView(u resolvedUsage) error {
	g := ex.g
	a := &g.arena
	if u.kind == ResourceImage {
		v := &a.imageViews[u.view]
		if v.id != InvalidID {
			return nil
		}
		desc := v.desc
		desc.Label = g.opts.labelPrefix + desc.Label
		id, err := g.dev.CreateImageView(a.images[v.image].id, &desc)
		if err != nil {
			return resourceErr(a.imageName(v.image), err)
		}
		v.id = id
		ex.ret.imageViews = append(ex.ret.imageViews, id)
		return nil
	}
	v := &a.bufferViews[u.view]
	if v.id != InvalidID {
		return nil
	}
	desc := v.desc
	desc.Label = g.opts.labelPrefix + desc.Label
	id, err := g.dev.CreateBufferView(a.buffers[v.buffer].id, &desc)
	if err != nil {
		return resourceErr(a.bufferName(v.buffer), err)
	}
	v.id = id
	ex.ret.bufferViews = append(ex.ret.bufferViews, id)
	return nil
}

func resourceErr(resource string, err error) error {
	ge := deviceErr("", err).(*GraphError)
	ge.Resource = resource
	return ge
}

// record records one command list per batch.
func (ex *execution) record() ([]Submission, error) {
	g, plan := ex.g, ex.plan
	subs := make([]Submission, len(plan.Batches))
	for bi := range plan.Batches {
		b := &plan.Batches[bi]
		cl, err := g.dev.BeginCommandList(b.Slot, fmt.Sprintf("%sframe %d batch %d", g.opts.labelPrefix, g.frame, bi))
		if err != nil {
			return nil, deviceErr("", err)
		}
		ex.lists = append(ex.lists, cl)
		ex.barriers(cl, b.Prologue)
		for _, si := range b.Steps {
			if err := ex.run(cl, si); err != nil {
				return nil, err
			}
		}
		if err := cl.End(); err != nil {
			return nil, deviceErr("", err)
		}
		subs[bi] = Submission{Slot: b.Slot, Lists: []CommandList{cl}, Wait: b.Wait, Signal: b.Signal}
	}
	return subs, nil
}

// run records one pass: its barriers, its commands and any chain steps it
// did not advance itself.
func (ex *execution) run(cl CommandList, si int) error {
	g := ex.g
	st := &ex.plan.Steps[si]
	ps := &g.arena.passes[st.pass]
	ex.pos = si

	ex.barriers(cl, st.Pre)
	reg := &Registry{ex: ex, step: st, pass: ps, list: cl, live: true}
	err := ps.recorder.Record(cl, reg)
	reg.live = false
	ex.unmapAll(ps)

	if err != nil {
		var ge *GraphError
		if errors.As(err, &ge) {
			return err
		}
		return &GraphError{Kind: KindRecord, Pass: ps.name, Err: err}
	}
	if reg.err != nil {
		return reg.err
	}
	if reg.chain < len(st.Chain) {
		g.log.Warn("rendergraph: pass did not advance its chain",
			"pass", ps.name, "advanced", reg.chain, "steps", len(st.Chain))
		for ; reg.chain < len(st.Chain); reg.chain++ {
			ex.barriers(cl, st.Chain[reg.chain])
		}
	}
	ex.barriers(cl, st.Post)
	return nil
}

// unmapAll unmaps buffers a pass left mapped.
func (ex *execution) unmapAll(ps *pass) {
	a := &ex.g.arena
	for _, u := range ps.uses {
		if u.kind != ResourceBuffer {
			continue
		}
		buf := &a.buffers[u.res]
		if !buf.mapped {
			continue
		}
		buf.mapped = false
		if err := ex.g.dev.UnmapBuffer(buf.id); err != nil {
			ex.g.log.Warn("rendergraph: unmap failed", "pass", ps.name, "buffer", a.bufferName(u.res), "err", err)
		}
	}
}

// barriers records bs with device ids filled in.
func (ex *execution) barriers(cl CommandList, bs []Barrier) {
	if len(bs) == 0 {
		return
	}
	a := &ex.g.arena
	out := make([]Barrier, len(bs))
	for i, b := range bs {
		if b.Type == ResourceImage {
			b.ImageID = a.images[b.Image.h.index].id
		} else {
			b.BufferID = a.buffers[b.Buffer.h.index].id
		}
		out[i] = b
	}
	cl.Barrier(out)
}

// commitStates writes the end-of-frame state of imported resources.
func (ex *execution) commitStates() {
	a := &ex.g.arena
	for _, rec := range ex.plan.records {
		var dst *ResourceStateData
		if rec.ref.kind == ResourceImage {
			dst = a.images[rec.ref.index].state
		} else {
			dst = a.buffers[rec.ref.index].state
		}
		if dst == nil {
			continue
		}
		dst.Size = rec.size
		dst.Ranges = append(dst.Ranges[:0], rec.ranges...)
	}
}

// abort releases everything a failed frame created and resets the frame.
func (ex *execution) abort(err error) error {
	g := ex.g
	for _, cl := range ex.lists {
		cl.Discard()
	}
	ex.ret.destroy(g.dev)
	g.heaps.unclaim()
	g.log.Warn("rendergraph: frame failed", "frame", g.frame, "err", err)
	g.Reset()
	return err
}
