// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import "log/slog"

// heapEntry is one device heap owned by the pool.
type heapEntry struct {
	id   HeapID
	desc HeapDescription
	// lastUsed is the last frame that placed resources in the heap.
	lastUsed uint64
	// prevUsed is lastUsed before the current frame claimed the heap.
	prevUsed uint64
	inUse    bool
}

// heapPool recycles device heaps across frames. A heap becomes available
// again once the device finished the last frame that used it.
type heapPool struct {
	dev     Device
	entries []*heapEntry

	hits, misses, evictions uint64
}

// acquire returns a heap for desc. It prefers the smallest idle heap of the
// same kind that is at least as large and at most twice as large. When the
// device refuses a new heap, idle heaps are released and creation is
// retried once.
func (p *heapPool) acquire(desc HeapDescription, frame, completed uint64, log *slog.Logger) (*heapEntry, error) {
	var best *heapEntry
	for _, e := range p.entries {
		if !p.idle(e, completed) || e.desc.Key != desc.Key || e.desc.HostVisible != desc.HostVisible {
			continue
		}
		if e.desc.Size < desc.Size || e.desc.Size > 2*desc.Size || e.desc.Alignment < desc.Alignment {
			continue
		}
		if best == nil || e.desc.Size < best.desc.Size {
			best = e
		}
	}
	if best != nil {
		best.inUse = true
		best.prevUsed, best.lastUsed = best.lastUsed, frame
		p.hits++
		return best, nil
	}

	p.misses++
	id, err := p.dev.CreateHeap(&desc)
	if err != nil {
		n := p.releaseIdle(completed)
		if n == 0 {
			return nil, err
		}
		log.Warn("rendergraph: heap allocation failed, released idle heaps",
			"label", desc.Label, "size", desc.Size, "released", n, "err", err)
		id, err = p.dev.CreateHeap(&desc)
		if err != nil {
			return nil, err
		}
	}
	e := &heapEntry{id: id, desc: desc, lastUsed: frame, inUse: true}
	p.entries = append(p.entries, e)
	return e, nil
}

func (p *heapPool) idle(e *heapEntry, completed uint64) bool {
	return !e.inUse && e.lastUsed <= completed
}

// endFrame returns the heaps claimed by the current frame to the pool.
func (p *heapPool) endFrame() {
	for _, e := range p.entries {
		e.inUse = false
	}
}

// evict destroys heaps that have been idle for more than retain frames.
func (p *heapPool) evict(frame, completed, retain uint64, log *slog.Logger) {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if p.idle(e, completed) && frame-e.lastUsed > retain {
			log.Debug("rendergraph: evicting idle heap",
				"label", e.desc.Label, "size", e.desc.Size, "lastUsed", e.lastUsed)
			p.dev.DestroyHeap(e.id)
			p.evictions++
			continue
		}
		kept = append(kept, e)
	}
	clear(p.entries[len(kept):])
	p.entries = kept
}

// releaseIdle destroys every idle heap and returns how many it destroyed.
func (p *heapPool) releaseIdle(completed uint64) int {
	kept := p.entries[:0]
	n := 0
	for _, e := range p.entries {
		if p.idle(e, completed) {
			p.dev.DestroyHeap(e.id)
			n++
			continue
		}
		kept = append(kept, e)
	}
	clear(p.entries[len(kept):])
	p.entries = kept
	return n
}

// unclaim returns the heaps of a frame that was never submitted.
func (p *heapPool) unclaim() {
	for _, e := range p.entries {
		if e.inUse {
			e.inUse = false
			e.lastUsed = e.prevUsed
		}
	}
}

func (p *heapPool) destroyAll() {
	for _, e := range p.entries {
		p.dev.DestroyHeap(e.id)
	}
	p.entries = nil
}

// bytes returns the number of heaps and their total size.
func (p *heapPool) bytes() (int, uint64) {
	var total uint64
	for _, e := range p.entries {
		total += e.desc.Size
	}
	return len(p.entries), total
}

// retiredFrame holds the device objects created for a frame. They are
// destroyed once the device finished the frame.
type retiredFrame struct {
	frame       uint64
	images      []ImageID
	imageViews  []ImageViewID
	buffers     []BufferID
	bufferViews []BufferViewID
}

func (r *retiredFrame) destroy(dev Device) {
	for _, id := range r.bufferViews {
		dev.DestroyBufferView(id)
	}
	for _, id := range r.imageViews {
		dev.DestroyImageView(id)
	}
	for _, id := range r.buffers {
		dev.DestroyBuffer(id)
	}
	for _, id := range r.images {
		dev.DestroyImage(id)
	}
}

// releaseRetired destroys the objects of every completed frame.
func (g *Graph) releaseRetired() {
	kept := g.retired[:0]
	for i := range g.retired {
		r := &g.retired[i]
		if r.frame <= g.completed {
			r.destroy(g.dev)
			continue
		}
		kept = append(kept, *r)
	}
	clear(g.retired[len(kept):])
	g.retired = kept
}

// waitForSlot blocks until the frame framesInFlight frames back finished,
// so at most framesInFlight frames are queued on the device.
func (g *Graph) waitForSlot() error {
	n := uint64(g.opts.framesInFlight)
	if g.frame <= n {
		return nil
	}
	target := g.frame - n
	if target <= g.completed {
		return nil
	}
	if err := g.dev.WaitFrame(target); err != nil {
		return deviceErr("", err)
	}
	g.completed = target
	return nil
}
