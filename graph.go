// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"
	"log/slog"
)

// Graph builds and executes one frame at a time.
//
// A Graph is not safe for concurrent use: passes are added from one
// goroutine, and Execute runs on that goroutine too.
type Graph struct {
	dev   Device
	opts  options
	log   *slog.Logger
	arena arena

	// frame is the number of the frame being built; frames start at 1.
	frame uint64
	// completed is the newest frame the device finished.
	completed uint64

	err  error
	plan *Plan

	heaps   heapPool
	retired []retiredFrame
	closed  bool
}

// New creates a graph that drives dev.
func New(dev Device, opts ...Option) (*Graph, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	g := &Graph{
		dev:   dev,
		opts:  o,
		log:   log,
		frame: 1,
		heaps: heapPool{dev: dev},
	}
	g.arena.reset(1)
	log.Info("rendergraph: graph created",
		"framesInFlight", o.framesInFlight,
		"aliasing", o.aliasing,
		"culling", o.culling)
	return g, nil
}

// Device returns the device the graph drives.
func (g *Graph) Device() Device { return g.dev }

// Frame returns the number of the frame being built.
func (g *Graph) Frame() uint64 { return g.frame }

// Err returns the first configuration error recorded for the current frame.
func (g *Graph) Err() error { return g.err }

// fail records the first error of the frame.
func (g *Graph) fail(err error) {
	if g.err == nil {
		g.err = err
	}
	if g.opts.failFast {
		panic(err)
	}
}

func (g *Graph) building() bool {
	if g.closed {
		g.fail(ErrClosed)
		return false
	}
	g.plan = nil
	return true
}

// CreateImage declares a transient image. Its memory is provided by the
// graph and only valid during the current frame.
func (g *Graph) CreateImage(desc ImageDescription) ImageHandle {
	if !g.building() {
		return ImageHandle{}
	}
	if err := desc.normalize(); err != nil {
		g.fail(configErr("", desc.Label, err))
		return ImageHandle{}
	}
	g.arena.images = append(g.arena.images, imageRes{desc: desc})
	return g.arena.imageHandle(len(g.arena.images) - 1)
}

// ImportImage declares an image owned by the caller. state carries its
// synchronization state across frames and is updated by Execute; it may be
// nil for resources whose state does not need to survive the frame.
func (g *Graph) ImportImage(id ImageID, desc ImageDescription, state *ResourceStateData, opts ImportOptions) ImageHandle {
	if !g.building() {
		return ImageHandle{}
	}
	if id == InvalidID {
		g.fail(configErrf("", desc.Label, ErrInvalidDescription, "imported image has no device id"))
		return ImageHandle{}
	}
	if err := desc.normalize(); err != nil {
		g.fail(configErr("", desc.Label, err))
		return ImageHandle{}
	}
	g.arena.images = append(g.arena.images, imageRes{
		desc:     desc,
		imported: true,
		id:       id,
		state:    state,
		opts:     opts,
	})
	return g.arena.imageHandle(len(g.arena.images) - 1)
}

// CreateImageView declares a view of an image.
func (g *Graph) CreateImageView(desc ImageViewDescription) ImageViewHandle {
	if !g.building() {
		return ImageViewHandle{}
	}
	img, err := g.arena.image(desc.Image)
	if err != nil {
		g.fail(configErr("", desc.Image.String(), err))
		return ImageViewHandle{}
	}
	rng, err := desc.resolve(&img.desc)
	if err != nil {
		g.fail(configErr("", desc.Image.String(), err))
		return ImageViewHandle{}
	}
	if desc.Label == "" {
		desc.Label = img.desc.Label
	}
	g.arena.imageViews = append(g.arena.imageViews, imageViewRes{
		desc:  desc,
		image: int(desc.Image.h.index),
		rng:   rng,
	})
	return ImageViewHandle{handle{index: uint32(len(g.arena.imageViews) - 1), gen: g.arena.gen}}
}

// FullImageView declares a view covering every mip level and layer of h.
func (g *Graph) FullImageView(h ImageHandle) ImageViewHandle {
	return g.CreateImageView(ImageViewDescription{Image: h})
}

// MipView declares a view of one mip level of every layer of h.
func (g *Graph) MipView(h ImageHandle, mip uint32) ImageViewHandle {
	return g.CreateImageView(ImageViewDescription{Image: h, BaseMipLevel: mip, MipLevelCount: 1})
}

// CreateBuffer declares a transient buffer.
func (g *Graph) CreateBuffer(desc BufferDescription) BufferHandle {
	if !g.building() {
		return BufferHandle{}
	}
	if err := desc.normalize(); err != nil {
		g.fail(configErr("", desc.Label, err))
		return BufferHandle{}
	}
	g.arena.buffers = append(g.arena.buffers, bufferRes{desc: desc})
	return g.arena.bufferHandle(len(g.arena.buffers) - 1)
}

// ImportBuffer declares a buffer owned by the caller.
func (g *Graph) ImportBuffer(id BufferID, desc BufferDescription, state *ResourceStateData, opts ImportOptions) BufferHandle {
	if !g.building() {
		return BufferHandle{}
	}
	if id == InvalidID {
		g.fail(configErrf("", desc.Label, ErrInvalidDescription, "imported buffer has no device id"))
		return BufferHandle{}
	}
	if err := desc.normalize(); err != nil {
		g.fail(configErr("", desc.Label, err))
		return BufferHandle{}
	}
	g.arena.buffers = append(g.arena.buffers, bufferRes{
		desc:     desc,
		imported: true,
		id:       id,
		state:    state,
		opts:     opts,
	})
	return g.arena.bufferHandle(len(g.arena.buffers) - 1)
}

// CreateBufferView declares a byte range of a buffer.
func (g *Graph) CreateBufferView(desc BufferViewDescription) BufferViewHandle {
	if !g.building() {
		return BufferViewHandle{}
	}
	buf, err := g.arena.buffer(desc.Buffer)
	if err != nil {
		g.fail(configErr("", desc.Buffer.String(), err))
		return BufferViewHandle{}
	}
	rng, err := desc.resolve(&buf.desc)
	if err != nil {
		g.fail(configErr("", desc.Buffer.String(), err))
		return BufferViewHandle{}
	}
	if desc.Label == "" {
		desc.Label = buf.desc.Label
	}
	g.arena.bufferViews = append(g.arena.bufferViews, bufferViewRes{
		desc:   desc,
		buffer: int(desc.Buffer.h.index),
		rng:    rng,
	})
	return BufferViewHandle{handle{index: uint32(len(g.arena.bufferViews) - 1), gen: g.arena.gen}}
}

// FullBufferView declares a view covering all of h.
func (g *Graph) FullBufferView(h BufferHandle) BufferViewHandle {
	return g.CreateBufferView(BufferViewDescription{Buffer: h})
}

// ImageDescription returns the normalized description of h.
func (g *Graph) ImageDescription(h ImageHandle) (ImageDescription, bool) {
	img, err := g.arena.image(h)
	if err != nil {
		return ImageDescription{}, false
	}
	return img.desc, true
}

// BufferDescription returns the description of h.
func (g *Graph) BufferDescription(h BufferHandle) (BufferDescription, bool) {
	buf, err := g.arena.buffer(h)
	if err != nil {
		return BufferDescription{}, false
	}
	return buf.desc, true
}

// AddPass adds a pass that runs rec on a queue of the given type. usages
// declares every resource view the pass touches; the slice is copied.
// Passes are kept in submission order unless their dependencies say
// otherwise.
func (g *Graph) AddPass(name string, queue QueueType, usages []Usage, rec Recorder, opts ...PassOption) PassHandle {
	if !g.building() {
		return PassHandle{}
	}
	if f, ok := rec.(RecordFunc); rec == nil || ok && f == nil {
		g.fail(configErr(name, "", ErrNilRecorder))
		return PassHandle{}
	}
	if queue >= queueTypeCount {
		g.fail(configErrf(name, "", ErrInvalidUsage, "unknown queue type %v", queue))
		return PassHandle{}
	}
	p := pass{
		name:     name,
		queue:    queue,
		usages:   append([]Usage(nil), usages...),
		recorder: rec,
	}
	for _, opt := range opts {
		opt(&p)
	}
	p.uses = make([]resolvedUsage, 0, len(usages))
	for i, u := range p.usages {
		ru, err := g.resolveUsage(i, u)
		if err != nil {
			g.fail(configErr(name, u.View.String(), err))
			return PassHandle{}
		}
		p.uses = append(p.uses, ru)
	}
	if err := checkLayouts(p.uses); err != nil {
		g.fail(configErr(name, "", err))
		return PassHandle{}
	}
	g.arena.passes = append(g.arena.passes, p)
	return PassHandle{handle{index: uint32(len(g.arena.passes) - 1), gen: g.arena.gen}}
}

func (g *Graph) resolveUsage(i int, u Usage) (resolvedUsage, error) {
	ru := resolvedUsage{index: i, kind: u.View.Type(), state: u.State, chain: u.Chain}
	stage, err := u.State.check(ru.kind, u.Stage)
	if err != nil {
		return ru, err
	}
	ru.stage = stage
	if u.Exit != nil {
		exit := *u.Exit
		if exit.State != StatePresent {
			if exit.Stage, err = exit.State.check(ru.kind, exit.Stage); err != nil {
				return ru, fmt.Errorf("exit: %w", err)
			}
		}
		ru.exit = &exit
	}

	switch ru.kind {
	case ResourceImage:
		vh, _ := u.View.Image()
		v, err := g.arena.imageView(vh)
		if err != nil {
			return ru, err
		}
		ru.view = int(vh.h.index)
		ru.res = v.image
		ru.spans = imageSpans(&g.arena.images[v.image].desc, v.rng)
	case ResourceBuffer:
		vh, _ := u.View.Buffer()
		v, err := g.arena.bufferView(vh)
		if err != nil {
			return ru, err
		}
		ru.view = int(vh.h.index)
		ru.res = v.buffer
		ru.spans = []span{{v.rng.Offset, v.rng.Offset + v.rng.Size}}
	default:
		return ru, fmt.Errorf("%w: usage has no resource view", ErrUnknownHandle)
	}
	return ru, nil
}

// checkLayouts rejects passes that need one subresource in two layouts at
// once. Chain usages are ordered by the pass itself and may differ.
func checkLayouts(uses []resolvedUsage) error {
	for i := range uses {
		a := &uses[i]
		if a.kind != ResourceImage || a.chain {
			continue
		}
		for j := i + 1; j < len(uses); j++ {
			b := &uses[j]
			if b.kind != ResourceImage || b.chain || b.res != a.res || a.state.Layout() == b.state.Layout() {
				continue
			}
			if spansOverlap(a.spans, b.spans) {
				return fmt.Errorf("%w: %v and %v need different layouts; use %v", ErrInvalidUsage, a.state, b.state, StateGeneral)
			}
		}
	}
	return nil
}

func spansOverlap(a, b []span) bool {
	for _, x := range a {
		for _, y := range b {
			if x.begin < y.end && y.begin < x.end {
				return true
			}
		}
	}
	return false
}

// Compile schedules the current frame and computes its memory placement
// and synchronization without executing it. The plan stays valid until the
// frame is modified, executed or reset. On error the frame is reset.
func (g *Graph) Compile() (*Plan, error) {
	if g.closed {
		return nil, ErrClosed
	}
	if g.plan != nil {
		return g.plan, nil
	}
	if g.err != nil {
		err := g.err
		g.Reset()
		return nil, err
	}

	sched, err := g.schedule()
	if err != nil {
		g.Reset()
		return nil, err
	}
	life, err := g.planLifetimes(sched)
	if err != nil {
		g.Reset()
		return nil, err
	}
	plan := g.compileSync(sched, life)
	g.plan = plan

	g.log.Debug("rendergraph: compiled frame",
		"frame", g.frame,
		"passes", len(plan.Steps),
		"culled", len(plan.Culled),
		"batches", len(plan.Batches),
		"barriers", plan.BarrierCount(),
		"peakBytes", plan.PeakBytes,
		"unaliasedBytes", plan.UnaliasedBytes)
	return plan, nil
}

// Reset abandons the current frame: every handle expires and the recorded
// error is cleared. Nothing is submitted.
func (g *Graph) Reset() {
	g.plan = nil
	g.err = nil
	g.arena.reset(g.arena.gen + 1)
}

// Close waits for the device to go idle and releases everything the graph
// allocated. Imported resources are left alone.
func (g *Graph) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.plan = nil
	err := g.dev.WaitIdle()
	if err != nil {
		err = deviceErr("", err)
	}
	g.completed = g.frame
	g.releaseRetired()
	g.heaps.destroyAll()
	return err
}
