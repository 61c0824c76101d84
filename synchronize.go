// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"slices"

	"github.com/gogpu/rendergraph/internal/track"
)

const (
	// carried indexes accesses recorded by an earlier frame. They are
	// ordered before this frame's work on every queue.
	carried = int(queueTypeCount)
	// noBatch marks a missing batch reference.
	noBatch = -1
)

// prologueRef encodes prologue batch i as a batch reference. Batch
// references are batch indices for regular batches.
func prologueRef(i int) int { return -2 - i }

// subState is the synchronization state of a run of subresources.
type subState struct {
	state    State
	layout   Layout
	family   uint32
	content  bool
	deferred bool

	// writeQueue is the queue type of the last write, carried, or -1.
	writeQueue  int
	writeStages Stage
	writeAccess Access
	writeBatch  int

	// Reads since the last write, per queue type.
	readStages [queueTypeCount + 1]Stage
	readBatch  [queueTypeCount + 1]int

	// visStages and visAccess are the reads the last write was made
	// visible to.
	visStages Stage
	visAccess Access

	lastStep  int
	lastBatch int
}

func freshState() subState {
	s := subState{
		family:     QueueFamilyIgnored,
		writeQueue: -1,
		writeBatch: noBatch,
		lastStep:   -1,
		lastBatch:  noBatch,
	}
	s.clearReads()
	return s
}

func (s *subState) clearReads() {
	s.readStages = [queueTypeCount + 1]Stage{}
	for i := range s.readBatch {
		s.readBatch[i] = noBatch
	}
}

func (s *subState) stages() Stage {
	st := s.writeStages
	for _, r := range s.readStages {
		st |= r
	}
	return st
}

// need is what a pass requires of a run of subresources.
type need struct {
	set    bool
	state  State
	stage  Stage
	access Access
	layout Layout
	write  bool
	exit   *ExitState
}

func needOf(u *resolvedUsage) need {
	n := need{
		set:    true,
		state:  u.state,
		stage:  u.stage,
		access: u.state.Access(),
		write:  u.state.IsWrite(),
		exit:   u.exit,
	}
	if u.kind == ResourceImage {
		n.layout = u.state.Layout()
	}
	return n
}

// merge folds another usage of the same subresources in one pass into n.
func (n *need) merge(o need) {
	if !n.set {
		*n = o
		return
	}
	n.stage |= o.stage
	n.access |= o.access
	if o.write && !n.write {
		n.state = o.state
	}
	n.write = n.write || o.write
	if o.exit != nil {
		n.exit = o.exit
	}
}

type cursor struct {
	pos   int
	queue QueueType
	slot  QueueSlot
	batch int
}

type batchWait struct {
	ref   int
	slot  QueueSlot
	stage Stage
}

// syncCompiler walks the schedule once, tracking the state of every
// subresource, and emits the barriers and semaphore waits between uses.
type syncCompiler struct {
	a     *arena
	life  *lifetimes
	plan  *Plan
	slots [queueTypeCount]QueueSlot

	images  []*track.Map[subState]
	buffers []*track.Map[subState]

	prologues []Batch
	waits     [][]batchWait
}

func (g *Graph) compileSync(sched *schedule, life *lifetimes) *Plan {
	a := &g.arena
	p := &Plan{
		Frame:          g.frame,
		Levels:         sched.levels,
		PeakBytes:      life.peak,
		UnaliasedBytes: life.unaliased,
		life:           life,
	}
	c := &syncCompiler{
		a:       a,
		life:    life,
		plan:    p,
		images:  make([]*track.Map[subState], len(a.images)),
		buffers: make([]*track.Map[subState], len(a.buffers)),
	}
	for q := QueueType(0); q < queueTypeCount; q++ {
		c.slots[q] = g.dev.QueueSlot(q)
	}
	for _, pi := range sched.culled {
		p.Culled = append(p.Culled, a.passes[pi].name)
	}

	for pos, pi := range sched.order {
		ps := &a.passes[pi]
		slot := c.slots[ps.queue]
		if n := len(p.Batches); n == 0 || p.Batches[n-1].Slot != slot {
			p.Batches = append(p.Batches, Batch{Slot: slot})
			c.waits = append(c.waits, nil)
		}
		b := len(p.Batches) - 1
		p.Batches[b].Steps = append(p.Batches[b].Steps, pos)
		p.Steps = append(p.Steps, Step{
			Pass:   ps.name,
			Handle: PassHandle{handle{index: uint32(pi), gen: a.gen}},
			Queue:  ps.queue,
			Slot:   slot,
			Batch:  b,
			pass:   pi,
		})
	}
	for pos := range p.Steps {
		c.step(pos)
	}
	c.finishImports()
	c.finalize()
	c.memory()
	return p
}

func (c *syncCompiler) step(pos int) {
	st := &c.plan.Steps[pos]
	ps := &c.a.passes[st.pass]
	cur := cursor{pos: pos, queue: ps.queue, slot: st.Slot, batch: st.Batch}

	// Every non-chain usage and the first chain usage of each resource are
	// resolved before the pass. Usages of the same subresources are merged
	// first so that they produce one barrier.
	type group struct {
		ref   resourceRef
		needs *track.Map[need]
	}
	var groups []group
	index := make(map[resourceRef]int)
	chained := make(map[resourceRef]bool)
	var chain []*resolvedUsage
	for i := range ps.uses {
		u := &ps.uses[i]
		ref := resourceRef{u.kind, u.res}
		if u.chain {
			if chained[ref] {
				chain = append(chain, u)
				continue
			}
			chained[ref] = true
		}
		gi, ok := index[ref]
		if !ok {
			gi = len(groups)
			index[ref] = gi
			groups = append(groups, group{ref: ref, needs: track.New(c.size(ref), need{}, nil)})
		}
		n := needOf(u)
		for _, sp := range u.spans {
			groups[gi].needs.Visit(sp.begin, sp.end, func(_, _ uint64, v *need) { v.merge(n) })
		}
	}

	var done Stage
	var written Access
	for _, gr := range groups {
		for _, seg := range gr.needs.Segments() {
			if !seg.Value.set {
				continue
			}
			c.use(cur, gr.ref, seg.Begin, seg.End, seg.Value, &st.Pre, false)
			done |= seg.Value.stage
			written |= seg.Value.access & accessWriteMask
		}
	}

	// Each later chain usage is a step of its own with exactly one barrier.
	for _, u := range chain {
		ref := resourceRef{u.kind, u.res}
		n := needOf(u)
		var list []Barrier
		emitted := false
		for _, sp := range u.spans {
			if c.use(cur, ref, sp.begin, sp.end, n, &list, true) {
				emitted = true
			}
		}
		if !emitted {
			sp := u.spans[0]
			c.emit(&list, Barrier{
				Kind: BarrierChain,
				Src:  BarrierScope{State: n.state, Stage: done, Access: written, Layout: n.layout, Family: QueueFamilyIgnored},
				Dst:  BarrierScope{State: n.state, Stage: n.stage, Access: n.access, Layout: n.layout, Family: QueueFamilyIgnored},
			}, ref, sp.begin, sp.end)
		}
		done |= n.stage
		written |= n.access & accessWriteMask
		st.Chain = append(st.Chain, list)
	}

	for i := range ps.uses {
		u := &ps.uses[i]
		if u.exit == nil {
			continue
		}
		ref := resourceRef{u.kind, u.res}
		for _, sp := range u.spans {
			c.leave(cur, ref, sp.begin, sp.end, u.exit, &st.Post)
		}
	}
}

// use brings [begin, end) of ref into the state n requires. It reports
// whether a barrier was emitted.
func (c *syncCompiler) use(cur cursor, ref resourceRef, begin, end uint64, n need, list *[]Barrier, chain bool) bool {
	exclusive := c.exclusive(ref)
	aliased := c.aliased(ref)
	emitted := false
	c.tracker(ref).Visit(begin, end, func(b, e uint64, s *subState) {
		if c.transition(cur, ref, b, e, s, n, list, chain, exclusive, aliased) {
			emitted = true
		}
	})
	return emitted
}

func (c *syncCompiler) transition(cur cursor, ref resourceRef, b, e uint64, s *subState, n need, list *[]Barrier, chain, exclusive, aliased bool) bool {
	layoutChange := ref.kind == ResourceImage && s.layout != n.layout
	writes := n.write || layoutChange

	// Work on other queues is ordered by semaphores.
	waited := false
	if s.writeQueue >= 0 && !c.local(cur, s.writeQueue) {
		c.wait(cur, s.writeBatch, n.stage)
		waited = true
	}
	if writes {
		for q := 0; q < carried; q++ {
			if s.readStages[q] != 0 && !c.local(cur, q) {
				c.wait(cur, s.readBatch[q], n.stage)
				waited = true
			}
		}
	}

	kind := BarrierTransition
	switch {
	case chain:
		kind = BarrierChain
	case s.lastStep < 0 && aliased:
		kind = BarrierAliasing
	case s.lastStep < 0:
		kind = BarrierInitial
	}
	dst := BarrierScope{State: n.state, Stage: n.stage, Access: n.access, Layout: n.layout, Family: QueueFamilyIgnored}

	emitted := false
	if exclusive && s.content && s.family != QueueFamilyIgnored && s.family != cur.slot.Family {
		c.transfer(cur, ref, b, e, s, n, list)
		emitted = true
		layoutChange = true
	} else {
		var localWrite, localReads Stage
		if s.writeQueue >= 0 && c.local(cur, s.writeQueue) {
			localWrite = s.writeStages
		}
		for q, r := range s.readStages {
			if r != 0 && c.local(cur, q) {
				localReads |= r
			}
		}
		srcAccess := AccessNone
		if localWrite != 0 || s.writeQueue < 0 {
			srcAccess = s.writeAccess
		}

		var src Stage
		needed := false
		switch {
		case layoutChange:
			src, needed = localWrite|localReads, true
		case n.write:
			src = localWrite | localReads
			needed = src != 0
		default:
			src = localWrite
			needed = localWrite != 0 && (n.stage&^s.visStages != 0 || n.access&^s.visAccess != 0)
		}
		if needed {
			if src == StageNone && waited {
				src = n.stage
			}
			c.emit(list, Barrier{
				Kind: kind,
				Src:  BarrierScope{State: s.state, Stage: src, Access: srcAccess, Layout: s.layout, Family: QueueFamilyIgnored},
				Dst:  dst,
			}, ref, b, e)
			emitted = true
		}
	}

	q := int(cur.queue)
	s.state = n.state
	if ref.kind == ResourceImage {
		s.layout = n.layout
	}
	if exclusive {
		s.family = cur.slot.Family
	}
	switch {
	case n.write:
		s.writeQueue, s.writeStages, s.writeAccess, s.writeBatch = q, n.stage, n.access&accessWriteMask, cur.batch
		s.clearReads()
		s.visStages, s.visAccess = StageNone, AccessNone
		s.content = true
	case layoutChange:
		// The transition itself is the last write; it is visible to n.
		s.writeQueue, s.writeStages, s.writeAccess, s.writeBatch = q, n.stage, AccessNone, cur.batch
		s.clearReads()
		s.readStages[q], s.readBatch[q] = n.stage, cur.batch
		s.visStages, s.visAccess = n.stage, n.access
	default:
		s.readStages[q] |= n.stage
		s.readBatch[q] = cur.batch
		if emitted {
			s.visStages |= n.stage
			s.visAccess |= n.access
		}
	}
	s.lastStep, s.lastBatch = cur.pos, cur.batch
	s.deferred = n.exit == nil
	return emitted
}

// transfer moves exclusive ownership of [b, e) to the current queue family.
// The release is recorded after the last use on the owning queue, or in a
// prologue batch when the owner is a queue of an earlier frame. Families the
// device has no queue for are external: the graph only acquires.
func (c *syncCompiler) transfer(cur cursor, ref resourceRef, b, e uint64, s *subState, n need, list *[]Barrier) {
	release := Barrier{
		Kind: BarrierRelease,
		Src:  BarrierScope{State: s.state, Stage: s.stages(), Access: s.writeAccess, Layout: s.layout, Family: s.family},
		Dst:  BarrierScope{State: n.state, Layout: n.layout, Family: cur.slot.Family},
	}
	acquire := Barrier{
		Kind: BarrierAcquire,
		Src:  BarrierScope{State: s.state, Layout: s.layout, Family: s.family},
		Dst:  BarrierScope{State: n.state, Stage: n.stage, Access: n.access, Layout: n.layout, Family: cur.slot.Family},
	}
	if s.lastStep >= 0 {
		c.emit(&c.plan.Steps[s.lastStep].Post, release, ref, b, e)
		c.wait(cur, s.lastBatch, n.stage)
	} else if slot, ok := c.familySlot(s.family); ok {
		i := c.prologue(slot)
		c.emit(&c.prologues[i].Prologue, release, ref, b, e)
		c.wait(cur, prologueRef(i), n.stage)
	}
	c.emit(list, acquire, ref, b, e)
}

// leave moves [begin, end) into the exit state declared by the pass.
func (c *syncCompiler) leave(cur cursor, ref resourceRef, begin, end uint64, x *ExitState, post *[]Barrier) {
	layout := LayoutUndefined
	if ref.kind == ResourceImage {
		layout = x.State.Layout()
	}
	q := int(cur.queue)
	c.tracker(ref).Visit(begin, end, func(b, e uint64, s *subState) {
		s.deferred = false
		if s.state == x.State && s.layout == layout {
			return
		}
		var src Stage
		var access Access
		if s.writeQueue >= 0 && c.local(cur, s.writeQueue) {
			src, access = s.writeStages, s.writeAccess
		}
		for i, r := range s.readStages {
			if c.local(cur, i) {
				src |= r
			}
		}
		c.emit(post, Barrier{
			Kind: BarrierTransition,
			Src:  BarrierScope{State: s.state, Stage: src, Access: access, Layout: s.layout, Family: QueueFamilyIgnored},
			Dst:  BarrierScope{State: x.State, Stage: x.Stage, Access: x.State.Access(), Layout: layout, Family: QueueFamilyIgnored},
		}, ref, b, e)

		s.state, s.layout = x.State, layout
		s.clearReads()
		if x.State.IsWrite() {
			s.writeQueue, s.writeStages, s.writeAccess, s.writeBatch = q, x.Stage, x.State.Access()&accessWriteMask, cur.batch
			s.visStages, s.visAccess = StageNone, AccessNone
			return
		}
		s.writeQueue, s.writeStages, s.writeAccess, s.writeBatch = q, x.Stage, AccessNone, cur.batch
		s.readStages[q], s.readBatch[q] = x.Stage, cur.batch
		s.visStages, s.visAccess = x.Stage, x.State.Access()
	})
}

// finishImports returns imported resources to their external queue family
// and captures their end-of-frame state.
func (c *syncCompiler) finishImports() {
	for i := range c.a.images {
		img := &c.a.images[i]
		if img.imported {
			c.finishImport(resourceRef{ResourceImage, i}, img.state, img.opts)
		}
	}
	for i := range c.a.buffers {
		buf := &c.a.buffers[i]
		if buf.imported {
			c.finishImport(resourceRef{ResourceBuffer, i}, buf.state, buf.opts)
		}
	}
}

func (c *syncCompiler) finishImport(ref resourceRef, rec *ResourceStateData, opts ImportOptions) {
	m := c.existing(ref)
	if m == nil {
		return
	}
	if t := opts.Transfer; t != nil && !opts.Concurrent {
		m.Visit(0, m.Len(), func(b, e uint64, s *subState) {
			if s.lastStep < 0 || !s.content || s.family == t.Family {
				return
			}
			c.emit(&c.plan.Steps[s.lastStep].Post, Barrier{
				Kind: BarrierRelease,
				Src:  BarrierScope{State: s.state, Stage: s.stages(), Access: s.writeAccess, Layout: s.layout, Family: s.family},
				Dst:  BarrierScope{State: s.state, Layout: s.layout, Family: t.Family},
			}, ref, b, e)
			s.family = t.Family
		})
	}
	if rec == nil {
		return
	}

	out := stateRecord{ref: ref, size: m.Len()}
	for _, seg := range m.Segments() {
		s := &seg.Value
		r := StateRange{
			Begin:    seg.Begin,
			End:      seg.End,
			State:    s.state,
			Family:   s.family,
			Deferred: s.deferred,
		}
		for _, st := range s.readStages {
			r.Stage |= st
		}
		if r.Stage == StageNone {
			r.Stage = s.writeStages
		}
		if n := len(out.ranges); n > 0 {
			last := &out.ranges[n-1]
			if last.End == r.Begin && last.State == r.State && last.Stage == r.Stage &&
				last.Family == r.Family && last.Deferred == r.Deferred {
				last.End = r.End
				continue
			}
		}
		out.ranges = append(out.ranges, r)
	}
	c.plan.records = append(c.plan.records, out)
}

// finalize places prologue batches in front, resolves batch references to
// submission indices and marks the signalling batches.
func (c *syncCompiler) finalize() {
	p := c.plan
	np := len(c.prologues)
	resolve := func(ref int) int {
		if ref >= 0 {
			return np + ref
		}
		return -2 - ref
	}
	for bi := range p.Batches {
		for _, w := range c.waits[bi] {
			p.Batches[bi].Wait = append(p.Batches[bi].Wait, SemaphoreWait{Submission: resolve(w.ref), Stage: w.stage})
		}
		slices.SortFunc(p.Batches[bi].Wait, func(x, y SemaphoreWait) int { return x.Submission - y.Submission })
	}
	if np > 0 {
		p.Batches = append(c.prologues, p.Batches...)
		for i := range p.Steps {
			p.Steps[i].Batch += np
		}
	}
	for bi := range p.Batches {
		for _, w := range p.Batches[bi].Wait {
			p.Batches[w.Submission].Signal = true
		}
	}
}

func (c *syncCompiler) memory() {
	for si, s := range c.life.slots {
		m := MemorySlot{Key: s.Key, Size: s.Size, Alignment: s.Alignment, Dedicated: s.Dedicated}
		for _, r := range c.life.members[si] {
			if r.kind == ResourceImage {
				m.Resources = append(m.Resources, c.a.imageName(r.index))
			} else {
				m.Resources = append(m.Resources, c.a.bufferName(r.index))
			}
		}
		c.plan.Memory = append(c.plan.Memory, m)
	}
}

func (c *syncCompiler) local(cur cursor, q int) bool {
	return q == carried || c.slots[q] == cur.slot
}

// wait makes the current batch wait for the batch ref on another queue.
// Only the latest batch per queue is kept: batches signal in queue order.
func (c *syncCompiler) wait(cur cursor, ref int, stage Stage) {
	if ref == noBatch || ref == cur.batch {
		return
	}
	slot := c.refSlot(ref)
	if slot == cur.slot {
		return
	}
	ws := c.waits[cur.batch]
	for i := range ws {
		if ws[i].slot != slot {
			continue
		}
		ws[i].stage |= stage
		if ref > ws[i].ref {
			ws[i].ref = ref
		}
		return
	}
	c.waits[cur.batch] = append(ws, batchWait{ref: ref, slot: slot, stage: stage})
}

func (c *syncCompiler) refSlot(ref int) QueueSlot {
	if ref >= 0 {
		return c.plan.Batches[ref].Slot
	}
	return c.prologues[-2-ref].Slot
}

func (c *syncCompiler) familySlot(family uint32) (QueueSlot, bool) {
	for _, s := range c.slots {
		if s.Family == family {
			return s, true
		}
	}
	return QueueSlot{}, false
}

func (c *syncCompiler) prologue(slot QueueSlot) int {
	for i := range c.prologues {
		if c.prologues[i].Slot == slot {
			return i
		}
	}
	c.prologues = append(c.prologues, Batch{Slot: slot})
	return len(c.prologues) - 1
}

func (c *syncCompiler) size(ref resourceRef) uint64 {
	if ref.kind == ResourceImage {
		return c.a.images[ref.index].desc.subresources()
	}
	return c.a.buffers[ref.index].desc.Size
}

func (c *syncCompiler) exclusive(ref resourceRef) bool {
	if ref.kind == ResourceImage {
		img := &c.a.images[ref.index]
		return !img.imported || !img.opts.Concurrent
	}
	buf := &c.a.buffers[ref.index]
	return !buf.imported || !buf.opts.Concurrent
}

func (c *syncCompiler) aliased(ref resourceRef) bool {
	return len(c.life.prev[ref]) > 0
}

func (c *syncCompiler) existing(ref resourceRef) *track.Map[subState] {
	if ref.kind == ResourceImage {
		return c.images[ref.index]
	}
	return c.buffers[ref.index]
}

// tracker returns the state map of ref, creating it on first use.
func (c *syncCompiler) tracker(ref resourceRef) *track.Map[subState] {
	if m := c.existing(ref); m != nil {
		return m
	}
	m := c.initial(ref)
	if ref.kind == ResourceImage {
		c.images[ref.index] = m
	} else {
		c.buffers[ref.index] = m
	}
	return m
}

func (c *syncCompiler) initial(ref resourceRef) *track.Map[subState] {
	size := c.size(ref)
	init := freshState()

	var imported bool
	var rec *ResourceStateData
	var opts ImportOptions
	if ref.kind == ResourceImage {
		img := &c.a.images[ref.index]
		imported, rec, opts = img.imported, img.state, img.opts
	} else {
		buf := &c.a.buffers[ref.index]
		imported, rec, opts = buf.imported, buf.state, buf.opts
		init.content = imported
	}
	if !imported {
		c.handOver(&init, c.life.prev[ref])
		return track.New(size, init, nil)
	}
	if opts.Transfer != nil && !opts.Concurrent {
		init.family = opts.Transfer.Family
	}
	m := track.New(size, init, nil)
	if rec.usable(size) {
		for _, r := range rec.Ranges {
			m.Visit(r.Begin, r.End, func(_, _ uint64, s *subState) {
				restore(s, r, ref.kind, opts)
			})
		}
	}
	return m
}

// handOver makes the accesses of the resources that used the memory before
// a transient resource look like reads of the new resource, so its first use
// waits for them.
func (c *syncCompiler) handOver(s *subState, prev []resourceRef) {
	for _, r := range prev {
		m := c.existing(r)
		if m == nil {
			continue
		}
		for _, seg := range m.Segments() {
			v := &seg.Value
			for q, st := range v.readStages {
				if st != 0 {
					s.readStages[q] |= st
					s.readBatch[q] = max(s.readBatch[q], v.readBatch[q])
				}
			}
			if v.writeQueue >= 0 && v.writeStages != 0 {
				s.readStages[v.writeQueue] |= v.writeStages
				s.readBatch[v.writeQueue] = max(s.readBatch[v.writeQueue], v.writeBatch)
			}
			s.writeAccess |= v.writeAccess
		}
	}
}

// restore loads one recorded range into s.
func restore(s *subState, r StateRange, kind ResourceType, opts ImportOptions) {
	s.state = r.State
	if kind == ResourceImage {
		s.layout = r.State.Layout()
	}
	s.content = r.State != StateUndefined
	s.deferred = r.Deferred
	if !opts.Concurrent {
		s.family = r.Family
	}
	switch {
	case r.Deferred:
		s.writeQueue, s.writeStages, s.writeAccess = carried, StageAll, AccessMemoryWrite
	case r.State.IsWrite():
		s.writeQueue, s.writeStages, s.writeAccess = carried, r.Stage, r.State.Access()&accessWriteMask
	case r.State != StateUndefined:
		s.readStages[carried] = r.Stage
		s.visStages, s.visAccess = r.Stage, r.State.Access()
	}
}

// emit appends a barrier for keys [begin, end) of ref.
func (c *syncCompiler) emit(list *[]Barrier, br Barrier, ref resourceRef, begin, end uint64) {
	br.Type = ref.kind
	if ref.kind == ResourceBuffer {
		br.Buffer = c.a.bufferHandle(ref.index)
		br.Bytes = BufferRange{Offset: begin, Size: end - begin}
		*list = appendMerged(*list, br)
		return
	}
	br.Image = c.a.imageHandle(ref.index)
	for _, r := range imageRanges(begin, end, c.a.images[ref.index].desc.MipLevels) {
		br.Range = r
		*list = appendMerged(*list, br)
	}
}

// imageRanges splits keys [begin, end) into subresource ranges: a partial
// first layer, a run of whole layers and a partial last layer.
func imageRanges(begin, end uint64, mips uint32) []ImageRange {
	m := uint64(mips)
	var out []ImageRange
	for begin < end {
		layer, mip := begin/m, begin%m
		if mip == 0 && end-begin >= m {
			n := (end - begin) / m
			out = append(out, ImageRange{
				BaseMipLevel:    0,
				MipLevelCount:   mips,
				BaseArrayLayer:  uint32(layer),
				ArrayLayerCount: uint32(n),
			})
			begin += n * m
			continue
		}
		stop := min(end, (layer+1)*m)
		out = append(out, ImageRange{
			BaseMipLevel:    uint32(mip),
			MipLevelCount:   uint32(stop - begin),
			BaseArrayLayer:  uint32(layer),
			ArrayLayerCount: 1,
		})
		begin = stop
	}
	return out
}

// appendMerged appends b, extending the last barrier instead when both
// describe the same transition of adjacent ranges.
func appendMerged(list []Barrier, b Barrier) []Barrier {
	n := len(list)
	if n == 0 {
		return append(list, b)
	}
	last := &list[n-1]
	if last.Kind != b.Kind || last.Type != b.Type || last.Image != b.Image || last.Buffer != b.Buffer ||
		last.Src != b.Src || last.Dst != b.Dst {
		return append(list, b)
	}
	switch b.Type {
	case ResourceBuffer:
		if last.Bytes.Offset+last.Bytes.Size == b.Bytes.Offset {
			last.Bytes.Size += b.Bytes.Size
			return list
		}
	case ResourceImage:
		l, r := last.Range, b.Range
		if l.BaseMipLevel == r.BaseMipLevel && l.MipLevelCount == r.MipLevelCount &&
			l.BaseArrayLayer+l.ArrayLayerCount == r.BaseArrayLayer {
			last.Range.ArrayLayerCount += r.ArrayLayerCount
			return list
		}
		if l.BaseArrayLayer == r.BaseArrayLayer && l.ArrayLayerCount == r.ArrayLayerCount &&
			l.BaseMipLevel+l.MipLevelCount == r.BaseMipLevel {
			last.Range.MipLevelCount += r.MipLevelCount
			return list
		}
	}
	return append(list, b)
}
