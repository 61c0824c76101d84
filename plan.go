// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"fmt"
	"strings"
)

// Plan is a compiled frame: the pass order, batches, barriers and memory
// placement Execute will use. It contains logical handles only, so two
// compilations of the same frame description produce equal plans.
type Plan struct {
	Frame uint64
	Steps []Step
	// Culled names the removed passes in submission order.
	Culled []string
	// Levels groups step indices that do not depend on each other.
	Levels [][]int
	// Batches are the device submissions in submission order.
	Batches []Batch
	// Memory lists the memory slots of transient resources.
	Memory []MemorySlot

	PeakBytes      uint64
	UnaliasedBytes uint64

	// records holds the end-of-frame state of imported resources.
	records []stateRecord
	life    *lifetimes
}

// Step is one scheduled pass with its synchronization.
type Step struct {
	Pass   string
	Handle PassHandle
	Queue  QueueType
	Slot   QueueSlot
	Batch  int
	// Pre is recorded before the pass's commands.
	Pre []Barrier
	// Chain holds one barrier list per chain step after the first; the pass
	// records them with Registry.AdvanceChain.
	Chain [][]Barrier
	// Post is recorded after the pass's commands.
	Post []Barrier

	pass int
}

// Batch is one submission.
type Batch struct {
	Slot QueueSlot
	// Steps lists the step indices recorded into the batch. A batch without
	// steps only carries Prologue barriers.
	Steps []int
	// Prologue barriers are recorded before the first step; they release
	// imported resources held by this queue family since an earlier frame.
	Prologue []Barrier
	Wait     []SemaphoreWait
	Signal   bool
}

// MemorySlot is one block of memory shared by transient resources.
type MemorySlot struct {
	Key       string
	Size      uint64
	Alignment uint64
	Dedicated bool
	// Resources names the members in order of first use.
	Resources []string
}

type stateRecord struct {
	ref    resourceRef
	size   uint64
	ranges []StateRange
}

// BarrierCount returns the number of barriers in the plan.
func (p *Plan) BarrierCount() int {
	n := 0
	for i := range p.Steps {
		s := &p.Steps[i]
		n += len(s.Pre) + len(s.Post)
		for _, c := range s.Chain {
			n += len(c)
		}
	}
	for i := range p.Batches {
		n += len(p.Batches[i].Prologue)
	}
	return n
}

// Order returns the pass names in execution order.
func (p *Plan) Order() []string {
	names := make([]string, len(p.Steps))
	for i := range p.Steps {
		names[i] = p.Steps[i].Pass
	}
	return names
}

// Step returns the step of the named pass.
func (p *Plan) Step(name string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].Pass == name {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Barriers returns every barrier of the plan in recording order.
func (p *Plan) Barriers() []Barrier {
	var out []Barrier
	for bi := range p.Batches {
		b := &p.Batches[bi]
		out = append(out, b.Prologue...)
		for _, si := range b.Steps {
			s := &p.Steps[si]
			out = append(out, s.Pre...)
			for _, c := range s.Chain {
				out = append(out, c...)
			}
			out = append(out, s.Post...)
		}
	}
	return out
}

func (b Barrier) String() string {
	var res string
	switch b.Type {
	case ResourceImage:
		res = fmt.Sprintf("%v mips[%d+%d] layers[%d+%d]", b.Image,
			b.Range.BaseMipLevel, b.Range.MipLevelCount, b.Range.BaseArrayLayer, b.Range.ArrayLayerCount)
	case ResourceBuffer:
		res = fmt.Sprintf("%v bytes[%d+%d]", b.Buffer, b.Bytes.Offset, b.Bytes.Size)
	}
	s := fmt.Sprintf("%v %s: %v@%v (%v) -> %v@%v (%v)", b.Kind, res,
		b.Src.State, b.Src.Stage, b.Src.Access, b.Dst.State, b.Dst.Stage, b.Dst.Access)
	if b.Type == ResourceImage && b.Src.Layout != b.Dst.Layout {
		s += fmt.Sprintf(" layout %v->%v", b.Src.Layout, b.Dst.Layout)
	}
	if b.TransfersOwnership() {
		s += fmt.Sprintf(" family %d->%d", b.Src.Family, b.Dst.Family)
	}
	return s
}

// String renders the plan in a stable text form.
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %d: %d passes, %d culled, %d batches\n", p.Frame, len(p.Steps), len(p.Culled), len(p.Batches))
	for bi := range p.Batches {
		b := &p.Batches[bi]
		fmt.Fprintf(&sb, "batch %d on %v", bi, b.Slot)
		for _, w := range b.Wait {
			fmt.Fprintf(&sb, " wait(%d@%v)", w.Submission, w.Stage)
		}
		if b.Signal {
			sb.WriteString(" signal")
		}
		sb.WriteByte('\n')
		for _, br := range b.Prologue {
			fmt.Fprintf(&sb, "  prologue %v\n", br)
		}
		for _, si := range b.Steps {
			s := &p.Steps[si]
			fmt.Fprintf(&sb, "  pass %q (%v)\n", s.Pass, s.Queue)
			for _, br := range s.Pre {
				fmt.Fprintf(&sb, "    pre %v\n", br)
			}
			for ci, c := range s.Chain {
				for _, br := range c {
					fmt.Fprintf(&sb, "    chain[%d] %v\n", ci+1, br)
				}
			}
			for _, br := range s.Post {
				fmt.Fprintf(&sb, "    post %v\n", br)
			}
		}
	}
	if len(p.Culled) > 0 {
		fmt.Fprintf(&sb, "culled %q\n", p.Culled)
	}
	for i, m := range p.Memory {
		fmt.Fprintf(&sb, "memory %d %s size=%d dedicated=%t %q\n", i, m.Key, m.Size, m.Dedicated, m.Resources)
	}
	fmt.Fprintf(&sb, "peak=%d unaliased=%d\n", p.PeakBytes, p.UnaliasedBytes)
	return sb.String()
}
