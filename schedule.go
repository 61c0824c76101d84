// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rendergraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/rendergraph/internal/dag"
	"github.com/gogpu/rendergraph/internal/track"
)

// hazard is the kind of a dependency edge.
type hazard uint8

const (
	hazardRAW hazard = 1 << iota
	hazardWAR
	hazardWAW
)

func (h hazard) String() string {
	var s string
	for _, k := range []struct {
		bit  hazard
		name string
	}{{hazardRAW, "raw"}, {hazardWAR, "war"}, {hazardWAW, "waw"}} {
		if h&k.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += k.name
		}
	}
	return s
}

// edge orders pass from before pass to.
type edge struct {
	from, to int
	kind     hazard
}

// accessHistory is the per-subresource record used to derive edges: the
// last writer and the readers since.
type accessHistory struct {
	writer  int
	readers []int
}

func cloneHistory(h accessHistory) accessHistory {
	h.readers = slices.Clone(h.readers)
	return h
}

// schedule is the output of the scheduling engine.
type schedule struct {
	// order lists arena pass indices in execution order.
	order []int
	// culled lists removed pass indices in submission order.
	culled []int
	// levels groups positions in order whose passes do not depend on each
	// other.
	levels [][]int
	edges  []edge
}

// dependencies derives producer/consumer edges between the included passes.
// Passes are visited in submission order, so every edge points forward.
func (g *Graph) dependencies(include func(p int) bool) []edge {
	a := &g.arena
	images := make([]*track.Map[accessHistory], len(a.images))
	buffers := make([]*track.Map[accessHistory], len(a.buffers))
	fresh := accessHistory{writer: -1}

	kinds := make(map[[2]int]hazard)
	var keys [][2]int
	add := func(from, to int, h hazard) {
		k := [2]int{from, to}
		if _, ok := kinds[k]; !ok {
			keys = append(keys, k)
		}
		kinds[k] |= h
	}

	for p := range a.passes {
		if !include(p) {
			continue
		}
		for _, u := range a.passes[p].uses {
			var m *track.Map[accessHistory]
			if u.kind == ResourceImage {
				if images[u.res] == nil {
					images[u.res] = track.New(a.images[u.res].desc.subresources(), fresh, cloneHistory)
				}
				m = images[u.res]
			} else {
				if buffers[u.res] == nil {
					buffers[u.res] = track.New(a.buffers[u.res].desc.Size, fresh, cloneHistory)
				}
				m = buffers[u.res]
			}
			write := u.state.IsWrite() || (u.exit != nil && u.exit.State.IsWrite())
			for _, sp := range u.spans {
				m.Visit(sp.begin, sp.end, func(_, _ uint64, h *accessHistory) {
					if h.writer >= 0 && h.writer != p {
						if write {
							add(h.writer, p, hazardWAW)
						} else {
							add(h.writer, p, hazardRAW)
						}
					}
					if !write {
						if !slices.Contains(h.readers, p) {
							h.readers = append(h.readers, p)
						}
						return
					}
					for _, r := range h.readers {
						if r != p {
							add(r, p, hazardWAR)
						}
					}
					h.writer = p
					h.readers = h.readers[:0]
				})
			}
		}
	}

	edges := make([]edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, edge{from: k[0], to: k[1], kind: kinds[k]})
	}
	slices.SortFunc(edges, func(x, y edge) int {
		if x.to != y.to {
			return x.to - y.to
		}
		return x.from - y.from
	})
	return edges
}

// roots reports the passes whose effects are visible outside the graph.
func (g *Graph) isRoot(p int) bool {
	ps := &g.arena.passes[p]
	if ps.force {
		return true
	}
	for _, u := range ps.uses {
		imported := false
		if u.kind == ResourceImage {
			imported = g.arena.images[u.res].imported
		} else {
			imported = g.arena.buffers[u.res].imported
		}
		if imported && (u.state.IsWrite() || u.exit != nil) {
			return true
		}
	}
	return false
}

// cull marks the passes that contribute to a root. Liveness flows backwards
// along read-after-write and write-after-write edges; write-after-read
// edges only order passes.
func (g *Graph) cull(edges []edge) []bool {
	n := len(g.arena.passes)
	live := make([]bool, n)
	if !g.opts.culling {
		for i := range live {
			live[i] = true
		}
		return live
	}
	producers := make([][]int, n)
	for _, e := range edges {
		if e.kind&(hazardRAW|hazardWAW) != 0 {
			producers[e.to] = append(producers[e.to], e.from)
		}
	}
	var stack []int
	for p := n - 1; p >= 0; p-- {
		if g.isRoot(p) {
			live[p] = true
			stack = append(stack, p)
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, q := range producers[p] {
			if !live[q] {
				live[q] = true
				stack = append(stack, q)
			}
		}
	}
	return live
}

// schedule culls dead passes and orders the rest.
func (g *Graph) schedule() (*schedule, error) {
	all := g.dependencies(func(int) bool { return true })
	live := g.cull(all)

	s := &schedule{}
	for p, ok := range live {
		if !ok {
			s.culled = append(s.culled, p)
		}
	}
	if len(s.culled) > 0 {
		s.edges = g.dependencies(func(p int) bool { return live[p] })
	} else {
		s.edges = all
	}

	d := dag.NewDirectedAcyclicGraph[int]()
	for p, ok := range live {
		if ok {
			if err := d.AddVertex(p, p); err != nil {
				return nil, &GraphError{Kind: KindScheduling, Pass: g.arena.passes[p].name, Err: err}
			}
		}
	}
	for i := 0; i < len(s.edges); {
		j := i
		var deps []int
		for ; j < len(s.edges) && s.edges[j].to == s.edges[i].to; j++ {
			deps = append(deps, s.edges[j].from)
		}
		if err := d.AddDependencies(s.edges[i].to, deps); err != nil {
			return nil, g.cycleError(err)
		}
		i = j
	}

	order, err := d.TopologicalSort()
	if err != nil {
		return nil, g.cycleError(err)
	}
	s.order = order

	levels, err := d.TopologicalSortLevels()
	if err != nil {
		return nil, g.cycleError(err)
	}
	pos := make(map[int]int, len(order))
	for i, p := range order {
		pos[p] = i
	}
	for _, lvl := range levels {
		positions := make([]int, len(lvl))
		for i, p := range lvl {
			positions[i] = pos[p]
		}
		slices.Sort(positions)
		s.levels = append(s.levels, positions)
	}
	return s, nil
}

func (g *Graph) cycleError(err error) error {
	ce := dag.AsCycleError[int](err)
	if ce == nil {
		return &GraphError{Kind: KindScheduling, Err: fmt.Errorf("%w: %w", ErrCycle, err)}
	}
	names := make([]string, len(ce.Cycle))
	for i, p := range ce.Cycle {
		names[i] = g.arena.passes[p].name
	}
	pass := ""
	if len(names) > 0 {
		pass = names[0]
	}
	return &GraphError{
		Kind: KindScheduling,
		Pass: pass,
		Err:  errors.Join(ErrCycle, fmt.Errorf("passes %q", names)),
	}
}
