// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package dag implements a small directed acyclic graph used to order passes.
package dag

import (
	"cmp"
	"container/heap"
	"errors"
	"fmt"
	"slices"
)

// Vertex is a node in the graph.
type Vertex[T cmp.Ordered] struct {
	// ID uniquely identifies the vertex.
	ID T
	// Order is the tie-break priority: among vertices that are ready at the
	// same time, the one with the smaller Order comes first.
	Order int
	// DependsOn holds the vertices that must come before this one.
	DependsOn map[T]struct{}
}

// DirectedAcyclicGraph is a set of vertices with dependency edges.
type DirectedAcyclicGraph[T cmp.Ordered] struct {
	Vertices map[T]*Vertex[T]
}

// NewDirectedAcyclicGraph creates an empty graph.
func NewDirectedAcyclicGraph[T cmp.Ordered]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{Vertices: make(map[T]*Vertex[T])}
}

// AddVertex adds a vertex with the given tie-break order.
func (d *DirectedAcyclicGraph[T]) AddVertex(id T, order int) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("dag: vertex %v already exists", id)
	}
	d.Vertices[id] = &Vertex[T]{ID: id, Order: order, DependsOn: make(map[T]struct{})}
	return nil
}

// CycleError reports a dependency cycle.
type CycleError[T cmp.Ordered] struct {
	Cycle []T
}

func (e *CycleError[T]) Error() string {
	return fmt.Sprintf("dag: graph contains a cycle: %v", e.Cycle)
}

// AsCycleError returns the cycle error wrapped in err, or nil.
func AsCycleError[T cmp.Ordered](err error) *CycleError[T] {
	var ce *CycleError[T]
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// AddDependencies records that node depends on every vertex in deps.
// It rejects unknown vertices, self references and edges that would close a
// cycle; in the last case the graph is left unchanged.
func (d *DirectedAcyclicGraph[T]) AddDependencies(node T, deps []T) error {
	v, ok := d.Vertices[node]
	if !ok {
		return fmt.Errorf("dag: unknown vertex %v", node)
	}
	var added []T
	for _, dep := range deps {
		if dep == node {
			return fmt.Errorf("dag: vertex %v cannot depend on itself", node)
		}
		if _, ok := d.Vertices[dep]; !ok {
			return fmt.Errorf("dag: unknown dependency %v of %v", dep, node)
		}
		if _, dup := v.DependsOn[dep]; dup {
			continue
		}
		v.DependsOn[dep] = struct{}{}
		added = append(added, dep)
	}
	if cyclic, cycle := d.hasCycle(); cyclic {
		for _, dep := range added {
			delete(v.DependsOn, dep)
		}
		return &CycleError[T]{Cycle: cycle}
	}
	return nil
}

// sortedIDs returns vertex ids ordered by (Order, ID).
func (d *DirectedAcyclicGraph[T]) sortedIDs() []T {
	ids := make([]T, 0, len(d.Vertices))
	for id := range d.Vertices {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b T) int {
		if c := cmp.Compare(d.Vertices[a].Order, d.Vertices[b].Order); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func (d *DirectedAcyclicGraph[T]) hasCycle() (bool, []T) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[T]int, len(d.Vertices))
	var stack []T
	var cycle []T

	var visit func(id T) bool
	visit = func(id T) bool {
		color[id] = grey
		stack = append(stack, id)
		deps := make([]T, 0, len(d.Vertices[id].DependsOn))
		for dep := range d.Vertices[id].DependsOn {
			deps = append(deps, dep)
		}
		slices.Sort(deps)
		for _, dep := range deps {
			switch color[dep] {
			case grey:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range d.sortedIDs() {
		if color[id] == white && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// dependents builds the reverse adjacency and in-degree tables.
func (d *DirectedAcyclicGraph[T]) dependents() (map[T][]T, map[T]int) {
	out := make(map[T][]T, len(d.Vertices))
	indeg := make(map[T]int, len(d.Vertices))
	for _, id := range d.sortedIDs() {
		v := d.Vertices[id]
		indeg[id] = len(v.DependsOn)
		for dep := range v.DependsOn {
			out[dep] = append(out[dep], id)
		}
	}
	return out, indeg
}

// TopologicalSort returns the vertices in dependency order. Whenever several
// vertices are ready, the one with the smallest Order is emitted first, so a
// graph whose edges all follow Order sorts back into Order.
func (d *DirectedAcyclicGraph[T]) TopologicalSort() ([]T, error) {
	if cyclic, cycle := d.hasCycle(); cyclic {
		return nil, &CycleError[T]{Cycle: cycle}
	}
	out, indeg := d.dependents()
	ready := &readyQueue[T]{d: d}
	for id, n := range indeg {
		if n == 0 {
			heap.Push(ready, id)
		}
	}
	order := make([]T, 0, len(d.Vertices))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(T)
		order = append(order, id)
		for _, next := range out[id] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}
	return order, nil
}

// TopologicalSortLevels groups vertices into levels: every vertex appears one
// level after the deepest of its dependencies. Vertices within a level are
// ordered by Order.
func (d *DirectedAcyclicGraph[T]) TopologicalSortLevels() ([][]T, error) {
	order, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	depth := make(map[T]int, len(order))
	var levels [][]T
	for _, id := range order {
		lvl := 0
		for dep := range d.Vertices[id].DependsOn {
			lvl = max(lvl, depth[dep]+1)
		}
		depth[id] = lvl
		for len(levels) <= lvl {
			levels = append(levels, nil)
		}
		levels[lvl] = append(levels[lvl], id)
	}
	for _, lvl := range levels {
		slices.SortFunc(lvl, func(a, b T) int {
			if c := cmp.Compare(d.Vertices[a].Order, d.Vertices[b].Order); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
	}
	return levels, nil
}

type readyQueue[T cmp.Ordered] struct {
	d   *DirectedAcyclicGraph[T]
	ids []T
}

func (q *readyQueue[T]) Len() int { return len(q.ids) }
func (q *readyQueue[T]) Less(i, j int) bool {
	a, b := q.d.Vertices[q.ids[i]], q.d.Vertices[q.ids[j]]
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return q.ids[i] < q.ids[j]
}
func (q *readyQueue[T]) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *readyQueue[T]) Push(x any)    { q.ids = append(q.ids, x.(T)) }
func (q *readyQueue[T]) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}
