// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package track keeps per-range state over a linear key space.
//
// A resource's sub-resources (image mip/layer pairs or buffer bytes) are
// flattened into keys [0, size). A Map stores one value per maximal run of
// keys that share state, splitting runs on demand when an update touches only
// part of one.
package track

import "sort"

// Segment is a run of keys [Begin, End) sharing one value.
type Segment[T any] struct {
	Begin, End uint64
	Value      T
}

// Map is a segmented map covering [0, Len()).
// The zero value is not usable; create maps with New.
type Map[T any] struct {
	size  uint64
	segs  []Segment[T]
	clone func(T) T
}

// New creates a map of the given size where every key holds init.
// clone, if non-nil, is used to copy values when a segment is split so that
// values holding slices or maps do not share storage.
func New[T any](size uint64, init T, clone func(T) T) *Map[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	m := &Map[T]{size: size, clone: clone}
	if size > 0 {
		m.segs = []Segment[T]{{Begin: 0, End: size, Value: init}}
	}
	return m
}

// Len returns the size of the key space.
func (m *Map[T]) Len() uint64 { return m.size }

// Segments returns the current segments in key order. The slice is owned by
// the map and must not be modified.
func (m *Map[T]) Segments() []Segment[T] { return m.segs }

// find returns the index of the segment containing key.
func (m *Map[T]) find(key uint64) int {
	return sort.Search(len(m.segs), func(i int) bool { return m.segs[i].End > key })
}

// split makes key a segment boundary.
func (m *Map[T]) split(key uint64) {
	if key == 0 || key >= m.size {
		return
	}
	i := m.find(key)
	s := m.segs[i]
	if s.Begin == key {
		return
	}
	right := Segment[T]{Begin: key, End: s.End, Value: m.clone(s.Value)}
	m.segs[i].End = key
	m.segs = append(m.segs, Segment[T]{})
	copy(m.segs[i+2:], m.segs[i+1:])
	m.segs[i+1] = right
}

// Visit calls fn for every segment intersecting [begin, end), in key order,
// after splitting segments so that each visited one lies fully inside the
// range. fn may modify the value in place. Keys beyond Len are ignored.
func (m *Map[T]) Visit(begin, end uint64, fn func(begin, end uint64, v *T)) {
	if end > m.size {
		end = m.size
	}
	if begin >= end {
		return
	}
	m.split(begin)
	m.split(end)
	for i := m.find(begin); i < len(m.segs) && m.segs[i].Begin < end; i++ {
		fn(m.segs[i].Begin, m.segs[i].End, &m.segs[i].Value)
	}
}

// Peek calls fn for every segment intersecting [begin, end) without
// splitting. The reported bounds are clipped to the range.
func (m *Map[T]) Peek(begin, end uint64, fn func(begin, end uint64, v T)) {
	if end > m.size {
		end = m.size
	}
	if begin >= end {
		return
	}
	for i := m.find(begin); i < len(m.segs) && m.segs[i].Begin < end; i++ {
		s := m.segs[i]
		fn(max(s.Begin, begin), min(s.End, end), s.Value)
	}
}

// Coalesce merges adjacent segments whose values are equal according to eq.
func (m *Map[T]) Coalesce(eq func(a, b T) bool) {
	if len(m.segs) < 2 {
		return
	}
	out := m.segs[:1]
	for _, s := range m.segs[1:] {
		last := &out[len(out)-1]
		if eq(last.Value, s.Value) {
			last.End = s.End
			continue
		}
		out = append(out, s)
	}
	clear(m.segs[len(out):])
	m.segs = out
}
