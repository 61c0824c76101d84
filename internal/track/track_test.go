// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package track

import (
	"fmt"
	"strings"
	"testing"
)

func dump(m *Map[int]) string {
	var parts []string
	for _, s := range m.Segments() {
		parts = append(parts, fmt.Sprintf("[%d,%d)=%d", s.Begin, s.End, s.Value))
	}
	return strings.Join(parts, " ")
}

func TestMapVisitSplits(t *testing.T) {
	tests := []struct {
		name   string
		ranges [][2]uint64
		want   string
	}{
		{"whole", [][2]uint64{{0, 8}}, "[0,8)=1"},
		{"prefix", [][2]uint64{{0, 3}}, "[0,3)=1 [3,8)=0"},
		{"suffix", [][2]uint64{{5, 8}}, "[0,5)=0 [5,8)=1"},
		{"middle", [][2]uint64{{2, 4}}, "[0,2)=0 [2,4)=1 [4,8)=0"},
		{"overlapping", [][2]uint64{{2, 4}, {3, 6}}, "[0,2)=0 [2,3)=1 [3,4)=2 [4,6)=1 [6,8)=0"},
		{"clipped", [][2]uint64{{6, 100}}, "[0,6)=0 [6,8)=1"},
		{"empty", [][2]uint64{{4, 4}}, "[0,8)=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(8, 0, nil)
			for _, r := range tt.ranges {
				m.Visit(r[0], r[1], func(_, _ uint64, v *int) { *v++ })
			}
			if got := dump(m); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMapCoalesce(t *testing.T) {
	m := New(8, 0, nil)
	m.Visit(2, 4, func(_, _ uint64, v *int) { *v = 1 })
	m.Visit(4, 6, func(_, _ uint64, v *int) { *v = 1 })
	if len(m.Segments()) != 4 {
		t.Fatalf("segments before coalesce = %d, want 4", len(m.Segments()))
	}
	m.Coalesce(func(a, b int) bool { return a == b })
	if got, want := dump(m), "[0,2)=0 [2,6)=1 [6,8)=0"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMapPeekDoesNotSplit(t *testing.T) {
	m := New(10, 7, nil)
	var seen []string
	m.Peek(3, 5, func(b, e uint64, v int) {
		seen = append(seen, fmt.Sprintf("[%d,%d)=%d", b, e, v))
	})
	if len(m.Segments()) != 1 {
		t.Errorf("Peek split the map into %d segments", len(m.Segments()))
	}
	if got := strings.Join(seen, " "); got != "[3,5)=7" {
		t.Errorf("Peek reported %s", got)
	}
}

func TestMapCloneOnSplit(t *testing.T) {
	clone := func(v []int) []int { return append([]int(nil), v...) }
	m := New(4, make([]int, 0, 4), clone)
	m.Visit(0, 2, func(_, _ uint64, v *[]int) { *v = append(*v, 1) })
	m.Visit(2, 4, func(_, _ uint64, v *[]int) { *v = append(*v, 2) })

	segs := m.Segments()
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if fmt.Sprint(segs[0].Value) != "[1]" || fmt.Sprint(segs[1].Value) != "[2]" {
		t.Errorf("values share storage: %v %v", segs[0].Value, segs[1].Value)
	}
}
