// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package alias assigns transient allocations to shared memory slots.
//
// Each request carries a liveness interval over schedule positions. Requests
// are coloured greedily in order of first use: a request joins the
// lowest-index slot of its compatibility class whose members have all died
// before it starts, or opens a new slot. Two requests in one slot therefore
// never have overlapping intervals.
package alias

import (
	"fmt"
	"math/bits"
	"slices"
)

// Request describes one allocation to place.
type Request struct {
	// ID identifies the request to the caller. IDs must be unique.
	ID int
	// Key groups requests with identical memory requirements; only requests
	// with the same Key may share a slot.
	Key string
	// Size and Alignment are the memory requirements in bytes.
	Size      uint64
	Alignment uint64
	// First and Last are the inclusive schedule positions of the first and
	// last use.
	First, Last int
	// Dedicated requests always get a slot of their own.
	Dedicated bool
}

// Slot is one physical allocation shared by its members.
type Slot struct {
	Key       string
	Class     int
	Size      uint64
	Alignment uint64
	Dedicated bool
	// Members lists request IDs in assignment order.
	Members []int
	// End is the largest Last of all members.
	End int
}

// Assignment places one request.
type Assignment struct {
	Slot int
	// Prev lists the members that occupied the slot before this request,
	// in assignment order.
	Prev []int
}

// Result is the outcome of Assign.
type Result struct {
	Slots       []Slot
	Assignments map[int]Assignment
	// Peak is the sum of slot sizes.
	Peak uint64
	// Unaliased is the memory needed if every request had its own slot.
	Unaliased uint64
}

// SizeClass returns ceil(log2(size)); requests of one class differ in size by
// at most a factor of two.
func SizeClass(size uint64) int {
	if size <= 1 {
		return 0
	}
	return bits.Len64(size - 1)
}

// AlignUp rounds size up to a multiple of align. align must be a power of two
// or zero.
func AlignUp(size, align uint64) uint64 {
	if align <= 1 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

// Assign colours requests into slots. With share false every request is
// treated as dedicated.
func Assign(reqs []Request, share bool) (Result, error) {
	order := slices.Clone(reqs)
	slices.SortStableFunc(order, func(a, b Request) int {
		if a.First != b.First {
			return a.First - b.First
		}
		return a.ID - b.ID
	})

	res := Result{Assignments: make(map[int]Assignment, len(reqs))}
	for _, r := range order {
		if r.Last < r.First {
			return Result{}, fmt.Errorf("alias: request %d has interval [%d,%d]", r.ID, r.First, r.Last)
		}
		if _, dup := res.Assignments[r.ID]; dup {
			return Result{}, fmt.Errorf("alias: duplicate request id %d", r.ID)
		}
		if r.Alignment != 0 && r.Alignment&(r.Alignment-1) != 0 {
			return Result{}, fmt.Errorf("alias: request %d alignment %d is not a power of two", r.ID, r.Alignment)
		}
		size := AlignUp(r.Size, r.Alignment)
		res.Unaliased += size
		class := SizeClass(size)
		dedicated := r.Dedicated || !share

		slot := -1
		if !dedicated {
			for i := range res.Slots {
				s := &res.Slots[i]
				if s.Dedicated || s.Key != r.Key || s.Class != class {
					continue
				}
				if s.End < r.First {
					slot = i
					break
				}
			}
		}

		if slot < 0 {
			res.Slots = append(res.Slots, Slot{
				Key:       r.Key,
				Class:     class,
				Dedicated: dedicated,
				End:       -1,
			})
			slot = len(res.Slots) - 1
		}

		s := &res.Slots[slot]
		res.Assignments[r.ID] = Assignment{Slot: slot, Prev: slices.Clone(s.Members)}
		s.Members = append(s.Members, r.ID)
		s.Size = max(s.Size, size)
		s.Alignment = max(s.Alignment, r.Alignment)
		s.End = max(s.End, r.Last)
	}

	for _, s := range res.Slots {
		res.Peak += s.Size
	}
	return res, nil
}

// Overlaps reports whether two inclusive intervals intersect.
func Overlaps(aFirst, aLast, bFirst, bLast int) bool {
	return aFirst <= bLast && bFirst <= aLast
}
