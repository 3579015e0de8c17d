// Package worklist holds the pools of pending boxes and the policies that
// pick the next box to process.
package worklist

import (
	"container/heap"
	"errors"
	"math"
	"slices"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
)

// ErrEmpty is returned by a Chooser whose work list has no boxes.
var ErrEmpty = errors.New("worklist: empty")

// WorkList is a mutable multiset of pending boxes. Positions are counted
// from the head: index 0 is the box a head-first policy would take next.
// Implementations are not safe for concurrent use.
type WorkList interface {
	// Add inserts one box.
	Add(b *box.Box)

	// AddAll inserts several boxes.
	AddAll(bs ...*box.Box)

	// Size returns the number of boxes held.
	Size() int

	// Remove takes out the box at position i, 0 <= i < Size().
	Remove(i int) *box.Box

	// Drain takes up to n boxes from the end opposite the head.
	Drain(n int) []*box.Box

	// Prune drops every box whose cached lower bound exceeds threshold and
	// returns how many were dropped.
	Prune(threshold float64) int

	// LowestBound returns the smallest cached lower bound, +Inf when empty.
	LowestBound() float64

	// Boxes returns a snapshot of the held boxes.
	Boxes() []*box.Box
}

// Sorted keeps boxes ordered by their cached lower bound; the head is the
// box with the smallest one.
type Sorted struct {
	h boxHeap
}

// NewSorted creates an empty best-first work list.
func NewSorted() *Sorted { return &Sorted{} }

func (s *Sorted) Add(b *box.Box) { heap.Push(&s.h, b) }

func (s *Sorted) AddAll(bs ...*box.Box) {
	for _, b := range bs {
		heap.Push(&s.h, b)
	}
}

func (s *Sorted) Size() int { return len(s.h) }

func (s *Sorted) Remove(i int) *box.Box { return heap.Remove(&s.h, i).(*box.Box) }

// Drain removes trailing heap leaves, which keeps the heap ordered.
func (s *Sorted) Drain(n int) []*box.Box {
	n = min(n, len(s.h))
	out := make([]*box.Box, n)
	copy(out, s.h[len(s.h)-n:])
	clear(s.h[len(s.h)-n:])
	s.h = s.h[:len(s.h)-n]
	return out
}

func (s *Sorted) Prune(threshold float64) int {
	before := len(s.h)
	s.h = slices.DeleteFunc(s.h, func(b *box.Box) bool { return b.LowerBound() > threshold })
	if removed := before - len(s.h); removed > 0 {
		heap.Init(&s.h)
		return removed
	}
	return 0
}

func (s *Sorted) LowestBound() float64 {
	if len(s.h) == 0 {
		return math.Inf(1)
	}
	return s.h[0].LowerBound()
}

func (s *Sorted) Boxes() []*box.Box { return slices.Clone([]*box.Box(s.h)) }

type boxHeap []*box.Box

func (h boxHeap) Len() int           { return len(h) }
func (h boxHeap) Less(i, j int) bool { return h[i].LowerBound() < h[j].LowerBound() }
func (h boxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *boxHeap) Push(x any)        { *h = append(*h, x.(*box.Box)) }
func (h *boxHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return b
}

// Unsorted keeps boxes in insertion order. As a stack the head is the most
// recently added box; as a queue it is the oldest.
type Unsorted struct {
	boxes []*box.Box
	lifo  bool
}

// NewStack creates a last-in-first-out work list.
func NewStack() *Unsorted { return &Unsorted{lifo: true} }

// NewQueue creates a first-in-first-out work list.
func NewQueue() *Unsorted { return &Unsorted{} }

func (u *Unsorted) Add(b *box.Box) { u.boxes = append(u.boxes, b) }

func (u *Unsorted) AddAll(bs ...*box.Box) { u.boxes = append(u.boxes, bs...) }

func (u *Unsorted) Size() int { return len(u.boxes) }

func (u *Unsorted) index(i int) int {
	if u.lifo {
		return len(u.boxes) - 1 - i
	}
	return i
}

func (u *Unsorted) Remove(i int) *box.Box {
	j := u.index(i)
	b := u.boxes[j]
	u.boxes = slices.Delete(u.boxes, j, j+1)
	return b
}

func (u *Unsorted) Drain(n int) []*box.Box {
	n = min(n, len(u.boxes))
	var out []*box.Box
	if u.lifo {
		out = slices.Clone(u.boxes[:n])
		u.boxes = slices.Delete(u.boxes, 0, n)
	} else {
		out = slices.Clone(u.boxes[len(u.boxes)-n:])
		u.boxes = slices.Delete(u.boxes, len(u.boxes)-n, len(u.boxes))
	}
	return out
}

func (u *Unsorted) Prune(threshold float64) int {
	before := len(u.boxes)
	u.boxes = slices.DeleteFunc(u.boxes, func(b *box.Box) bool { return b.LowerBound() > threshold })
	return before - len(u.boxes)
}

func (u *Unsorted) LowestBound() float64 {
	lowest := math.Inf(1)
	for _, b := range u.boxes {
		lowest = math.Min(lowest, b.LowerBound())
	}
	return lowest
}

func (u *Unsorted) Boxes() []*box.Box { return slices.Clone(u.boxes) }
