// Package splitter provides the box division policies used when a region
// cannot yet be accepted or discarded.
package splitter

import (
	"fmt"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
)

// Splitter divides a box into two children whose sides along the chosen
// dimension partition the parent's side and whose interiors do not overlap.
// Each child is one generation older than the parent.
type Splitter interface {
	// Split returns the two children of b. b itself is not modified.
	Split(b *box.Box) (*box.Box, *box.Box)

	// Name identifies the policy in logs and variant names.
	Name() string
}

// Widest splits the widest bisectable side at its midpoint.
type Widest struct{}

// NewWidest creates a widest-side bisection splitter.
func NewWidest() *Widest { return &Widest{} }

func (s *Widest) Split(b *box.Box) (*box.Box, *box.Box) {
	dim, width := -1, -1.0
	for i := 0; i < b.Dim(); i++ {
		side := b.Interval(i)
		if side.Bisectable() && side.Width() > width {
			dim, width = i, side.Width()
		}
	}
	if dim < 0 {
		dim, _ = b.Widest()
	}
	return bisect(b, dim)
}

func (s *Widest) Name() string { return "widest" }

// RoundRobin splits dimension age mod d at its midpoint, so consecutive
// generations cycle through the coordinates. Sides too narrow to bisect are
// skipped.
type RoundRobin struct{}

// NewRoundRobin creates a round-robin bisection splitter.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (s *RoundRobin) Split(b *box.Box) (*box.Box, *box.Box) {
	d := b.Dim()
	for k := 0; k < d; k++ {
		dim := (b.Age() + k) % d
		if b.Interval(dim).Bisectable() {
			return bisect(b, dim)
		}
	}
	return bisect(b, b.Age()%d)
}

func (s *RoundRobin) Name() string { return "round-robin" }

// ByName returns the splitter registered under name.
func ByName(name string) (Splitter, error) {
	switch name {
	case "widest", "":
		return NewWidest(), nil
	case "round-robin":
		return NewRoundRobin(), nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", name)
	}
}

func bisect(b *box.Box, dim int) (*box.Box, *box.Box) {
	side := b.Interval(dim)
	lo, hi := side.Split(side.Mid())
	return b.Child(dim, lo), b.Child(dim, hi)
}
