// Package box models the hyper-rectangular regions searched by the
// branch-and-bound engine.
package box

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// Box is a hyper-rectangle with one interval per dimension, an optional
// cached enclosure of the objective over it, and the number of splits that
// produced it.
//
// A Box is owned by exactly one work list at a time and is not safe for
// concurrent mutation.
type Box struct {
	sides []interval.Interval

	value     interval.Interval
	evaluated bool

	age int
}

// New creates a Box from the given sides. The sides are copied.
func New(sides ...interval.Interval) *Box {
	return &Box{sides: append([]interval.Interval(nil), sides...)}
}

// FromBounds creates a Box from [min, max] pairs.
func FromBounds(bounds [][2]float64) (*Box, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("box: at least one dimension is required")
	}
	sides := make([]interval.Interval, len(bounds))
	for i, b := range bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || math.IsInf(b[0], 0) || math.IsInf(b[1], 0) {
			return nil, fmt.Errorf("box: dimension %d has non-finite bounds %v", i, b)
		}
		if b[0] > b[1] {
			return nil, fmt.Errorf("box: dimension %d has min %v greater than max %v", i, b[0], b[1])
		}
		sides[i] = interval.New(b[0], b[1])
	}
	return &Box{sides: sides}, nil
}

// Dim returns the number of dimensions.
func (b *Box) Dim() int { return len(b.sides) }

// Interval returns the side along dimension i.
func (b *Box) Interval(i int) interval.Interval { return b.sides[i] }

// Intervals returns a copy of all sides.
func (b *Box) Intervals() []interval.Interval {
	return append([]interval.Interval(nil), b.sides...)
}

// SetInterval replaces the side along dimension i and drops the cached value.
func (b *Box) SetInterval(i int, x interval.Interval) {
	b.sides[i] = x
	b.evaluated = false
}

// Value returns the cached objective enclosure, if any.
func (b *Box) Value() (interval.Interval, bool) { return b.value, b.evaluated }

// SetValue caches the objective enclosure.
func (b *Box) SetValue(v interval.Interval) {
	b.value = v
	b.evaluated = true
}

// LowerBound returns the lower end of the cached value, or -Inf when the
// box has not been evaluated.
func (b *Box) LowerBound() float64 {
	if !b.evaluated {
		return math.Inf(-1)
	}
	return b.value.Lo()
}

// Age returns the number of splits between the root box and b.
func (b *Box) Age() int { return b.age }

// Child returns a copy of b one generation older with side i replaced.
func (b *Box) Child(i int, side interval.Interval) *Box {
	c := &Box{sides: b.Intervals(), age: b.age + 1}
	c.sides[i] = side
	return c
}

// Clone returns an independent copy, value and age included.
func (b *Box) Clone() *Box {
	c := *b
	c.sides = b.Intervals()
	return &c
}

// Widths returns the side widths.
func (b *Box) Widths() []float64 {
	w := make([]float64, len(b.sides))
	for i, s := range b.sides {
		w[i] = s.Width()
	}
	return w
}

// Volume returns the product of the side widths.
func (b *Box) Volume() float64 {
	return floats.Prod(b.Widths())
}

// Widest returns the widest dimension and its width. Ties go to the lowest index.
func (b *Box) Widest() (int, float64) {
	w := b.Widths()
	i := floats.MaxIdx(w)
	return i, w[i]
}

// Width returns the width of the widest side.
func (b *Box) Width() float64 {
	_, w := b.Widest()
	return w
}

// Bisectable reports whether some side can still be split at its midpoint.
func (b *Box) Bisectable() bool {
	for _, s := range b.sides {
		if s.Bisectable() {
			return true
		}
	}
	return false
}

// IsDegenerate reports whether any side has zero width.
func (b *Box) IsDegenerate() bool {
	for _, s := range b.sides {
		if s.IsPoint() {
			return true
		}
	}
	return false
}

// Midpoint returns the centre of the box.
func (b *Box) Midpoint() []float64 {
	m := make([]float64, len(b.sides))
	for i, s := range b.sides {
		m[i] = s.Mid()
	}
	return m
}

// Contains reports whether point x lies in the closed box.
func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.sides) {
		return false
	}
	for i, s := range b.sides {
		if !s.Contains(x[i]) {
			return false
		}
	}
	return true
}

// Clamp projects x onto the box in place and returns it.
func (b *Box) Clamp(x []float64) []float64 {
	for i, s := range b.sides {
		x[i] = math.Max(s.Lo(), math.Min(x[i], s.Hi()))
	}
	return x
}

// Bounds returns the sides as [min, max] pairs.
func (b *Box) Bounds() [][2]float64 {
	out := make([][2]float64, len(b.sides))
	for i, s := range b.sides {
		out[i] = [2]float64{s.Lo(), s.Hi()}
	}
	return out
}

func (b *Box) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, s := range b.sides {
		if i > 0 {
			sb.WriteString(" x ")
		}
		sb.WriteString(s.String())
	}
	if b.evaluated {
		sb.WriteString(" -> ")
		sb.WriteString(b.value.String())
	}
	sb.WriteString("}")
	return sb.String()
}
