// Package optimtest provides objective functions and assertions shared by the
// solver tests.
package optimtest

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// ErrBroken is returned by the derivatives of Broken.
var ErrBroken = errors.New("optimtest: derivative failed")

// Counting wraps a function and counts interval evaluations. It is safe for
// concurrent use.
type Counting struct {
	functions.Function
	evaluations atomic.Int64
}

func NewCounting(f functions.Function) *Counting { return &Counting{Function: f} }

func (c *Counting) Evaluate(b *box.Box) interval.Interval {
	c.evaluations.Add(1)
	return c.Function.Evaluate(b)
}

// Evaluations returns the number of Evaluate calls so far.
func (c *Counting) Evaluations() int64 { return c.evaluations.Load() }

// Broken wraps a function whose derivatives always fail.
type Broken struct {
	functions.Function
}

func (Broken) Derivative1(*box.Box, int) (interval.Interval, error) {
	return interval.Interval{}, ErrBroken
}

func (Broken) Derivative2(*box.Box, int) (interval.Interval, error) {
	return interval.Interval{}, ErrBroken
}

// Step is a one-dimensional function equal to High on [lo, Edge] and to
// zero right of Edge. Boxes right of Edge enclose [0, width] and take Delay
// to evaluate, so a search over them stays busy while one over the flat part
// finishes at once.
type Step struct {
	Edge  float64
	High  float64
	Delay time.Duration
}

func (s Step) Dimension() int { return 1 }

func (s Step) Evaluate(b *box.Box) interval.Interval {
	x := b.Interval(0)
	switch {
	case x.Hi() <= s.Edge:
		return interval.Point(s.High)
	case x.Lo() > s.Edge:
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		return interval.New(0, x.Width())
	default:
		return interval.New(0, s.High)
	}
}

func (s Step) Point(x []float64) float64 {
	if x[0] <= s.Edge {
		return s.High
	}
	return 0
}

func (Step) Derivative1(*box.Box, int) (interval.Interval, error) {
	return interval.Interval{}, functions.ErrUnavailable
}

func (Step) Derivative2(*box.Box, int) (interval.Interval, error) {
	return interval.Interval{}, functions.ErrUnavailable
}

// MustBox builds a box from bounds or fails the test.
func MustBox(t testing.TB, bounds ...[2]float64) *box.Box {
	t.Helper()
	b, err := box.FromBounds(bounds)
	require.NoError(t, err)
	return b
}

// AssertEnclosesMinimum checks that the solver reports a value enclosing min
// and an area covering argmin.
func AssertEnclosesMinimum(t testing.TB, alg optimization.Algorithm, min float64, argmin []float64) {
	t.Helper()
	v := alg.GetOptimumValue()
	assert.True(t, v.Contains(min), "optimum value %v does not contain %v", v, min)
	assert.LessOrEqual(t, min, alg.GetLowBoundMaxValue())

	area := alg.GetOptimumArea()
	require.NotEmpty(t, area)
	covered := false
	for _, b := range area {
		if b.Contains(argmin) {
			covered = true
			break
		}
	}
	assert.True(t, covered, "no optimum box contains %v", argmin)
}

// AssertPartition checks that parts are disjoint up to shared faces and fill
// whole.
func AssertPartition(t testing.TB, whole *box.Box, parts []*box.Box) {
	t.Helper()
	sum := 0.0
	for i, p := range parts {
		sum += p.Volume()
		for j := i + 1; j < len(parts); j++ {
			assert.LessOrEqual(t, overlap(p, parts[j]), 1e-12*whole.Volume(),
				"parts %d and %d overlap", i, j)
		}
	}
	assert.InDelta(t, whole.Volume(), sum, 1e-9*whole.Volume())
}

func overlap(a, b *box.Box) float64 {
	v := 1.0
	for i := 0; i < a.Dim(); i++ {
		x, y := a.Interval(i), b.Interval(i)
		w := math.Min(x.Hi(), y.Hi()) - math.Max(x.Lo(), y.Lo())
		if w <= 0 {
			return 0
		}
		v *= w
	}
	return v
}

// AssertFloat64SlicesEqual checks that two slices agree within tol.
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range got {
		assert.InDelta(t, want[i], got[i], tol, "index %d", i)
	}
}
