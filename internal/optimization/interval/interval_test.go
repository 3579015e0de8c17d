package interval

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvertedBounds(t *testing.T) {
	assert.Panics(t, func() { New(1, 0) })
	assert.Panics(t, func() { New(math.NaN(), 0) })
	assert.NotPanics(t, func() { New(0, 0) })
}

func TestArithmeticEnclosesSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sample := func(x Interval) float64 { return x.Lo() + rng.Float64()*x.Width() }

	tests := []struct {
		name  string
		x, y  Interval
		op    func(x, y Interval) Interval
		point func(a, b float64) float64
	}{
		{"add", New(-1, 2), New(0.5, 3), Interval.Add, func(a, b float64) float64 { return a + b }},
		{"sub", New(-1, 2), New(0.5, 3), Interval.Sub, func(a, b float64) float64 { return a - b }},
		{"mul mixed signs", New(-2, 3), New(-1, 4), Interval.Mul, func(a, b float64) float64 { return a * b }},
		{"mul negative", New(-5, -1), New(2, 3), Interval.Mul, func(a, b float64) float64 { return a * b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.op(tt.x, tt.y)
			for i := 0; i < 1000; i++ {
				a, b := sample(tt.x), sample(tt.y)
				assert.True(t, r.Contains(tt.point(a, b)), "%v not in %v", tt.point(a, b), r)
			}
		})
	}
}

func TestDiv(t *testing.T) {
	q, err := New(1, 2).Div(New(4, 8))
	require.NoError(t, err)
	assert.True(t, q.Contains(0.125))
	assert.True(t, q.Contains(0.5))
	assert.InDelta(t, 0.125, q.Lo(), 1e-12)
	assert.InDelta(t, 0.5, q.Hi(), 1e-12)

	_, err = New(1, 2).Div(New(-1, 1))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestPow(t *testing.T) {
	tests := []struct {
		name   string
		x      Interval
		n      int
		lo, hi float64
	}{
		{"square straddling zero", New(-2, 1), 2, 0, 4},
		{"square negative", New(-3, -2), 2, 4, 9},
		{"cube", New(-2, 1), 3, -8, 1},
		{"fourth positive", New(1, 2), 4, 1, 16},
		{"zero exponent", New(-5, 5), 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.x.Pow(tt.n)
			assert.InDelta(t, tt.lo, r.Lo(), 1e-12)
			assert.InDelta(t, tt.hi, r.Hi(), 1e-12)
			assert.LessOrEqual(t, r.Lo(), tt.lo)
			assert.GreaterOrEqual(t, r.Hi(), tt.hi)
		})
	}
}

func TestCosAndSin(t *testing.T) {
	tests := []struct {
		name   string
		x      Interval
		lo, hi float64
	}{
		{"contains zero", New(-0.5, 0.5), math.Cos(0.5), 1},
		{"contains pi", New(3, 3.5), -1, math.Max(math.Cos(3), math.Cos(3.5))},
		{"monotone piece", New(0.5, 1), math.Cos(1), math.Cos(0.5)},
		{"full period", New(0, 7), -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.x.Cos()
			assert.InDelta(t, tt.lo, r.Lo(), 1e-12)
			assert.InDelta(t, tt.hi, r.Hi(), 1e-12)
		})
	}

	s := New(0, math.Pi).Sin()
	assert.InDelta(t, 1, s.Hi(), 1e-12)
	assert.InDelta(t, 0, s.Lo(), 1e-12)
}

func TestIntersectAndHull(t *testing.T) {
	x, ok := New(0, 2).Intersect(New(1, 3))
	require.True(t, ok)
	assert.Equal(t, New(1, 2), x)

	_, ok = New(0, 1).Intersect(New(2, 3))
	assert.False(t, ok)

	assert.Equal(t, New(0, 3), New(0, 1).Hull(New(2, 3)))
}

func TestSplit(t *testing.T) {
	l, r := New(0, 1).Split(0.25)
	assert.Equal(t, New(0, 0.25), l)
	assert.Equal(t, New(0.25, 1), r)
	assert.Equal(t, 1.0, l.Width()+r.Width())
}

func TestExpIsNonNegative(t *testing.T) {
	r := New(-800, 0).Exp()
	assert.GreaterOrEqual(t, r.Lo(), 0.0)
	assert.True(t, r.Contains(1))
}

func TestBisectable(t *testing.T) {
	tests := []struct {
		name string
		x    Interval
		want bool
	}{
		{name: "wide", x: New(0, 1), want: true},
		{name: "point", x: Point(0.3), want: false},
		{name: "one step", x: New(0.3, math.Nextafter(0.3, 1)), want: false},
		{name: "full float range", x: New(-math.MaxFloat64, math.MaxFloat64), want: true},
		{name: "two steps", x: New(0.3, math.Nextafter(math.Nextafter(0.3, 1), 1)), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.x.Bisectable())
		})
	}
}
