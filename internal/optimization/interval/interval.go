// Package interval implements closed real intervals with outward-rounded
// arithmetic. Every operation returns an enclosure of the exact real result:
// endpoints produced by floating point arithmetic are widened by one ulp.
package interval

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivisionByZero is returned by Div when the divisor contains zero.
var ErrDivisionByZero = errors.New("interval: divisor contains zero")

// Interval is a closed interval [lo, hi] with lo <= hi.
type Interval struct {
	lo float64
	hi float64
}

// New creates [lo, hi]. It panics if lo > hi or either bound is NaN.
func New(lo, hi float64) Interval {
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		panic(fmt.Sprintf("interval: invalid bounds [%v, %v]", lo, hi))
	}
	return Interval{lo: lo, hi: hi}
}

// Point creates the degenerate interval [x, x].
func Point(x float64) Interval {
	return New(x, x)
}

// Entire returns (-Inf, +Inf).
func Entire() Interval {
	return Interval{lo: math.Inf(-1), hi: math.Inf(1)}
}

// outward widens [lo, hi] by one ulp on each side.
func outward(lo, hi float64) Interval {
	return Interval{
		lo: math.Nextafter(lo, math.Inf(-1)),
		hi: math.Nextafter(hi, math.Inf(1)),
	}
}

func (x Interval) Lo() float64 { return x.lo }
func (x Interval) Hi() float64 { return x.hi }

// Width returns hi - lo.
func (x Interval) Width() float64 { return x.hi - x.lo }

// Mid returns the midpoint, computed without overflow.
func (x Interval) Mid() float64 {
	if w := x.hi - x.lo; !math.IsInf(w, 0) {
		return x.lo + w/2
	}
	return x.lo/2 + x.hi/2
}

// IsPoint reports whether lo == hi.
func (x Interval) IsPoint() bool { return x.lo == x.hi }

// Bisectable reports whether Mid lies strictly inside x. Sides one float
// step wide or narrower are not bisectable.
func (x Interval) Bisectable() bool {
	m := x.Mid()
	return x.lo < m && m < x.hi
}

// IsFinite reports whether both bounds are finite.
func (x Interval) IsFinite() bool {
	return !math.IsInf(x.lo, 0) && !math.IsInf(x.hi, 0)
}

// Contains reports whether v lies in x.
func (x Interval) Contains(v float64) bool { return x.lo <= v && v <= x.hi }

// ContainsZero reports whether 0 lies in x.
func (x Interval) ContainsZero() bool { return x.Contains(0) }

// Intersect returns x ∩ y and false if the intersection is empty.
func (x Interval) Intersect(y Interval) (Interval, bool) {
	lo := math.Max(x.lo, y.lo)
	hi := math.Min(x.hi, y.hi)
	if lo > hi {
		return Interval{}, false
	}
	return Interval{lo: lo, hi: hi}, true
}

// Hull returns the smallest interval containing x and y.
func (x Interval) Hull(y Interval) Interval {
	return Interval{lo: math.Min(x.lo, y.lo), hi: math.Max(x.hi, y.hi)}
}

// Split divides x at p into [lo, p] and [p, hi]. p is clamped into x.
func (x Interval) Split(p float64) (Interval, Interval) {
	p = math.Max(x.lo, math.Min(p, x.hi))
	return Interval{lo: x.lo, hi: p}, Interval{lo: p, hi: x.hi}
}

func (x Interval) Neg() Interval { return Interval{lo: -x.hi, hi: -x.lo} }

func (x Interval) Add(y Interval) Interval { return outward(x.lo+y.lo, x.hi+y.hi) }

func (x Interval) Sub(y Interval) Interval { return outward(x.lo-y.hi, x.hi-y.lo) }

// AddScalar returns x + c.
func (x Interval) AddScalar(c float64) Interval { return x.Add(Point(c)) }

// Scale returns c * x.
func (x Interval) Scale(c float64) Interval {
	if c >= 0 {
		return outward(c*x.lo, c*x.hi)
	}
	return outward(c*x.hi, c*x.lo)
}

func (x Interval) Mul(y Interval) Interval {
	a, b, c, d := x.lo*y.lo, x.lo*y.hi, x.hi*y.lo, x.hi*y.hi
	lo := math.Min(math.Min(a, b), math.Min(c, d))
	hi := math.Max(math.Max(a, b), math.Max(c, d))
	// 0 * Inf
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return Entire()
	}
	return outward(lo, hi)
}

// Div returns x / y. Division by an interval containing zero is rejected
// rather than producing an extended-interval result.
func (x Interval) Div(y Interval) (Interval, error) {
	if y.ContainsZero() {
		return Interval{}, ErrDivisionByZero
	}
	return x.Mul(Interval{lo: 1 / y.hi, hi: 1 / y.lo}).widen(), nil
}

// widen adds one more ulp on both sides; used after the reciprocal step of Div.
func (x Interval) widen() Interval { return outward(x.lo, x.hi) }

// Sqr returns x², tighter than x.Mul(x) when x contains zero.
func (x Interval) Sqr() Interval {
	return x.Pow(2)
}

// Pow returns xⁿ for n >= 0.
func (x Interval) Pow(n int) Interval {
	switch {
	case n < 0:
		panic("interval: negative exponent")
	case n == 0:
		return Point(1)
	case n == 1:
		return x
	}
	lo := math.Pow(x.lo, float64(n))
	hi := math.Pow(x.hi, float64(n))
	if n%2 == 1 {
		return outward(lo, hi)
	}
	switch {
	case x.lo >= 0:
		return outward(lo, hi)
	case x.hi <= 0:
		return outward(hi, lo)
	default:
		return outward(0, math.Max(lo, hi))
	}
}

// Abs returns |x|.
func (x Interval) Abs() Interval {
	switch {
	case x.lo >= 0:
		return x
	case x.hi <= 0:
		return x.Neg()
	default:
		return Interval{lo: 0, hi: math.Max(-x.lo, x.hi)}
	}
}

// Exp returns eˣ.
func (x Interval) Exp() Interval {
	lo := math.Nextafter(math.Exp(x.lo), math.Inf(-1))
	if lo < 0 {
		lo = 0
	}
	return Interval{lo: lo, hi: math.Nextafter(math.Exp(x.hi), math.Inf(1))}
}

// Cos returns an enclosure of cos over x.
func (x Interval) Cos() Interval {
	if !x.IsFinite() || x.Width() >= 2*math.Pi {
		return Interval{lo: -1, hi: 1}
	}
	a, b := math.Cos(x.lo), math.Cos(x.hi)
	lo, hi := math.Min(a, b), math.Max(a, b)
	// maximum at 2kπ
	if k := math.Ceil(x.lo / (2 * math.Pi)); 2*math.Pi*k <= x.hi {
		hi = 1
	}
	// minimum at (2k+1)π
	if k := math.Ceil((x.lo - math.Pi) / (2 * math.Pi)); math.Pi+2*math.Pi*k <= x.hi {
		lo = -1
	}
	return clampUnit(outward(lo, hi))
}

// Sin returns an enclosure of sin over x.
func (x Interval) Sin() Interval {
	return x.Sub(Point(math.Pi / 2)).Cos()
}

func clampUnit(x Interval) Interval {
	return Interval{lo: math.Max(x.lo, -1), hi: math.Min(x.hi, 1)}
}

func (x Interval) String() string {
	return fmt.Sprintf("[%g, %g]", x.lo, x.hi)
}
