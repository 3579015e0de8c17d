package functions

import (
	"fmt"
	"math"
	"sort"

	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// ParabolaCenter is the coordinate of the minimum of the "parabola" benchmark.
const ParabolaCenter = 0.3

// Constructor builds a benchmark for the requested dimension.
type Constructor func(dim int) (*Expression, error)

var registry = map[string]Constructor{
	"sphere":     Sphere,
	"parabola":   func(dim int) (*Expression, error) { return ShiftedSphere(dim, ParabolaCenter) },
	"rosenbrock": Rosenbrock,
	"rastrigin":  Rastrigin,
	"booth":      fixed(2, Booth),
	"sixhump":    fixed(2, SixHumpCamel),
}

// Lookup returns the benchmark registered under name.
func Lookup(name string, dim int) (*Expression, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return c(dim)
}

// Names lists the registered benchmarks.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func fixed(want int, c func() (*Expression, error)) Constructor {
	return func(dim int) (*Expression, error) {
		if dim != want {
			return nil, fmt.Errorf("function is defined for dimension %d only, got %d", want, dim)
		}
		return c()
	}
}

func constant(v float64) Partial {
	return func([]interval.Interval) (interval.Interval, error) { return interval.Point(v), nil }
}

// Sphere is Σ x_i², minimum 0 at the origin.
func Sphere(dim int) (*Expression, error) {
	return ShiftedSphere(dim, 0)
}

// ShiftedSphere is Σ (x_i - c)², minimum 0 at (c, ..., c).
func ShiftedSphere(dim int, c float64) (*Expression, error) {
	f := func(x []interval.Interval) interval.Interval {
		sum := interval.Point(0)
		for _, xi := range x {
			sum = sum.Add(xi.AddScalar(-c).Sqr())
		}
		return sum
	}
	d1 := make([]Partial, dim)
	d2 := make([]Partial, dim)
	for i := range d1 {
		d1[i] = func(x []interval.Interval) (interval.Interval, error) {
			return x[i].AddScalar(-c).Scale(2), nil
		}
		d2[i] = constant(2)
	}
	name := "sphere"
	if c != 0 {
		name = fmt.Sprintf("sphere(c=%g)", c)
	}
	return NewExpression(name, dim, f, d1, d2)
}

// Rosenbrock is Σ 100(x_{i+1} - x_i²)² + (1 - x_i)², minimum 0 at (1, ..., 1).
func Rosenbrock(dim int) (*Expression, error) {
	if dim < 2 {
		return nil, fmt.Errorf("rosenbrock needs at least 2 dimensions, got %d", dim)
	}
	f := func(x []interval.Interval) interval.Interval {
		sum := interval.Point(0)
		for i := 0; i+1 < len(x); i++ {
			a := x[i+1].Sub(x[i].Sqr()).Sqr().Scale(100)
			b := interval.Point(1).Sub(x[i]).Sqr()
			sum = sum.Add(a).Add(b)
		}
		return sum
	}
	d1 := make([]Partial, dim)
	d2 := make([]Partial, dim)
	for i := range d1 {
		d1[i] = func(x []interval.Interval) (interval.Interval, error) {
			g := interval.Point(0)
			if i+1 < len(x) {
				// -400 x_i (x_{i+1} - x_i²) - 2 (1 - x_i)
				g = g.Add(x[i].Mul(x[i+1].Sub(x[i].Sqr())).Scale(-400))
				g = g.Add(interval.Point(1).Sub(x[i]).Scale(-2))
			}
			if i > 0 {
				g = g.Add(x[i].Sub(x[i-1].Sqr()).Scale(200))
			}
			return g, nil
		}
		d2[i] = func(x []interval.Interval) (interval.Interval, error) {
			h := interval.Point(0)
			if i+1 < len(x) {
				// 1200 x_i² - 400 x_{i+1} + 2
				h = h.Add(x[i].Sqr().Scale(1200)).Sub(x[i+1].Scale(400)).AddScalar(2)
			}
			if i > 0 {
				h = h.AddScalar(200)
			}
			return h, nil
		}
	}
	return NewExpression("rosenbrock", dim, f, d1, d2)
}

// Rastrigin is 10d + Σ x_i² - 10 cos(2π x_i), minimum 0 at the origin.
func Rastrigin(dim int) (*Expression, error) {
	const twoPi = 2 * math.Pi
	f := func(x []interval.Interval) interval.Interval {
		sum := interval.Point(10 * float64(len(x)))
		for _, xi := range x {
			sum = sum.Add(xi.Sqr()).Sub(xi.Scale(twoPi).Cos().Scale(10))
		}
		return sum
	}
	d1 := make([]Partial, dim)
	d2 := make([]Partial, dim)
	for i := range d1 {
		d1[i] = func(x []interval.Interval) (interval.Interval, error) {
			// 2x + 20π sin(2πx)
			return x[i].Scale(2).Add(x[i].Scale(twoPi).Sin().Scale(10 * twoPi)), nil
		}
		d2[i] = func(x []interval.Interval) (interval.Interval, error) {
			// 2 + 40π² cos(2πx)
			return x[i].Scale(twoPi).Cos().Scale(10 * twoPi * twoPi).AddScalar(2), nil
		}
	}
	return NewExpression("rastrigin", dim, f, d1, d2)
}

// Booth is (x + 2y - 7)² + (2x + y - 5)², minimum 0 at (1, 3).
func Booth() (*Expression, error) {
	f := func(x []interval.Interval) interval.Interval {
		a := x[0].Add(x[1].Scale(2)).AddScalar(-7).Sqr()
		b := x[0].Scale(2).Add(x[1]).AddScalar(-5).Sqr()
		return a.Add(b)
	}
	d1 := []Partial{
		func(x []interval.Interval) (interval.Interval, error) {
			return x[0].Scale(10).Add(x[1].Scale(8)).AddScalar(-34), nil
		},
		func(x []interval.Interval) (interval.Interval, error) {
			return x[0].Scale(8).Add(x[1].Scale(10)).AddScalar(-38), nil
		},
	}
	return NewExpression("booth", 2, f, d1, []Partial{constant(10), constant(10)})
}

// SixHumpCamel is 4x² - 2.1x⁴ + x⁶/3 + xy - 4y² + 4y⁴, minimum ≈ -1.0316
// at (±0.0898, ∓0.7126).
func SixHumpCamel() (*Expression, error) {
	f := func(x []interval.Interval) interval.Interval {
		a, b := x[0], x[1]
		// the x terms share a variable; Horner form keeps the enclosure tight
		// x²(4 - 2.1x² + x⁴/3)
		a2 := a.Sqr()
		px := a2.Mul(a2.Sqr().Scale(1.0 / 3).Sub(a2.Scale(2.1)).AddScalar(4))
		// y²(4y² - 4)
		b2 := b.Sqr()
		py := b2.Mul(b2.Scale(4).AddScalar(-4))
		return px.Add(a.Mul(b)).Add(py)
	}
	d1 := []Partial{
		func(x []interval.Interval) (interval.Interval, error) {
			a := x[0]
			// 8x - 8.4x³ + 2x⁵ + y
			return a.Scale(8).Sub(a.Pow(3).Scale(8.4)).Add(a.Pow(5).Scale(2)).Add(x[1]), nil
		},
		func(x []interval.Interval) (interval.Interval, error) {
			b := x[1]
			// x - 8y + 16y³
			return x[0].Sub(b.Scale(8)).Add(b.Pow(3).Scale(16)), nil
		},
	}
	d2 := []Partial{
		func(x []interval.Interval) (interval.Interval, error) {
			a := x[0]
			return a.Pow(4).Scale(10).Sub(a.Sqr().Scale(25.2)).AddScalar(8), nil
		},
		func(x []interval.Interval) (interval.Interval, error) {
			return x[1].Sqr().Scale(48).AddScalar(-8), nil
		},
	}
	return NewExpression("sixhump", 2, f, d1, d2)
}
