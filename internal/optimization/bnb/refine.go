package bnb

import (
	"errors"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// refine narrows b in place using derivative enclosures and reports whether
// b may still hold a minimizer. Missing or failing derivatives only skip the
// affected dimension.
//
// A dimension in which f is monotone collapses to the face holding the
// smaller values, or is discarded when that face lies inside the domain.
// A dimension strictly inside the domain in which f is convex is contracted
// with one interval Newton step on the partial derivative.
func (a *Algorithm) refine(b *box.Box) bool {
	old, _ := b.Value()
	changed := false

	for i := 0; i < b.Dim(); i++ {
		side := b.Interval(i)
		if side.IsPoint() {
			continue
		}
		d1, err := a.f.Derivative1(b, i)
		if err != nil {
			a.skipRefine(err, i)
			if errors.Is(err, functions.ErrUnavailable) {
				break
			}
			continue
		}

		dom := a.domain.Interval(i)
		switch {
		case d1.Lo() > 0:
			if side.Lo() > dom.Lo() {
				return false
			}
			b.SetInterval(i, interval.Point(side.Lo()))
			changed = true
		case d1.Hi() < 0:
			if side.Hi() < dom.Hi() {
				return false
			}
			b.SetInterval(i, interval.Point(side.Hi()))
			changed = true
		case side.Lo() > dom.Lo() && side.Hi() < dom.Hi():
			narrowed, ok, err := a.newton(b, i)
			if err != nil {
				a.skipRefine(err, i)
				continue
			}
			if !ok {
				return false
			}
			if narrowed != side {
				b.SetInterval(i, narrowed)
				changed = true
			}
		}
	}

	if !changed {
		return true
	}

	a.stats.Refined++
	v := a.f.Evaluate(b)
	if w, ok := v.Intersect(old); ok {
		v = w
	}
	b.SetValue(v)
	a.stats.Evaluations++
	if p := a.f.Point(b.Midpoint()); p < v.Hi() {
		a.improve(p)
	} else {
		a.improve(v.Hi())
	}
	return v.Lo() <= a.Screening()
}

// newton applies N = m - g(m)/h to side i of b, where g is the partial
// derivative along i and h encloses its derivative over b. It returns
// ok=false when the contraction is empty. Without a positive h the side is
// returned unchanged.
func (a *Algorithm) newton(b *box.Box, i int) (interval.Interval, bool, error) {
	side := b.Interval(i)
	d2, err := a.f.Derivative2(b, i)
	if err != nil {
		return side, true, err
	}
	if !(d2.Lo() > 0) {
		return side, true, nil
	}

	m := side.Mid()
	probe := b.Clone()
	probe.SetInterval(i, interval.Point(m))
	gm, err := a.f.Derivative1(probe, i)
	if err != nil {
		return side, true, err
	}
	step, err := gm.Div(d2)
	if err != nil {
		return side, true, err
	}
	narrowed, ok := side.Intersect(interval.Point(m).Sub(step))
	return narrowed, ok, nil
}

func (a *Algorithm) skipRefine(err error, dim int) {
	a.stats.RefineSkipped++
	a.logger.Debug("refinement skipped",
		zap.Int("dimension", dim),
		zap.Error(err))
}

// localSearch runs Nelder-Mead from the centre of b on point values of f,
// confined to b, and publishes the best value found as an upper bound.
func (a *Algorithm) localSearch(b *box.Box) {
	a.stats.LocalSearches++

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return a.f.Point(b.Clamp(append([]float64(nil), x...)))
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: a.opts.LocalSearchEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   a.precision,
			Relative:   a.precision,
			Iterations: 20,
		},
	}
	method := &optimize.NelderMead{SimplexSize: 0.5 * b.Width()}

	result, err := optimize.Minimize(problem, b.Midpoint(), settings, method)
	if err != nil {
		a.logger.Debug("local search failed", zap.Error(err))
	}
	if result == nil {
		return
	}
	a.improve(a.f.Point(b.Clamp(result.X)))
}
