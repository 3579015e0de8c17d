package bnb

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
	"github.com/copyleftdev/intervalbb/internal/optimization/optimtest"
)

func parabola(t *testing.T, dim int) *functions.Expression {
	t.Helper()
	f, err := functions.ShiftedSphere(dim, functions.ParabolaCenter)
	require.NoError(t, err)
	return f
}

func newSolver(t *testing.T, opts Options, f functions.Function, area *box.Box, precision float64) *Algorithm {
	t.Helper()
	a := New(opts, nil)
	require.NoError(t, a.SetPrecision(precision))
	require.NoError(t, a.SetProblem(f, area))
	return a
}

func TestAlgorithmVariants(t *testing.T) {
	for _, name := range VariantNames() {
		t.Run(name, func(t *testing.T) {
			opts, err := Variant(name)
			require.NoError(t, err)

			a := newSolver(t, opts, parabola(t, 1), optimtest.MustBox(t, [2]float64{0, 1}), 1e-6)
			require.NoError(t, a.Solve(context.Background()))

			assert.Equal(t, Exhausted, a.State())
			optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter})
			assert.LessOrEqual(t, a.GetOptimumValue().Width(), 1e-6)
		})
	}
}

func TestAlgorithmBenchmarks(t *testing.T) {
	tests := []struct {
		name      string
		fn        string
		dim       int
		bounds    [][2]float64
		min       float64
		argmin    []float64
		precision float64
	}{
		{
			name:      "sphere 3d",
			fn:        "sphere",
			dim:       3,
			bounds:    [][2]float64{{-5, 4}, {-3, 7}, {-1, 1}},
			min:       0,
			argmin:    []float64{0, 0, 0},
			precision: 1e-4,
		},
		{
			name:      "booth",
			fn:        "booth",
			dim:       2,
			bounds:    [][2]float64{{-10, 10}, {-10, 10}},
			min:       0,
			argmin:    []float64{1, 3},
			precision: 1e-4,
		},
		{
			name:      "six hump camel",
			fn:        "sixhump",
			dim:       2,
			bounds:    [][2]float64{{-3, 3}, {-2, 2}},
			min:       -1.0316284534898774,
			precision: 1e-3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := functions.Lookup(tt.fn, tt.dim)
			require.NoError(t, err)
			area, err := box.FromBounds(tt.bounds)
			require.NoError(t, err)

			a := newSolver(t, DefaultOptions(), f, area, tt.precision)
			require.NoError(t, a.Solve(context.Background()))

			v := a.GetOptimumValue()
			assert.True(t, v.Contains(tt.min), "value %v does not contain %v", v, tt.min)
			if tt.argmin != nil {
				optimtest.AssertEnclosesMinimum(t, a, tt.min, tt.argmin)
			}
		})
	}
}

func TestAlgorithmSetProblemErrors(t *testing.T) {
	f2 := parabola(t, 2)

	tests := []struct {
		name string
		f    functions.Function
		area *box.Box
	}{
		{name: "nil function", f: nil, area: optimtest.MustBox(t, [2]float64{0, 1})},
		{name: "nil area", f: f2, area: nil},
		{name: "dimension mismatch", f: f2, area: optimtest.MustBox(t, [2]float64{0, 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(DefaultOptions(), nil).SetProblem(tt.f, tt.area)
			require.Error(t, err)
			assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
		})
	}
}

func TestAlgorithmSetPrecision(t *testing.T) {
	a := New(DefaultOptions(), nil)
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, a.SetPrecision(p), optimization.ErrInvalidConfig, "precision %v", p)
	}
	require.NoError(t, a.SetPrecision(1e-3))
	assert.Equal(t, 1e-3, a.GetPrecision())
}

func TestAlgorithmSolveWithoutProblem(t *testing.T) {
	err := New(DefaultOptions(), nil).Solve(context.Background())
	assert.ErrorIs(t, err, optimization.ErrNoProblem)
}

func TestAlgorithmStopCriterion(t *testing.T) {
	opts := DefaultOptions()
	opts.Refine = false
	a := newSolver(t, opts, parabola(t, 2), optimtest.MustBox(t, [2]float64{-4, 4}, [2]float64{-4, 4}), 1e-9)
	a.SetStopCriterion(optimization.MaxIterations(5))

	require.NoError(t, a.Solve(context.Background()))

	assert.Equal(t, Stopped, a.State())
	assert.Equal(t, 5, a.Iterations())
	optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter, functions.ParabolaCenter})
	assert.Equal(t, Stopped, a.Step(), "a stopped search stays stopped")
}

func TestAlgorithmContextCancelled(t *testing.T) {
	a := newSolver(t, DefaultOptions(), parabola(t, 2), optimtest.MustBox(t, [2]float64{-4, 4}, [2]float64{-4, 4}), 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Solve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Stopped, a.State())
	optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter, functions.ParabolaCenter})
}

func TestAlgorithmPrunesDominatedBoxes(t *testing.T) {
	f, err := functions.Lookup("sphere", 1)
	require.NoError(t, err)

	a := New(DefaultOptions(), nil)
	a.Bind(nil, NewBound(0.5))
	require.NoError(t, a.SetProblem(f, optimtest.MustBox(t, [2]float64{1, 2})))

	require.NoError(t, a.Solve(context.Background()))

	assert.Equal(t, Exhausted, a.State())
	assert.Empty(t, a.GetOptimumArea())
	assert.EqualValues(t, 1, a.Stats().Pruned)
	assert.Equal(t, 0.5, a.GetLowBoundMaxValue())
}

func TestAlgorithmRefineCollapsesMonotoneSide(t *testing.T) {
	f, err := functions.Lookup("sphere", 1)
	require.NoError(t, err)

	a := newSolver(t, DefaultOptions(), f, optimtest.MustBox(t, [2]float64{1, 2}), 1e-6)
	require.NoError(t, a.Solve(context.Background()))

	assert.Equal(t, 1, a.Iterations())
	area := a.GetOptimumArea()
	require.Len(t, area, 1)
	assert.Equal(t, interval.Point(1), area[0].Interval(0))
	assert.True(t, a.GetOptimumValue().Contains(1))
	assert.EqualValues(t, 1, a.Stats().Refined)
}

func TestAlgorithmRefineFailureIsNotFatal(t *testing.T) {
	broken := optimtest.Broken{Function: parabola(t, 1)}

	a := newSolver(t, DefaultOptions(), broken, optimtest.MustBox(t, [2]float64{0, 1}), 1e-6)
	require.NoError(t, a.Solve(context.Background()))

	assert.Equal(t, Exhausted, a.State())
	assert.Positive(t, a.Stats().RefineSkipped)
	optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter})
}

func TestAlgorithmCountsEvaluations(t *testing.T) {
	counting := optimtest.NewCounting(parabola(t, 2))

	a := newSolver(t, DefaultOptions(), counting, optimtest.MustBox(t, [2]float64{-1, 1}, [2]float64{-1, 1}), 1e-4)
	require.NoError(t, a.Solve(context.Background()))

	assert.Equal(t, counting.Evaluations(), a.Stats().Evaluations)
	assert.Positive(t, a.Stats().Split)
}

func TestAlgorithmLocalSearch(t *testing.T) {
	opts := DefaultOptions()
	opts.Refine = false
	opts.LocalSearchEvery = 3

	a := newSolver(t, opts, parabola(t, 2), optimtest.MustBox(t, [2]float64{-2, 2}, [2]float64{-2, 2}), 1e-5)
	require.NoError(t, a.Solve(context.Background()))

	assert.Positive(t, a.Stats().LocalSearches)
	optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter, functions.ParabolaCenter})
}

func TestAlgorithmAcceptsBoxesTooNarrowToBisect(t *testing.T) {
	lo := functions.ParabolaCenter
	hi := math.Nextafter(lo, 1)

	for _, name := range VariantNames() {
		for _, refine := range []bool{true, false} {
			opts, err := Variant(name)
			require.NoError(t, err)
			opts.Refine = refine

			a := newSolver(t, opts, parabola(t, 2), optimtest.MustBox(t, [2]float64{lo, hi}, [2]float64{lo, hi}), 1e-300)
			require.NoError(t, a.Solve(context.Background()))

			assert.Equal(t, Exhausted, a.State(), name)
			assert.Equal(t, 1, a.Iterations(), name)
			assert.Zero(t, a.Remaining(), name)
			assert.Len(t, a.GetOptimumArea(), 1, name)
		}
	}
}

func TestAlgorithmDonate(t *testing.T) {
	f := parabola(t, 1)

	t.Run("single wide box is split", func(t *testing.T) {
		a := newSolver(t, DefaultOptions(), f, optimtest.MustBox(t, [2]float64{0, 1}), 1e-6)

		got := a.Donate(5)
		require.Len(t, got, 1)
		assert.Equal(t, 1, a.Remaining())
		assert.InDelta(t, 0.5, got[0].Width(), 1e-12)
		_, evaluated := got[0].Value()
		assert.True(t, evaluated)
	})

	t.Run("single narrow box is kept", func(t *testing.T) {
		a := newSolver(t, DefaultOptions(), f, optimtest.MustBox(t, [2]float64{0, 1e-9}), 1e-6)
		assert.Empty(t, a.Donate(5))
		assert.Equal(t, 1, a.Remaining())
	})

	t.Run("single box too narrow to bisect is kept", func(t *testing.T) {
		lo := functions.ParabolaCenter
		a := newSolver(t, DefaultOptions(), f, optimtest.MustBox(t, [2]float64{lo, math.Nextafter(lo, 1)}), 1e-300)
		assert.Empty(t, a.Donate(5))
		assert.Equal(t, 1, a.Remaining())
	})

	t.Run("at most half is given", func(t *testing.T) {
		a := newSolver(t, DefaultOptions(), f, optimtest.MustBox(t, [2]float64{0, 1}), 1e-6)
		a.Seed(
			optimtest.MustBox(t, [2]float64{0, 0.25}),
			optimtest.MustBox(t, [2]float64{0.25, 0.5}),
			optimtest.MustBox(t, [2]float64{0.5, 0.75}),
			optimtest.MustBox(t, [2]float64{0.75, 1}),
		)

		assert.Len(t, a.Donate(10), 2)
		assert.Equal(t, 2, a.Remaining())
		assert.Len(t, a.Donate(1), 1)
		assert.Equal(t, 1, a.Remaining())
	})
}

func TestAlgorithmSpawn(t *testing.T) {
	global := NewBound(math.Inf(1))
	opts := DefaultOptions()
	opts.Refine = false
	a := New(opts, nil)
	a.Bind(NewBound(math.Inf(1)), global)
	require.NoError(t, a.SetPrecision(1e-6))
	require.NoError(t, a.SetProblem(parabola(t, 1), optimtest.MustBox(t, [2]float64{0, 1})))
	a.SetStopCriterion(optimization.MaxIterations(3))
	require.NoError(t, a.Solve(context.Background()))
	require.Equal(t, Stopped, a.State())

	s := a.Spawn(a.Outstanding())
	assert.Equal(t, Running, s.State())
	assert.Equal(t, a.Iterations(), s.Iterations())
	assert.Equal(t, a.Screening(), s.Screening())
	assert.Equal(t, a.Remaining(), s.Remaining())

	s.SetStopCriterion(nil)
	require.NoError(t, s.Solve(context.Background()))
	assert.Equal(t, Exhausted, s.State())
	assert.Equal(t, global.Value(), s.Screening())
	optimtest.AssertEnclosesMinimum(t, s, 0, []float64{functions.ParabolaCenter})
}

func TestVariantComposed(t *testing.T) {
	opts, err := Variant("queue/round-robin")
	require.NoError(t, err)
	assert.Equal(t, "queue/round-robin", opts.Name)
	assert.Equal(t, "round-robin", opts.Splitter.Name())

	a := newSolver(t, opts, parabola(t, 2), optimtest.MustBox(t, [2]float64{-1, 1}, [2]float64{0, 2}), 1e-6)
	require.NoError(t, a.Solve(context.Background()))
	assert.Equal(t, Exhausted, a.State())
	optimtest.AssertEnclosesMinimum(t, a, 0, []float64{functions.ParabolaCenter, functions.ParabolaCenter})
}

func TestVariantUnknown(t *testing.T) {
	for _, name := range []string{"simulated-annealing", "tree/widest", "stack/longest"} {
		_, err := Variant(name)
		assert.Error(t, err, name)
	}
}
