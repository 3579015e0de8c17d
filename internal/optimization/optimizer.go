package optimization

import (
	"context"
	"math"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// Algorithm defines the interface shared by the sequential and the parallel
// branch-and-bound solvers. Problems are minimized.
//
// Mutators must not be called while Solve is running.
type Algorithm interface {
	// SetProblem sets the objective and the search area.
	SetProblem(f functions.Function, area *box.Box) error

	// SetPrecision sets the width below which a box is accepted.
	SetPrecision(precision float64) error

	// SetStopCriterion installs an additional stopping rule.
	SetStopCriterion(sc StopCriterion)

	// Solve runs the search until it is exhausted, stopped or ctx is done.
	Solve(ctx context.Context) error

	// GetOptimumArea returns the boxes that may contain a global minimizer.
	GetOptimumArea() []*box.Box

	// GetOptimumValue returns an enclosure of the global minimum.
	GetOptimumValue() interval.Interval

	// GetPrecision returns the configured precision.
	GetPrecision() float64

	// GetLowBoundMaxValue returns the screening value: the least known upper
	// bound of the minimum. A box whose lower bound exceeds it is discarded.
	GetLowBoundMaxValue() float64
}

// Stats counts what a search did with its boxes.
type Stats struct {
	Evaluations   int64 `json:"evaluations"`
	Pruned        int64 `json:"pruned"`
	Split         int64 `json:"split"`
	Accepted      int64 `json:"accepted"`
	Refined       int64 `json:"refined"`
	RefineSkipped int64 `json:"refine_skipped"`
	LocalSearches int64 `json:"local_searches"`
	MaxAge        int   `json:"max_age"`
	Donations     int64 `json:"donations"`
	Restarts      int64 `json:"restarts"`
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Evaluations += o.Evaluations
	s.Pruned += o.Pruned
	s.Split += o.Split
	s.Accepted += o.Accepted
	s.Refined += o.Refined
	s.RefineSkipped += o.RefineSkipped
	s.LocalSearches += o.LocalSearches
	s.MaxAge = max(s.MaxAge, o.MaxAge)
	s.Donations += o.Donations
	s.Restarts += o.Restarts
}

// Summarize reduces candidate boxes to the optimum area and value given the
// screening value. Boxes whose lower bound exceeds screening are dropped; the
// value is [lowest surviving lower bound, screening].
func Summarize(candidates []*box.Box, screening float64) ([]*box.Box, interval.Interval) {
	area := make([]*box.Box, 0, len(candidates))
	lowest := math.Inf(1)
	for _, b := range candidates {
		lo := b.LowerBound()
		if lo > screening {
			continue
		}
		area = append(area, b)
		lowest = math.Min(lowest, lo)
	}
	switch {
	case math.IsNaN(screening):
		return area, interval.Entire()
	case len(area) > 0:
		return area, interval.New(lowest, screening)
	case math.IsInf(screening, 0):
		return area, interval.Entire()
	default:
		return area, interval.Point(screening)
	}
}
