package optimization

// SearchState is the view of a running search handed to a StopCriterion.
type SearchState interface {
	// Iterations returns the number of boxes extracted so far.
	Iterations() int

	// Remaining returns the number of boxes still queued.
	Remaining() int

	// Screening returns the current screening value.
	Screening() float64

	// LowerBound returns the smallest lower bound among queued and accepted boxes.
	LowerBound() float64
}

// StopCriterion decides when a search has converged enough to stop.
type StopCriterion interface {
	IsSatisfied(s SearchState) bool
}

// StopFunc adapts a function to StopCriterion.
type StopFunc func(s SearchState) bool

func (f StopFunc) IsSatisfied(s SearchState) bool { return f(s) }

// MaxIterations stops after n extractions.
func MaxIterations(n int) StopCriterion {
	return StopFunc(func(s SearchState) bool { return s.Iterations() >= n })
}

// PrecisionReached stops once the gap between the screening value and the
// smallest outstanding lower bound is at most eps.
func PrecisionReached(eps float64) StopCriterion {
	return StopFunc(func(s SearchState) bool {
		return s.Screening()-s.LowerBound() <= eps
	})
}

// AnyOf is satisfied when one of cs is. Nil entries are ignored.
func AnyOf(cs ...StopCriterion) StopCriterion {
	return StopFunc(func(s SearchState) bool {
		for _, c := range cs {
			if c != nil && c.IsSatisfied(s) {
				return true
			}
		}
		return false
	})
}

// Limits combines an iteration limit and a gap target; zero disables
// either. It returns nil when both are disabled.
func Limits(maxIterations int, gap float64) StopCriterion {
	var cs []StopCriterion
	if maxIterations > 0 {
		cs = append(cs, MaxIterations(maxIterations))
	}
	if gap > 0 {
		cs = append(cs, PrecisionReached(gap))
	}
	if len(cs) == 0 {
		return nil
	}
	return AnyOf(cs...)
}
