// Package bnb implements sequential interval branch and bound.
//
// An Algorithm keeps a pool of boxes, repeatedly extracts one, bounds the
// objective on it with interval arithmetic, and either discards it, accepts
// it as small enough, or splits it. A box is discarded once its lower bound
// exceeds the screening value, the least upper bound of the minimum seen so
// far by this search and every search sharing its global Bound.
package bnb

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
	"github.com/copyleftdev/intervalbb/internal/optimization/worklist"
)

// State is the lifecycle state of a search.
type State int

const (
	// Running means boxes remain to be processed.
	Running State = iota
	// Exhausted means every box was discarded or accepted.
	Exhausted
	// Stopped means the stop criterion ended the search early.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exhausted:
		return "exhausted"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Algorithm is a sequential branch-and-bound minimizer. It is not safe for
// concurrent use except for the Bound values it shares.
type Algorithm struct {
	opts   Options
	logger *zap.Logger

	f         functions.Function
	domain    *box.Box
	precision float64
	stop      optimization.StopCriterion

	list        worklist.WorkList
	chooser     worklist.Chooser
	accepted    []*box.Box
	acceptedLow float64

	local  *Bound
	global *Bound
	bound  bool

	iterations int
	state      State
	stats      optimization.Stats
	solving    atomic.Bool
}

var _ optimization.Algorithm = (*Algorithm)(nil)
var _ optimization.SearchState = (*Algorithm)(nil)

// New creates an Algorithm. Zero fields of opts take the best-first defaults.
func New(opts Options, logger *zap.Logger) *Algorithm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Algorithm{
		opts:        opts.withDefaults(),
		logger:      logger.Named("bnb"),
		precision:   1e-6,
		local:       NewBound(math.Inf(1)),
		acceptedLow: math.Inf(1),
	}
}

// Name returns the variant name.
func (a *Algorithm) Name() string { return a.opts.Name }

// Bind makes the search publish upper bounds to local and read the screening
// value from both local and global. Either may be nil. Bind must precede
// SetProblem to keep SetProblem from resetting the local bound.
func (a *Algorithm) Bind(local, global *Bound) {
	if local == nil {
		local = NewBound(math.Inf(1))
	}
	a.local, a.global, a.bound = local, global, true
}

// SetProblem sets the objective and the area to search, and seeds the pool
// with the whole area.
func (a *Algorithm) SetProblem(f functions.Function, area *box.Box) error {
	const op = "Algorithm.SetProblem"
	switch {
	case a.solving.Load():
		return optimization.WrapError(optimization.ErrSolving, "bnb: "+op)
	case f == nil:
		return optimization.InvalidConfigf("bnb: %s: nil function", op)
	case area == nil || area.Dim() == 0:
		return optimization.InvalidConfigf("bnb: %s: empty area", op)
	case f.Dimension() != area.Dim():
		return optimization.InvalidConfigf("bnb: %s: function has dimension %d, area has %d",
			op, f.Dimension(), area.Dim())
	}

	a.f = f
	a.domain = area.Clone()
	a.iterations = 0
	a.stats = optimization.Stats{}
	if !a.bound {
		a.local = NewBound(math.Inf(1))
	}
	a.Seed(area.Clone())
	return nil
}

// Seed replaces the pending boxes with boxes and makes the search runnable
// again. Accepted boxes are dropped. Unevaluated boxes are evaluated.
func (a *Algorithm) Seed(boxes ...*box.Box) {
	a.list = a.opts.NewWorkList()
	a.chooser = a.opts.NewChooser(a.list)
	a.accepted = nil
	a.acceptedLow = math.Inf(1)
	a.state = Running
	for _, b := range boxes {
		if _, ok := b.Value(); !ok {
			a.evaluate(b)
		}
		a.list.Add(b)
		a.stats.MaxAge = max(a.stats.MaxAge, b.Age())
	}
}

// SetPrecision sets the width at which boxes are accepted.
func (a *Algorithm) SetPrecision(precision float64) error {
	if !(precision > 0) || math.IsInf(precision, 1) {
		return optimization.InvalidConfigf("bnb: precision must be positive and finite, got %v", precision)
	}
	a.precision = precision
	return nil
}

func (a *Algorithm) SetStopCriterion(sc optimization.StopCriterion) { a.stop = sc }

func (a *Algorithm) GetPrecision() float64 { return a.precision }

// Step processes one box and returns the resulting state.
func (a *Algorithm) Step() State {
	if a.state != Running {
		return a.state
	}
	if a.list == nil || a.list.Size() == 0 {
		a.state = Exhausted
		return a.state
	}
	if a.stop != nil && a.stop.IsSatisfied(a) {
		a.state = Stopped
		return a.state
	}

	b, err := a.chooser.ExtractNext()
	if errors.Is(err, worklist.ErrEmpty) {
		a.state = Exhausted
		return a.state
	}
	a.iterations++
	a.process(b)
	return a.state
}

func (a *Algorithm) process(b *box.Box) {
	v, ok := b.Value()
	if !ok {
		v = a.evaluate(b)
	}
	if v.Lo() > a.Screening() {
		a.stats.Pruned++
		return
	}
	if a.opts.Refine && !a.refine(b) {
		a.stats.Pruned++
		return
	}
	if every := a.opts.LocalSearchEvery; every > 0 && b.Age()%every == 0 {
		a.localSearch(b)
	}
	if a.isAccepted(b) {
		a.accept(b)
		return
	}

	l, r := a.opts.Splitter.Split(b)
	a.stats.Split++
	for _, c := range [2]*box.Box{l, r} {
		a.evaluate(c)
		if c.LowerBound() > a.Screening() {
			a.stats.Pruned++
			continue
		}
		a.list.Add(c)
		a.stats.MaxAge = max(a.stats.MaxAge, c.Age())
	}
}

// isAccepted reports whether b is small enough in value or in extent. A box
// no side of which can be bisected is accepted whatever the precision.
func (a *Algorithm) isAccepted(b *box.Box) bool {
	v, _ := b.Value()
	return v.Width() <= a.precision || b.Width() <= a.precision || !b.Bisectable()
}

func (a *Algorithm) accept(b *box.Box) {
	a.accepted = append(a.accepted, b)
	a.acceptedLow = math.Min(a.acceptedLow, b.LowerBound())
	a.stats.Accepted++
}

// evaluate caches the enclosure of f over b and publishes the upper bound it
// proves on the minimum.
func (a *Algorithm) evaluate(b *box.Box) interval.Interval {
	v := a.f.Evaluate(b)
	b.SetValue(v)
	a.stats.Evaluations++

	upper := v.Hi()
	if p := a.f.Point(b.Midpoint()); p < upper {
		upper = p
	}
	a.improve(upper)
	return v
}

// improve tightens the bounds with upper and drops boxes it rules out.
func (a *Algorithm) improve(upper float64) {
	improved := a.local.TryImprove(upper)
	if a.global != nil {
		a.global.TryImprove(upper)
	}
	if improved && a.list != nil {
		a.stats.Pruned += int64(a.list.Prune(a.Screening()))
	}
}

// Halt stops a running search. Pending boxes stay available.
func (a *Algorithm) Halt() {
	if a.state == Running {
		a.state = Stopped
	}
}

// State returns the current state.
func (a *Algorithm) State() State { return a.state }

// Iterations returns the number of boxes extracted, including those of the
// search this one was spawned from.
func (a *Algorithm) Iterations() int { return a.iterations }

// Remaining returns the number of pending boxes.
func (a *Algorithm) Remaining() int {
	if a.list == nil {
		return 0
	}
	return a.list.Size()
}

// Screening returns the least known upper bound of the minimum.
func (a *Algorithm) Screening() float64 {
	s := a.local.Value()
	if a.global != nil {
		s = math.Min(s, a.global.Value())
	}
	return s
}

// LowerBound returns the smallest lower bound among pending and accepted boxes.
func (a *Algorithm) LowerBound() float64 {
	lo := a.acceptedLow
	if a.list != nil {
		lo = math.Min(lo, a.list.LowestBound())
	}
	return lo
}

// Candidates returns the accepted boxes.
func (a *Algorithm) Candidates() []*box.Box {
	return append([]*box.Box(nil), a.accepted...)
}

// Outstanding returns the pending boxes.
func (a *Algorithm) Outstanding() []*box.Box {
	if a.list == nil {
		return nil
	}
	return a.list.Boxes()
}

// Donate removes up to n pending boxes, never more than half of them, for
// another search to process. When a single box remains and it is wider than
// the precision, it is split and one half is given away.
func (a *Algorithm) Donate(n int) []*box.Box {
	if a.list == nil || n <= 0 || a.state != Running {
		return nil
	}
	size := a.list.Size()
	switch size {
	case 0:
		return nil
	case 1:
		if b := a.list.Boxes()[0]; b.Width() <= a.precision || !b.Bisectable() {
			return nil
		}
		l, r := a.opts.Splitter.Split(a.list.Remove(0))
		a.stats.Split++
		a.evaluate(l)
		a.evaluate(r)
		a.list.Add(l)
		return []*box.Box{r}
	default:
		return a.list.Drain(min(n, size/2))
	}
}

// Spawn returns a new search over boxes sharing this one's problem,
// configuration, bounds and iteration count.
func (a *Algorithm) Spawn(boxes []*box.Box) *Algorithm {
	s := &Algorithm{
		opts:       a.opts,
		logger:     a.logger,
		f:          a.f,
		domain:     a.domain,
		precision:  a.precision,
		stop:       a.stop,
		local:      a.local,
		global:     a.global,
		bound:      a.bound,
		iterations: a.iterations,
	}
	s.Seed(boxes...)
	return s
}

// Stats returns the counters of this search.
func (a *Algorithm) Stats() optimization.Stats { return a.stats }

// Solve runs Step until the search leaves the Running state or ctx is done.
// A cancelled search is halted and reports the context error.
func (a *Algorithm) Solve(ctx context.Context) error {
	const op = "Algorithm.Solve"
	if a.f == nil {
		return optimization.WrapError(optimization.ErrNoProblem, "bnb: "+op)
	}
	if !a.solving.CompareAndSwap(false, true) {
		return optimization.WrapError(optimization.ErrSolving, "bnb: "+op)
	}
	defer a.solving.Store(false)

	start := time.Now()
	for a.state == Running {
		select {
		case <-ctx.Done():
			a.Halt()
			a.logger.Debug("search cancelled",
				zap.String("variant", a.opts.Name),
				zap.Int("iterations", a.iterations))
			return ctx.Err()
		default:
		}
		a.Step()
	}

	a.logger.Debug("search finished",
		zap.String("variant", a.opts.Name),
		zap.Stringer("state", a.state),
		zap.Int("iterations", a.iterations),
		zap.Int64("evaluations", a.stats.Evaluations),
		zap.Int("candidates", len(a.accepted)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// results returns the boxes that may hold a minimizer: the accepted ones, and
// the pending ones unless the search ran to exhaustion.
func (a *Algorithm) results() []*box.Box {
	out := a.Candidates()
	if a.state != Exhausted {
		out = append(out, a.Outstanding()...)
	}
	return out
}

func (a *Algorithm) GetOptimumArea() []*box.Box {
	area, _ := optimization.Summarize(a.results(), a.Screening())
	return area
}

func (a *Algorithm) GetOptimumValue() interval.Interval {
	_, v := optimization.Summarize(a.results(), a.Screening())
	return v
}

func (a *Algorithm) GetLowBoundMaxValue() float64 { return a.Screening() }
