// Package parallel runs several branch-and-bound searches concurrently over
// a partition of one search area, sharing the best bound and moving work
// from busy searches to idle ones.
package parallel

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
	"github.com/copyleftdev/intervalbb/internal/optimization/splitter"
)

// DefaultRebalanceInterval is how often the communicator retries donations
// and folds bounds when no worker finishes.
const DefaultRebalanceInterval = 2 * time.Millisecond

// Executor is a parallel branch-and-bound solver. It implements
// optimization.Algorithm. Configure it before Solve; result accessors and
// GetLowBoundMaxValue may be called from other goroutines at any time.
type Executor struct {
	logger    *zap.Logger
	templates []bnb.Options
	rebalance time.Duration

	f         functions.Function
	area      *box.Box
	precision float64
	stop      optimization.StopCriterion

	global  atomic.Pointer[bnb.Bound]
	workers atomic.Pointer[[]*Worker]

	mu      sync.Mutex
	comm    *Communicator
	solving atomic.Bool
}

var _ optimization.Algorithm = (*Executor)(nil)

// NewExecutor creates an executor with the given number of workers. Worker i
// runs templates[i]; missing templates are filled with the default variant
// and extra ones are ignored.
func NewExecutor(workers int, logger *zap.Logger, templates ...bnb.Options) (*Executor, error) {
	if workers < 1 {
		return nil, optimization.InvalidConfigf("parallel: worker count must be at least 1, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("executor")

	opts := make([]bnb.Options, workers)
	copy(opts, templates)
	if len(templates) < workers {
		logger.Info("filling worker pool with default variant",
			zap.Int("workers", workers),
			zap.Int("templates", len(templates)),
			zap.String("variant", bnb.DefaultVariant))
		for i := len(templates); i < workers; i++ {
			opts[i] = bnb.DefaultOptions()
		}
	} else if len(templates) > workers {
		logger.Warn("ignoring extra algorithm templates",
			zap.Int("workers", workers),
			zap.Int("templates", len(templates)))
	}

	e := &Executor{
		logger:    logger,
		templates: opts,
		rebalance: DefaultRebalanceInterval,
		precision: 1e-6,
	}
	e.global.Store(bnb.NewBound(math.Inf(1)))
	return e, nil
}

// SetRebalanceInterval sets how often idle workers are offered work when no
// worker finishes. Non-positive values keep the current interval.
func (e *Executor) SetRebalanceInterval(d time.Duration) {
	if d > 0 {
		e.rebalance = d
	}
}

// Workers returns the number of workers.
func (e *Executor) Workers() int { return len(e.templates) }

// SetProblem validates and stores the problem. The area is partitioned among
// the workers when Solve starts.
func (e *Executor) SetProblem(f functions.Function, area *box.Box) error {
	const op = "Executor.SetProblem"
	switch {
	case e.solving.Load():
		return optimization.WrapError(optimization.ErrSolving, "parallel: "+op)
	case f == nil:
		return optimization.InvalidConfigf("parallel: %s: nil function", op)
	case area == nil || area.Dim() == 0:
		return optimization.InvalidConfigf("parallel: %s: empty area", op)
	case f.Dimension() != area.Dim():
		return optimization.InvalidConfigf("parallel: %s: function has dimension %d, area has %d",
			op, f.Dimension(), area.Dim())
	}

	e.f = f
	e.area = area.Clone()

	upper := f.Evaluate(area).Hi()
	if p := f.Point(area.Midpoint()); p < upper {
		upper = p
	}
	e.global.Store(bnb.NewBound(upper))
	e.workers.Store(nil)

	e.mu.Lock()
	e.comm = nil
	e.mu.Unlock()
	return nil
}

// SetPrecision sets the acceptance width used by every worker.
func (e *Executor) SetPrecision(precision float64) error {
	if !(precision > 0) || math.IsInf(precision, 1) {
		return optimization.InvalidConfigf("parallel: precision must be positive and finite, got %v", precision)
	}
	e.precision = precision
	return nil
}

// SetStopCriterion sets a criterion every worker checks against its own
// search. A worker stopping by it stops all workers.
func (e *Executor) SetStopCriterion(sc optimization.StopCriterion) { e.stop = sc }

func (e *Executor) GetPrecision() float64 { return e.precision }

// Partition splits area breadth-first with sp until exactly n regions exist.
func Partition(area *box.Box, n int, sp splitter.Splitter) []*box.Box {
	regions := []*box.Box{area.Clone()}
	for len(regions) < n {
		l, r := sp.Split(regions[0])
		regions = append(regions[1:], l, r)
	}
	return regions
}

// prepare creates one worker per region with fresh local bounds.
func (e *Executor) prepare(stop optimization.StopCriterion) ([]*Worker, error) {
	n := len(e.templates)
	regions := Partition(e.area, n, splitter.NewWidest())
	global := e.global.Load()

	workers := make([]*Worker, n)
	for i := range workers {
		local := bnb.NewBound(math.Inf(1))
		alg := bnb.New(e.templates[i], e.logger)
		alg.Bind(local, global)
		if err := alg.SetPrecision(e.precision); err != nil {
			return nil, err
		}
		if err := alg.SetProblem(e.f, e.area); err != nil {
			return nil, err
		}
		alg.SetStopCriterion(stop)
		alg.Seed(regions[i])
		workers[i] = newWorker(i, alg, local)
	}
	return workers, nil
}

// Solve partitions the area, runs every worker and the communicator, and
// returns once all of them finished. If ctx is done first the search halts
// at the next step of each worker, the partial result is still aggregated
// and the context error is returned.
func (e *Executor) Solve(ctx context.Context) error {
	const op = "Executor.Solve"
	if e.f == nil {
		return optimization.WrapError(optimization.ErrNoProblem, "parallel: "+op)
	}
	if !e.solving.CompareAndSwap(false, true) {
		return optimization.WrapError(optimization.ErrSolving, "parallel: "+op)
	}
	defer e.solving.Store(false)

	start := time.Now()
	signal := bnb.NewSignal()
	workers, err := e.prepare(optimization.AnyOf(e.stop, signal))
	if err != nil {
		return optimization.WrapError(err, "parallel: "+op)
	}
	e.workers.Store(&workers)

	g, gctx := errgroup.WithContext(ctx)
	var comm *Communicator
	comm = newCommunicator(e.logger, workers, e.global.Load(), signal, e.rebalance,
		func(id int, boxes []*box.Box) {
			workers[id].replace(boxes)
			restartsTotal.Inc()
			e.launch(g, gctx, workers[id], comm.events)
		})

	e.mu.Lock()
	e.comm = comm
	e.mu.Unlock()

	e.logger.Info("solve started",
		zap.Int("workers", len(workers)),
		zap.Float64("precision", e.precision),
		zap.Int("dimension", e.area.Dim()))

	for _, w := range workers {
		e.launch(g, gctx, w, comm.events)
	}
	g.Go(func() error { return comm.Run(gctx) })
	err = g.Wait()

	stats := comm.Stats()
	recordStats(stats)
	status := "ok"
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		status = "cancelled"
	}
	solveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	_, value, _ := comm.Result()
	e.logger.Info("solve finished",
		zap.String("status", status),
		zap.Stringer("value", value),
		zap.Int64("evaluations", stats.Evaluations),
		zap.Int64("donations", stats.Donations),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

func (e *Executor) launch(g *errgroup.Group, ctx context.Context, w *Worker, events chan<- event) {
	generation := w.Generation()
	activeWorkers.Inc()
	g.Go(func() error {
		defer activeWorkers.Dec()
		state := w.Run(ctx)
		events <- event{id: w.ID(), generation: generation, state: state}
		return nil
	})
}

func (e *Executor) communicator() *Communicator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comm
}

// GetOptimumArea returns the optimum boxes of the last completed solve.
func (e *Executor) GetOptimumArea() []*box.Box {
	if c := e.communicator(); c != nil {
		area, _, _ := c.Result()
		return area
	}
	return nil
}

// GetOptimumValue returns the optimum enclosure of the last completed solve,
// or the entire line before one completed.
func (e *Executor) GetOptimumValue() interval.Interval {
	if c := e.communicator(); c != nil {
		_, v, _ := c.Result()
		return v
	}
	return interval.Entire()
}

// GetLowBoundMaxValue returns the current screening value. It is safe to
// call while Solve runs.
func (e *Executor) GetLowBoundMaxValue() float64 {
	v := e.global.Load().Value()
	if ws := e.workers.Load(); ws != nil {
		for _, w := range *ws {
			v = math.Min(v, w.local.Value())
		}
	}
	return v
}

// Stats returns the counters aggregated over finished worker runs.
func (e *Executor) Stats() optimization.Stats {
	if c := e.communicator(); c != nil {
		return c.Stats()
	}
	return optimization.Stats{}
}

// Generation returns how often worker i was restarted in the last solve.
func (e *Executor) Generation(i int) int64 {
	ws := e.workers.Load()
	if ws == nil || i < 0 || i >= len(*ws) {
		return 0
	}
	return (*ws)[i].Generation()
}
