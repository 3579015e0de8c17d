package parallel

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// event reports that a worker's run ended.
type event struct {
	id         int
	generation int64
	state      bnb.State
}

// Communicator coordinates the workers of one solve. It folds their local
// bounds into the global bound, harvests finished searches, hands work from
// busy workers to idle ones, and detects global termination.
//
// Run owns the idle bookkeeping; only the aggregated result is shared.
type Communicator struct {
	logger   *zap.Logger
	workers  []*Worker
	global   *bnb.Bound
	signal   *bnb.Signal
	interval time.Duration
	events   chan event
	restart  func(id int, boxes []*box.Box)

	idle   []bool
	active int

	mu         sync.Mutex
	candidates []*box.Box
	stats      optimization.Stats
	done       bool
	area       []*box.Box
	value      interval.Interval
}

func newCommunicator(logger *zap.Logger, workers []*Worker, global *bnb.Bound, signal *bnb.Signal,
	every time.Duration, restart func(int, []*box.Box)) *Communicator {
	return &Communicator{
		logger:   logger.Named("communicator"),
		workers:  workers,
		global:   global,
		signal:   signal,
		interval: every,
		events:   make(chan event, len(workers)),
		restart:  restart,
		idle:     make([]bool, len(workers)),
		active:   len(workers),
		value:    interval.Entire(),
	}
}

// Run coordinates until every worker is idle and none can be given work.
func (c *Communicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	cancelled := ctx.Done()
	for c.active > 0 {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-ticker.C:
			c.reduce()
			c.rebalance()
		case <-cancelled:
			c.signal.Raise()
			cancelled = nil
		}
	}

	c.finish()
	return nil
}

func (c *Communicator) handle(ev event) {
	alg := c.workers[ev.id].algorithm()

	c.mu.Lock()
	c.candidates = append(c.candidates, alg.Candidates()...)
	if ev.state == bnb.Stopped {
		c.candidates = append(c.candidates, alg.Outstanding()...)
	}
	c.stats.Merge(alg.Stats())
	c.mu.Unlock()

	c.idle[ev.id] = true
	c.active--
	c.logger.Debug("worker finished",
		zap.Int("worker", ev.id),
		zap.Int64("generation", ev.generation),
		zap.Stringer("state", ev.state),
		zap.Int("iterations", alg.Iterations()))

	c.reduce()
	if ev.state == bnb.Stopped {
		c.signal.Raise()
	}
	c.rebalance()
}

// reduce folds every local bound into the global one.
func (c *Communicator) reduce() {
	for _, w := range c.workers {
		c.global.TryImprove(w.local.Value())
	}
}

// rebalance restarts idle workers, lowest id first, with boxes taken from
// the busiest running worker.
func (c *Communicator) rebalance() {
	if c.signal.Raised() {
		return
	}
	for id, idle := range c.idle {
		if !idle {
			continue
		}
		boxes, donor := c.collect()
		if len(boxes) == 0 {
			return
		}

		c.idle[id] = false
		c.active++
		c.mu.Lock()
		c.stats.Donations++
		c.stats.Restarts++
		c.mu.Unlock()
		donationsTotal.Inc()

		c.logger.Debug("donating boxes",
			zap.Int("donor", donor),
			zap.Int("recipient", id),
			zap.Int("boxes", len(boxes)))
		c.restart(id, boxes)
	}
}

// collect takes boxes from running workers, trying the ones with the most
// queued boxes first. Ties go to the lower id.
func (c *Communicator) collect() ([]*box.Box, int) {
	type load struct{ id, remaining int }
	donors := make([]load, 0, len(c.workers))
	for i, w := range c.workers {
		if n := w.Remaining(); !c.idle[i] && n > 0 {
			donors = append(donors, load{id: i, remaining: n})
		}
	}
	slices.SortStableFunc(donors, func(a, b load) int { return b.remaining - a.remaining })

	for _, d := range donors {
		if boxes := c.workers[d.id].Donate(); len(boxes) > 0 {
			return boxes, d.id
		}
	}
	return nil, -1
}

func (c *Communicator) finish() {
	c.reduce()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.area, c.value = optimization.Summarize(c.candidates, c.global.Value())
	c.done = true
	c.logger.Debug("search complete",
		zap.Int("candidates", len(c.candidates)),
		zap.Int("optimum_boxes", len(c.area)),
		zap.Stringer("value", c.value),
		zap.Int64("donations", c.stats.Donations))
}

// Result returns the aggregated optimum area and value. ok is false until
// Run returned.
func (c *Communicator) Result() (area []*box.Box, value interval.Interval, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		return nil, interval.Entire(), false
	}
	return append([]*box.Box(nil), c.area...), c.value, true
}

// Stats returns the counters merged from every finished run so far.
func (c *Communicator) Stats() optimization.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
