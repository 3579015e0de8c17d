package parallel

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
	"github.com/copyleftdev/intervalbb/internal/optimization/box"
)

// Worker runs one sequential search on behalf of an Executor. Its search is
// replaced only between runs; donations taken from it during a run are
// serialized with its steps.
type Worker struct {
	id    int
	local *bnb.Bound

	mu  sync.Mutex
	alg *bnb.Algorithm

	generation atomic.Int64
	remaining  atomic.Int64
}

func newWorker(id int, alg *bnb.Algorithm, local *bnb.Bound) *Worker {
	w := &Worker{id: id, alg: alg, local: local}
	w.remaining.Store(int64(alg.Remaining()))
	return w
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// Generation returns how many times the worker was restarted.
func (w *Worker) Generation() int64 { return w.generation.Load() }

// Remaining returns the number of boxes queued after the last step.
func (w *Worker) Remaining() int { return int(w.remaining.Load()) }

// Run steps the search until it leaves the Running state. A done ctx halts
// it at the next step boundary.
func (w *Worker) Run(ctx context.Context) bnb.State {
	for {
		w.mu.Lock()
		if ctx.Err() != nil {
			w.alg.Halt()
		}
		state := w.alg.Step()
		w.remaining.Store(int64(w.alg.Remaining()))
		w.mu.Unlock()

		if state != bnb.Running {
			return state
		}
	}
}

// Donate takes boxes from the running search for another worker.
func (w *Worker) Donate() []*box.Box {
	w.mu.Lock()
	defer w.mu.Unlock()
	boxes := w.alg.Donate(math.MaxInt)
	w.remaining.Store(int64(w.alg.Remaining()))
	return boxes
}

// replace swaps in a search over boxes spawned from the finished one.
func (w *Worker) replace(boxes []*box.Box) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alg = w.alg.Spawn(boxes)
	w.remaining.Store(int64(w.alg.Remaining()))
	w.generation.Add(1)
}

func (w *Worker) algorithm() *bnb.Algorithm {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alg
}
