package bnb

import (
	"math"
	"sync/atomic"

	"github.com/copyleftdev/intervalbb/internal/optimization"
)

// Bound is an upper bound on the minimum that can only be tightened.
// Value may be read from any goroutine while others call TryImprove.
type Bound struct {
	bits atomic.Uint64
}

// NewBound creates a bound holding v.
func NewBound(v float64) *Bound {
	b := &Bound{}
	b.bits.Store(math.Float64bits(v))
	return b
}

// Value returns the current bound.
func (b *Bound) Value() float64 {
	return math.Float64frombits(b.bits.Load())
}

// TryImprove lowers the bound to v if v is smaller and reports whether it did.
// NaN never improves the bound.
func (b *Bound) TryImprove(v float64) bool {
	for {
		old := b.bits.Load()
		if !(v < math.Float64frombits(old)) {
			return false
		}
		if b.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return true
		}
	}
}

// Signal is an external stop request. It satisfies StopCriterion once raised.
type Signal struct {
	raised atomic.Bool
}

// NewSignal creates a lowered signal.
func NewSignal() *Signal { return &Signal{} }

// Raise requests a stop. Safe to call repeatedly from any goroutine.
func (s *Signal) Raise() { s.raised.Store(true) }

// Raised reports whether Raise was called.
func (s *Signal) Raised() bool { return s.raised.Load() }

func (s *Signal) IsSatisfied(optimization.SearchState) bool { return s.Raised() }
