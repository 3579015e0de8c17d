package bnb

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundTryImprove(t *testing.T) {
	b := NewBound(math.Inf(1))

	assert.True(t, b.TryImprove(3))
	assert.False(t, b.TryImprove(4))
	assert.False(t, b.TryImprove(3))
	assert.False(t, b.TryImprove(math.NaN()))
	assert.True(t, b.TryImprove(-1))
	assert.Equal(t, -1.0, b.Value())
}

func TestBoundConcurrentMonotone(t *testing.T) {
	b := NewBound(math.Inf(1))
	const writers = 8
	const perWriter = 2000

	mins := make([]float64, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w + 1)))
			mins[w] = math.Inf(1)
			for i := 0; i < perWriter; i++ {
				v := rng.Float64() * 100
				mins[w] = math.Min(mins[w], v)
				b.TryImprove(v)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	last := b.Value()
	for {
		select {
		case <-done:
			want := math.Inf(1)
			for _, m := range mins {
				want = math.Min(want, m)
			}
			assert.Equal(t, want, b.Value())
			return
		default:
			v := b.Value()
			if v > last {
				t.Fatalf("bound increased from %v to %v", last, v)
			}
			last = v
		}
	}
}

func TestSignal(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.IsSatisfied(nil))
	s.Raise()
	s.Raise()
	assert.True(t, s.Raised())
	assert.True(t, s.IsSatisfied(nil))
}
