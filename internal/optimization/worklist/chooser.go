package worklist

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
)

// Chooser is an extraction policy bound to one work list at construction.
type Chooser interface {
	// ExtractNext removes and returns one box, or ErrEmpty.
	ExtractNext() (*box.Box, error)
}

// ChooserFactory binds a policy to a work list.
type ChooserFactory func(WorkList) Chooser

// Head extracts the head of its work list: the lowest bound for Sorted,
// the newest box for a stack, the oldest for a queue.
type Head struct {
	list WorkList
}

// NewHead creates a head-first chooser over list.
func NewHead(list WorkList) *Head { return &Head{list: list} }

func (c *Head) ExtractNext() (*box.Box, error) {
	if c.list.Size() == 0 {
		return nil, ErrEmpty
	}
	return c.list.Remove(0), nil
}

// Random extracts a uniformly random box.
type Random struct {
	list WorkList
	rng  *rand.Rand
}

// NewRandom creates a random chooser over list. rng must not be shared
// with another goroutine.
func NewRandom(list WorkList, rng *rand.Rand) *Random {
	return &Random{list: list, rng: rng}
}

func (c *Random) ExtractNext() (*box.Box, error) {
	n := c.list.Size()
	if n == 0 {
		return nil, ErrEmpty
	}
	return c.list.Remove(c.rng.Intn(n)), nil
}

// HeadFactory returns a factory for Head choosers.
func HeadFactory() ChooserFactory {
	return func(l WorkList) Chooser { return NewHead(l) }
}

// RandomFactory returns a factory for Random choosers. Each chooser gets its
// own source; seed 0 seeds from the clock.
func RandomFactory(seed int64) ChooserFactory {
	return func(l WorkList) Chooser {
		s := seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		return NewRandom(l, rand.New(rand.NewSource(s)))
	}
}

// Factory creates empty work lists.
type Factory func() WorkList

// FactoryByName returns the work list constructor registered under name.
func FactoryByName(name string) (Factory, error) {
	switch name {
	case "sorted", "":
		return func() WorkList { return NewSorted() }, nil
	case "stack":
		return func() WorkList { return NewStack() }, nil
	case "queue":
		return func() WorkList { return NewQueue() }, nil
	default:
		return nil, fmt.Errorf("unknown work list %q", name)
	}
}
