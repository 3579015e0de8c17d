package bnb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/copyleftdev/intervalbb/internal/optimization/splitter"
	"github.com/copyleftdev/intervalbb/internal/optimization/worklist"
)

// DefaultVariant names the variant used to fill worker pools.
const DefaultVariant = "best-first"

// Options selects the strategies of an Algorithm.
type Options struct {
	// Name identifies the variant in logs.
	Name string

	// NewWorkList creates the pending-box pool. Defaults to a sorted list.
	NewWorkList worklist.Factory

	// NewChooser binds the extraction policy. Defaults to head-first.
	NewChooser worklist.ChooserFactory

	// Splitter divides boxes. Defaults to widest-side bisection.
	Splitter splitter.Splitter

	// Refine enables derivative-based narrowing.
	Refine bool

	// LocalSearchEvery runs a local search from boxes whose age is a
	// multiple of it. Zero disables local search.
	LocalSearchEvery int

	// LocalSearchEvaluations caps the point evaluations of one local search.
	LocalSearchEvaluations int
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultVariant
	}
	if o.NewWorkList == nil {
		o.NewWorkList = func() worklist.WorkList { return worklist.NewSorted() }
	}
	if o.NewChooser == nil {
		o.NewChooser = worklist.HeadFactory()
	}
	if o.Splitter == nil {
		o.Splitter = splitter.NewWidest()
	}
	if o.LocalSearchEvaluations <= 0 {
		o.LocalSearchEvaluations = 200
	}
	return o
}

// DefaultOptions returns the best-first variant: sorted list, head chooser,
// widest-side bisection, refinement on.
func DefaultOptions() Options {
	return Options{Name: DefaultVariant, Refine: true}.withDefaults()
}

var variants = map[string]func() Options{
	"best-first": DefaultOptions,
	"depth-first": func() Options {
		return Options{
			Name:        "depth-first",
			NewWorkList: func() worklist.WorkList { return worklist.NewStack() },
			Refine:      true,
		}.withDefaults()
	},
	"breadth-first": func() Options {
		return Options{
			Name:        "breadth-first",
			NewWorkList: func() worklist.WorkList { return worklist.NewQueue() },
			Refine:      true,
		}.withDefaults()
	},
	"random": func() Options {
		return Options{
			Name:        "random",
			NewWorkList: func() worklist.WorkList { return worklist.NewStack() },
			NewChooser:  worklist.RandomFactory(0),
			Refine:      true,
		}.withDefaults()
	},
	"round-robin": func() Options {
		return Options{
			Name:     "round-robin",
			Splitter: splitter.NewRoundRobin(),
			Refine:   true,
		}.withDefaults()
	},
}

// Variant returns the options registered under name. A name of the form
// "<worklist>/<splitter>", such as "queue/round-robin", composes a head-first
// variant from a work list and a splitter by their registered names.
func Variant(name string) (Options, error) {
	if v, ok := variants[name]; ok {
		return v(), nil
	}
	list, split, ok := strings.Cut(name, "/")
	if !ok {
		return Options{}, fmt.Errorf("unknown algorithm variant %q", name)
	}
	newList, err := worklist.FactoryByName(list)
	if err != nil {
		return Options{}, fmt.Errorf("variant %q: %w", name, err)
	}
	sp, err := splitter.ByName(split)
	if err != nil {
		return Options{}, fmt.Errorf("variant %q: %w", name, err)
	}
	return Options{
		Name:        name,
		NewWorkList: newList,
		Splitter:    sp,
		Refine:      true,
	}.withDefaults(), nil
}

// VariantNames lists the registered variants.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
