// Package functions defines the objective capability consumed by the
// branch-and-bound engine and a set of benchmark objectives.
package functions

import (
	"errors"
	"fmt"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
	"github.com/copyleftdev/intervalbb/internal/optimization/interval"
)

// ErrUnavailable is returned by a derivative the function does not provide.
var ErrUnavailable = errors.New("functions: derivative unavailable")

// Function is an objective over R^d that can be bounded over boxes.
type Function interface {
	// Dimension returns the number of variables.
	Dimension() int

	// Evaluate returns an enclosure of f over b. The enclosure must be
	// finite; an unbounded result is a defect of the implementation.
	Evaluate(b *box.Box) interval.Interval

	// Point returns an upper estimate of f(x) that is never below the true value.
	Point(x []float64) float64

	// Derivative1 returns an enclosure of ∂f/∂x_dim over b. It returns an
	// error when the derivative is not provided or cannot be bounded over b.
	Derivative1(b *box.Box, dim int) (interval.Interval, error)

	// Derivative2 returns an enclosure of ∂²f/∂x_dim² over b, with the same
	// error contract as Derivative1.
	Derivative2(b *box.Box, dim int) (interval.Interval, error)
}

// Expr maps interval arguments to an interval result.
type Expr func(x []interval.Interval) interval.Interval

// Partial maps interval arguments to a derivative enclosure.
type Partial func(x []interval.Interval) (interval.Interval, error)

// Expression is a Function assembled from closed-form interval expressions.
type Expression struct {
	name string
	dim  int
	f    Expr
	d1   []Partial
	d2   []Partial
}

// NewExpression creates an objective of dimension dim. d1 and d2 are either
// nil or hold one partial per dimension.
func NewExpression(name string, dim int, f Expr, d1, d2 []Partial) (*Expression, error) {
	if dim < 1 {
		return nil, fmt.Errorf("function %q: dimension must be positive, got %d", name, dim)
	}
	if f == nil {
		return nil, fmt.Errorf("function %q: expression is required", name)
	}
	if d1 != nil && len(d1) != dim {
		return nil, fmt.Errorf("function %q: expected %d first derivatives, got %d", name, dim, len(d1))
	}
	if d2 != nil && len(d2) != dim {
		return nil, fmt.Errorf("function %q: expected %d second derivatives, got %d", name, dim, len(d2))
	}
	return &Expression{name: name, dim: dim, f: f, d1: d1, d2: d2}, nil
}

func (e *Expression) Name() string { return e.name }

func (e *Expression) Dimension() int { return e.dim }

func (e *Expression) Evaluate(b *box.Box) interval.Interval {
	return e.f(b.Intervals())
}

// Point evaluates the expression on the degenerate box at x and returns the
// upper end of the enclosure.
func (e *Expression) Point(x []float64) float64 {
	args := make([]interval.Interval, len(x))
	for i, v := range x {
		args[i] = interval.Point(v)
	}
	return e.f(args).Hi()
}

func (e *Expression) Derivative1(b *box.Box, dim int) (interval.Interval, error) {
	return partial(e.d1, b, dim)
}

func (e *Expression) Derivative2(b *box.Box, dim int) (interval.Interval, error) {
	return partial(e.d2, b, dim)
}

func (e *Expression) String() string { return e.name }

func partial(ps []Partial, b *box.Box, dim int) (interval.Interval, error) {
	if ps == nil || ps[dim] == nil {
		return interval.Interval{}, ErrUnavailable
	}
	return ps[dim](b.Intervals())
}
