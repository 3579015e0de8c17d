package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/copyleftdev/intervalbb/internal/optimization/box"
)

// parseBounds builds the search box from lo:hi flag values. A single value is
// repeated for every dimension; otherwise one is needed per dimension.
func parseBounds(values []string, dim int) (*box.Box, error) {
	if dim < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	switch len(values) {
	case 1:
		repeated := make([]string, dim)
		for i := range repeated {
			repeated[i] = values[0]
		}
		values = repeated
	case dim:
	default:
		return nil, fmt.Errorf("got %d bounds for dimension %d", len(values), dim)
	}

	pairs := make([][2]float64, len(values))
	for i, value := range values {
		lo, hi, ok := strings.Cut(value, ":")
		if !ok {
			return nil, fmt.Errorf("bound %q: want lo:hi", value)
		}
		var err error
		if pairs[i][0], err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
			return nil, fmt.Errorf("bound %q: %w", value, err)
		}
		if pairs[i][1], err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
			return nil, fmt.Errorf("bound %q: %w", value, err)
		}
	}
	return box.FromBounds(pairs)
}
