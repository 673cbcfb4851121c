package planner

import (
	"fmt"

	"drone-route-planner/internal/grid"
)

// Heuristic estimates the remaining step count between two cells.
type Heuristic string

const (
	// Manhattan is |dx| + |dy|. With diagonal steps costing 1 it can
	// overestimate, so paths are not guaranteed to be step-optimal. It is the
	// default because it reproduces the routes the campus planner has always produced.
	Manhattan Heuristic = "manhattan"
	// Chebyshev is max(|dx|, |dy|), exact on an empty 8-connected unit-cost
	// grid and therefore admissible.
	Chebyshev Heuristic = "chebyshev"
)

// ParseHeuristic accepts "manhattan", "chebyshev" or "" (Manhattan).
func ParseHeuristic(s string) (Heuristic, error) {
	switch Heuristic(s) {
	case "", Manhattan:
		return Manhattan, nil
	case Chebyshev:
		return Chebyshev, nil
	default:
		return "", fmt.Errorf("unknown heuristic %q", s)
	}
}

// Estimate returns the heuristic distance from a to b.
func (h Heuristic) Estimate(a, b grid.Cell) int {
	dx := abs(a.Col - b.Col)
	dy := abs(a.Row - b.Row)
	if h == Chebyshev {
		return max(dx, dy)
	}
	return dx + dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
