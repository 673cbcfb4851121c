package planner

import (
	"drone-route-planner/internal/grid"
)

// NearestFreeCell relocates c to a traversable cell under the full obstacle
// definition. A free c is returned as is. Otherwise squares of radius 1 up to
// Options.RescueRadius are scanned in full, column by column, and the first
// in-bounds unoccupied cell wins. ok is false when none exists within the radius.
func (p *Planner) NearestFreeCell(c grid.Cell) (free grid.Cell, ok bool) {
	if p.grid.InBounds(c) && !p.grid.IsOccupied(c) {
		return c, true
	}

	for radius := 1; radius <= p.opts.RescueRadius; radius++ {
		for dx := -radius; dx <= radius; dx++ {
			for dy := -radius; dy <= radius; dy++ {
				candidate := grid.Cell{Col: c.Col + dx, Row: c.Row + dy}
				if p.grid.InBounds(candidate) && !p.grid.IsOccupied(candidate) {
					return candidate, true
				}
			}
		}
	}
	return grid.Cell{}, false
}
