// Package campus loads the campus feature set the planner routes over:
// named gates, canteens and dorms, plus the building and sports polygons
// that become hard and buffered obstacles.
package campus

import (
	"github.com/paulmach/orb"

	"drone-route-planner/internal/grid"
)

// DefaultBounds is used when the dataset has no located feature at all.
var DefaultBounds = grid.Bounds{MinLon: 116.30, MaxLon: 116.34, MinLat: 39.99, MaxLat: 40.02}

// Location is a named route endpoint. Polygon is empty for point features.
type Location struct {
	Name    string    `json:"name"`
	Point   orb.Point `json:"coordinates"`
	Polygon orb.Ring  `json:"polygon,omitempty"`
}

// Area is a named obstacle polygon.
type Area struct {
	Name string   `json:"name"`
	Ring orb.Ring `json:"polygon"`
}

// Dataset is everything loaded from one data directory.
type Dataset struct {
	Gates     []Location
	Canteens  []Location
	Dorms     []Location
	Buildings []orb.Ring
	Sports    []Area
	Boundary  orb.Ring // empty when no boundary file exists
}

// Hard returns the polygons whose interior is impassable.
func (d *Dataset) Hard() []orb.Ring {
	return d.Buildings
}

// Buffered returns the polygons that also keep a clearance margin.
func (d *Dataset) Buffered() []orb.Ring {
	rings := make([]orb.Ring, 0, len(d.Sports))
	for _, s := range d.Sports {
		rings = append(rings, s.Ring)
	}
	return rings
}

// Obstacles returns hard and buffered polygons together.
func (d *Dataset) Obstacles() []orb.Ring {
	return append(append([]orb.Ring{}, d.Hard()...), d.Buffered()...)
}

// Bounds is the extent of every endpoint and boundary vertex grown by margin,
// or DefaultBounds when there is nothing to measure.
func (d *Dataset) Bounds(margin float64) grid.Bounds {
	var points []orb.Point
	for _, group := range [][]Location{d.Gates, d.Canteens, d.Dorms} {
		for _, l := range group {
			points = append(points, l.Point)
		}
	}
	points = append(points, d.Boundary...)

	b, ok := grid.BoundsOf(points, margin)
	if !ok {
		return DefaultBounds
	}
	return b
}

// Counts summarises the dataset for logs.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"gates":     len(d.Gates),
		"canteens":  len(d.Canteens),
		"dorms":     len(d.Dorms),
		"buildings": len(d.Buildings),
		"sports":    len(d.Sports),
	}
}
