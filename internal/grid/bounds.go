package grid

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Bounds is the axis-aligned planning area in decimal degrees.
type Bounds struct {
	MinLon float64 `json:"minLon" mapstructure:"min_lon"`
	MaxLon float64 `json:"maxLon" mapstructure:"max_lon"`
	MinLat float64 `json:"minLat" mapstructure:"min_lat"`
	MaxLat float64 `json:"maxLat" mapstructure:"max_lat"`
}

// BoundsOf returns the extent of points grown by margin on every side.
// ok is false when points is empty.
func BoundsOf(points []orb.Point, margin float64) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	ext := orb.MultiPoint(points).Bound()
	return Bounds{
		MinLon: ext.Min[0] - margin,
		MaxLon: ext.Max[0] + margin,
		MinLat: ext.Min[1] - margin,
		MaxLat: ext.Max[1] + margin,
	}, true
}

// Validate checks min < max on both axes.
func (b Bounds) Validate() error {
	if !(b.MinLon < b.MaxLon) {
		return fmt.Errorf("bounds: min longitude %v must be below max longitude %v", b.MinLon, b.MaxLon)
	}
	if !(b.MinLat < b.MaxLat) {
		return fmt.Errorf("bounds: min latitude %v must be below max latitude %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// Width is the longitude span.
func (b Bounds) Width() float64 { return b.MaxLon - b.MinLon }

// Height is the latitude span.
func (b Bounds) Height() float64 { return b.MaxLat - b.MinLat }

// Contains reports whether p lies inside the closed rectangle.
func (b Bounds) Contains(p orb.Point) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon && p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// Bound converts to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}
