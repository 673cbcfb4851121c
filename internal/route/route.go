// Package route defines the planned route value types shared by the planner,
// the batch driver and the output collaborators.
package route

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Altitude is a nominal cruise height in metres. It is a static label per
// category, never computed from terrain.
type Altitude int

const (
	Low    Altitude = 50
	Medium Altitude = 75
	High   Altitude = 100
)

// Category groups routes by the kind of endpoints they join.
type Category string

const (
	CanteenToDorm Category = "canteen_to_dorm"
	GateToDorm    Category = "gate_to_dorm"
)

// Categories lists every category in planning order.
var Categories = []Category{CanteenToDorm, GateToDorm}

// Altitude returns the cruise height assigned to the category.
func (c Category) Altitude() Altitude {
	switch c {
	case CanteenToDorm:
		return Medium
	case GateToDorm:
		return High
	default:
		return Low
	}
}

// Tier records which level of the fallback ladder produced a path.
type Tier string

const (
	TierStrict   Tier = "strict"
	TierRelaxed  Tier = "relaxed"
	TierStraight Tier = "straight"
)

// Tiers lists the fallback ladder in order.
var Tiers = []Tier{TierStrict, TierRelaxed, TierStraight}

// Route is one planned polyline between two named locations.
type Route struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	Category Category    `json:"category"`
	Height   Altitude    `json:"height"`
	Tier     Tier        `json:"tier"`
	Collides bool        `json:"collides,omitempty"` // straight-line route crosses a hard obstacle
	Path     []orb.Point `json:"path"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s %s -> %s (%s, %d waypoints)", r.Category, r.From, r.To, r.Tier, len(r.Path))
}

// Set is the result of a batch run.
type Set struct {
	Routes  map[Category][]Route `json:"routes"`
	Skipped map[Category]int     `json:"skipped,omitempty"`
}

// NewSet returns an empty set with every category present.
func NewSet() *Set {
	s := &Set{
		Routes:  make(map[Category][]Route, len(Categories)),
		Skipped: make(map[Category]int),
	}
	for _, c := range Categories {
		s.Routes[c] = []Route{}
	}
	return s
}

// Add appends r under its category.
func (s *Set) Add(r Route) {
	s.Routes[r.Category] = append(s.Routes[r.Category], r)
}

// Total counts routes across categories.
func (s *Set) Total() int {
	n := 0
	for _, rs := range s.Routes {
		n += len(rs)
	}
	return n
}

// TierCounts counts routes per tier.
func (s *Set) TierCounts() map[Tier]int {
	counts := make(map[Tier]int, len(Tiers))
	for _, rs := range s.Routes {
		for _, r := range rs {
			counts[r.Tier]++
		}
	}
	return counts
}
