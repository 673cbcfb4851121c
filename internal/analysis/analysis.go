// Package analysis measures planned routes and summarises them per category.
package analysis

import (
	"log/slog"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	"drone-route-planner/internal/route"
)

const (
	// KmPerDegree is the length of one degree of latitude used by the planar approximation.
	KmPerDegree = 111.32
	// EarthRadiusKm is the mean Earth radius used for geodesic lengths.
	EarthRadiusKm = 6371.0088
)

// PlanarLengthKm sums segment lengths under a local equirectangular
// approximation: longitude deltas are scaled by the cosine of the segment's
// mean latitude. Accurate for campus-scale distances.
func PlanarLengthKm(path []orb.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		meanLat := (a[1] + b[1]) / 2 * math.Pi / 180
		dx := (b[0] - a[0]) * KmPerDegree * math.Cos(meanLat)
		dy := (b[1] - a[1]) * KmPerDegree
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}

// GeodesicLengthKm sums great-circle segment lengths on a spherical Earth.
func GeodesicLengthKm(path []orb.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		a := s2.LatLngFromDegrees(path[i-1][1], path[i-1][0])
		b := s2.LatLngFromDegrees(path[i][1], path[i][0])
		total += a.Distance(b).Radians() * EarthRadiusKm
	}
	return total
}

// Summary holds length statistics for one category.
type Summary struct {
	Count          int     `json:"count"`
	MeanKm         float64 `json:"meanKm"`
	MinKm          float64 `json:"minKm"`
	MaxKm          float64 `json:"maxKm"`
	GeodesicMeanKm float64 `json:"geodesicMeanKm"`
}

// Report is the analysis of a whole route set.
type Report struct {
	Total      int                        `json:"total"`
	Categories map[route.Category]Summary `json:"categories"`
	Tiers      map[route.Tier]int         `json:"tiers"`
	Skipped    map[route.Category]int     `json:"skipped,omitempty"`
	Colliding  int                        `json:"colliding"`
}

// Analyze measures every route in set. Categories without routes get a zero Summary.
func Analyze(set *route.Set) Report {
	r := Report{
		Total:      set.Total(),
		Categories: make(map[route.Category]Summary, len(route.Categories)),
		Tiers:      set.TierCounts(),
		Skipped:    set.Skipped,
	}

	for _, c := range route.Categories {
		routes := set.Routes[c]
		var s Summary
		if len(routes) > 0 {
			s.MinKm = math.Inf(1)
			s.MaxKm = math.Inf(-1)
		}

		sum, geoSum := 0.0, 0.0
		for _, rt := range routes {
			km := PlanarLengthKm(rt.Path)
			sum += km
			geoSum += GeodesicLengthKm(rt.Path)
			s.MinKm = math.Min(s.MinKm, km)
			s.MaxKm = math.Max(s.MaxKm, km)
			if rt.Collides {
				r.Colliding++
			}
		}

		s.Count = len(routes)
		if s.Count > 0 {
			s.MeanKm = sum / float64(s.Count)
			s.GeodesicMeanKm = geoSum / float64(s.Count)
		}
		r.Categories[c] = s
	}
	return r
}

// Log writes the report at info level, one line per category.
func (r Report) Log(log *slog.Logger) {
	log.Info("route analysis",
		"total", r.Total,
		"strict", r.Tiers[route.TierStrict],
		"relaxed", r.Tiers[route.TierRelaxed],
		"straight", r.Tiers[route.TierStraight],
		"colliding", r.Colliding)

	for _, c := range route.Categories {
		s := r.Categories[c]
		if s.Count == 0 {
			log.Info("route lengths", "category", c, "count", 0, "skipped", r.Skipped[c])
			continue
		}
		log.Info("route lengths",
			"category", c,
			"count", s.Count,
			"skipped", r.Skipped[c],
			"mean_km", round2(s.MeanKm),
			"min_km", round2(s.MinKm),
			"max_km", round2(s.MaxKm),
			"geodesic_mean_km", round2(s.GeodesicMeanKm))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
