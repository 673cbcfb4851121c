package analysis_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"drone-route-planner/internal/analysis"
	"drone-route-planner/internal/route"
)

func TestPlanarLengthKm(t *testing.T) {
	tests := []struct {
		name string
		path []orb.Point
		want float64
	}{
		{"empty", nil, 0},
		{"single point", []orb.Point{{116.3, 40}}, 0},
		{"longitude at equator", []orb.Point{{0, 0}, {0.01, 0}}, 1.1132},
		{"latitude", []orb.Point{{116.3, 40}, {116.3, 40.01}}, 1.1132},
		{"longitude at 60N", []orb.Point{{0, 60}, {0.02, 60}}, 1.1132},
		{"two segments", []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}}, 2.2264},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := analysis.PlanarLengthKm(tt.path); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("PlanarLengthKm = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeodesicLengthKm_AgreesAtCampusScale(t *testing.T) {
	path := []orb.Point{{116.30, 39.99}, {116.32, 40.00}, {116.33, 40.02}}

	planar := analysis.PlanarLengthKm(path)
	geodesic := analysis.GeodesicLengthKm(path)
	if rel := math.Abs(planar-geodesic) / geodesic; rel > 0.005 {
		t.Errorf("planar %v and geodesic %v differ by %.3f%%", planar, geodesic, rel*100)
	}
}

func TestAnalyze(t *testing.T) {
	set := route.NewSet()
	set.Add(route.Route{Category: route.CanteenToDorm, Tier: route.TierStrict,
		Path: []orb.Point{{0, 0}, {0.01, 0}}})
	set.Add(route.Route{Category: route.CanteenToDorm, Tier: route.TierRelaxed,
		Path: []orb.Point{{0, 0}, {0.03, 0}}})
	set.Add(route.Route{Category: route.CanteenToDorm, Tier: route.TierStraight, Collides: true,
		Path: []orb.Point{{0, 0}, {0.02, 0}}})
	set.Skipped[route.GateToDorm] = 2

	r := analysis.Analyze(set)

	if r.Total != 3 || r.Colliding != 1 {
		t.Errorf("total = %d colliding = %d", r.Total, r.Colliding)
	}
	if r.Tiers[route.TierStrict] != 1 || r.Tiers[route.TierRelaxed] != 1 || r.Tiers[route.TierStraight] != 1 {
		t.Errorf("tiers = %v", r.Tiers)
	}

	s := r.Categories[route.CanteenToDorm]
	if s.Count != 3 {
		t.Fatalf("count = %d", s.Count)
	}
	if math.Abs(s.MeanKm-2.2264) > 1e-6 || math.Abs(s.MinKm-1.1132) > 1e-6 || math.Abs(s.MaxKm-3.3396) > 1e-6 {
		t.Errorf("summary = %+v", s)
	}

	if g := r.Categories[route.GateToDorm]; g != (analysis.Summary{}) {
		t.Errorf("empty category should have a zero summary, got %+v", g)
	}
	if r.Skipped[route.GateToDorm] != 2 {
		t.Errorf("skipped = %v", r.Skipped)
	}
}
