package geometry

import (
	"github.com/paulmach/orb"
)

// RemoveContained drops rings whose vertices all lie inside another ring.
// For hard obstacles this leaves the set of covered points unchanged for convex
// containers and shrinks the per-cell work during rasterization. Of two identical
// rings the later one is dropped.
func RemoveContained(rings []orb.Ring) []orb.Ring {
	if len(rings) <= 1 {
		return rings
	}

	bounds := make([]orb.Bound, len(rings))
	for i, r := range rings {
		bounds[i] = r.Bound()
	}

	contained := make([]bool, len(rings))
	for i := range rings {
		if contained[i] {
			continue
		}
		for j := range rings {
			if i == j || contained[j] {
				continue
			}
			if sameRing(rings[i], rings[j]) {
				if i > j {
					contained[i] = true
					break
				}
				continue
			}
			if containedIn(rings[i], bounds[i], rings[j], bounds[j]) {
				contained[i] = true
				break
			}
		}
	}

	result := make([]orb.Ring, 0, len(rings))
	for i, r := range rings {
		if !contained[i] {
			result = append(result, r)
		}
	}
	return result
}

// containedIn checks if ring a is fully contained within ring b
func containedIn(a orb.Ring, boundA orb.Bound, b orb.Ring, boundB orb.Bound) bool {
	if len(a) == 0 || len(b) < 3 {
		return false
	}

	// Quick bounding box check first
	if !boundB.Contains(boundA.Min) || !boundB.Contains(boundA.Max) {
		return false
	}

	for _, v := range a {
		if !PointInPolygon(v, b) {
			return false
		}
	}
	return true
}

func sameRing(a, b orb.Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
