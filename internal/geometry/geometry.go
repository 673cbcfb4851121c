// Package geometry holds the planar primitives used to rasterize obstacles:
// containment, vertex and edge distances, and straight segment collision tests.
//
// Coordinates are treated as planar (longitude as X, latitude as Y). Rings may be
// open or closed; a repeated closing vertex produces a zero-length edge that
// every test ignores.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Distance calculates Euclidean distance between two points
func Distance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// PointInPolygon reports whether p lies inside ring using ray casting.
//
// A ray is cast from p towards +X and edge crossings are counted; p is inside
// when the count is odd. An edge takes part only when min(y1,y2) < p.Y <= max(y1,y2),
// so horizontal edges are never divided by and a vertex is never counted twice.
// With the inclusive p.X <= crossing test this makes right and top boundaries
// inside and left and bottom boundaries outside.
func PointInPolygon(p orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	x, y := p[0], p[1]
	for i := 0; i < n; i++ {
		v1 := ring[i]
		v2 := ring[(i+1)%n]

		if y <= math.Min(v1[1], v2[1]) || y > math.Max(v1[1], v2[1]) {
			continue
		}

		xCross := v1[0] + (y-v1[1])*(v2[0]-v1[0])/(v2[1]-v1[1])
		if x <= xCross {
			inside = !inside
		}
	}

	return inside
}

// MinVertexDistance returns the smallest distance from p to any vertex of ring.
// It returns +Inf for an empty ring.
func MinVertexDistance(p orb.Point, ring orb.Ring) float64 {
	best := math.Inf(1)
	for _, v := range ring {
		if d := Distance(p, v); d < best {
			best = d
		}
	}
	return best
}

// MinEdgeDistance returns the smallest distance from p to any edge segment of ring.
func MinEdgeDistance(p orb.Point, ring orb.Ring) float64 {
	n := len(ring)
	switch n {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, ring[0])
	}

	best := math.Inf(1)
	for i := 0; i < n; i++ {
		if d := segmentDistance(p, ring[i], ring[(i+1)%n]); d < best {
			best = d
		}
	}
	return best
}

// segmentDistance is the distance from p to the closed segment ab.
func segmentDistance(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Distance(p, a)
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return Distance(p, orb.Point{a[0] + t*dx, a[1] + t*dy})
}

// Centroid returns the arithmetic mean of the ring's vertices.
// A closing vertex equal to the first one is not counted twice.
func Centroid(ring orb.Ring) orb.Point {
	vertices := openRing(ring)
	if len(vertices) == 0 {
		return orb.Point{}
	}

	var sx, sy float64
	for _, v := range vertices {
		sx += v[0]
		sy += v[1]
	}
	n := float64(len(vertices))
	return orb.Point{sx / n, sy / n}
}

func openRing(ring orb.Ring) orb.Ring {
	if n := len(ring); n > 1 && ring[0].Equal(ring[n-1]) {
		return ring[:n-1]
	}
	return ring
}

// SegmentsIntersect checks if the segments p1p2 and p3p4 intersect,
// including touching and collinear overlap.
func SegmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// Collinear cases
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}

	return false
}

// direction calculates the cross product to determine orientation
func direction(p1, p2, p3 orb.Point) float64 {
	return (p3[0]-p1[0])*(p2[1]-p1[1]) - (p2[0]-p1[0])*(p3[1]-p1[1])
}

// onSegment checks if q lies within the bounding box of segment pr
func onSegment(p, r, q orb.Point) bool {
	return q[0] <= math.Max(p[0], r[0]) && q[0] >= math.Min(p[0], r[0]) &&
		q[1] <= math.Max(p[1], r[1]) && q[1] >= math.Min(p[1], r[1])
}

// SegmentCrossesRing checks if the segment ab touches any edge of ring.
func SegmentCrossesRing(a, b orb.Point, ring orb.Ring) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		if SegmentsIntersect(a, b, ring[i], ring[(i+1)%n]) {
			return true
		}
	}
	return false
}

// PathClear reports whether the polyline stays clear of every ring: no segment
// crosses a ring edge and no waypoint lies inside a ring.
func PathClear(path []orb.Point, rings []orb.Ring) bool {
	for _, ring := range rings {
		bound := ring.Bound()
		for i, p := range path {
			if PointInPolygon(p, ring) {
				return false
			}
			if i == 0 {
				continue
			}
			seg := orb.MultiPoint{path[i-1], p}.Bound()
			if !seg.Intersects(bound) {
				continue
			}
			if SegmentCrossesRing(path[i-1], p, ring) {
				return false
			}
		}
	}
	return true
}
