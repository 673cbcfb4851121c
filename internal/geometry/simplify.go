package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Simplify reduces ring complexity using the Douglas-Peucker algorithm.
// Closed rings stay closed; a ring that would collapse below a triangle is returned unchanged.
func Simplify(ring orb.Ring, epsilon float64) orb.Ring {
	if epsilon <= 0 || len(ring) <= 4 {
		return ring
	}

	closed := ring.Closed()
	points := []orb.Point(ring)
	if !closed {
		points = append(append([]orb.Point{}, points...), points[0])
	}

	simplified := douglasPeucker(points, epsilon)

	// Drop the closing vertex, check what is left, then re-close if the input was closed
	open := simplified[:len(simplified)-1]
	if len(open) < 3 {
		return ring
	}

	out := make(orb.Ring, 0, len(simplified))
	out = append(out, open...)
	if closed {
		out = append(out, open[0])
	}
	return out
}

// SimplifyAll simplifies multiple rings
func SimplifyAll(rings []orb.Ring, epsilon float64) []orb.Ring {
	simplified := make([]orb.Ring, len(rings))
	for i, ring := range rings {
		simplified[i] = Simplify(ring, epsilon)
	}
	return simplified
}

// VertexCount totals the vertices across rings.
func VertexCount(rings []orb.Ring) int {
	total := 0
	for _, ring := range rings {
		total += len(ring)
	}
	return total
}

func douglasPeucker(points []orb.Point, epsilon float64) []orb.Point {
	if len(points) <= 2 {
		return points
	}

	dmax := 0.0
	index := 0
	end := len(points) - 1

	for i := 1; i < end; i++ {
		d := perpendicularDistance(points[i], points[0], points[end])
		if d > dmax {
			index = i
			dmax = d
		}
	}

	if dmax > epsilon {
		left := douglasPeucker(points[0:index+1], epsilon)
		right := douglasPeucker(points[index:], epsilon)

		result := make([]orb.Point, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}

	return []orb.Point{points[0], points[end]}
}

// perpendicularDistance is the distance from point to the infinite line through lineStart and lineEnd.
// When both ends coincide it falls back to the distance to that point.
func perpendicularDistance(point, lineStart, lineEnd orb.Point) float64 {
	dx := lineEnd[0] - lineStart[0]
	dy := lineEnd[1] - lineStart[1]

	mag := math.Sqrt(dx*dx + dy*dy)
	if mag == 0 {
		return Distance(point, lineStart)
	}
	dx /= mag
	dy /= mag

	pvx := point[0] - lineStart[0]
	pvy := point[1] - lineStart[1]

	pvdot := dx*pvx + dy*pvy

	ax := pvx - pvdot*dx
	ay := pvy - pvdot*dy

	return math.Sqrt(ax*ax + ay*ay)
}
