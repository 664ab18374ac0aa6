package geometry

import "github.com/paulmach/orb"

// IsClosed reports whether the ring repeats its first point at the end.
func IsClosed(points []orb.Point) bool {
	n := len(points)
	return n > 1 && points[0].Equal(points[n-1])
}

// CloseRing returns the points with the first point appended, unless the
// ring is already closed. The input is never modified.
func CloseRing(points []orb.Point) []orb.Point {
	if len(points) == 0 || IsClosed(points) {
		return points
	}
	closed := make([]orb.Point, len(points), len(points)+1)
	copy(closed, points)
	return append(closed, points[0])
}
