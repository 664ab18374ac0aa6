// Package geometry provides the point and control point types shared by the
// transformation packages, plus the midpoint and distance helpers used when
// refining transformed lines.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// GCP is a ground control point: a pixel position in the resource image and
// the matching position in geo space.
type GCP struct {
	Resource orb.Point `json:"resource"`
	Geo      orb.Point `json:"geo"`
}

// GeneralGCP is a correspondence without a fixed direction. Transformations
// are fitted from source to destination, which may be resource to geo or the
// reverse.
type GeneralGCP struct {
	Source      orb.Point `json:"source"`
	Destination orb.Point `json:"destination"`
}

// Forward returns the GCP as a resource to geo correspondence.
func (g GCP) Forward() GeneralGCP {
	return GeneralGCP{Source: g.Resource, Destination: g.Geo}
}

// Backward returns the GCP as a geo to resource correspondence.
func (g GCP) Backward() GeneralGCP {
	return GeneralGCP{Source: g.Geo, Destination: g.Resource}
}

// MidpointFunc returns the point halfway between a and b.
type MidpointFunc func(a, b orb.Point) orb.Point

// DistanceFunc returns the distance between a and b.
type DistanceFunc func(a, b orb.Point) float64

// Midpoint returns the arithmetic midpoint of two points.
func Midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// GeographicMidpoint returns the point halfway along the great circle between
// two lon/lat points.
func GeographicMidpoint(a, b orb.Point) orb.Point {
	return geo.Midpoint(a, b)
}

// GeographicDistance returns the great circle distance in metres between two
// lon/lat points.
func GeographicDistance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Add returns the sum of two points.
func Add(a, b orb.Point) orb.Point {
	return orb.Point{a[0] + b[0], a[1] + b[1]}
}

// Sub returns the difference of two points.
func Sub(a, b orb.Point) orb.Point {
	return orb.Point{a[0] - b[0], a[1] - b[1]}
}

// Scale returns the point scaled by a factor.
func Scale(p orb.Point, factor float64) orb.Point {
	return orb.Point{p[0] * factor, p[1] * factor}
}

// Dot returns the dot product of two vectors.
func Dot(a, b orb.Point) float64 {
	return a[0]*b[0] + a[1]*b[1]
}

// Norm returns the length of a vector.
func Norm(p orb.Point) float64 {
	return math.Hypot(p[0], p[1])
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Similarity returns a rotation by radians and uniform scale followed by a
// translation.
func Similarity(scale, radians float64, translation orb.Point) AffineTransform {
	cos := math.Cos(radians) * scale
	sin := math.Sin(radians) * scale
	return AffineTransform{A: cos, B: -sin, TX: translation[0], C: sin, D: cos, TY: translation[1]}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p orb.Point) orb.Point {
	return orb.Point{
		t.A*p[0] + t.B*p[1] + t.TX,
		t.C*p[0] + t.D*p[1] + t.TY,
	}
}

// ApplyLinear applies only the linear part, as for a direction vector or a
// column of a Jacobian.
func (t AffineTransform) ApplyLinear(v orb.Point) orb.Point {
	return orb.Point{t.A*v[0] + t.B*v[1], t.C*v[0] + t.D*v[1]}
}

// Compose returns t after other: t.Compose(other).Apply(p) equals
// t.Apply(other.Apply(p)).
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	x := t.ApplyLinear(orb.Point{other.A, other.C})
	y := t.ApplyLinear(orb.Point{other.B, other.D})
	translation := t.Apply(orb.Point{other.TX, other.TY})
	return AffineTransform{
		A: x[0], B: y[0], TX: translation[0],
		C: x[1], D: y[1], TY: translation[1],
	}
}

// Inverse returns the inverse transform. ok is false when the linear part is
// singular relative to the size of its entries, so transforms between
// coordinate systems of very different magnitude still invert.
func (t AffineTransform) Inverse() (inverse AffineTransform, ok bool) {
	det := t.A*t.D - t.B*t.C
	size := math.Max(math.Abs(t.A)+math.Abs(t.B), math.Abs(t.C)+math.Abs(t.D))
	if !(math.Abs(det) > 1e-12*size*size) {
		return AffineTransform{}, false
	}

	inverse = AffineTransform{A: t.D / det, B: -t.B / det, C: -t.C / det, D: t.A / det}
	translation := inverse.ApplyLinear(orb.Point{t.TX, t.TY})
	inverse.TX, inverse.TY = -translation[0], -translation[1]
	return inverse, true
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p[0]
		sumY += p[1]
	}
	n := float64(len(points))
	return orb.Point{sumX / n, sumY / n}
}

// MeanPairwiseDistance returns the mean Euclidean distance over all distinct
// pairs of points, or 0 for fewer than two points.
func MeanPairwiseDistance(points []orb.Point) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += Distance(points[i], points[j])
		}
	}
	return sum / float64(n*(n-1)/2)
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []orb.Point) orb.Bound {
	return orb.MultiPoint(points).Bound()
}

// RectangleRing returns the closed ring of a width x height rectangle anchored
// at the origin, in the clockwise order used for image masks.
func RectangleRing(width, height float64) orb.Ring {
	return orb.Ring{
		{0, 0},
		{width, 0},
		{width, height},
		{0, height},
		{0, 0},
	}
}
