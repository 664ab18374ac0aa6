package transformation

import (
	"math"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
)

// normalization maps a point set into a frame centred on its centroid with
// an RMS distance of sqrt(2) from the origin, and back.
type normalization struct {
	forward geometry.AffineTransform
	inverse geometry.AffineTransform
}

func normalizing(points []orb.Point) normalization {
	center := geometry.Centroid(points)
	var sum float64
	for _, p := range points {
		d := geometry.Sub(p, center)
		sum += geometry.Dot(d, d)
	}

	scale := 1.0
	if rms := math.Sqrt(sum / float64(len(points))); rms > 0 && !math.IsInf(rms, 0) {
		scale = math.Sqrt2 / rms
	}
	forward := geometry.Similarity(scale, 0, geometry.Scale(center, -scale))
	inverse, ok := forward.Inverse()
	if !ok {
		return normalization{forward: geometry.Identity(), inverse: geometry.Identity()}
	}
	return normalization{forward: forward, inverse: inverse}
}

func applyAll(t geometry.AffineTransform, points []orb.Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}
