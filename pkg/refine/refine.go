// Package refine approximates the image of straight source segments under a
// non-linear transformation. Each segment is split at its midpoint until the
// transformed midpoint is close enough to the straight line between the
// transformed endpoints, or until the maximum depth is reached.
package refine

import (
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
)

// Func maps a source point to the destination space.
type Func func(orb.Point) orb.Point

// Funcs is the midpoint and distance pair of one coordinate space.
type Funcs struct {
	Midpoint geometry.MidpointFunc
	Distance geometry.DistanceFunc
}

// Euclidean returns planar midpoint and distance functions.
func Euclidean() Funcs {
	return Funcs{Midpoint: geometry.Midpoint, Distance: geometry.Distance}
}

// Geographic returns great circle midpoint and distance functions for
// lon/lat coordinates. Distances are in metres.
func Geographic() Funcs {
	return Funcs{Midpoint: geometry.GeographicMidpoint, Distance: geometry.GeographicDistance}
}

// FuncsFor returns Geographic when geographic is set, Euclidean otherwise.
func FuncsFor(geographic bool) Funcs {
	if geographic {
		return Geographic()
	}
	return Euclidean()
}

// Options controls when a segment is split.
//
// A segment at depth d is accepted as is when d >= MaxDepth, when the offset
// of the transformed midpoint from the straight line midpoint is below
// MinOffsetDistance, when that offset divided by the segment length is below
// MinOffsetRatio, or when the transformed segment is shorter than
// MinLineDistance. Distances are measured with Destination.Distance.
type Options struct {
	MaxDepth          int
	MinOffsetRatio    float64
	MinOffsetDistance float64
	MinLineDistance   float64

	Source      Funcs
	Destination Funcs
}

// DefaultOptions performs no refinement and uses Euclidean geometry on both sides.
func DefaultOptions() Options {
	return Options{
		Source:      Euclidean(),
		Destination: Euclidean(),
	}
}

// withDefaults fills unset midpoint and distance functions with their
// Euclidean versions.
func (o Options) withDefaults() Options {
	euclidean := Euclidean()
	for _, funcs := range []*Funcs{&o.Source, &o.Destination} {
		if funcs.Midpoint == nil {
			funcs.Midpoint = euclidean.Midpoint
		}
		if funcs.Distance == nil {
			funcs.Distance = euclidean.Distance
		}
	}
	return o
}

// Segment returns the points to insert between start and end, in order from
// start to end. At most 2^MaxDepth - 1 points are returned. Unset functions
// in opts are Euclidean.
func Segment(start, end geometry.GeneralGCP, f Func, opts Options) []geometry.GeneralGCP {
	return segment(start, end, f, opts.withDefaults(), 0)
}

func segment(start, end geometry.GeneralGCP, f Func, opts Options, depth int) []geometry.GeneralGCP {
	if depth >= opts.MaxDepth {
		return nil
	}

	sourceMid := opts.Source.Midpoint(start.Source, end.Source)
	mid := geometry.GeneralGCP{Source: sourceMid, Destination: f(sourceMid)}
	lineMid := opts.Destination.Midpoint(start.Destination, end.Destination)

	length := opts.Destination.Distance(start.Destination, end.Destination)
	offset := opts.Destination.Distance(mid.Destination, lineMid)
	if length == 0 ||
		offset/length < opts.MinOffsetRatio ||
		offset < opts.MinOffsetDistance ||
		length < opts.MinLineDistance {
		return nil
	}

	left := segment(start, mid, f, opts, depth+1)
	right := segment(mid, end, f, opts, depth+1)

	out := make([]geometry.GeneralGCP, 0, len(left)+1+len(right))
	out = append(out, left...)
	out = append(out, mid)
	return append(out, right...)
}

// LineString transforms every point with f and refines every segment.
func LineString(points []orb.Point, f Func, opts Options) []geometry.GeneralGCP {
	if len(points) == 0 {
		return nil
	}

	gcps := make([]geometry.GeneralGCP, len(points))
	for i, p := range points {
		gcps[i] = geometry.GeneralGCP{Source: p, Destination: f(p)}
	}
	if opts.MaxDepth <= 0 {
		return gcps
	}

	opts = opts.withDefaults()
	out := make([]geometry.GeneralGCP, 0, len(gcps))
	out = append(out, gcps[0])
	for i := 1; i < len(gcps); i++ {
		out = append(out, Segment(gcps[i-1], gcps[i], f, opts)...)
		out = append(out, gcps[i])
	}
	return out
}

// Ring is LineString for rings: the closing segment from the last point back
// to the first is refined too. A closed input (first point repeated at the
// end) gives a closed result, an open input an open result.
func Ring(points []orb.Point, f Func, opts Options) []geometry.GeneralGCP {
	if len(points) < 2 || geometry.IsClosed(points) {
		return LineString(points, f, opts)
	}
	out := LineString(geometry.CloseRing(points), f, opts)
	return out[:len(out)-1]
}

// Destinations returns the destination points of gcps.
func Destinations(gcps []geometry.GeneralGCP) []orb.Point {
	out := make([]orb.Point, len(gcps))
	for i, g := range gcps {
		out[i] = g.Destination
	}
	return out
}
