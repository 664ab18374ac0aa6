package refine

import (
	"testing"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parabola bends every segment, so each split has a non-zero offset.
func parabola(p orb.Point) orb.Point {
	return orb.Point{p[0], p[0] * p[0] / 10}
}

// bend curves segments along both axes.
func bend(p orb.Point) orb.Point {
	return orb.Point{p[0] + p[1]*p[1]/10, p[1] + p[0]*p[0]/10}
}

func shift(p orb.Point) orb.Point {
	return orb.Point{p[0] + 1, p[1] - 1}
}

func edge(f Func, a, b orb.Point) (geometry.GeneralGCP, geometry.GeneralGCP) {
	return geometry.GeneralGCP{Source: a, Destination: f(a)}, geometry.GeneralGCP{Source: b, Destination: f(b)}
}

func withDepth(depth int) Options {
	opts := DefaultOptions()
	opts.MaxDepth = depth
	return opts
}

func TestLineStringWithoutRefinement(t *testing.T) {
	got := LineString([]orb.Point{{0, 0}, {10, 0}}, parabola, DefaultOptions())
	require.Len(t, got, 2)
	assert.Equal(t, orb.Point{10, 10}, got[1].Destination)
}

func TestSegmentInsertsAtMostTwoToTheDepthMinusOne(t *testing.T) {
	start, end := edge(parabola, orb.Point{0, 0}, orb.Point{10, 0})

	previous := 0
	for depth := 0; depth <= 6; depth++ {
		got := Segment(start, end, parabola, withDepth(depth))
		assert.Len(t, got, (1<<depth)-1, "depth %d", depth)
		assert.GreaterOrEqual(t, len(got), previous)
		previous = len(got)
	}
}

func TestUnsetFuncsAreEuclidean(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero value", Options{MaxDepth: 2}},
		{"source only", Options{MaxDepth: 2, Source: Euclidean()}},
		{"destination distance only", Options{MaxDepth: 2, Destination: Funcs{Distance: geometry.Distance}}},
	}
	start, end := edge(parabola, orb.Point{0, 0}, orb.Point{10, 0})
	want := Segment(start, end, parabola, withDepth(2))
	require.Len(t, want, 3)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []geometry.GeneralGCP
			require.NotPanics(t, func() { got = Segment(start, end, parabola, tt.opts) })
			assert.Equal(t, want, got)

			line := LineString([]orb.Point{{0, 0}, {10, 0}}, parabola, tt.opts)
			assert.Len(t, line, 5)
		})
	}
}

func TestSegmentOrder(t *testing.T) {
	start, end := edge(parabola, orb.Point{0, 0}, orb.Point{8, 0})
	got := Segment(start, end, parabola, withDepth(3))

	require.Len(t, got, 7)
	for i, g := range got {
		assert.Equal(t, float64(i+1), g.Source[0])
		assert.Equal(t, parabola(g.Source), g.Destination)
	}
}

func TestSegmentStopsOnLinearMap(t *testing.T) {
	start, end := edge(shift, orb.Point{0, 0}, orb.Point{10, 10})
	opts := withDepth(5)
	opts.MinOffsetRatio = 1e-9
	assert.Empty(t, Segment(start, end, shift, opts))
}

func TestSegmentThresholds(t *testing.T) {
	start, end := edge(parabola, orb.Point{0, 0}, orb.Point{10, 0})

	tests := []struct {
		name   string
		modify func(*Options)
		want   int
	}{
		{"no thresholds", func(*Options) {}, 15},
		// Root ratio is about 0.18, its left child 0.11, everything else below 0.08.
		{"offset ratio", func(o *Options) { o.MinOffsetRatio = 0.08 }, 2},
		{"offset distance", func(o *Options) { o.MinOffsetDistance = 100 }, 0},
		{"line distance", func(o *Options) { o.MinLineDistance = 1e6 }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := withDepth(4)
			tt.modify(&opts)
			assert.Len(t, Segment(start, end, parabola, opts), tt.want)
		})
	}
}

func TestSegmentMonotoneInOffsetRatio(t *testing.T) {
	start, end := edge(parabola, orb.Point{-3, 0}, orb.Point{17, 0})

	previous := -1
	for _, ratio := range []float64{0.5, 0.2, 0.1, 0.05, 0.01, 0.001, 0} {
		opts := withDepth(6)
		opts.MinOffsetRatio = ratio
		got := len(Segment(start, end, parabola, opts))
		assert.GreaterOrEqual(t, got, previous, "ratio %v", ratio)
		previous = got
	}
}

func TestSegmentZeroLength(t *testing.T) {
	start, end := edge(parabola, orb.Point{2, 2}, orb.Point{2, 2})
	assert.Empty(t, Segment(start, end, parabola, withDepth(3)))
}

func TestRingRefinesClosingEdge(t *testing.T) {
	open := []orb.Point{{0, 0}, {4, 0}, {4, 4}}

	got := Ring(open, bend, withDepth(1))
	// One midpoint per edge, closing edge included, no repeated first point.
	require.Len(t, got, 6)
	assert.Equal(t, orb.Point{2, 2}, got[5].Source)
	assert.False(t, geometry.IsClosed(refineSources(got)))

	closed := Ring(geometry.CloseRing(open), bend, withDepth(1))
	require.Len(t, closed, 7)
	assert.True(t, geometry.IsClosed(refineSources(closed)))
}

func refineSources(gcps []geometry.GeneralGCP) []orb.Point {
	out := make([]orb.Point, len(gcps))
	for i, g := range gcps {
		out[i] = g.Source
	}
	return out
}

func TestDestinations(t *testing.T) {
	got := Destinations(LineString([]orb.Point{{1, 1}, {2, 2}}, shift, DefaultOptions()))
	assert.Equal(t, []orb.Point{{2, 0}, {3, 1}}, got)
}

func TestGeographicFuncs(t *testing.T) {
	geo := Geographic()
	assert.InDelta(t, 111319.5, geo.Distance(orb.Point{0, 0}, orb.Point{1, 0}), 1)

	mid := geo.Midpoint(orb.Point{-10, 60}, orb.Point{10, 60})
	assert.InDelta(t, 0, mid[0], 1e-9)
	assert.Greater(t, mid[1], 60.0)

	assert.Equal(t, orb.Point{0, 60}, Euclidean().Midpoint(orb.Point{-10, 60}, orb.Point{10, 60}))
}

func TestGeographicDestinationRefinement(t *testing.T) {
	// A straight line in lon/lat is not a great circle, so a geographic
	// destination sees an offset even for the identity map.
	identity := func(p orb.Point) orb.Point { return p }
	start, end := edge(identity, orb.Point{-40, 60}, orb.Point{40, 60})

	opts := withDepth(3)
	opts.MinOffsetRatio = 0.01
	assert.Empty(t, Segment(start, end, identity, opts))

	opts.Destination = FuncsFor(true)
	assert.NotEmpty(t, Segment(start, end, identity, opts))
}
