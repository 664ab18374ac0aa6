package transformer

import (
	"math"
	"sync"
	"testing"

	"georef/pkg/distortion"
	"georef/pkg/geometry"
	"georef/pkg/transformation"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helmertGCPs = []GCP{
	{Resource: orb.Point{0, 0}, Geo: orb.Point{10, 20}},
	{Resource: orb.Point{1, 0}, Geo: orb.Point{10, 22}},
	{Resource: orb.Point{0, 1}, Geo: orb.Point{8, 20}},
	{Resource: orb.Point{1, 1}, Geo: orb.Point{8, 22}},
}

// maskGCPs maps the corners of a 1000 x 2000 image onto a quadrilateral.
var maskGCPs = []GCP{
	{Resource: orb.Point{0, 0}, Geo: orb.Point{4.35, 52.35}},
	{Resource: orb.Point{1000, 0}, Geo: orb.Point{4.40, 52.36}},
	{Resource: orb.Point{1000, 2000}, Geo: orb.Point{4.41, 52.30}},
	{Resource: orb.Point{0, 2000}, Geo: orb.Point{4.34, 52.29}},
}

// warpedGCPs are not related by any affine map.
var warpedGCPs = []GCP{
	{Resource: orb.Point{0, 0}, Geo: orb.Point{0, 0}},
	{Resource: orb.Point{100, 0}, Geo: orb.Point{110, 10}},
	{Resource: orb.Point{0, 100}, Geo: orb.Point{-5, 95}},
	{Resource: orb.Point{100, 100}, Geo: orb.Point{90, 120}},
	{Resource: orb.Point{50, 50}, Geo: orb.Point{60, 45}},
	{Resource: orb.Point{20, 70}, Geo: orb.Point{15, 72}},
	{Resource: orb.Point{80, 30}, Geo: orb.Point{85, 28}},
}

func gcpsFrom(f func(orb.Point) orb.Point, resources ...orb.Point) []GCP {
	out := make([]GCP, len(resources))
	for i, r := range resources {
		out[i] = GCP{Resource: r, Geo: f(r)}
	}
	return out
}

func gridPoints(n int, step float64) []orb.Point {
	var out []orb.Point
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out = append(out, orb.Point{float64(i)*step + float64(j)*0.1, float64(j) * step})
		}
	}
	return out
}

func assertPointInDelta(t *testing.T, want, got orb.Point, delta float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.InDelta(t, want[0], got[0], delta, msgAndArgs...)
	assert.InDelta(t, want[1], got[1], delta, msgAndArgs...)
}

func TestHelmertScenario(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert)
	require.NoError(t, err)

	assertPointInDelta(t, orb.Point{10, 20}, tr.TransformPointToGeo(orb.Point{0, 0}), 1e-9)
	assertPointInDelta(t, orb.Point{0, 0}, tr.TransformPointToResource(orb.Point{10, 20}), 1e-9)

	helmert, ok := tr.Forward().(*transformation.Helmert)
	require.True(t, ok)
	m := helmert.Measures()
	assert.InDelta(t, 2, m.Scale, 1e-9)
	assert.InDelta(t, math.Pi/2, m.Rotation, 1e-9)
	assertPointInDelta(t, orb.Point{10, 20}, m.Translation, 1e-9)
	assert.InDelta(t, 0, transformation.RMSE(tr.Forward()), 1e-9)
	assert.InDelta(t, 2, tr.ReferenceScale(), 1e-9)

	// The backward model is refitted, not inverted, but for a similarity
	// both agree.
	backward := tr.Backward().(*transformation.Helmert).Measures()
	assert.InDelta(t, 0.5, backward.Scale, 1e-9)
	assert.InDelta(t, -math.Pi/2, backward.Rotation, 1e-9)
}

func TestNewFromString(t *testing.T) {
	_, err := NewFromString(helmertGCPs, "affine")
	assert.True(t, errors.Is(err, transformation.ErrUnsupportedType))

	tr, err := NewFromString(helmertGCPs, "polynomial")
	require.NoError(t, err)
	assert.Equal(t, transformation.TypePolynomial1, tr.Type())
}

func TestNewPropagatesInsufficientPoints(t *testing.T) {
	_, err := New(warpedGCPs[:5], transformation.TypePolynomial2)
	require.Error(t, err)

	var ipe *transformation.InsufficientPointsError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, 6, ipe.Required)
	assert.Equal(t, 5, ipe.Given)

	_, err = New(warpedGCPs[:6], transformation.TypePolynomial2)
	assert.NoError(t, err)
}

func TestThinPlateSplinePassesThroughGCPs(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline)
	require.NoError(t, err)

	for i, g := range warpedGCPs {
		assertPointInDelta(t, g.Geo, tr.TransformPointToGeo(g.Resource), 1e-6, "gcp %d", i)
		assertPointInDelta(t, g.Resource, tr.TransformPointToResource(g.Geo), 1e-6, "gcp %d", i)
	}
}

func TestBackwardIsIndependentlyFitted(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypePolynomial2)
	require.NoError(t, err)

	p := orb.Point{37, 61}
	roundTrip := tr.TransformPointToGeo(tr.TransformPointToResource(p))
	// Close, since both fits describe the same GCPs, but not exact.
	assert.InDelta(t, 0, geometry.Distance(p, roundTrip), 20)
	assert.NotEqual(t, p, roundTrip)

	affine := geometry.AffineTransform{A: 1.5, B: 0.2, TX: 3, C: -0.1, D: 2, TY: 8}
	exact, err := New(gcpsFrom(affine.Apply, gridPoints(3, 50)...), transformation.TypePolynomial1)
	require.NoError(t, err)
	assertPointInDelta(t, p, exact.TransformPointToGeo(exact.TransformPointToResource(p)), 1e-9)
}

// isConvex reports whether every turn along the closed ring has the same
// direction. Collinear vertices are allowed.
func isConvex(ring orb.Ring) bool {
	points := ring
	if ring.Closed() {
		points = ring[:len(ring)-1]
	}
	n := len(points)
	if n < 3 {
		return false
	}
	var turn float64
	for i := range points {
		a, b, c := points[i], points[(i+1)%n], points[(i+2)%n]
		cross := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
		if cross*turn < 0 {
			return false
		}
		if cross != 0 {
			turn = cross
		}
	}
	return true
}

func TestProjectiveMaskScenario(t *testing.T) {
	tr, err := New(maskGCPs, transformation.TypeProjective)
	require.NoError(t, err)

	mask := geometry.RectangleRing(1000, 2000)
	got := tr.TransformRingToGeo(mask)

	require.Len(t, got, 5)
	for i := 0; i < 4; i++ {
		assertPointInDelta(t, maskGCPs[i].Geo, got[i], 1e-6, "corner %d", i)
	}
	assert.True(t, got.Closed())
	assert.True(t, isConvex(got))
}

func TestLineStringRefinementBound(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline)
	require.NoError(t, err)

	ls := orb.LineString{{0, 0}, {100, 100}, {0, 100}}
	plain := tr.TransformLineStringToGeo(ls)
	require.Len(t, plain, 3)

	previous := len(plain)
	for depth := 1; depth <= 5; depth++ {
		got := tr.TransformLineStringToGeo(ls, WithMaxDepth(depth))
		edges := len(ls) - 1
		assert.LessOrEqual(t, len(got), len(ls)+edges*((1<<depth)-1), "depth %d", depth)
		assert.GreaterOrEqual(t, len(got), previous, "depth %d", depth)
		previous = len(got)

		// Original vertices keep their positions and order.
		assert.Equal(t, plain[0], got[0])
		assert.Equal(t, plain[2], got[len(got)-1])
	}
}

func TestRefinementFollowsCurve(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline)
	require.NoError(t, err)

	ls := orb.LineString{{0, 0}, {100, 0}}
	got := tr.TransformLineStringToGeo(ls, WithMaxDepth(3))
	require.Len(t, got, 9)
	for i, p := range got {
		want := tr.TransformPointToGeo(orb.Point{float64(i) * 12.5, 0})
		assertPointInDelta(t, want, p, 1e-9, "vertex %d", i)
	}
}

func TestPerCallOptionsDoNotLeak(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline, WithMaxDepth(1))
	require.NoError(t, err)

	ls := orb.LineString{{0, 0}, {100, 0}}
	assert.Len(t, tr.TransformLineStringToGeo(ls, WithMaxDepth(2)), 5)
	assert.Len(t, tr.TransformLineStringToGeo(ls), 3)
	assert.Equal(t, 1, tr.Options().MaxDepth)
}

func TestMinOffsetRatioStopsLinearTransforms(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert, WithMaxDepth(4), WithMinOffsetRatio(1e-6))
	require.NoError(t, err)
	assert.Len(t, tr.TransformLineStringToGeo(orb.LineString{{0, 0}, {100, 0}}), 2)
}

func TestPolygonRingsAreRefinedIndependently(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline)
	require.NoError(t, err)

	polygon := orb.Polygon{
		geometry.RectangleRing(100, 100),
		{{40, 40}, {60, 40}, {60, 60}, {40, 40}},
	}
	got := tr.TransformPolygonToGeo(polygon, WithMaxDepth(1))
	require.Len(t, got, 2)
	assert.Len(t, got[0], 9)
	assert.Len(t, got[1], 7)
	assert.True(t, got[0].Closed())
	assert.True(t, got[1].Closed())
}

func TestTransformGeometryDispatch(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert)
	require.NoError(t, err)

	p := orb.Point{1, 0}
	want := orb.Point{10, 22}

	tests := []struct {
		name  string
		in    orb.Geometry
		check func(t *testing.T, g orb.Geometry)
	}{
		{"point", p, func(t *testing.T, g orb.Geometry) {
			assertPointInDelta(t, want, g.(orb.Point), 1e-9)
		}},
		{"multipoint", orb.MultiPoint{p, p}, func(t *testing.T, g orb.Geometry) {
			require.Len(t, g.(orb.MultiPoint), 2)
			assertPointInDelta(t, want, g.(orb.MultiPoint)[1], 1e-9)
		}},
		{"linestring", orb.LineString{{0, 0}, p}, func(t *testing.T, g orb.Geometry) {
			assertPointInDelta(t, want, g.(orb.LineString)[1], 1e-9)
		}},
		{"multilinestring", orb.MultiLineString{{{0, 0}, p}}, func(t *testing.T, g orb.Geometry) {
			assertPointInDelta(t, want, g.(orb.MultiLineString)[0][1], 1e-9)
		}},
		{"ring", orb.Ring{{0, 0}, p, {1, 1}, {0, 0}}, func(t *testing.T, g orb.Geometry) {
			assert.True(t, g.(orb.Ring).Closed())
		}},
		{"polygon", orb.Polygon{{{0, 0}, p, {1, 1}, {0, 0}}}, func(t *testing.T, g orb.Geometry) {
			assertPointInDelta(t, want, g.(orb.Polygon)[0][1], 1e-9)
		}},
		{"multipolygon", orb.MultiPolygon{{{{0, 0}, p, {1, 1}, {0, 0}}}}, func(t *testing.T, g orb.Geometry) {
			assertPointInDelta(t, want, g.(orb.MultiPolygon)[0][0][1], 1e-9)
		}},
		{"bound", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, func(t *testing.T, g orb.Geometry) {
			require.Len(t, g.(orb.Polygon), 1)
			assert.Len(t, g.(orb.Polygon)[0], 5)
		}},
		{"collection", orb.Collection{p, orb.LineString{{0, 0}, p}}, func(t *testing.T, g orb.Geometry) {
			c := g.(orb.Collection)
			require.Len(t, c, 2)
			assertPointInDelta(t, want, c[0].(orb.Point), 1e-9)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.TransformToGeo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.in.GeoJSONType(), got.GeoJSONType())
			tt.check(t, got)
		})
	}

	back, err := tr.TransformToResource(want)
	require.NoError(t, err)
	assertPointInDelta(t, p, back.(orb.Point), 1e-9)
}

func TestTransformGeometryRejectsNil(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert)
	require.NoError(t, err)

	_, err = tr.TransformToGeo(nil)
	assert.True(t, errors.Is(err, ErrUnsupportedGeometry))

	_, err = tr.TransformToGeo(orb.Collection{orb.Point{0, 0}, nil})
	assert.True(t, errors.Is(err, ErrUnsupportedGeometry))
}

func TestProjectionHooks(t *testing.T) {
	// GCPs whose geo points are an exact similarity of the resource points
	// in web mercator.
	similarity := geometry.Similarity(30, 0.1, orb.Point{480000, 6800000})
	var gcps []GCP
	for _, r := range gridPoints(3, 1000) {
		gcps = append(gcps, GCP{Resource: r, Geo: project.Mercator.ToWGS84(similarity.Apply(r))})
	}

	tr, err := New(gcps, transformation.TypeHelmert,
		WithForwardHooks(nil, project.Mercator.ToWGS84),
		WithBackwardHooks(project.WGS84.ToMercator, nil),
		WithDestinationIsGeographic(true),
	)
	require.NoError(t, err)

	for i, g := range gcps {
		assertPointInDelta(t, g.Geo, tr.TransformPointToGeo(g.Resource), 1e-9, "gcp %d", i)
		assertPointInDelta(t, g.Resource, tr.TransformPointToResource(g.Geo), 1e-6, "gcp %d", i)
	}
	assert.InDelta(t, 30, tr.ReferenceScale(), 1e-6)
}

func TestDistortionsOfConformalMap(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert,
		WithDistortionMeasures(distortion.AllMeasures...))
	require.NoError(t, err)

	for _, v := range tr.TransformLineStringToGeoWithDistortions(orb.LineString{{0, 0}, {50, 80}}, WithMaxDepth(2)) {
		assert.InDelta(t, 0, v.Distortions[distortion.Log2Sigma], 1e-9)
		assert.InDelta(t, 0, v.Distortions[distortion.TwoOmega], 1e-9)
		assert.InDelta(t, 0, v.Distortions[distortion.AiryKavr], 1e-9)
		assert.Equal(t, 1.0, v.Distortions[distortion.SignDetJ])
		assert.InDelta(t, 0, geometry.Dot(v.PartialDerivatives.DX, v.PartialDerivatives.DY), 1e-9)
	}

	v := tr.TransformPointToGeoWithDistortions(orb.Point{0, 0}, WithReferenceScale(1))
	assert.InDelta(t, 2, v.Distortions[distortion.Log2Sigma], 1e-9)
	assertPointInDelta(t, orb.Point{10, 20}, v.Destination, 1e-9)
}

func TestProjectiveDoesNotFold(t *testing.T) {
	tr, err := New(maskGCPs, transformation.TypeProjective,
		WithDistortionMeasures(distortion.SignDetJ))
	require.NoError(t, err)

	rings := tr.TransformPolygonToGeoWithDistortions(orb.Polygon{geometry.RectangleRing(1000, 2000)}, WithMaxDepth(2))
	require.Len(t, rings, 1)
	for _, v := range rings[0] {
		// Image y points down while latitude points up, so the map reverses
		// orientation consistently.
		assert.Equal(t, rings[0][0].Distortions[distortion.SignDetJ], v.Distortions[distortion.SignDetJ])
	}
	assert.NotZero(t, rings[0][0].Distortions[distortion.SignDetJ])
}

func TestSignDetJFlipsWhereMapFolds(t *testing.T) {
	fold := func(p orb.Point) orb.Point { return orb.Point{p[0] * p[0], p[1]} }
	gcps := gcpsFrom(fold, orb.Point{-2, 0}, orb.Point{-1, 1}, orb.Point{0, 2}, orb.Point{1, 0},
		orb.Point{2, 1}, orb.Point{-2, 2}, orb.Point{1, 2}, orb.Point{0, -1})

	tr, err := New(gcps, transformation.TypePolynomial2, WithDistortionMeasures(distortion.SignDetJ))
	require.NoError(t, err)

	left := tr.TransformPointToGeoWithDistortions(orb.Point{-1, 0.5})
	right := tr.TransformPointToGeoWithDistortions(orb.Point{1, 0.5})
	assert.Equal(t, -1.0, left.Distortions[distortion.SignDetJ])
	assert.Equal(t, 1.0, right.Distortions[distortion.SignDetJ])
}

func TestComputeDistortions(t *testing.T) {
	tr, err := New(helmertGCPs, transformation.TypeHelmert)
	require.NoError(t, err)

	pd := tr.EvaluatePartialDerivatives(orb.Point{3, 4})
	assertPointInDelta(t, orb.Point{0, 2}, pd.DX, 1e-9)
	assertPointInDelta(t, orb.Point{-2, 0}, pd.DY, 1e-9)

	got := ComputeDistortions([]distortion.Measure{distortion.Log2Sigma}, pd, tr.ReferenceScale())
	assert.InDelta(t, 0, got[distortion.Log2Sigma], 1e-9)

	back := tr.EvaluateBackwardPartialDerivatives(orb.Point{10, 20})
	assert.InDelta(t, 0.5, geometry.Norm(back.DX), 1e-9)
}

func TestGeographicDestinationRefinement(t *testing.T) {
	gcps := gcpsFrom(func(p orb.Point) orb.Point { return orb.Point{p[0] / 10, 60 + p[1]/100} },
		orb.Point{-400, 0}, orb.Point{400, 0}, orb.Point{0, 100})

	ls := orb.LineString{{-400, 0}, {400, 0}}
	planar, err := New(gcps, transformation.TypePolynomial1, WithMaxDepth(2), WithMinOffsetRatio(0.001))
	require.NoError(t, err)
	assert.Len(t, planar.TransformLineStringToGeo(ls), 2)

	geographic, err := New(gcps, transformation.TypePolynomial1, WithMaxDepth(2), WithMinOffsetRatio(0.001),
		WithDestinationIsGeographic(true))
	require.NoError(t, err)
	assert.Len(t, geographic.TransformLineStringToGeo(ls), 5)

	// Backward refinement uses the geographic side as its source.
	back := geographic.TransformLineStringToResource(orb.LineString{{-40, 60}, {40, 60}})
	assert.Len(t, back, 5)
}

func TestConcurrentUse(t *testing.T) {
	tr, err := New(warpedGCPs, transformation.TypeThinPlateSpline,
		WithDistortionMeasures(distortion.Log2Sigma))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TransformLineStringToGeoWithDistortions(orb.LineString{{0, 0}, {100, 100}}, WithMaxDepth(3))
			tr.TransformPointToResource(orb.Point{50, 50})
		}()
	}
	wg.Wait()
}

func TestGCPsAreCopied(t *testing.T) {
	gcps := append([]GCP(nil), helmertGCPs...)
	tr, err := New(gcps, transformation.TypeHelmert)
	require.NoError(t, err)

	gcps[0].Geo = orb.Point{0, 0}
	assert.Equal(t, orb.Point{10, 20}, tr.GCPs()[0].Geo)
	assertPointInDelta(t, orb.Point{10, 20}, tr.TransformPointToGeo(orb.Point{0, 0}), 1e-9)
}
