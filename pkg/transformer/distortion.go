package transformer

import (
	"georef/pkg/distortion"
	"georef/pkg/geometry"
	"georef/pkg/refine"

	"github.com/paulmach/orb"
)

func (d *direction) vertex(g geometry.GeneralGCP, o Options) Vertex {
	pd := d.partialDerivatives(g.Source)
	return Vertex{
		Source:             g.Source,
		Destination:        g.Destination,
		PartialDerivatives: pd,
		Distortions:        distortion.Compute(o.DistortionMeasures, &pd.DX, &pd.DY, d.referenceScale(o)),
	}
}

func (d *direction) vertices(gcps []geometry.GeneralGCP, o Options) []Vertex {
	out := make([]Vertex, len(gcps))
	for i, g := range gcps {
		out[i] = d.vertex(g, o)
	}
	return out
}

func (d *direction) pointWithDistortions(p orb.Point, o Options) Vertex {
	return d.vertex(geometry.GeneralGCP{Source: p, Destination: d.point(p)}, o)
}

func (d *direction) lineStringWithDistortions(ls orb.LineString, o Options) []Vertex {
	return d.vertices(refine.LineString(ls, d.point, d.refineOptions(o)), o)
}

func (d *direction) polygonWithDistortions(p orb.Polygon, o Options) [][]Vertex {
	out := make([][]Vertex, len(p))
	for i, r := range p {
		out[i] = d.vertices(refine.Ring(r, d.point, d.refineOptions(o)), o)
	}
	return out
}

// TransformPointToGeoWithDistortions maps a resource point to geo space and
// evaluates Options.DistortionMeasures of the forward model there.
func (t *Transformer) TransformPointToGeoWithDistortions(p orb.Point, opts ...Option) Vertex {
	return t.forward.pointWithDistortions(p, t.callOptions(opts))
}

// TransformPointToResourceWithDistortions is the backward counterpart of
// TransformPointToGeoWithDistortions.
func (t *Transformer) TransformPointToResourceWithDistortions(p orb.Point, opts ...Option) Vertex {
	return t.backward.pointWithDistortions(p, t.callOptions(opts))
}

// TransformLineStringToGeoWithDistortions maps a resource line string to geo
// space, refining as TransformLineStringToGeo does, and returns every output
// vertex with its distortion measures.
func (t *Transformer) TransformLineStringToGeoWithDistortions(ls orb.LineString, opts ...Option) []Vertex {
	return t.forward.lineStringWithDistortions(ls, t.callOptions(opts))
}

// TransformLineStringToResourceWithDistortions is the backward counterpart of
// TransformLineStringToGeoWithDistortions.
func (t *Transformer) TransformLineStringToResourceWithDistortions(ls orb.LineString, opts ...Option) []Vertex {
	return t.backward.lineStringWithDistortions(ls, t.callOptions(opts))
}

// TransformPolygonToGeoWithDistortions maps every ring of a resource polygon
// and returns the vertices of each ring with their distortion measures.
func (t *Transformer) TransformPolygonToGeoWithDistortions(p orb.Polygon, opts ...Option) [][]Vertex {
	return t.forward.polygonWithDistortions(p, t.callOptions(opts))
}

// TransformPolygonToResourceWithDistortions is the backward counterpart of
// TransformPolygonToGeoWithDistortions.
func (t *Transformer) TransformPolygonToResourceWithDistortions(p orb.Polygon, opts ...Option) [][]Vertex {
	return t.backward.polygonWithDistortions(p, t.callOptions(opts))
}

// ComputeDistortions evaluates measures from partial derivatives. It is
// distortion.Compute, exposed here next to EvaluatePartialDerivatives.
func ComputeDistortions(measures []distortion.Measure, pd PartialDerivatives, referenceScale float64) distortion.Measures {
	return distortion.Compute(measures, &pd.DX, &pd.DY, referenceScale)
}
