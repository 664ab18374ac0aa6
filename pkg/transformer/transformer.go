// Package transformer maps points and geometries between the resource (pixel)
// space of an image and geo space, using a transformation fitted to ground
// control points.
//
// A Transformer holds two independently fitted models: the forward model maps
// resource to geo, the backward model is fitted with the roles swapped and maps
// geo to resource. The backward model is not an analytic inverse, so
// forward(backward(p)) only approximates p for non-affine types.
package transformer

import (
	"sync"

	"georef/internal/logging"
	"georef/pkg/distortion"
	"georef/pkg/geometry"
	"georef/pkg/refine"
	"georef/pkg/transformation"

	"github.com/paulmach/orb"
)

// GCP is a ground control point.
type GCP = geometry.GCP

// PartialDerivatives holds the Jacobian columns of a model at a point.
type PartialDerivatives struct {
	DX orb.Point
	DY orb.Point
}

// Vertex is a transformed point together with the local behaviour of the
// model there.
type Vertex struct {
	Source             orb.Point
	Destination        orb.Point
	PartialDerivatives PartialDerivatives
	Distortions        distortion.Measures
}

// Transformer transforms geometries between resource and geo space. It is
// safe for concurrent use.
type Transformer struct {
	gcps    []GCP
	typ     transformation.Type
	options Options

	forward  *direction
	backward *direction
}

// New fits forward and backward models of the given type to gcps. Options
// are merged with DefaultOptions once, here. Errors from the models, such as
// too few control points, are returned unchanged.
func New(gcps []GCP, typ transformation.Type, opts ...Option) (*Transformer, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.fillHooks()

	resource := make([]orb.Point, len(gcps))
	geo := make([]orb.Point, len(gcps))
	for i, g := range gcps {
		resource[i] = options.PreForward(g.Resource)
		geo[i] = options.PreBackward(g.Geo)
	}

	forward, err := transformation.New(typ, resource, geo)
	if err != nil {
		return nil, err
	}
	backward, err := transformation.New(typ, geo, resource)
	if err != nil {
		return nil, err
	}

	logging.Logger().Debug("created transformer", "type", typ, "gcps", len(gcps))
	return &Transformer{
		gcps:    append([]GCP(nil), gcps...),
		typ:     typ,
		options: options,
		forward: &direction{
			model:                 forward,
			pre:                   options.PreForward,
			post:                  options.PostForward,
			sourceGeographic:      options.SourceIsGeographic,
			destinationGeographic: options.DestinationIsGeographic,
		},
		backward: &direction{
			model:                 backward,
			pre:                   options.PreBackward,
			post:                  options.PostBackward,
			sourceGeographic:      options.DestinationIsGeographic,
			destinationGeographic: options.SourceIsGeographic,
		},
	}, nil
}

// NewFromString is New with the type given by name, including the legacy
// name "polynomial". Unknown names fail with transformation.ErrUnsupportedType
// before any model is built.
func NewFromString(gcps []GCP, typ string, opts ...Option) (*Transformer, error) {
	t, err := transformation.ParseType(typ)
	if err != nil {
		return nil, err
	}
	return New(gcps, t, opts...)
}

// GCPs returns the control points the transformer was built from.
func (t *Transformer) GCPs() []GCP {
	return append([]GCP(nil), t.gcps...)
}

// Type returns the transformation type.
func (t *Transformer) Type() transformation.Type {
	return t.typ
}

// Options returns the merged options.
func (t *Transformer) Options() Options {
	return t.options
}

// Forward returns the resource to geo model.
func (t *Transformer) Forward() transformation.Transformation {
	return t.forward.model
}

// Backward returns the geo to resource model.
func (t *Transformer) Backward() transformation.Transformation {
	return t.backward.model
}

// callOptions applies per call options on top of the transformer's. Hooks
// are fixed when the models are fitted and cannot be changed per call.
func (t *Transformer) callOptions(opts []Option) Options {
	if len(opts) == 0 {
		return t.options
	}
	o := t.options
	for _, opt := range opts {
		opt(&o)
	}
	o.PreForward, o.PostForward = t.options.PreForward, t.options.PostForward
	o.PreBackward, o.PostBackward = t.options.PreBackward, t.options.PostBackward
	return o
}

// TransformPointToGeo maps a resource point to geo space.
func (t *Transformer) TransformPointToGeo(p orb.Point) orb.Point {
	return t.forward.point(p)
}

// TransformPointToResource maps a geo point to resource space.
func (t *Transformer) TransformPointToResource(p orb.Point) orb.Point {
	return t.backward.point(p)
}

// TransformLineStringToGeo maps a resource line string to geo space,
// refining each segment when MaxDepth > 0.
func (t *Transformer) TransformLineStringToGeo(ls orb.LineString, opts ...Option) orb.LineString {
	return t.forward.lineString(ls, t.callOptions(opts))
}

// TransformLineStringToResource maps a geo line string to resource space.
func (t *Transformer) TransformLineStringToResource(ls orb.LineString, opts ...Option) orb.LineString {
	return t.backward.lineString(ls, t.callOptions(opts))
}

// TransformRingToGeo maps a resource ring to geo space. The closing segment
// is refined as well; a closed ring stays closed.
func (t *Transformer) TransformRingToGeo(r orb.Ring, opts ...Option) orb.Ring {
	return t.forward.ring(r, t.callOptions(opts))
}

// TransformRingToResource maps a geo ring to resource space.
func (t *Transformer) TransformRingToResource(r orb.Ring, opts ...Option) orb.Ring {
	return t.backward.ring(r, t.callOptions(opts))
}

// TransformPolygonToGeo maps every ring of a resource polygon to geo space.
func (t *Transformer) TransformPolygonToGeo(p orb.Polygon, opts ...Option) orb.Polygon {
	return t.forward.polygon(p, t.callOptions(opts))
}

// TransformPolygonToResource maps every ring of a geo polygon to resource space.
func (t *Transformer) TransformPolygonToResource(p orb.Polygon, opts ...Option) orb.Polygon {
	return t.backward.polygon(p, t.callOptions(opts))
}

// TransformToGeo maps any supported geometry from resource to geo space.
// Multi geometries and collections are transformed per component.
func (t *Transformer) TransformToGeo(g orb.Geometry, opts ...Option) (orb.Geometry, error) {
	return t.forward.geometry(g, t.callOptions(opts))
}

// TransformToResource maps any supported geometry from geo to resource space.
func (t *Transformer) TransformToResource(g orb.Geometry, opts ...Option) (orb.Geometry, error) {
	return t.backward.geometry(g, t.callOptions(opts))
}

// EvaluatePartialDerivatives returns the Jacobian columns of the forward
// model at resource point p.
func (t *Transformer) EvaluatePartialDerivatives(p orb.Point) PartialDerivatives {
	return t.forward.partialDerivatives(p)
}

// EvaluateBackwardPartialDerivatives returns the Jacobian columns of the
// backward model at geo point p.
func (t *Transformer) EvaluateBackwardPartialDerivatives(p orb.Point) PartialDerivatives {
	return t.backward.partialDerivatives(p)
}

// ReferenceScale returns the scale used as the undistorted baseline for the
// forward direction: Options.ReferenceScale when set, otherwise the scale of
// a Helmert fit to the same control points.
func (t *Transformer) ReferenceScale() float64 {
	return t.forward.referenceScale(t.options)
}

// direction is one side of the transformer: a model with its hooks.
type direction struct {
	model transformation.Transformation
	pre   Hook
	post  Hook

	sourceGeographic      bool
	destinationGeographic bool

	helmertOnce  sync.Once
	helmertScale float64
}

func (d *direction) point(p orb.Point) orb.Point {
	return d.post(d.model.Evaluate(d.pre(p)))
}

func (d *direction) refineOptions(o Options) refine.Options {
	return refine.Options{
		MaxDepth:          o.MaxDepth,
		MinOffsetRatio:    o.MinOffsetRatio,
		MinOffsetDistance: o.MinOffsetDistance,
		MinLineDistance:   o.MinLineDistance,
		Source:            refine.FuncsFor(d.sourceGeographic),
		Destination:       refine.FuncsFor(d.destinationGeographic),
	}
}

func (d *direction) lineString(ls orb.LineString, o Options) orb.LineString {
	return orb.LineString(refine.Destinations(refine.LineString(ls, d.point, d.refineOptions(o))))
}

func (d *direction) ring(r orb.Ring, o Options) orb.Ring {
	return orb.Ring(refine.Destinations(refine.Ring(r, d.point, d.refineOptions(o))))
}

func (d *direction) polygon(p orb.Polygon, o Options) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = d.ring(r, o)
	}
	return out
}

func (d *direction) partialDerivatives(p orb.Point) PartialDerivatives {
	q := d.pre(p)
	return PartialDerivatives{
		DX: d.model.EvaluatePartialDerivativeX(q),
		DY: d.model.EvaluatePartialDerivativeY(q),
	}
}

func (d *direction) referenceScale(o Options) float64 {
	if o.ReferenceScale > 0 {
		return o.ReferenceScale
	}
	d.helmertOnce.Do(func() {
		d.helmertScale = 1
		h, err := transformation.NewHelmert(d.model.SourcePoints(), d.model.DestinationPoints())
		if err != nil {
			logging.Logger().Warn("no reference scale", "err", err)
			return
		}
		d.helmertScale = h.Measures().Scale
	})
	return d.helmertScale
}
