package transformation

import (
	"math"
	"sync"

	"georef/internal/logging"
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Transformation is a model fitted from source points to destination points.
// The set of implementations is closed: Helmert, Polynomial, Projective, RBF
// and Straight.
type Transformation interface {
	Type() Type
	SourcePoints() []orb.Point
	DestinationPoints() []orb.Point
	PointCount() int
	PointCountMinimum() int

	// Solve computes the weights. It runs once; later calls are no-ops.
	// Evaluation calls it implicitly.
	Solve()

	// Evaluate maps a source point to the destination space.
	Evaluate(p orb.Point) orb.Point

	// EvaluatePartialDerivativeX returns the derivative of Evaluate with
	// respect to the source x coordinate at p.
	EvaluatePartialDerivativeX(p orb.Point) orb.Point

	// EvaluatePartialDerivativeY returns the derivative of Evaluate with
	// respect to the source y coordinate at p.
	EvaluatePartialDerivativeY(p orb.Point) orb.Point

	sealed()
}

// New builds the model of the given type. Source and destination must have
// the same length and hold at least typ.MinimumPoints() points.
func New(typ Type, source, destination []orb.Point) (Transformation, error) {
	switch typ {
	case TypeHelmert:
		return wrap(NewHelmert(source, destination))
	case TypePolynomial1, TypePolynomial2, TypePolynomial3:
		return wrap(NewPolynomial(typ.PolynomialOrder(), source, destination))
	case TypeProjective:
		return wrap(NewProjective(source, destination))
	case TypeThinPlateSpline:
		return wrap(NewThinPlateSpline(source, destination))
	case TypeStraight:
		return wrap(NewStraight(source, destination))
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "%q", typ)
}

// wrap keeps a typed nil pointer from leaking into the interface on error.
func wrap[T Transformation](t T, err error) (Transformation, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

// base holds the immutable point sets and the solve guard shared by every model.
//
// Models are fitted in normalised coordinates: toModel maps a source point
// into the frame the weights refer to and fromModel maps a model output back
// to destination coordinates. This keeps the systems well scaled when
// coordinates are large, such as web mercator metres.
type base struct {
	typ         Type
	source      []orb.Point
	destination []orb.Point
	once        sync.Once

	toModel          geometry.AffineTransform
	fromModel        geometry.AffineTransform
	modelSource      []orb.Point
	modelDestination []orb.Point
}

func (b *base) init(typ Type, source, destination []orb.Point) error {
	if len(source) != len(destination) {
		return errors.Wrapf(ErrPointCountMismatch, "%d source, %d destination", len(source), len(destination))
	}
	if required := typ.MinimumPoints(); len(source) < required {
		return &InsufficientPointsError{Type: typ, Required: required, Given: len(source)}
	}
	b.typ = typ
	b.source = append([]orb.Point(nil), source...)
	b.destination = append([]orb.Point(nil), destination...)
	return nil
}

func (b *base) Type() Type                     { return b.typ }
func (b *base) SourcePoints() []orb.Point      { return b.source }
func (b *base) DestinationPoints() []orb.Point { return b.destination }
func (b *base) PointCount() int                { return len(b.source) }
func (b *base) PointCountMinimum() int         { return b.typ.MinimumPoints() }
func (b *base) sealed()                        {}

func (b *base) solveOnce(solve func()) {
	b.once.Do(func() {
		b.normalize()
		solve()
		logging.Logger().Debug("solved transformation", "type", b.typ, "points", len(b.source))
	})
}

func (b *base) normalize() {
	source := normalizing(b.source)
	destination := normalizing(b.destination)
	b.toModel = source.forward
	b.fromModel = destination.inverse
	b.modelSource = applyAll(source.forward, b.source)
	b.modelDestination = applyAll(destination.forward, b.destination)
}

// chain turns the partial derivatives du, dv of the normalised model into
// partial derivatives with respect to the source x and y coordinates.
func (b *base) chain(du, dv orb.Point) (dx, dy orb.Point) {
	t := b.toModel
	dx = b.fromModel.ApplyLinear(geometry.Add(geometry.Scale(du, t.A), geometry.Scale(dv, t.C)))
	dy = b.fromModel.ApplyLinear(geometry.Add(geometry.Scale(du, t.B), geometry.Scale(dv, t.D)))
	return dx, dy
}

// DestinationTransformedSourcePoints evaluates t at each of its source points.
func DestinationTransformedSourcePoints(t Transformation) []orb.Point {
	source := t.SourcePoints()
	out := make([]orb.Point, len(source))
	for i, p := range source {
		out[i] = t.Evaluate(p)
	}
	return out
}

// Errors returns, per control point, the distance between the transformed
// source point and its destination point.
func Errors(t Transformation) []float64 {
	transformed := DestinationTransformedSourcePoints(t)
	destination := t.DestinationPoints()
	errs := make([]float64, len(transformed))
	for i := range transformed {
		errs[i] = geometry.Distance(transformed[i], destination[i])
	}
	return errs
}

// RMSE returns the root mean square of Errors.
func RMSE(t Transformation) float64 {
	errs := Errors(t)
	if len(errs) == 0 {
		return 0
	}
	var sum float64
	for _, e := range errs {
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(errs)))
}
