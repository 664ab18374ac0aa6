package transformation

import (
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
)

// StraightMeasures describes a fitted straight transform.
type StraightMeasures struct {
	Scale       float64
	Translation orb.Point
}

// Straight applies a uniform scale and a translation, without rotation.
// The scale comes from a Helmert fit; the translation maps the source
// centroid onto the destination centroid.
type Straight struct {
	base
	scale       float64
	translation orb.Point
}

// NewStraight builds a straight transformation from at least two point pairs.
func NewStraight(source, destination []orb.Point) (*Straight, error) {
	s := &Straight{}
	if err := s.init(TypeStraight, source, destination); err != nil {
		return nil, err
	}
	return s, nil
}

// Solve fits the scale and translation.
func (s *Straight) Solve() {
	s.solveOnce(s.solve)
}

func (s *Straight) solve() {
	helmert := &Helmert{}
	// The point counts were validated against the same minimum.
	_ = helmert.init(TypeHelmert, s.source, s.destination)
	s.scale = helmert.Measures().Scale

	sourceMean := geometry.Centroid(s.source)
	destinationMean := geometry.Centroid(s.destination)
	s.translation = geometry.Sub(destinationMean, geometry.Scale(sourceMean, s.scale))
}

// Evaluate maps p to the destination space.
func (s *Straight) Evaluate(p orb.Point) orb.Point {
	s.Solve()
	return orb.Point{s.scale*p[0] + s.translation[0], s.scale*p[1] + s.translation[1]}
}

// EvaluatePartialDerivativeX is constant for a straight transform.
func (s *Straight) EvaluatePartialDerivativeX(orb.Point) orb.Point {
	s.Solve()
	return orb.Point{s.scale, 0}
}

// EvaluatePartialDerivativeY is constant for a straight transform.
func (s *Straight) EvaluatePartialDerivativeY(orb.Point) orb.Point {
	s.Solve()
	return orb.Point{0, s.scale}
}

// Measures returns the scale and translation of the fit.
func (s *Straight) Measures() StraightMeasures {
	s.Solve()
	return StraightMeasures{Scale: s.scale, Translation: s.translation}
}
