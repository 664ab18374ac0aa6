package transformation

import (
	"math"

	"georef/internal/solver"
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// HelmertMeasures describes a fitted similarity transform.
type HelmertMeasures struct {
	Scale       float64
	Rotation    float64 // radians, counter-clockwise
	Translation orb.Point
}

// Helmert is a similarity transform: translation, rotation and uniform
// scale, without shear.
//
//	x' = tx + m*x - n*y
//	y' = ty + n*x + m*y
type Helmert struct {
	base
	weights [4]float64 // tx, ty, m, n
}

// NewHelmert builds a Helmert transformation from at least two point pairs.
func NewHelmert(source, destination []orb.Point) (*Helmert, error) {
	h := &Helmert{}
	if err := h.init(TypeHelmert, source, destination); err != nil {
		return nil, err
	}
	return h, nil
}

// Solve fits the four parameters jointly over both axes.
func (h *Helmert) Solve() {
	h.solveOnce(h.solve)
}

func (h *Helmert) solve() {
	n := len(h.modelSource)
	coefs := mat.NewDense(2*n, 4, nil)
	for i, p := range h.modelSource {
		coefs.SetRow(i, []float64{1, 0, p[0], -p[1]})
		coefs.SetRow(n+i, []float64{0, 1, p[1], p[0]})
	}
	xs, ys := solver.Axes(h.modelDestination)
	w := solver.SolveJointlyPseudoInverse(coefs, xs, ys)

	// Both normalisations are similarities, so the fit stays one in
	// destination coordinates.
	model := geometry.AffineTransform{A: w[2], B: -w[3], TX: w[0], C: w[3], D: w[2], TY: w[1]}
	t := h.fromModel.Compose(model).Compose(h.toModel)
	h.weights = [4]float64{t.TX, t.TY, t.A, t.C}
}

// Evaluate maps p to the destination space.
func (h *Helmert) Evaluate(p orb.Point) orb.Point {
	h.Solve()
	tx, ty, m, n := h.weights[0], h.weights[1], h.weights[2], h.weights[3]
	return orb.Point{tx + m*p[0] - n*p[1], ty + n*p[0] + m*p[1]}
}

// EvaluatePartialDerivativeX is constant for a Helmert transform.
func (h *Helmert) EvaluatePartialDerivativeX(orb.Point) orb.Point {
	h.Solve()
	return orb.Point{h.weights[2], h.weights[3]}
}

// EvaluatePartialDerivativeY is constant for a Helmert transform.
func (h *Helmert) EvaluatePartialDerivativeY(orb.Point) orb.Point {
	h.Solve()
	return orb.Point{-h.weights[3], h.weights[2]}
}

// Measures returns the scale, rotation and translation of the fit.
func (h *Helmert) Measures() HelmertMeasures {
	h.Solve()
	m, n := h.weights[2], h.weights[3]
	return HelmertMeasures{
		Scale:       math.Hypot(m, n),
		Rotation:    math.Atan2(n, m),
		Translation: orb.Point{h.weights[0], h.weights[1]},
	}
}

// Affine returns the fit as an affine matrix.
func (h *Helmert) Affine() geometry.AffineTransform {
	h.Solve()
	tx, ty, m, n := h.weights[0], h.weights[1], h.weights[2], h.weights[3]
	return geometry.AffineTransform{A: m, B: -n, TX: tx, C: n, D: m, TY: ty}
}
