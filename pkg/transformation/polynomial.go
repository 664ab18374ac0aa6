package transformation

import (
	"math"

	"georef/internal/solver"
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// AffineMeasures decomposes a first order polynomial into rotation, axis
// scales and shear (M = R * [[sx, k*sx], [0, sy]]). The upper triangular
// factor has a single shear term k.
type AffineMeasures struct {
	Translation orb.Point
	Rotation    float64    // radians
	Scales      [2]float64 // along x and y
	Shear       float64
}

// Polynomial is a polynomial map of order 1, 2 or 3, fitted per axis by
// least squares over the monomials 1, x, y, x^2, xy, y^2, x^3, x^2y, xy^2, y^3.
// The monomials are taken of normalised coordinates.
type Polynomial struct {
	base
	order   int
	weights [2][]float64
}

// NewPolynomial builds a polynomial transformation of the given order. It
// needs (order+1)(order+2)/2 points.
func NewPolynomial(order int, source, destination []orb.Point) (*Polynomial, error) {
	var typ Type
	switch order {
	case 1:
		typ = TypePolynomial1
	case 2:
		typ = TypePolynomial2
	case 3:
		typ = TypePolynomial3
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "polynomial of order %d", order)
	}
	p := &Polynomial{order: order}
	if err := p.init(typ, source, destination); err != nil {
		return nil, err
	}
	return p, nil
}

// Order returns the polynomial order.
func (p *Polynomial) Order() int {
	return p.order
}

func termCount(order int) int {
	return (order + 1) * (order + 2) / 2
}

func polynomialTerms(order int, p orb.Point) []float64 {
	x, y := p[0], p[1]
	terms := []float64{1, x, y}
	if order >= 2 {
		terms = append(terms, x*x, x*y, y*y)
	}
	if order >= 3 {
		terms = append(terms, x*x*x, x*x*y, x*y*y, y*y*y)
	}
	return terms
}

func polynomialTermsDX(order int, p orb.Point) []float64 {
	x, y := p[0], p[1]
	terms := []float64{0, 1, 0}
	if order >= 2 {
		terms = append(terms, 2*x, y, 0)
	}
	if order >= 3 {
		terms = append(terms, 3*x*x, 2*x*y, y*y, 0)
	}
	return terms
}

func polynomialTermsDY(order int, p orb.Point) []float64 {
	x, y := p[0], p[1]
	terms := []float64{0, 0, 1}
	if order >= 2 {
		terms = append(terms, 0, x, 2*y)
	}
	if order >= 3 {
		terms = append(terms, 0, x*x, 2*x*y, 3*y*y)
	}
	return terms
}

// Solve fits both axes independently with a shared coefficient matrix.
func (p *Polynomial) Solve() {
	p.solveOnce(p.solve)
}

func (p *Polynomial) solve() {
	coefs := mat.NewDense(len(p.modelSource), termCount(p.order), nil)
	for i, s := range p.modelSource {
		coefs.SetRow(i, polynomialTerms(p.order, s))
	}
	xs, ys := solver.Axes(p.modelDestination)
	p.weights = solver.SolveIndependentlyPseudoInverse(coefs, xs, ys)
}

func (p *Polynomial) apply(terms []float64) orb.Point {
	var x, y float64
	for i, t := range terms {
		x += t * p.weights[0][i]
		y += t * p.weights[1][i]
	}
	return orb.Point{x, y}
}

// Evaluate maps pt to the destination space.
func (p *Polynomial) Evaluate(pt orb.Point) orb.Point {
	p.Solve()
	return p.fromModel.Apply(p.apply(polynomialTerms(p.order, p.toModel.Apply(pt))))
}

// EvaluatePartialDerivativeX returns d(x', y')/dx at pt.
func (p *Polynomial) EvaluatePartialDerivativeX(pt orb.Point) orb.Point {
	dx, _ := p.partialDerivatives(pt)
	return dx
}

// EvaluatePartialDerivativeY returns d(x', y')/dy at pt.
func (p *Polynomial) EvaluatePartialDerivativeY(pt orb.Point) orb.Point {
	_, dy := p.partialDerivatives(pt)
	return dy
}

func (p *Polynomial) partialDerivatives(pt orb.Point) (dx, dy orb.Point) {
	p.Solve()
	u := p.toModel.Apply(pt)
	return p.chain(p.apply(polynomialTermsDX(p.order, u)), p.apply(polynomialTermsDY(p.order, u)))
}

// Affine returns a first order fit as an affine matrix. ok is false for
// higher orders.
func (p *Polynomial) Affine() (t geometry.AffineTransform, ok bool) {
	if p.order != 1 {
		return geometry.AffineTransform{}, false
	}
	p.Solve()
	wx, wy := p.weights[0], p.weights[1]
	model := geometry.AffineTransform{
		A: wx[1], B: wx[2], TX: wx[0],
		C: wy[1], D: wy[2], TY: wy[0],
	}
	return p.fromModel.Compose(model).Compose(p.toModel), true
}

// Measures decomposes a first order fit. ok is false for higher orders.
func (p *Polynomial) Measures() (m AffineMeasures, ok bool) {
	t, ok := p.Affine()
	if !ok {
		return AffineMeasures{}, false
	}

	// Columns of the linear part are the images of the unit x and y vectors.
	a, b := t.A, t.C
	c, d := t.B, t.D
	m.Translation = orb.Point{t.TX, t.TY}

	r := math.Hypot(a, b)
	if r == 0 {
		return m, true
	}
	m.Rotation = math.Atan2(b, a)
	m.Scales = [2]float64{r, (a*d - b*c) / r}
	m.Shear = (a*c + b*d) / (r * r)
	return m, true
}
