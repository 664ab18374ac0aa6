package transformation

import (
	"georef/internal/solver"
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
)

// Projective is a perspective transform (homography):
//
//	x' = (h0*x + h1*y + h2) / (h6*x + h7*y + h8)
//	y' = (h3*x + h4*y + h5) / (h6*x + h7*y + h8)
//
// The nine parameters are only defined up to scale. They are fitted between
// the normalised source and destination points.
type Projective struct {
	base
	h [9]float64
}

// NewProjective builds a projective transformation from at least four
// point pairs.
func NewProjective(source, destination []orb.Point) (*Projective, error) {
	p := &Projective{}
	if err := p.init(TypeProjective, source, destination); err != nil {
		return nil, err
	}
	return p, nil
}

// Solve fits the homography through a singular value decomposition.
func (p *Projective) Solve() {
	p.solveOnce(func() {
		p.h = solver.SolveJointlySVD(p.modelSource, p.modelDestination)
	})
}

// project returns the image of a normalised point together with the
// homogeneous divisor.
func (p *Projective) project(u orb.Point) (orb.Point, float64) {
	h := p.h
	w := h[6]*u[0] + h[7]*u[1] + h[8]
	return orb.Point{
		(h[0]*u[0] + h[1]*u[1] + h[2]) / w,
		(h[3]*u[0] + h[4]*u[1] + h[5]) / w,
	}, w
}

// Evaluate maps pt to the destination space.
func (p *Projective) Evaluate(pt orb.Point) orb.Point {
	p.Solve()
	out, _ := p.project(p.toModel.Apply(pt))
	return p.fromModel.Apply(out)
}

// EvaluatePartialDerivativeX returns d(x', y')/dx at pt.
func (p *Projective) EvaluatePartialDerivativeX(pt orb.Point) orb.Point {
	dx, _ := p.partialDerivatives(pt)
	return dx
}

// EvaluatePartialDerivativeY returns d(x', y')/dy at pt.
func (p *Projective) EvaluatePartialDerivativeY(pt orb.Point) orb.Point {
	_, dy := p.partialDerivatives(pt)
	return dy
}

func (p *Projective) partialDerivatives(pt orb.Point) (dx, dy orb.Point) {
	p.Solve()
	h := p.h
	out, w := p.project(p.toModel.Apply(pt))
	du := orb.Point{(h[0] - out[0]*h[6]) / w, (h[3] - out[1]*h[6]) / w}
	dv := orb.Point{(h[1] - out[0]*h[7]) / w, (h[4] - out[1]*h[7]) / w}
	return p.chain(du, dv)
}

// Matrix returns the homography in source and destination coordinates as a
// row major 3x3 matrix, normalised so the bottom right entry is 1 when it is
// non-zero.
func (p *Projective) Matrix() [3][3]float64 {
	p.Solve()
	model := [3][3]float64{
		{p.h[0], p.h[1], p.h[2]},
		{p.h[3], p.h[4], p.h[5]},
		{p.h[6], p.h[7], p.h[8]},
	}
	m := mul3(mul3(homogeneous(p.fromModel), model), homogeneous(p.toModel))
	if s := m[2][2]; s != 0 {
		for i := range m {
			for j := range m[i] {
				m[i][j] /= s
			}
		}
	}
	return m
}

func homogeneous(t geometry.AffineTransform) [3][3]float64 {
	return [3][3]float64{
		{t.A, t.B, t.TX},
		{t.C, t.D, t.TY},
		{0, 0, 1},
	}
}

func mul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}
