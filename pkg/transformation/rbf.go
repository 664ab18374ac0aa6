package transformation

import (
	"math"

	"georef/internal/solver"
	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// RBF interpolates the control points exactly with a sum of radial basis
// functions centred on the source points plus an affine part:
//
//	f(p) = sum_j w_j * phi(|p - s_j|) + a0 + a1*x + a2*y
//
// With the thin plate kernel this is the thin plate spline. Every kernel is
// registered under TypeThinPlateSpline.
type RBF struct {
	base
	kernel  Kernel
	epsilon float64

	// modelEpsilon is epsilon measured in normalised source units.
	modelEpsilon float64

	rbfWeights    [2][]float64
	affineWeights [2][3]float64
}

// NewThinPlateSpline builds a thin plate spline from at least three point pairs.
func NewThinPlateSpline(source, destination []orb.Point) (*RBF, error) {
	return NewRBF(ThinPlateKernel, 0, source, destination)
}

// NewRBF builds a radial basis function transformation with the given
// kernel. A non-positive epsilon defaults to the mean distance between the
// source points.
func NewRBF(kernel Kernel, epsilon float64, source, destination []orb.Point) (*RBF, error) {
	r := &RBF{kernel: kernel, epsilon: epsilon}
	if err := r.init(TypeThinPlateSpline, source, destination); err != nil {
		return nil, err
	}
	if r.epsilon <= 0 {
		r.epsilon = geometry.MeanPairwiseDistance(r.source)
	}
	return r, nil
}

// Kernel returns the radial basis function in use.
func (r *RBF) Kernel() Kernel {
	return r.kernel
}

// Epsilon returns the kernel shape parameter.
func (r *RBF) Epsilon() float64 {
	return r.epsilon
}

// Solve solves the (N+3) x (N+3) system of kernel values and affine terms
// exactly for both axes.
func (r *RBF) Solve() {
	r.solveOnce(r.solve)
}

func (r *RBF) solve() {
	r.modelEpsilon = r.epsilon * math.Hypot(r.toModel.A, r.toModel.C)

	n := len(r.modelSource)
	size := n + 3
	coefs := mat.NewDense(size, size, nil)
	for i, si := range r.modelSource {
		for j := i; j < n; j++ {
			v := r.kernel.Value(geometry.Distance(si, r.modelSource[j]), r.modelEpsilon)
			coefs.Set(i, j, v)
			coefs.Set(j, i, v)
		}
		affine := []float64{1, si[0], si[1]}
		for k, v := range affine {
			coefs.Set(i, n+k, v)
			coefs.Set(n+k, i, v)
		}
	}

	xs, ys := solver.Axes(r.modelDestination)
	xs = append(xs, 0, 0, 0)
	ys = append(ys, 0, 0, 0)
	weights := solver.SolveIndependentlyInverse(coefs, xs, ys)

	for axis := 0; axis < 2; axis++ {
		r.rbfWeights[axis] = weights[axis][:n]
		copy(r.affineWeights[axis][:], weights[axis][n:])
	}
}

// Evaluate maps p to the destination space.
func (r *RBF) Evaluate(p orb.Point) orb.Point {
	r.Solve()
	u := r.toModel.Apply(p)
	var out orb.Point
	for j, s := range r.modelSource {
		phi := r.kernel.Value(geometry.Distance(u, s), r.modelEpsilon)
		out[0] += r.rbfWeights[0][j] * phi
		out[1] += r.rbfWeights[1][j] * phi
	}
	for axis := 0; axis < 2; axis++ {
		a := r.affineWeights[axis]
		out[axis] += a[0] + a[1]*u[0] + a[2]*u[1]
	}
	return r.fromModel.Apply(out)
}

// EvaluatePartialDerivativeX returns d(x', y')/dx at p.
func (r *RBF) EvaluatePartialDerivativeX(p orb.Point) orb.Point {
	dx, _ := r.partialDerivatives(p)
	return dx
}

// EvaluatePartialDerivativeY returns d(x', y')/dy at p.
func (r *RBF) EvaluatePartialDerivativeY(p orb.Point) orb.Point {
	_, dy := r.partialDerivatives(p)
	return dy
}

func (r *RBF) partialDerivatives(p orb.Point) (dx, dy orb.Point) {
	r.Solve()
	u := r.toModel.Apply(p)
	var du, dv orb.Point
	for j, s := range r.modelSource {
		dist := geometry.Distance(u, s)
		if dist == 0 {
			continue
		}
		d := r.kernel.Derivative(dist, r.modelEpsilon) / dist
		for axis := 0; axis < 2; axis++ {
			du[axis] += r.rbfWeights[axis][j] * d * (u[0] - s[0])
			dv[axis] += r.rbfWeights[axis][j] * d * (u[1] - s[1])
		}
	}
	for axis := 0; axis < 2; axis++ {
		du[axis] += r.affineWeights[axis][1]
		dv[axis] += r.affineWeights[axis][2]
	}
	return r.chain(du, dv)
}
