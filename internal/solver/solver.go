// Package solver holds the linear algebra kernels used to fit transformation
// weights to control points. All kernels are permissive: ill-conditioned
// systems produce unstable or NaN weights instead of errors.
package solver

import (
	"math"

	"georef/internal/logging"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Axes splits points into their x and y coordinates.
func Axes(points []orb.Point) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = p[0]
		ys[i] = p[1]
	}
	return xs, ys
}

// PseudoInverse computes the Moore-Penrose inverse of a through its thin SVD.
// Singular values below max(r, c) * eps * sigmaMax are treated as zero.
func PseudoInverse(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		logging.Logger().Warn("svd did not converge", "rows", r, "cols", c)
		return nanDense(c, r)
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 0.0
	if len(values) > 0 {
		tol = float64(max(r, c)) * values[0] * eps
	}
	sInv := mat.NewDiagDense(len(values), nil)
	for i, s := range values {
		if s > tol {
			sInv.SetDiag(i, 1/s)
		}
	}

	var vs mat.Dense
	vs.Mul(&v, sInv)
	var pinv mat.Dense
	pinv.Mul(&vs, u.T())
	return &pinv
}

// eps is the float64 machine epsilon.
const eps = 2.220446049250313e-16

// SolveJointlyPseudoInverse solves coefs * w = [xs; ys] in the least squares
// sense. coefs must have 2N rows: the first N describe the x equations, the
// last N the y equations. One weight vector is shared by both axes.
func SolveJointlyPseudoInverse(coefs mat.Matrix, xs, ys []float64) []float64 {
	rhs := mat.NewVecDense(len(xs)+len(ys), append(append([]float64{}, xs...), ys...))
	pinv := PseudoInverse(coefs)

	var w mat.VecDense
	w.MulVec(pinv, rhs)
	return w.RawVector().Data
}

// SolveIndependentlyPseudoInverse solves coefs * wx = xs and coefs * wy = ys
// in the least squares sense, sharing one pseudo-inverse.
func SolveIndependentlyPseudoInverse(coefs mat.Matrix, xs, ys []float64) [2][]float64 {
	return solveIndependently(PseudoInverse(coefs), xs, ys)
}

// SolveIndependentlyInverse solves the square systems coefs * wx = xs and
// coefs * wy = ys exactly through the inverse of coefs.
func SolveIndependentlyInverse(coefs mat.Matrix, xs, ys []float64) [2][]float64 {
	var inv mat.Dense
	if err := inv.Inverse(coefs); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			n, _ := coefs.Dims()
			logging.Logger().Warn("matrix inverse failed", "size", n, "err", err)
			return solveIndependently(nanDense(n, n), xs, ys)
		}
		logging.Logger().Debug("ill-conditioned inverse", "condition", float64(err.(mat.Condition)))
	}
	return solveIndependently(&inv, xs, ys)
}

func solveIndependently(inv mat.Matrix, xs, ys []float64) [2][]float64 {
	var wx, wy mat.VecDense
	wx.MulVec(inv, mat.NewVecDense(len(xs), xs))
	wy.MulVec(inv, mat.NewVecDense(len(ys), ys))
	return [2][]float64{wx.RawVector().Data, wy.RawVector().Data}
}

// SolveJointlySVD fits a homography h (row major 3x3) mapping source onto
// destination. It builds the homogeneous 2N x 9 system and returns the right
// singular vector of the smallest singular value, which is defined up to
// scale. With exactly four non-degenerate correspondences this is the exact
// null space; with more it is the best rank 8 approximation.
func SolveJointlySVD(source, destination []orb.Point) [9]float64 {
	n := len(source)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := source[i][0], source[i][1]
		u, v := destination[i][0], destination[i][1]
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var h [9]float64
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		logging.Logger().Warn("svd did not converge", "rows", 2*n, "cols", 9)
		for i := range h {
			h[i] = math.NaN()
		}
		return h
	}

	// V is 9x9; its last column belongs to the smallest singular value, or
	// spans the null space when there are fewer than nine equations.
	var v mat.Dense
	svd.VTo(&v)
	for i := range h {
		h[i] = v.At(i, 8)
	}
	return h
}

func nanDense(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewDense(r, c, data)
}
