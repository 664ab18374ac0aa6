package transformation

import "math"

// Kernel is a radial basis function and its derivative with respect to the
// radius. Epsilon is the shape parameter; kernels that do not use it ignore it.
type Kernel struct {
	Name       string
	Value      func(r, epsilon float64) float64
	Derivative func(r, epsilon float64) float64
}

// ThinPlateKernel is r^2 * ln(r), the kernel of the thin plate spline.
var ThinPlateKernel = Kernel{
	Name: "thinPlate",
	Value: func(r, _ float64) float64 {
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	},
	Derivative: func(r, _ float64) float64 {
		if r == 0 {
			return 0
		}
		return r * (2*math.Log(r) + 1)
	},
}

// LinearKernel is r.
var LinearKernel = Kernel{
	Name:       "linear",
	Value:      func(r, _ float64) float64 { return r },
	Derivative: func(float64, float64) float64 { return 1 },
}

// CubicKernel is r^3.
var CubicKernel = Kernel{
	Name:       "cubic",
	Value:      func(r, _ float64) float64 { return r * r * r },
	Derivative: func(r, _ float64) float64 { return 3 * r * r },
}

// QuinticKernel is r^5.
var QuinticKernel = Kernel{
	Name:       "quintic",
	Value:      func(r, _ float64) float64 { return math.Pow(r, 5) },
	Derivative: func(r, _ float64) float64 { return 5 * math.Pow(r, 4) },
}

// GaussianKernel is exp(-(r/epsilon)^2).
var GaussianKernel = Kernel{
	Name: "gaussian",
	Value: func(r, epsilon float64) float64 {
		q := r / epsilon
		return math.Exp(-q * q)
	},
	Derivative: func(r, epsilon float64) float64 {
		q := r / epsilon
		return -2 * q / epsilon * math.Exp(-q*q)
	},
}

// MultiquadricKernel is sqrt(1 + (r/epsilon)^2).
var MultiquadricKernel = Kernel{
	Name: "multiquadric",
	Value: func(r, epsilon float64) float64 {
		q := r / epsilon
		return math.Sqrt(1 + q*q)
	},
	Derivative: func(r, epsilon float64) float64 {
		q := r / epsilon
		return q / epsilon / math.Sqrt(1+q*q)
	},
}

// InverseMultiquadricKernel is 1 / sqrt(1 + (r/epsilon)^2).
var InverseMultiquadricKernel = Kernel{
	Name: "inverseMultiquadric",
	Value: func(r, epsilon float64) float64 {
		q := r / epsilon
		return 1 / math.Sqrt(1+q*q)
	},
	Derivative: func(r, epsilon float64) float64 {
		q := r / epsilon
		return -q / epsilon / math.Pow(1+q*q, 1.5)
	},
}

// Kernels lists the available kernels by name.
var Kernels = map[string]Kernel{
	ThinPlateKernel.Name:           ThinPlateKernel,
	LinearKernel.Name:              LinearKernel,
	CubicKernel.Name:               CubicKernel,
	QuinticKernel.Name:             QuinticKernel,
	GaussianKernel.Name:            GaussianKernel,
	MultiquadricKernel.Name:        MultiquadricKernel,
	InverseMultiquadricKernel.Name: InverseMultiquadricKernel,
}
