// Package distortion turns the local partial derivatives of a transformation
// into scalar distortion measures, following Tissot's indicatrix: the
// derivatives define the first fundamental form (E, F, G) whose principal
// stretches a >= b summarise how a small circle in the source is deformed.
package distortion

import (
	"math"
	"strings"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Measure names a distortion measure.
type Measure string

// Supported measures.
const (
	// Log2Sigma is log2 of the area scale relative to the reference scale.
	Log2Sigma Measure = "log2sigma"
	// TwoOmega is the maximum angular distortion, in radians.
	TwoOmega Measure = "twoOmega"
	// AiryKavr is the Airy-Kavraisky distortion energy.
	AiryKavr Measure = "airyKavr"
	// SignDetJ is the sign of the Jacobian determinant; -1 means the map
	// locally reverses orientation (folds).
	SignDetJ Measure = "signDetJ"
	// Thetaa is the azimuth, in the destination, of the direction of
	// maximum stretch.
	Thetaa Measure = "thetaa"
)

// AllMeasures lists every supported measure.
var AllMeasures = []Measure{Log2Sigma, TwoOmega, AiryKavr, SignDetJ, Thetaa}

// ErrUnknownMeasure is returned by ParseMeasure.
var ErrUnknownMeasure = errors.New("unknown distortion measure")

// ParseMeasure parses a measure name, case insensitively.
func ParseMeasure(s string) (Measure, error) {
	for _, m := range AllMeasures {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMeasure, "%q", s)
}

// ParseMeasures parses a comma separated list of measure names. An empty
// string gives no measures.
func ParseMeasures(s string) ([]Measure, error) {
	var out []Measure
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMeasure(part)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Measures maps each requested measure to its value.
type Measures map[Measure]float64

// FirstFundamentalForm returns E = |dx|^2, F = dx.dy and G = |dy|^2.
func FirstFundamentalForm(dx, dy orb.Point) (e, f, g float64) {
	return geometry.Dot(dx, dx), geometry.Dot(dx, dy), geometry.Dot(dy, dy)
}

// PrincipalStretches returns the maximum and minimum scale factors a >= b
// of the map with partial derivatives dx and dy.
func PrincipalStretches(dx, dy orb.Point) (a, b float64) {
	e, f, g := FirstFundamentalForm(dx, dy)
	root := math.Sqrt((e-g)*(e-g) + 4*f*f)
	a = math.Sqrt(0.5 * (e + g + root))
	// Rounding can push the minor term slightly below zero.
	b = math.Sqrt(math.Max(0, 0.5*(e+g-root)))
	return a, b
}

// Compute evaluates the requested measures from the partial derivatives dx
// and dy. referenceScale is the scale of the undistorted map, typically the
// scale of a Helmert fit to the same control points; non-positive values are
// treated as 1. If either derivative is nil every requested measure is 0.
func Compute(measures []Measure, dx, dy *orb.Point, referenceScale float64) Measures {
	out := make(Measures, len(measures))
	if dx == nil || dy == nil {
		for _, m := range measures {
			out[m] = 0
		}
		return out
	}
	if referenceScale <= 0 {
		referenceScale = 1
	}

	a, b := PrincipalStretches(*dx, *dy)
	for _, m := range measures {
		switch m {
		case Log2Sigma:
			out[m] = math.Log2(a * b / (referenceScale * referenceScale))
		case TwoOmega:
			if a+b == 0 {
				out[m] = 0
				continue
			}
			out[m] = 2 * math.Asin((a-b)/(a+b))
		case AiryKavr:
			la := math.Log(a / referenceScale)
			lb := math.Log(b / referenceScale)
			out[m] = 0.5 * (la*la + lb*lb)
		case SignDetJ:
			out[m] = sign((*dx)[0]*(*dy)[1] - (*dx)[1]*(*dy)[0])
		case Thetaa:
			out[m] = thetaa(*dx, *dy)
		default:
			out[m] = 0
		}
	}
	return out
}

// thetaa rotates the source frame onto the principal direction of maximum
// stretch and returns the azimuth of its image.
func thetaa(dx, dy orb.Point) float64 {
	e, f, g := FirstFundamentalForm(dx, dy)
	theta := 0.5 * math.Atan2(2*f, e-g)
	image := geometry.Add(geometry.Scale(dx, math.Cos(theta)), geometry.Scale(dy, math.Sin(theta)))
	return math.Atan2(image[1], image[0])
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
