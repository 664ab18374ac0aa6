// Package colorutil maps distortion values to overlay colours.
package colorutil

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Transparent is used for samples without a value.
var Transparent = color.RGBA{}

// Ramp is a diverging colour ramp. Values are interpolated in CIE L*a*b*
// so equal steps look equally large.
type Ramp struct {
	Negative colorful.Color
	Neutral  colorful.Color
	Positive colorful.Color
	// Alpha applies to every colour of the ramp, 0-255.
	Alpha uint8
}

// DefaultRamp runs from blue through white to red.
func DefaultRamp() Ramp {
	return Ramp{
		Negative: colorful.Color{R: 0.13, G: 0.40, B: 0.67},
		Neutral:  colorful.Color{R: 1, G: 1, B: 1},
		Positive: colorful.Color{R: 0.70, G: 0.09, B: 0.17},
		Alpha:    255,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// At returns the colour for t in [-1, 1]; values outside are clamped and
// NaN gives Transparent.
func (r Ramp) At(t float64) color.RGBA {
	if math.IsNaN(t) {
		return Transparent
	}
	t = clamp(t, -1, 1)

	var c colorful.Color
	if t < 0 {
		c = r.Neutral.BlendLab(r.Negative, -t)
	} else {
		c = r.Neutral.BlendLab(r.Positive, t)
	}
	red, green, blue := c.Clamped().RGB255()
	return premultiply(red, green, blue, r.Alpha)
}

// Scaled returns the colour for v with the ramp saturating at ±limit.
// A limit of 0 or less maps every non-zero v to the ramp ends.
func (r Ramp) Scaled(v, limit float64) color.RGBA {
	if limit <= 0 {
		switch {
		case v > 0:
			return r.At(1)
		case v < 0:
			return r.At(-1)
		}
		return r.At(v)
	}
	return r.At(v / limit)
}

func premultiply(red, green, blue, alpha uint8) color.RGBA {
	a := uint16(alpha)
	return color.RGBA{
		R: uint8(uint16(red) * a / 255),
		G: uint8(uint16(green) * a / 255),
		B: uint8(uint16(blue) * a / 255),
		A: alpha,
	}
}
