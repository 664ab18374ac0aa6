package transformer

import (
	"georef/pkg/distortion"

	"github.com/paulmach/orb"
)

// Hook adjusts a point before or after a model is evaluated, typically to
// reproject it, and accepts orb/project projections directly. A nil hook is
// treated as the identity.
type Hook = orb.Projection

func identity(p orb.Point) orb.Point { return p }

// Options configures a Transformer.
type Options struct {
	// MaxDepth bounds the recursive refinement of line segments. 0 disables
	// refinement.
	MaxDepth int
	// MinOffsetRatio stops refinement when the offset of a transformed
	// midpoint, relative to the transformed segment length, is below it.
	MinOffsetRatio float64
	// MinOffsetDistance stops refinement when the offset of a transformed
	// midpoint is below it.
	MinOffsetDistance float64
	// MinLineDistance stops refinement when the transformed segment is
	// shorter than it.
	MinLineDistance float64

	// SourceIsGeographic marks resource side coordinates as lon/lat, so
	// midpoints on that side follow great circles.
	SourceIsGeographic bool
	// DestinationIsGeographic marks geo side coordinates as lon/lat, so
	// midpoints and distances on that side follow great circles.
	DestinationIsGeographic bool

	// PreForward is applied to resource points before fitting and before
	// forward evaluation; PostForward to the forward model output.
	PreForward  Hook
	PostForward Hook
	// PreBackward is applied to geo points before fitting and before
	// backward evaluation; PostBackward to the backward model output.
	PreBackward  Hook
	PostBackward Hook

	// DistortionMeasures are computed by the WithDistortions methods.
	DistortionMeasures []distortion.Measure
	// ReferenceScale is the undistorted scale. 0 derives it from a Helmert
	// fit to the same control points.
	ReferenceScale float64
}

// DefaultOptions returns options without refinement, Euclidean geometry on
// both sides and identity hooks.
func DefaultOptions() Options {
	return Options{
		PreForward:   identity,
		PostForward:  identity,
		PreBackward:  identity,
		PostBackward: identity,
	}
}

func (o *Options) fillHooks() {
	for _, h := range []*Hook{&o.PreForward, &o.PostForward, &o.PreBackward, &o.PostBackward} {
		if *h == nil {
			*h = identity
		}
	}
}

// Option modifies Options.
type Option func(*Options)

// WithOptions replaces all options.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// WithMaxDepth sets the maximum refinement depth.
func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

// WithMinOffsetRatio sets the relative offset below which refinement stops.
func WithMinOffsetRatio(ratio float64) Option {
	return func(o *Options) { o.MinOffsetRatio = ratio }
}

// WithMinOffsetDistance sets the absolute offset below which refinement stops.
func WithMinOffsetDistance(distance float64) Option {
	return func(o *Options) { o.MinOffsetDistance = distance }
}

// WithMinLineDistance sets the segment length below which refinement stops.
func WithMinLineDistance(distance float64) Option {
	return func(o *Options) { o.MinLineDistance = distance }
}

// WithSourceIsGeographic marks resource coordinates as lon/lat.
func WithSourceIsGeographic(geographic bool) Option {
	return func(o *Options) { o.SourceIsGeographic = geographic }
}

// WithDestinationIsGeographic marks geo coordinates as lon/lat.
func WithDestinationIsGeographic(geographic bool) Option {
	return func(o *Options) { o.DestinationIsGeographic = geographic }
}

// WithForwardHooks sets the hooks around the forward model.
func WithForwardHooks(pre, post Hook) Option {
	return func(o *Options) {
		o.PreForward = pre
		o.PostForward = post
	}
}

// WithBackwardHooks sets the hooks around the backward model.
func WithBackwardHooks(pre, post Hook) Option {
	return func(o *Options) {
		o.PreBackward = pre
		o.PostBackward = post
	}
}

// WithDistortionMeasures selects the measures computed by the WithDistortions methods.
func WithDistortionMeasures(measures ...distortion.Measure) Option {
	return func(o *Options) {
		o.DistortionMeasures = append([]distortion.Measure(nil), measures...)
	}
}

// WithReferenceScale fixes the reference scale for distortion measures.
func WithReferenceScale(scale float64) Option {
	return func(o *Options) { o.ReferenceScale = scale }
}
