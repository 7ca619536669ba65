package convert

import "github.com/rendis/flowgraph/pkg/schema"

// Default placement constants for the forward conversion.
const (
	DefaultBranchOffset = 300.0
	DefaultVerticalGap  = 60.0
)

type options struct {
	branchOffset float64
	verticalGap  float64
	origin       schema.Position
}

func defaultOptions() options {
	return options{
		branchOffset: DefaultBranchOffset,
		verticalGap:  DefaultVerticalGap,
	}
}

// Option configures TreeToGraph.
type Option func(*options)

// WithBranchOffset sets the horizontal distance between a condition node and
// the column of each of its branches. Non-positive values are ignored.
func WithBranchOffset(offset float64) Option {
	return func(o *options) {
		if offset > 0 {
			o.branchOffset = offset
		}
	}
}

// WithVerticalGap sets the space left between consecutive nodes of a
// sequence. Negative values are ignored.
func WithVerticalGap(gap float64) Option {
	return func(o *options) {
		if gap >= 0 {
			o.verticalGap = gap
		}
	}
}

// WithOrigin sets the position of the first section marker.
func WithOrigin(origin schema.Position) Option {
	return func(o *options) {
		o.origin = origin
	}
}
