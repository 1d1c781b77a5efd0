// Package score holds the piecewise-linear suitability functions that turn
// a climate quantity and a crop's breakpoints into a 0-100 score.
//
// Callers are expected to have validated the breakpoints (see crop.Params)
// so that no denominator is zero. Every function maps NaN input to 0.
package score

import (
	"fmt"
	"math"
)

// SeasonLength scores a trial growing-season length g against the crop's
// [gmin, gmax] range: round(100 * (1 - (g-gmin)/(gmax-gmin))), clamped to
// [0, 100]. Shorter seasons score higher.
func SeasonLength(g, gmin, gmax int) uint8 {
	s := 100 * (1 - float64(g-gmin)/float64(gmax-gmin))
	return clamp(math.RoundToEven(s))
}

// TempBounds are the survival and optimal temperature limits of a crop, in
// the same unit as the temperatures scored against them.
type TempBounds struct {
	Min    float64
	OptMin float64
	OptMax float64
	Max    float64
}

// Trapezoid returns the fraction in [0, 1] describing how close t is to the
// optimal band: 0 at or beyond the survival limits, 1 on the plateau, and
// linear in between.
func (b TempBounds) Trapezoid(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return 0
	case t > b.Max:
		return 0
	case t > b.OptMax:
		return (b.Max - t) / (b.Max - b.OptMax)
	case t >= b.OptMin:
		return 1
	case t > b.Min:
		return (t - b.Min) / (b.OptMin - b.Min)
	default:
		return 0
	}
}

// Perennial scores an averaged temperature directly on the trapezoid,
// scaled to 0-100.
func (b TempBounds) Perennial(t float64) uint8 {
	return clamp(math.RoundToEven(100 * b.Trapezoid(t)))
}

// PrecipShape selects the precipitation scoring curve.
type PrecipShape int

const (
	// PrecipTrapezoid has a 100 plateau across the optimal band.
	PrecipTrapezoid PrecipShape = 1
	// PrecipTriangle peaks at the middle of the optimal band. Recommended.
	PrecipTriangle PrecipShape = 2
	// PrecipSegmented scores 50 at each optimal bound and 100 at the midpoint.
	PrecipSegmented PrecipShape = 3
)

// ParsePrecipShape validates a configured shape selector.
func ParsePrecipShape(v int) (PrecipShape, error) {
	switch PrecipShape(v) {
	case PrecipTrapezoid, PrecipTriangle, PrecipSegmented:
		return PrecipShape(v), nil
	}
	return 0, fmt.Errorf("precip score shape must be 1, 2 or 3, got %d", v)
}

// PrecipBounds are the survival and optimal limits for precipitation totals
// accumulated over a growing season.
type PrecipBounds struct {
	Min    float64
	OptMin float64
	OptMax float64
	Max    float64
}

// Mid is the centre of the optimal band.
func (b PrecipBounds) Mid() float64 {
	return 0.5 * (b.OptMin + b.OptMax)
}

// Denominators returns the named divisors the given shape relies on, so
// configuration checks can reject a zero before any scoring happens.
func (b PrecipBounds) Denominators(shape PrecipShape) map[string]float64 {
	switch shape {
	case PrecipTrapezoid:
		return map[string]float64{
			"precip_max - precip_opt_max": b.Max - b.OptMax,
			"precip_opt_min - precip_min": b.OptMin - b.Min,
		}
	case PrecipTriangle:
		return map[string]float64{
			"2*precip_max - precip_opt_min - precip_opt_max": 2*b.Max - b.OptMin - b.OptMax,
			"precip_opt_min + precip_opt_max - 2*precip_min": b.OptMin + b.OptMax - 2*b.Min,
		}
	default:
		return map[string]float64{
			"precip_max - precip_opt_max":     b.Max - b.OptMax,
			"precip_opt_max - precip_opt_min": b.OptMax - b.OptMin,
			"precip_opt_min - precip_min":     b.OptMin - b.Min,
		}
	}
}

// Scorer returns the scoring function for the shape. The shape is resolved
// once here rather than on every value.
func (s PrecipShape) Scorer(b PrecipBounds) func(total float64) uint8 {
	switch s {
	case PrecipTrapezoid:
		return b.trapezoid
	case PrecipSegmented:
		return b.segmented
	default:
		return b.triangle
	}
}

func (b PrecipBounds) trapezoid(total float64) uint8 {
	var s float64
	switch {
	case total > b.Max:
		s = 0
	case total > b.OptMax:
		s = (100 / (b.Max - b.OptMax)) * (b.Max - total)
	case total > b.OptMin:
		s = 100
	case total > b.Min:
		s = (100 / (b.OptMin - b.Min)) * (total - b.Min)
	}
	return clamp(math.RoundToEven(s))
}

func (b PrecipBounds) triangle(total float64) uint8 {
	var s float64
	switch {
	case total > b.Max:
		s = 0
	case total > b.Mid():
		s = (200 / (2*b.Max - b.OptMin - b.OptMax)) * (b.Max - total)
	case total > b.Min:
		s = (200 / (b.OptMin + b.OptMax - 2*b.Min)) * (total - b.Min)
	}
	return clamp(math.RoundToEven(s))
}

func (b PrecipBounds) segmented(total float64) uint8 {
	var s float64
	switch {
	case total > b.Max:
		s = 0
	case total > b.OptMax:
		s = 50 * ((b.OptMax-total)/(b.Max-b.OptMax) + 1)
	case total > b.Mid():
		s = 50 * ((2*(b.OptMax-total))/(b.OptMax-b.OptMin) + 1)
	case total > b.OptMin:
		s = 50 * ((2*(total-b.OptMin))/(b.OptMax-b.OptMin) + 1)
	case total > b.Min:
		s = 50 * ((total-b.OptMin)/(b.OptMin-b.Min) + 1)
	}
	return clamp(math.RoundToEven(s))
}

// clamp keeps a rounded score inside [0, 100].
func clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return uint8(v)
}
