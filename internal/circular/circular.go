// Package circular handles day-of-year statistics that wrap around the end
// of the year: the day of the annual maximum, its circular mean over a
// decade and the wrapped difference between decades.
//
// Days of year are treated as degrees, so a year is taken to be 360 days
// long regardless of calendar.
package circular

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/ecocrop/internal/aggregate"
	"github.com/chrissnell/ecocrop/internal/grid"
)

// DayOfMax returns, per calendar year and cell, the 1-based day of year on
// which the daily score first reaches its annual maximum. A result on the
// first day of the year, or a year whose maximum is zero, is NaN.
func DayOfMax(c *grid.Cube[uint8]) *grid.Stack[float32] {
	years, spans := aggregate.YearSpans(c)
	out := grid.NewStack[float32]("year", years, c.Y, c.X)
	cells := c.Cells()
	nan := float32(math.NaN())

	for y, span := range spans {
		layer := out.Layer(y)
		for k := 0; k < cells; k++ {
			best, at := uint8(0), span[0]
			for t := span[0]; t < span[1]; t++ {
				if v := c.Data[t*cells+k]; v > best {
					best, at = v, t
				}
			}
			doy := c.Calendar.DayOfYear(c.Times[at])
			if best == 0 || doy <= 1 {
				layer[k] = nan
				continue
			}
			layer[k] = float32(doy)
		}
	}
	return out
}

// Mean returns the circular mean, in degrees, of day-of-year values.
// NaN values are ignored and an input with no finite value gives NaN.
func Mean(days []float64) float64 {
	sines := make([]float64, 0, len(days))
	cosines := make([]float64, 0, len(days))
	for _, d := range days {
		if math.IsNaN(d) {
			continue
		}
		r := d * math.Pi / 180
		sines = append(sines, math.Sin(r))
		cosines = append(cosines, math.Cos(r))
	}
	if len(sines) == 0 {
		return math.NaN()
	}
	return fromComponents(stat.Mean(sines, nil), stat.Mean(cosines, nil))
}

// fromComponents recombines averaged sine and cosine into an angle in
// degrees, correcting the quadrant of the arctangent explicitly.
func fromComponents(s, c float64) float64 {
	var r float64
	switch {
	case s > 0 && c > 0:
		r = math.Atan(s / c)
	case s < 0 && c > 0:
		r = math.Atan(s/c) + 2*math.Pi
	case c < 0:
		r = math.Atan(s/c) + math.Pi
	default:
		r = 0
	}
	return r * 180 / math.Pi
}

// Diff returns a - b wrapped into [-180, 180]. Differences beyond the
// range are reduced modulo 180 with the sign of the divisor.
func Diff(a, b float64) float64 {
	d := a - b
	switch {
	case d > 180:
		return floorMod(d, -180)
	case d < -180:
		return floorMod(d, 180)
	}
	return d
}

// floorMod is the modulo whose result takes the sign of m.
func floorMod(x, m float64) float64 {
	return x - m*math.Floor(x/m)
}

// DecadalMean takes the circular mean of consecutive groups of ten yearly
// day-of-max layers, labelled by their first year.
func DecadalMean(years *grid.Stack[float32]) *grid.Stack[float32] {
	spans := aggregate.DecadeSpans(years.Len())
	labels := make([]int, len(spans))
	for d, span := range spans {
		labels[d] = years.Labels[span[0]]
	}
	out := grid.NewStack[float32]("decade", labels, years.Y, years.X)
	cells := years.Cells()

	buf := make([]float64, 0, 10)
	for d, span := range spans {
		layer := out.Layer(d)
		for k := 0; k < cells; k++ {
			buf = buf[:0]
			for l := span[0]; l < span[1]; l++ {
				buf = append(buf, float64(years.Data[l*cells+k]))
			}
			layer[k] = float32(Mean(buf))
		}
	}
	return out
}

// DecadalChange is the wrapped difference of each decade from the first.
// The baseline decade is dropped.
func DecadalChange(decades *grid.Stack[float32]) *grid.Stack[float32] {
	if decades.Len() < 2 {
		return grid.NewStack[float32](decades.Axis, nil, decades.Y, decades.X)
	}
	out := grid.NewStack[float32](decades.Axis, decades.Labels[1:], decades.Y, decades.X)
	base := decades.Layer(0)
	for d := 1; d < decades.Len(); d++ {
		src := decades.Layer(d)
		dst := out.Layer(d - 1)
		for k := range dst {
			dst[k] = float32(Diff(float64(src[k]), float64(base[k])))
		}
	}
	return out
}
