// Package aggregate reduces daily score series to yearly values, decadal
// means and changes from the first decade.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/ecocrop/internal/constants"
	"github.com/chrissnell/ecocrop/internal/grid"
)

// YearMethod selects how a year of daily scores becomes one value.
type YearMethod int

const (
	YearPercentile YearMethod = iota
	YearMax
	YearMean
	YearMedian
	YearMin
)

var yearMethodNames = map[string]YearMethod{
	"percentile": YearPercentile,
	"max":        YearMax,
	"mean":       YearMean,
	"median":     YearMedian,
	"min":        YearMin,
}

// ParseYearMethod maps a configured name onto a YearMethod. An empty name
// selects the 95th percentile.
func ParseYearMethod(name string) (YearMethod, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return YearPercentile, nil
	}
	m, ok := yearMethodNames[name]
	if !ok {
		return 0, fmt.Errorf("year aggregation must be one of max, mean, median, min or percentile, got %q", name)
	}
	return m, nil
}

func (m YearMethod) String() string {
	for name, v := range yearMethodNames {
		if v == m {
			return name
		}
	}
	return "unknown"
}

// reducer returns the function applied to one year of values for one cell.
// The slice may be reordered.
func (m YearMethod) reducer() func([]float64) float64 {
	switch m {
	case YearMax:
		return floats.Max
	case YearMin:
		return floats.Min
	case YearMean:
		return func(v []float64) float64 { return stat.Mean(v, nil) }
	case YearMedian:
		return func(v []float64) float64 {
			sort.Float64s(v)
			return Quantile(v, 0.5)
		}
	default:
		return func(v []float64) float64 {
			sort.Float64s(v)
			return Quantile(v, constants.YearPercentile/100)
		}
	}
}

// Quantile returns the p-quantile of sorted values, interpolating linearly
// between the two closest ranks at (n-1)*p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// YearSpans returns the [start, end) time indices of each calendar year
// present in times, which must be in order.
func YearSpans[T grid.Number](c *grid.Cube[T]) (years []int, spans [][2]int) {
	for t, d := range c.Times {
		if len(years) == 0 || years[len(years)-1] != d.Year {
			years = append(years, d.Year)
			spans = append(spans, [2]int{t, t})
		}
		spans[len(spans)-1][1] = t + 1
	}
	return years, spans
}

// Yearly reduces each calendar year of a daily score cube to one score per
// cell. The result is rounded half to even and stays in [0, 100].
func Yearly(c *grid.Cube[uint8], m YearMethod) *grid.Stack[uint8] {
	years, spans := YearSpans(c)
	out := grid.NewStack[uint8]("year", years, c.Y, c.X)
	reduce := m.reducer()
	cells := c.Cells()

	var buf []float64
	for y, span := range spans {
		layer := out.Layer(y)
		n := span[1] - span[0]
		if cap(buf) < n {
			buf = make([]float64, n)
		}
		buf = buf[:n]
		for k := 0; k < cells; k++ {
			for t := span[0]; t < span[1]; t++ {
				buf[t-span[0]] = float64(c.Data[t*cells+k])
			}
			v := math.RoundToEven(reduce(buf))
			layer[k] = uint8(math.Max(0, math.Min(constants.MaxScore, v)))
		}
	}
	return out
}

// DecadeSpans partitions n consecutive yearly layers into [start, end)
// groups of ten. The last group may be shorter.
func DecadeSpans(n int) [][2]int {
	var spans [][2]int
	for start := 0; start < n; start += constants.DecadeLength {
		spans = append(spans, [2]int{start, min(start+constants.DecadeLength, n)})
	}
	return spans
}

// Decadal averages consecutive groups of ten yearly layers. Each decade is
// labelled with its first year. NaN values are skipped; a cell with no
// finite value in a decade is NaN.
func Decadal[T grid.Number](years *grid.Stack[T]) *grid.Stack[float32] {
	spans := DecadeSpans(years.Len())
	labels := make([]int, len(spans))
	for d, span := range spans {
		labels[d] = years.Labels[span[0]]
	}
	out := grid.NewStack[float32]("decade", labels, years.Y, years.X)
	cells := years.Cells()

	buf := make([]float64, 0, constants.DecadeLength)
	for d, span := range spans {
		layer := out.Layer(d)
		for k := 0; k < cells; k++ {
			buf = buf[:0]
			for l := span[0]; l < span[1]; l++ {
				v := float64(years.Data[l*cells+k])
				if !math.IsNaN(v) {
					buf = append(buf, v)
				}
			}
			if len(buf) == 0 {
				layer[k] = float32(math.NaN())
				continue
			}
			layer[k] = float32(stat.Mean(buf, nil))
		}
	}
	return out
}

// DecadalChange subtracts the first decade from every later one. The
// baseline itself is not part of the result, which has one layer fewer
// than its input.
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
			dst[k] = src[k] - base[k]
		}
	}
	return out
}
