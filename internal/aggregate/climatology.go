package aggregate

import (
	"math"

	"github.com/chrissnell/ecocrop/internal/grid"
)

// MonthsPerYear is the length of the month axis of a Climatology.
const MonthsPerYear = 12

// Climatology holds one mean per calendar month per decade:
// Data[((d*12)+m)*cells+k] for decade d and month index m (January = 0).
type Climatology struct {
	Decades []int
	Y       []float64
	X       []float64
	Data    []float32
}

// Cells returns the number of (y, x) cells in one month.
func (c *Climatology) Cells() int { return len(c.Y) * len(c.X) }

// Month returns the plane for decade index d and month index m.
func (c *Climatology) Month(d, m int) []float32 {
	n := c.Cells()
	off := (d*MonthsPerYear + m) * n
	return c.Data[off : off+n]
}

// MonthlyDecadal averages a daily cube by calendar month within each
// decade. Decades are ten-year groups counted from the first year in the
// cube; the last may be shorter. A month with no days in a decade is NaN.
func MonthlyDecadal(c *grid.Cube[float32]) *Climatology {
	years, spans := YearSpans(c)
	groups := DecadeSpans(len(years))

	out := &Climatology{
		Decades: make([]int, len(groups)),
		Y:       c.Y,
		X:       c.X,
		Data:    make([]float32, len(groups)*MonthsPerYear*c.Cells()),
	}
	cells := c.Cells()
	sums := make([]float64, MonthsPerYear*cells)
	counts := make([]int, MonthsPerYear)

	for d, g := range groups {
		out.Decades[d] = years[g[0]]
		clear(sums)
		clear(counts)

		for t := spans[g[0]][0]; t < spans[g[1]-1][1]; t++ {
			m := c.Times[t].Month - 1
			counts[m]++
			acc := sums[m*cells : (m+1)*cells]
			for k, v := range c.Step(t) {
				acc[k] += float64(v)
			}
		}

		for m := 0; m < MonthsPerYear; m++ {
			dst := out.Month(d, m)
			acc := sums[m*cells : (m+1)*cells]
			for k := range dst {
				if counts[m] == 0 {
					dst[k] = float32(math.NaN())
					continue
				}
				dst[k] = float32(acc[k] / float64(counts[m]))
			}
		}
	}
	return out
}

// Change subtracts the first decade's monthly means from every later
// decade. The baseline decade is dropped.
func (c *Climatology) Change() *Climatology {
	out := &Climatology{Y: c.Y, X: c.X}
	if len(c.Decades) < 2 {
		return out
	}
	out.Decades = c.Decades[1:]
	out.Data = make([]float32, len(out.Decades)*MonthsPerYear*c.Cells())
	for d := 1; d < len(c.Decades); d++ {
		for m := 0; m < MonthsPerYear; m++ {
			base := c.Month(0, m)
			src := c.Month(d, m)
			dst := out.Month(d-1, m)
			for k := range dst {
				dst[k] = src[k] - base[k]
			}
		}
	}
	return out
}
