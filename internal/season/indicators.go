package season

import (
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/score"
)

// BelowKill marks (1) every day and cell whose minimum temperature is below
// the killing temperature. Missing values are never marked.
func BelowKill(tasmin *grid.Cube[float32], killTemp float64) *grid.Cube[uint8] {
	return mark(tasmin, func(v float64) bool { return v < killTemp })
}

// AboveKillMax marks every day and cell whose maximum temperature exceeds
// the heat ceiling.
func AboveKillMax(tasmax *grid.Cube[float32], killMax float64) *grid.Cube[uint8] {
	return mark(tasmax, func(v float64) bool { return v > killMax })
}

// OptimalFraction maps daily mean temperature onto the trapezoid fraction
// used by the annual method. Summed over a window it gives the number of
// optimal-temperature days, partial days included.
func OptimalFraction(tas *grid.Cube[float32], b score.TempBounds) *grid.Cube[float32] {
	out := grid.NewCube[float32](tas.Calendar, tas.Times, tas.Y, tas.X)
	for k, v := range tas.Data {
		out.Data[k] = float32(b.Trapezoid(float64(v)))
	}
	return out
}

func mark(in *grid.Cube[float32], pred func(float64) bool) *grid.Cube[uint8] {
	out := grid.NewCube[uint8](in.Calendar, in.Times, in.Y, in.X)
	for k, v := range in.Data {
		if pred(float64(v)) {
			out.Data[k] = 1
		}
	}
	return out
}
