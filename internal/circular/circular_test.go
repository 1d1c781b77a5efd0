package circular

import (
	"math"
	"slices"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/grid"
)

func TestMean(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		days []float64
		want float64
	}{
		{"second quadrant", []float64{90, 180}, 135},
		{"third quadrant", []float64{200, 220}, 210},
		{"fourth quadrant", []float64{300}, 300},
		{"first quadrant", []float64{20, 40, 60}, 40},
		{"missing values skipped", []float64{nan, 100, nan}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.days); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean(%v) = %g, want %g", tt.days, got, tt.want)
			}
		})
	}
}

func TestMeanWrapsYearEnd(t *testing.T) {
	for _, days := range [][]float64{{1, 365}, {350, 10}, {355, 2, 5}} {
		got := Mean(days)
		if dist := math.Min(got, 360-got); dist > 5 {
			t.Errorf("Mean(%v) = %g, want near 0/360", days, got)
		}
	}
}

func TestMeanAllMissing(t *testing.T) {
	if got := Mean([]float64{math.NaN(), math.NaN()}); !math.IsNaN(got) {
		t.Errorf("got %g, want NaN", got)
	}
	if got := Mean(nil); !math.IsNaN(got) {
		t.Errorf("got %g for empty input, want NaN", got)
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		a, b float64
		want float64
	}{
		{350, 0, -10},
		{0, 200, 160},
		{5, 350, 15},
		{100, 40, 60},
		{180, 0, 180},
		{0, 180, -180},
		{10, 10, 0},
	}
	for _, tt := range tests {
		if got := Diff(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Diff(%g, %g) = %g, want %g", tt.a, tt.b, got, tt.want)
		}
	}
	if !math.IsNaN(Diff(math.NaN(), 10)) {
		t.Error("NaN should propagate")
	}
}

func TestDayOfMax(t *testing.T) {
	times := calendar.Day360.Series(calendar.Date{Year: 2040, Month: 1, Day: 1}, 720)
	c := grid.NewCube[uint8](calendar.Day360, times, []float64{0}, []float64{0, 1, 2})
	// cell 0: peak on day 100 and again on day 200 in the first year
	c.Set(99, 0, 0, 70)
	c.Set(199, 0, 0, 70)
	c.Set(400, 0, 0, 30)
	// cell 1: constant, so the first day wins
	for ti := range times {
		c.Set(ti, 0, 1, 40)
	}
	// cell 2 stays zero

	got := DayOfMax(c)
	if !slices.Equal(got.Labels, []int{2040, 2041}) {
		t.Fatalf("labels = %v", got.Labels)
	}
	if v := got.At(0, 0, 0); v != 100 {
		t.Errorf("first year peak on day %g, want 100", v)
	}
	if v := got.At(1, 0, 0); v != 41 {
		t.Errorf("second year peak on day %g, want 41", v)
	}
	for y := 0; y < 2; y++ {
		if v := got.At(y, 0, 1); !math.IsNaN(float64(v)) {
			t.Errorf("year %d constant cell: got %g, want NaN", y, v)
		}
		if v := got.At(y, 0, 2); !math.IsNaN(float64(v)) {
			t.Errorf("year %d zero cell: got %g, want NaN", y, v)
		}
	}
}

func TestDecadalMeanAndChange(t *testing.T) {
	labels := make([]int, 20)
	for i := range labels {
		labels[i] = 2020 + i
	}
	years := grid.NewStack[float32]("year", labels, []float64{0}, []float64{0})
	for l := range labels {
		if l < 10 {
			years.Data[l] = 350
		} else {
			years.Data[l] = 5
		}
	}
	years.Data[3] = float32(math.NaN())

	dec := DecadalMean(years)
	if !slices.Equal(dec.Labels, []int{2020, 2030}) {
		t.Fatalf("labels = %v", dec.Labels)
	}
	if got := dec.Data[0]; math.Abs(float64(got)-350) > 1e-3 {
		t.Errorf("first decade = %g, want 350", got)
	}
	if got := dec.Data[1]; math.Abs(float64(got)-5) > 1e-3 {
		t.Errorf("second decade = %g, want 5", got)
	}

	change := DecadalChange(dec)
	if change.Len() != 1 || change.Labels[0] != 2030 {
		t.Fatalf("change labels = %v", change.Labels)
	}
	if got := change.Data[0]; math.Abs(float64(got)-15) > 1e-3 {
		t.Errorf("change = %g, want 15", got)
	}
}
