package rolling

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/grid"
)

func cubeOf[T grid.Number](nt int, fill func(t, k int) T) *grid.Cube[T] {
	times := calendar.Standard.Series(calendar.Date{Year: 2001, Month: 1, Day: 1}, nt)
	c := grid.NewCube[T](calendar.Standard, times, []float64{0, 1}, []float64{0, 1, 2})
	for t := 0; t < nt; t++ {
		step := c.Step(t)
		for k := range step {
			step[k] = fill(t, k)
		}
	}
	return c
}

func TestForwardSumConstant(t *testing.T) {
	tests := []struct {
		name   string
		nt     int
		window int
		value  float32
	}{
		{"window of one", 12, 1, 3},
		{"short window", 30, 7, 0.5},
		{"full length window", 20, 20, 2},
		{"typical season", 400, 120, 0.0007},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cubeOf(tt.nt, func(int, int) float32 { return tt.value })
			out, err := ForwardSum[float32](in, tt.window)
			if err != nil {
				t.Fatal(err)
			}
			if out.NT() != tt.nt-tt.window+1 {
				t.Fatalf("expected %d steps, got %d", tt.nt-tt.window+1, out.NT())
			}
			want := float64(tt.window) * float64(tt.value)
			for i, v := range out.Data {
				if math.Abs(float64(v)-want) > 1e-5*math.Max(1, want) {
					t.Fatalf("index %d: got %g, want %g", i, v, want)
				}
			}
		})
	}
}

func TestForwardSumRamp(t *testing.T) {
	const nt, window = 50, 9
	in := cubeOf(nt, func(t, k int) uint16 { return uint16(t) })
	out, err := ForwardSum[uint16](in, window)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < out.NT(); i++ {
		// i + (i+1) + ... + (i+window-1)
		want := uint16(window*i + window*(window-1)/2)
		for _, v := range out.Step(i) {
			if v != want {
				t.Fatalf("start %d: got %d, want %d", i, v, want)
			}
		}
	}
	if out.Times[0] != in.Times[0] || out.Times[out.NT()-1] != in.Times[nt-window] {
		t.Error("output time axis should keep the window start dates")
	}
}

func TestForwardSumIndicatorCounts(t *testing.T) {
	// A single frost day at t=10 must be counted by every window covering it.
	in := cubeOf(30, func(t, k int) uint16 {
		if t == 10 {
			return 1
		}
		return 0
	})
	out, err := ForwardSum[uint16](in, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < out.NT(); i++ {
		want := uint16(0)
		if i >= 6 && i <= 10 {
			want = 1
		}
		if got := out.At(i, 1, 2); got != want {
			t.Errorf("start %d: got %d, want %d", i, got, want)
		}
	}
}

func TestForwardSumWindowErrors(t *testing.T) {
	in := cubeOf(10, func(int, int) float32 { return 1 })
	for _, w := range []int{0, -3, 11} {
		if _, err := ForwardSum[float32](in, w); !errors.Is(err, ErrWindow) {
			t.Errorf("window %d: expected ErrWindow, got %v", w, err)
		}
		if _, err := ForwardSumCumulative[float32](in, w); !errors.Is(err, ErrWindow) {
			t.Errorf("cumulative window %d: expected ErrWindow, got %v", w, err)
		}
	}
}

func TestForwardSumCumulativeMatches(t *testing.T) {
	const nt, window = 40, 6
	in := cubeOf(nt, func(t, k int) float64 { return float64((t*7+k*3)%11) * 0.25 })

	cum := in.Clone()
	n := cum.Cells()
	for t := 1; t < nt; t++ {
		for k := 0; k < n; k++ {
			cum.Data[t*n+k] += cum.Data[(t-1)*n+k]
		}
	}

	direct, err := ForwardSum[float64](in, window)
	if err != nil {
		t.Fatal(err)
	}
	viaCum, err := ForwardSumCumulative[float64](cum, window)
	if err != nil {
		t.Fatal(err)
	}
	for i := range direct.Data {
		if math.Abs(direct.Data[i]-viaCum.Data[i]) > 1e-9 {
			t.Fatalf("index %d: direct %g, cumulative %g", i, direct.Data[i], viaCum.Data[i])
		}
	}
}
