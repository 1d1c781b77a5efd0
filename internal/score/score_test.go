package score

import (
	"math"
	"testing"
)

func TestSeasonLength(t *testing.T) {
	tests := []struct {
		g, gmin, gmax int
		want          uint8
	}{
		{60, 60, 120, 100},
		{90, 60, 120, 50},
		{110, 60, 120, 17},
		{120, 60, 120, 0},
		{50, 55, 70, 100}, // candidate below gmin clamps
		{130, 60, 120, 0}, // beyond gmax clamps
	}
	for _, tt := range tests {
		if got := SeasonLength(tt.g, tt.gmin, tt.gmax); got != tt.want {
			t.Errorf("SeasonLength(%d, %d, %d) = %d, want %d", tt.g, tt.gmin, tt.gmax, got, tt.want)
		}
	}
}

func TestSeasonLengthMonotonic(t *testing.T) {
	const gmin, gmax = 45, 200
	prev := SeasonLength(gmin, gmin, gmax)
	if prev != 100 {
		t.Fatalf("score at gmin = %d, want 100", prev)
	}
	for g := gmin + 1; g <= gmax; g++ {
		s := SeasonLength(g, gmin, gmax)
		if s > prev {
			t.Fatalf("score rose from %d to %d at g=%d", prev, s, g)
		}
		prev = s
	}
	if prev != 0 {
		t.Fatalf("score at gmax = %d, want 0", prev)
	}
}

func TestTrapezoid(t *testing.T) {
	b := TempBounds{Min: 270, OptMin: 285, OptMax: 305, Max: 315}
	tests := []struct {
		temp float64
		want float64
	}{
		{260, 0},
		{270, 0},
		{277.5, 0.5},
		{285, 1},
		{295, 1},
		{305, 1},
		{310, 0.5},
		{315, 0},
		{320, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := b.Trapezoid(tt.temp); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Trapezoid(%g) = %g, want %g", tt.temp, got, tt.want)
		}
	}
	if got := b.Perennial(277.5); got != 50 {
		t.Errorf("Perennial(277.5) = %d, want 50", got)
	}
}

var testPrecip = PrecipBounds{Min: 0.01, OptMin: 0.03, OptMax: 0.05, Max: 0.09}

func TestPrecipShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape PrecipShape
		total float64
		want  uint8
	}{
		{"trapezoid below min", PrecipTrapezoid, 0.005, 0},
		{"trapezoid ramp up", PrecipTrapezoid, 0.02, 50},
		{"trapezoid plateau low", PrecipTrapezoid, 0.031, 100},
		{"trapezoid plateau high", PrecipTrapezoid, 0.05, 100},
		{"trapezoid ramp down", PrecipTrapezoid, 0.07, 50},
		{"trapezoid at max", PrecipTrapezoid, 0.09, 0},

		{"triangle at min", PrecipTriangle, 0.01, 0},
		{"triangle half way up", PrecipTriangle, 0.025, 50},
		{"triangle peak", PrecipTriangle, 0.04, 100},
		{"triangle opt max", PrecipTriangle, 0.05, 80},
		{"triangle half way down", PrecipTriangle, 0.065, 50},
		{"triangle above max", PrecipTriangle, 0.1, 0},

		{"segmented opt min", PrecipSegmented, 0.03, 50},
		{"segmented mid", PrecipSegmented, 0.04, 100},
		{"segmented opt max", PrecipSegmented, 0.05, 50},
		{"segmented lower ramp", PrecipSegmented, 0.02, 25},
		{"segmented upper ramp", PrecipSegmented, 0.07, 25},
		{"segmented at max", PrecipSegmented, 0.09, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.shape.Scorer(testPrecip)(tt.total)
			if got != tt.want {
				t.Errorf("score(%g) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}

func TestPrecipRange(t *testing.T) {
	for _, shape := range []PrecipShape{PrecipTrapezoid, PrecipTriangle, PrecipSegmented} {
		f := shape.Scorer(testPrecip)
		for total := -0.01; total < 0.12; total += 0.0005 {
			if s := f(total); s > 100 {
				t.Fatalf("shape %d: score %d out of range at %g", shape, s, total)
			}
			if total >= testPrecip.Max && f(total) != 0 {
				t.Fatalf("shape %d: expected 0 at or beyond max, total %g", shape, total)
			}
		}
		if f(math.NaN()) != 0 {
			t.Errorf("shape %d: NaN should score 0", shape)
		}
	}
}

func TestParsePrecipShape(t *testing.T) {
	for _, v := range []int{1, 2, 3} {
		if _, err := ParsePrecipShape(v); err != nil {
			t.Errorf("shape %d: %v", v, err)
		}
	}
	for _, v := range []int{0, 4, -1} {
		if _, err := ParsePrecipShape(v); err == nil {
			t.Errorf("shape %d should be rejected", v)
		}
	}
}
