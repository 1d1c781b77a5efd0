package suitability

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
)

var (
	testY = []float64{2500, 1500, 500}
	testX = []float64{500, 1500}
)

func scoreCube(nt int, fill func(k int) uint8) *grid.Cube[uint8] {
	times := calendar.Day360.Series(calendar.Date{Year: 2030, Month: 6, Day: 1}, nt)
	c := grid.NewCube[uint8](calendar.Day360, times, testY, testX)
	for k := range c.Data {
		c.Data[k] = fill(k)
	}
	return c
}

func TestCombine(t *testing.T) {
	temp := scoreCube(10, func(k int) uint8 { return uint8(k * 7 % 101) })
	precip := scoreCube(10, func(k int) uint8 { return uint8(k * 13 % 101) })

	got, err := Combine(temp, precip)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range got.Data {
		if v != min(temp.Data[k], precip.Data[k]) {
			t.Fatalf("combined[%d] = %d, want min(%d, %d)", k, v, temp.Data[k], precip.Data[k])
		}
	}

	if _, err := Combine(temp, scoreCube(9, func(int) uint8 { return 0 })); !errors.Is(err, grid.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestMaskApply(t *testing.T) {
	land := &grid.Plane[float32]{
		// stored south to north, with an extra row outside the data grid
		Y:    []float64{-500, 500, 1500, 2500},
		X:    testX,
		Data: []float32{1, 1, 1, 0, 2, 1, 1, float32(math.NaN())},
	}
	soil := &grid.Plane[float32]{Y: testY, X: testX, Data: []float32{1, 1, 1, 1, 0, 1}}

	m := NewMask(testY, testX)
	if err := m.Restrict(land); err != nil {
		t.Fatal(err)
	}
	if err := m.Restrict(soil); err != nil {
		t.Fatal(err)
	}
	// rows north to south: y=2500 -> (1, NaN), y=1500 -> (2, 1)&soil(1, 1), y=500 -> (1, 0)&soil(0, 1)
	want := []uint8{1, 0, 1, 1, 0, 0}
	if !slices.Equal(m.Data, want) {
		t.Fatalf("mask = %v, want %v", m.Data, want)
	}
	if m.Valid() != 3 {
		t.Errorf("Valid() = %d, want 3", m.Valid())
	}

	c := scoreCube(4, func(int) uint8 { return 80 })
	if err := Apply(m, c); err != nil {
		t.Fatal(err)
	}
	once := slices.Clone(c.Data)
	if err := Apply(m, c); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(once, c.Data) {
		t.Error("masking twice changed the result")
	}
	for ti := 0; ti < c.NT(); ti++ {
		for k, keep := range m.Data {
			v := c.Step(ti)[k]
			if keep == 0 && v != 0 || keep == 1 && v != 80 {
				t.Fatalf("step %d cell %d = %d with mask %d", ti, k, v, keep)
			}
		}
	}

	props := grid.NewCube[float32](calendar.Day360, c.Times, testY, []float64{500})
	if err := Apply(m, props); !errors.Is(err, grid.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestMaskMisaligned(t *testing.T) {
	m := NewMask(testY, testX)
	shifted := &grid.Plane[float32]{Y: []float64{2400, 1400, 400}, X: testX, Data: make([]float32, 6)}
	if err := m.Restrict(shifted); !errors.Is(err, grid.ErrMisaligned) {
		t.Errorf("expected ErrMisaligned, got %v", err)
	}
}

func TestSoilKey(t *testing.T) {
	tests := []struct {
		groups []crop.SoilGroup
		want   string
	}{
		{[]crop.SoilGroup{crop.SoilLight}, "light"},
		{[]crop.SoilGroup{crop.SoilHeavy, crop.SoilLight}, "light_heavy"},
		{[]crop.SoilGroup{crop.SoilMedium, crop.SoilHeavy, crop.SoilLight, crop.SoilMedium}, "light_medium_heavy"},
	}
	for _, tt := range tests {
		if got := SoilKey(tt.groups); got != tt.want {
			t.Errorf("SoilKey(%v) = %q, want %q", tt.groups, got, tt.want)
		}
	}
}

func TestSoilMasksFor(t *testing.T) {
	light := &grid.Plane[float32]{Y: testY, X: testX, Data: []float32{1, 0, 0, 0, 1, 0}}
	medium := &grid.Plane[float32]{Y: testY, X: testX, Data: []float32{0, 1, 0, 0, 1, 0}}
	combo := &grid.Plane[float32]{Y: testY, X: testX, Data: []float32{1, 1, 1, 1, 1, 1}}

	masks := SoilMasks{"light": light, "medium": medium}

	union, err := masks.For([]crop.SoilGroup{crop.SoilMedium, crop.SoilLight})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{1, 1, 0, 0, 1, 0}; !slices.Equal(union.Data, want) {
		t.Errorf("union = %v, want %v", union.Data, want)
	}
	if light.Data[1] != 0 {
		t.Error("union modified the light mask")
	}

	masks["light_medium"] = combo
	got, err := masks.For([]crop.SoilGroup{crop.SoilLight, crop.SoilMedium})
	if err != nil {
		t.Fatal(err)
	}
	if got != combo {
		t.Error("expected stored combination mask")
	}

	if _, err := masks.For([]crop.SoilGroup{crop.SoilHeavy}); !errors.Is(err, ErrNoSoilMask) {
		t.Errorf("expected ErrNoSoilMask, got %v", err)
	}
	if _, err := masks.For(nil); !errors.Is(err, ErrNoSoilMask) {
		t.Errorf("expected ErrNoSoilMask, got %v", err)
	}
}
