package ncio

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/grid"
)

func TestFlattenIntoUnpacks(t *testing.T) {
	raw := [][][]int16{{{100, -9999}, {250, 0}}}
	p := packing{scale: 0.1, offset: 270, fills: []float64{-9999}}
	dst := make([]float32, 4)

	n, err := flattenInto(dst, raw, p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	want := []float64{280, math.NaN(), 295, 270}
	for k, w := range want {
		got := float64(dst[k])
		if math.IsNaN(w) {
			if !math.IsNaN(got) {
				t.Errorf("dst[%d] = %g, want NaN", k, got)
			}
			continue
		}
		if math.Abs(got-w) > 1e-4 {
			t.Errorf("dst[%d] = %g, want %g", k, got, w)
		}
	}

	if _, err := flattenInto(dst, []string{"a"}, p); err == nil {
		t.Error("expected error for non-numeric values")
	}
}

func TestToInt8(t *testing.T) {
	tests := []struct {
		in   float64
		want int8
	}{
		{42.5, 42},
		{43.5, 44},
		{-12.4, -12},
		{100, 100},
		{300, 127},
		{-300, -127},
		{math.NaN(), Int8Fill},
	}
	for _, tt := range tests {
		if got := toInt8(tt.in); got != tt.want {
			t.Errorf("toInt8(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOpenMissingFileFailsFast(t *testing.T) {
	_, err := open(context.Background(), filepath.Join(t.TempDir(), "absent.nc"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestReadCubeNoMatches(t *testing.T) {
	_, err := ReadCube(context.Background(), []string{filepath.Join(t.TempDir(), "*.nc")}, "tas", DefaultCoords)
	if err == nil {
		t.Error("expected error when no files match")
	}
}

func TestWriteReadCube(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "onion", nil)
	if err != nil {
		t.Fatal(err)
	}

	times := calendar.Day360.Series(calendar.Date{Year: 2021, Month: 12, Day: 25}, 10)
	c := grid.NewCube[float32](calendar.Day360, times, []float64{1500, 500}, []float64{500, 1500, 2500})
	for k := range c.Data {
		c.Data[k] = 270 + float32(k)/4
	}
	if err := WriteCube(w, "_tas", "tas", c, Float32); err != nil {
		t.Fatal(err)
	}
	if got := w.Written(); len(got) != 1 || got[0] != filepath.Join(dir, "onion_tas.nc") {
		t.Fatalf("written = %v", got)
	}

	back, err := ReadCube(context.Background(), []string{filepath.Join(dir, "onion_*.nc")}, "tas", DefaultCoords)
	if err != nil {
		t.Fatal(err)
	}
	if back.Calendar != calendar.Day360 {
		t.Errorf("calendar = %s", back.Calendar)
	}
	if back.NT() != 10 || back.Times[0] != times[0] || back.Times[9] != times[9] {
		t.Errorf("times = %v", back.Times)
	}
	if !grid.SameSpace(back, c) {
		t.Errorf("axes differ: %v %v", back.Y, back.X)
	}
	for k := range c.Data {
		if back.Data[k] != c.Data[k] {
			t.Fatalf("value %d = %g, want %g", k, back.Data[k], c.Data[k])
		}
	}
}

func TestWriteStackReadPlane(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "mask", nil)
	if err != nil {
		t.Fatal(err)
	}
	s := grid.NewStack[uint8]("year", []int{2020}, []float64{0, 1000}, []float64{0, 1000})
	copy(s.Data, []uint8{1, 0, 0, 1})
	if err := WriteStack(w, "_band", "band_data", s, Int8); err != nil {
		t.Fatal(err)
	}

	p, err := ReadPlane(context.Background(), w.Path("_band"), "band_data", DefaultCoords)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{1, 0, 0, 1}
	for k := range want {
		if p.Data[k] != want[k] {
			t.Errorf("mask[%d] = %g, want %g", k, p.Data[k], want[k])
		}
	}

	empty := grid.NewStack[float32]("decade", nil, s.Y, s.X)
	if err := WriteStack(w, "_empty", "v", empty, Float32); err != nil {
		t.Fatal(err)
	}
	if len(w.Written()) != 1 {
		t.Errorf("empty stack should not be written, got %v", w.Written())
	}
}
