package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
)

func TestCubeIndexing(t *testing.T) {
	times := calendar.Day360.Series(calendar.Date{Year: 2020, Month: 1, Day: 1}, 3)
	c := NewCube[uint8](calendar.Day360, times, []float64{0, 1}, []float64{10, 20, 30})
	c.Set(2, 1, 2, 42)

	if got := c.At(2, 1, 2); got != 42 {
		t.Fatalf("At = %d, want 42", got)
	}
	if got := c.Step(2)[5]; got != 42 {
		t.Fatalf("Step(2)[5] = %d, want 42", got)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}

	head := c.Head(2)
	if head.NT() != 2 || len(head.Data) != 12 {
		t.Fatalf("Head(2): nt=%d len=%d", head.NT(), len(head.Data))
	}
	win := c.Window(1, 3)
	if win.At(1, 1, 2) != 42 {
		t.Fatal("Window did not keep time offset")
	}
}

func TestConvertRounds(t *testing.T) {
	src := &Cube[float32]{
		Times: []calendar.Date{{Year: 2000, Month: 1, Day: 1}},
		Y:     []float64{0},
		X:     []float64{0, 1, 2, 3},
		Data:  []float32{1.4, 1.5, -2.5, float32(math.NaN())},
	}
	got := Convert[int8](src)
	want := []int8{1, 2, -3, 0}
	for i := range want {
		if got.Data[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got.Data[i], want[i])
		}
	}
}

func TestAlignTo(t *testing.T) {
	// Mask covers a larger area, stored north-to-south.
	mask := &Plane[uint8]{
		Y: []float64{3500, 2500, 1500, 500},
		X: []float64{500, 1500, 2500},
		Data: []uint8{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
			10, 11, 12,
		},
	}

	tests := []struct {
		name    string
		y, x    []float64
		want    []uint8
		wantErr error
	}{
		{
			name: "identical axes",
			y:    mask.Y,
			x:    mask.X,
			want: mask.Data,
		},
		{
			name: "subset flipped to south-to-north",
			y:    []float64{1500, 2500},
			x:    []float64{1500, 2500},
			want: []uint8{8, 9, 5, 6},
		},
		{
			name: "inclusive single row",
			y:    []float64{500},
			x:    []float64{500, 1500, 2500},
			want: []uint8{10, 11, 12},
		},
		{
			name:    "offset grid",
			y:       []float64{1000, 2000},
			x:       []float64{500, 1500},
			wantErr: ErrMisaligned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AlignTo(mask, tt.y, tt.x)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := range tt.want {
				if got.Data[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got.Data, tt.want)
				}
			}
		})
	}
}
