// Package grid provides the typed (time, y, x) cubes and (y, x) planes that
// carry climate drivers, scores and masks through a run.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/ecocrop/internal/calendar"
)

// Number is the set of element types stored in grids.
type Number interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~int32 | ~float32 | ~float64
}

// ErrShape is returned when grids that must share a shape do not.
var ErrShape = errors.New("grid shape mismatch")

// Cube is a dense (time, y, x) array stored time-major:
// Data[(t*len(Y)+j)*len(X)+i].
type Cube[T Number] struct {
	Calendar calendar.Calendar
	Times    []calendar.Date
	Y        []float64
	X        []float64
	Data     []T
}

// NewCube allocates a zeroed cube on the given axes.
func NewCube[T Number](cal calendar.Calendar, times []calendar.Date, y, x []float64) *Cube[T] {
	return &Cube[T]{
		Calendar: cal,
		Times:    times,
		Y:        y,
		X:        x,
		Data:     make([]T, len(times)*len(y)*len(x)),
	}
}

// NT returns the length of the time axis.
func (c *Cube[T]) NT() int { return len(c.Times) }

// Cells returns the number of (y, x) cells in one time step.
func (c *Cube[T]) Cells() int { return len(c.Y) * len(c.X) }

// Step returns the slice of Data for time index t.
func (c *Cube[T]) Step(t int) []T {
	n := c.Cells()
	return c.Data[t*n : (t+1)*n]
}

// At returns the value at (t, j, i).
func (c *Cube[T]) At(t, j, i int) T {
	return c.Data[(t*len(c.Y)+j)*len(c.X)+i]
}

// Set stores v at (t, j, i).
func (c *Cube[T]) Set(t, j, i int, v T) {
	c.Data[(t*len(c.Y)+j)*len(c.X)+i] = v
}

// Validate checks that the data length matches the axes.
func (c *Cube[T]) Validate() error {
	if want := len(c.Times) * len(c.Y) * len(c.X); len(c.Data) != want {
		return fmt.Errorf("%w: %d values for %dx%dx%d axes", ErrShape, len(c.Data), len(c.Times), len(c.Y), len(c.X))
	}
	return nil
}

// Head returns a view of the first n time steps. The view shares storage.
func (c *Cube[T]) Head(n int) *Cube[T] {
	if n > c.NT() {
		n = c.NT()
	}
	return &Cube[T]{
		Calendar: c.Calendar,
		Times:    c.Times[:n],
		Y:        c.Y,
		X:        c.X,
		Data:     c.Data[:n*c.Cells()],
	}
}

// Window returns a view of time steps [from, to). The view shares storage.
func (c *Cube[T]) Window(from, to int) *Cube[T] {
	n := c.Cells()
	return &Cube[T]{
		Calendar: c.Calendar,
		Times:    c.Times[from:to],
		Y:        c.Y,
		X:        c.X,
		Data:     c.Data[from*n : to*n],
	}
}

// Clone returns a deep copy of the cube's data with shared axes.
func (c *Cube[T]) Clone() *Cube[T] {
	out := *c
	out.Data = append([]T(nil), c.Data...)
	return &out
}

// SameSpace reports whether two cubes share the same (y, x) axes.
func SameSpace[A, B Number](a *Cube[A], b *Cube[B]) bool {
	return sameAxis(a.Y, b.Y) && sameAxis(a.X, b.X)
}

// Convert copies a cube into a new element type. Float to integer
// conversions round half away from zero; NaN maps to zero.
func Convert[D, S Number](src *Cube[S]) *Cube[D] {
	out := &Cube[D]{
		Calendar: src.Calendar,
		Times:    src.Times,
		Y:        src.Y,
		X:        src.X,
		Data:     make([]D, len(src.Data)),
	}
	var zero D
	integral := isIntegral(zero)
	for i, v := range src.Data {
		f := float64(v)
		if integral {
			if math.IsNaN(f) {
				continue
			}
			f = math.Round(f)
		}
		out.Data[i] = D(f)
	}
	return out
}

func isIntegral[T Number](v T) bool {
	switch any(v).(type) {
	case float32, float64:
		return false
	}
	return true
}

// Plane is a dense (y, x) array stored row-major: Data[j*len(X)+i].
type Plane[T Number] struct {
	Y    []float64
	X    []float64
	Data []T
}

// NewPlane allocates a zeroed plane.
func NewPlane[T Number](y, x []float64) *Plane[T] {
	return &Plane[T]{Y: y, X: x, Data: make([]T, len(y)*len(x))}
}

// At returns the value at (j, i).
func (p *Plane[T]) At(j, i int) T {
	return p.Data[j*len(p.X)+i]
}

// Validate checks that the data length matches the axes.
func (p *Plane[T]) Validate() error {
	if want := len(p.Y) * len(p.X); len(p.Data) != want {
		return fmt.Errorf("%w: %d values for %dx%d axes", ErrShape, len(p.Data), len(p.Y), len(p.X))
	}
	return nil
}
