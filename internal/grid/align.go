package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrMisaligned is returned when a plane cannot be sliced onto a target grid.
var ErrMisaligned = errors.New("grid coordinates do not align")

// coordTolerance is the fraction of a grid step within which two
// coordinates are considered equal.
const coordTolerance = 1e-3

// AlignTo slices p to the inclusive coordinate bounds of the target axes and
// orders it the same way as the target. Coordinates that sit exactly on a
// bound (within tolerance) are kept. The result must match the target axes
// point for point, otherwise ErrMisaligned is returned.
func AlignTo[T Number](p *Plane[T], y, x []float64) (*Plane[T], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sameAxis(p.Y, y) && sameAxis(p.X, x) {
		return p, nil
	}

	rows, err := axisIndex(p.Y, y)
	if err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	cols, err := axisIndex(p.X, x)
	if err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}

	out := NewPlane[T](y, x)
	nx := len(p.X)
	for j, src := range rows {
		for i, col := range cols {
			out.Data[j*len(x)+i] = p.Data[src*nx+col]
		}
	}
	return out, nil
}

// axisIndex maps each target coordinate to its index in src, after slicing
// src to the target's inclusive bounds.
func axisIndex(src, target []float64) ([]int, error) {
	if len(target) == 0 {
		return nil, nil
	}
	lo, hi := target[0], target[len(target)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	tol := stepTolerance(target)

	var inBounds []int
	for k, v := range src {
		if v >= lo-tol && v <= hi+tol {
			inBounds = append(inBounds, k)
		}
	}
	if len(inBounds) != len(target) {
		return nil, fmt.Errorf("%w: %d coordinates within [%g, %g], want %d", ErrMisaligned, len(inBounds), lo, hi, len(target))
	}

	// Follow the target's ordering, flipping if src runs the other way.
	if len(target) > 1 && len(inBounds) > 1 {
		srcAsc := src[inBounds[len(inBounds)-1]] > src[inBounds[0]]
		tgtAsc := target[len(target)-1] > target[0]
		if srcAsc != tgtAsc {
			for a, b := 0, len(inBounds)-1; a < b; a, b = a+1, b-1 {
				inBounds[a], inBounds[b] = inBounds[b], inBounds[a]
			}
		}
	}

	for k, idx := range inBounds {
		if math.Abs(src[idx]-target[k]) > tol {
			return nil, fmt.Errorf("%w: coordinate %g does not match %g", ErrMisaligned, src[idx], target[k])
		}
	}
	return inBounds, nil
}

func stepTolerance(axis []float64) float64 {
	if len(axis) < 2 {
		return coordTolerance
	}
	return math.Abs(axis[1]-axis[0]) * coordTolerance
}

func sameAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	tol := stepTolerance(a)
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
