// Package suitability combines temperature and precipitation scores and
// masks them to arable land with compatible soil.
package suitability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
)

// Combine returns the elementwise minimum of the temperature and
// precipitation scores. Both must share their axes.
func Combine(temp, precip *grid.Cube[uint8]) (*grid.Cube[uint8], error) {
	if temp.NT() != precip.NT() || !grid.SameSpace(temp, precip) {
		return nil, fmt.Errorf("%w: temperature %dx%dx%d, precipitation %dx%dx%d", grid.ErrShape,
			temp.NT(), len(temp.Y), len(temp.X), precip.NT(), len(precip.Y), len(precip.X))
	}
	out := grid.NewCube[uint8](temp.Calendar, temp.Times, temp.Y, temp.X)
	for k, t := range temp.Data {
		out.Data[k] = min(t, precip.Data[k])
	}
	return out, nil
}

// Mask marks valid cells with 1 and everything else with 0 on a fixed grid.
type Mask struct {
	*grid.Plane[uint8]
}

// NewMask returns a mask on (y, x) that keeps every cell.
func NewMask(y, x []float64) *Mask {
	p := grid.NewPlane[uint8](y, x)
	for k := range p.Data {
		p.Data[k] = 1
	}
	return &Mask{p}
}

// Restrict aligns plane to the mask grid and clears every cell where the
// plane is not positive. NaN counts as not positive.
func (m *Mask) Restrict(plane *grid.Plane[float32]) error {
	aligned, err := grid.AlignTo(plane, m.Y, m.X)
	if err != nil {
		return err
	}
	for k, v := range aligned.Data {
		if !(v > 0) {
			m.Data[k] = 0
		}
	}
	return nil
}

// Valid returns the number of cells the mask keeps.
func (m *Mask) Valid() int {
	n := 0
	for _, v := range m.Data {
		if v > 0 {
			n++
		}
	}
	return n
}

// Apply zeroes every masked cell in every time step of c, in place.
// Applying the same mask twice has no further effect.
func Apply[T grid.Number](m *Mask, c *grid.Cube[T]) error {
	if len(c.Y) != len(m.Y) || len(c.X) != len(m.X) {
		return fmt.Errorf("%w: mask is %dx%d, data is %dx%d", grid.ErrShape, len(m.Y), len(m.X), len(c.Y), len(c.X))
	}
	for t := 0; t < c.NT(); t++ {
		step := c.Step(t)
		for k, keep := range m.Data {
			if keep == 0 {
				step[k] = 0
			}
		}
	}
	return nil
}

// ErrNoSoilMask is returned when no stored mask covers a crop's soil groups.
var ErrNoSoilMask = errors.New("no soil mask for soil groups")

// SoilMasks holds soil compatibility planes keyed by soil-group
// combination, e.g. "light", "medium_heavy" or "light_medium_heavy".
type SoilMasks map[string]*grid.Plane[float32]

// SoilKey names the combination of groups in light, medium, heavy order.
func SoilKey(groups []crop.SoilGroup) string {
	rank := map[crop.SoilGroup]int{crop.SoilLight: 0, crop.SoilMedium: 1, crop.SoilHeavy: 2}
	sorted := append([]crop.SoilGroup(nil), groups...)
	sort.SliceStable(sorted, func(a, b int) bool { return rank[sorted[a]] < rank[sorted[b]] })

	names := make([]string, 0, len(sorted))
	seen := map[crop.SoilGroup]bool{}
	for _, g := range sorted {
		if !seen[g] {
			names = append(names, string(g))
			seen[g] = true
		}
	}
	return strings.Join(names, "_")
}

// For returns the plane for a crop's soil groups. A stored combination
// plane is used when present; otherwise the union of the single-group
// planes is built from the individual masks.
func (s SoilMasks) For(groups []crop.SoilGroup) (*grid.Plane[float32], error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: crop names no soil group", ErrNoSoilMask)
	}
	key := SoilKey(groups)
	if p, ok := s[key]; ok {
		return p, nil
	}

	var union *grid.Plane[float32]
	for _, g := range groups {
		p, ok := s[string(g)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSoilMask, key)
		}
		if union == nil {
			union = &grid.Plane[float32]{Y: p.Y, X: p.X, Data: append([]float32(nil), p.Data...)}
			continue
		}
		aligned, err := grid.AlignTo(p, union.Y, union.X)
		if err != nil {
			return nil, fmt.Errorf("soil mask %s: %w", g, err)
		}
		for k, v := range aligned.Data {
			if v > 0 && !(union.Data[k] > 0) {
				union.Data[k] = v
			}
		}
	}
	return union, nil
}
