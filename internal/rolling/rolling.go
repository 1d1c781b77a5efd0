// Package rolling computes forward-looking rolling totals along the time
// axis of a cube using prefix-sum differencing.
package rolling

import (
	"errors"
	"fmt"

	"github.com/chrissnell/ecocrop/internal/grid"
)

// ErrWindow is returned for a window that is not within [1, time length].
var ErrWindow = errors.New("invalid rolling window")

// ForwardSum returns, for every start index i, the total of the window
// consecutive values in[i] .. in[i+window-1]. The output time axis keeps the
// first len-window+1 dates of the input.
//
// Prefix sums are accumulated in float64 and differenced as
// cs[i+window-1] - cs[i-1], with cs[window-1] used directly for i == 0. Only
// the last window prefix planes are held in memory. The result is converted
// to D, so the caller chooses the output footprint (uint16 for day counts,
// float32 for totals).
func ForwardSum[D, S grid.Number](in *grid.Cube[S], window int) (*grid.Cube[D], error) {
	nt := in.NT()
	if window < 1 || window > nt {
		return nil, fmt.Errorf("%w: window %d for %d time steps", ErrWindow, window, nt)
	}

	n := in.Cells()
	out := grid.NewCube[D](in.Calendar, in.Times[:nt-window+1], in.Y, in.X)

	ring := make([]float64, window*n)
	running := make([]float64, n)

	for t := 0; t < nt; t++ {
		step := in.Step(t)
		slot := ring[(t%window)*n : (t%window+1)*n]
		for k, v := range step {
			running[k] += float64(v)
		}

		switch {
		case t == window-1:
			dst := out.Step(0)
			for k := range dst {
				dst[k] = D(running[k])
			}
		case t >= window:
			// slot still holds cs[t-window]
			dst := out.Step(t - window + 1)
			for k := range dst {
				dst[k] = D(running[k] - slot[k])
			}
		}
		copy(slot, running)
	}
	return out, nil
}

// ForwardSumCumulative is ForwardSum for input that is already a running
// total along time: out[0] = in[window-1] and
// out[i] = in[i+window-1] - in[i-1].
func ForwardSumCumulative[D, S grid.Number](in *grid.Cube[S], window int) (*grid.Cube[D], error) {
	nt := in.NT()
	if window < 1 || window > nt {
		return nil, fmt.Errorf("%w: window %d for %d time steps", ErrWindow, window, nt)
	}

	out := grid.NewCube[D](in.Calendar, in.Times[:nt-window+1], in.Y, in.X)

	first := in.Step(window - 1)
	dst := out.Step(0)
	for k, v := range first {
		dst[k] = D(v)
	}
	for i := 1; i < out.NT(); i++ {
		hi := in.Step(i + window - 1)
		lo := in.Step(i - 1)
		dst := out.Step(i)
		for k := range dst {
			dst[k] = D(float64(hi[k]) - float64(lo[k]))
		}
	}
	return out, nil
}
