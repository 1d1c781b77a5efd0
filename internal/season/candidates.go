package season

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/ecocrop/internal/constants"
)

// Method selects how the temperature score of a trial season is derived.
type Method int

const (
	// Annual counts days in the optimal temperature band and gates on gmin.
	Annual Method = iota
	// Perennial scores the season's mean temperature on the trapezoid.
	Perennial
)

// ParseMethod maps a configured method name onto a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "annual":
		return Annual, nil
	case "perennial":
		return Perennial, nil
	}
	return Annual, fmt.Errorf("method must be annual or perennial, got %q", name)
}

func (m Method) String() string {
	if m == Perennial {
		return "perennial"
	}
	return "annual"
}

// Candidates returns the trial growing-season lengths searched for a crop:
// every multiple of 10 in [start, end), where end = ceil(gmax/10)*10 and
// start rounds gmin up, or down when the season range is narrow (<= 15
// days) so that at least one candidate remains.
func Candidates(gmin, gmax int) []int {
	step := float64(constants.SeasonStep)
	var start int
	if gmax-gmin <= constants.NarrowSeasonSpread {
		start = int(math.Floor(float64(gmin)/step) * step)
	} else {
		start = int(math.Ceil(float64(gmin)/step) * step)
	}
	end := int(math.Ceil(float64(gmax)/step) * step)

	var out []int
	for g := start; g < end; g += constants.SeasonStep {
		if g > 0 {
			out = append(out, g)
		}
	}
	return out
}
