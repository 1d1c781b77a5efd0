// Package season runs the growing-season length search: every candidate
// season length is scored for temperature and precipitation and folded into
// a running best per cell and start day.
package season

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/metrics"
	"github.com/chrissnell/ecocrop/internal/rolling"
	"github.com/chrissnell/ecocrop/internal/score"
)

// Inputs are the daily climate drivers of one run. All four cubes share
// the same time axis and (y, x) grid. Temperatures are in Kelvin and
// precipitation is a rate in kg/m²/s.
type Inputs struct {
	Tas    *grid.Cube[float32]
	Tasmin *grid.Cube[float32]
	Tasmax *grid.Cube[float32]
	Pr     *grid.Cube[float32]
}

// Validate checks that the drivers are present and share their axes.
func (in Inputs) Validate() error {
	named := []struct {
		name string
		c    *grid.Cube[float32]
	}{{"tas", in.Tas}, {"tasmin", in.Tasmin}, {"tasmax", in.Tasmax}, {"pr", in.Pr}}

	for _, n := range named {
		if n.c == nil {
			return fmt.Errorf("missing %s input", n.name)
		}
		if err := n.c.Validate(); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
		if n.c == in.Tas {
			continue
		}
		if n.c.NT() != in.Tas.NT() || !grid.SameSpace(n.c, in.Tas) {
			return fmt.Errorf("%w: %s does not share the tas axes", grid.ErrShape, n.name)
		}
		if n.c.NT() > 0 && n.c.Times[0] != in.Tas.Times[0] {
			return fmt.Errorf("%w: %s starts on %s, tas on %s", grid.ErrShape, n.name, n.c.Times[0], in.Tas.Times[0])
		}
	}
	return nil
}

// Result is the outcome of a search.
type Result struct {
	// Temp and Precip are the best daily scores over all candidate lengths,
	// indexed by season start day.
	Temp   *grid.Cube[uint8]
	Precip *grid.Cube[uint8]

	// KillTempProp and KillMaxProp are the proportions of killing-frost and
	// over-heat days in a season, averaged over all candidate lengths.
	KillTempProp *grid.Cube[float32]
	KillMaxProp  *grid.Cube[float32]

	Candidates []int
}

// Searcher scores one crop over a set of climate drivers.
type Searcher struct {
	params *crop.Params
	method Method
	precip func(float64) uint8
	logger *zap.SugaredLogger

	store Checkpointer
	key   string
}

// NewSearcher returns a searcher for validated crop parameters.
func NewSearcher(p *crop.Params, method Method, shape score.PrecipShape, logger *zap.SugaredLogger) *Searcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Searcher{
		params: p,
		method: method,
		precip: shape.Scorer(p.PrecipBounds()),
		logger: logger,
	}
}

// WithCheckpoints persists the search state under key after every
// candidate and resumes from it on the next Run.
func (s *Searcher) WithCheckpoints(store Checkpointer, key string) *Searcher {
	s.store = store
	s.key = key
	return s
}

// accumulator is the state carried from one candidate to the next.
type accumulator struct {
	done       int
	bestTemp   *grid.Cube[uint8]
	bestPrecip *grid.Cube[uint8]
	ktmpTotal  []float64
	kmaxTotal  []float64
}

// Run searches every candidate season length in ascending order. The
// context is checked between candidates.
func (s *Searcher) Run(ctx context.Context, in Inputs) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := s.params
	cands := Candidates(p.GMin, p.GMax)
	if len(cands) == 0 {
		return nil, &crop.ConfigError{Field: "gmax", Reason: fmt.Sprintf("no candidate season lengths between %d and %d", p.GMin, p.GMax)}
	}
	nt := in.Tas.NT()
	longest := cands[len(cands)-1]
	if longest > nt {
		return nil, &crop.ConfigError{
			Field:  "gmax",
			Reason: fmt.Sprintf("longest candidate season of %d days exceeds the %d-day record", longest, nt),
		}
	}

	cells := in.Tas.Cells()
	killLen := nt - longest + 1

	belowKill := BelowKill(in.Tasmin, p.KillTemp)
	aboveMax := AboveKillMax(in.Tasmax, p.KillMax)
	var optimal *grid.Cube[float32]
	if s.method == Annual {
		optimal = OptimalFraction(in.Tas, p.TempBounds())
	}

	acc := &accumulator{
		ktmpTotal: make([]float64, killLen*cells),
		kmaxTotal: make([]float64, killLen*cells),
	}
	if err := s.resume(acc, in, cands); err != nil {
		return nil, err
	}

	for i := acc.done; i < len(cands); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := cands[i]
		started := time.Now()
		s.logger.Infof("calculating suitability for %s for a growing season of length %d out of a maximum of %d", p.Name, g, p.GMax)

		temp, ktmpDays, kmaxDays, err := s.tempScore(in.Tas, optimal, belowKill, aboveMax, g)
		if err != nil {
			return nil, err
		}
		precip, err := s.precipScore(in.Pr, g)
		if err != nil {
			return nil, err
		}

		accumulateProportion(acc.ktmpTotal, ktmpDays.Data, g)
		accumulateProportion(acc.kmaxTotal, kmaxDays.Data, g)

		acc.bestTemp = foldMax(acc.bestTemp, temp)
		acc.bestPrecip = foldMax(acc.bestPrecip, precip)
		acc.done = i + 1

		elapsed := time.Since(started)
		metrics.CandidatesProcessed.WithLabelValues(p.Name).Inc()
		metrics.CandidateDuration.WithLabelValues(p.Name).Observe(elapsed.Seconds())
		s.logger.Debugw("candidate scored", "crop", p.Name, "gtime", g, "elapsed", elapsed)

		if err := s.save(acc, in, cands); err != nil {
			return nil, err
		}
	}

	if s.store != nil {
		if err := s.store.Remove(s.key); err != nil {
			s.logger.Warnf("could not remove checkpoint %s: %v", s.key, err)
		}
	}

	return &Result{
		Temp:         acc.bestTemp,
		Precip:       acc.bestPrecip,
		KillTempProp: averageProportion(in.Tas, acc.ktmpTotal, killLen, len(cands)),
		KillMaxProp:  averageProportion(in.Tas, acc.kmaxTotal, killLen, len(cands)),
		Candidates:   cands,
	}, nil
}

// tempScore scores candidate length g and returns the rolling kill and
// heat day counts it used.
func (s *Searcher) tempScore(tas, optimal *grid.Cube[float32], belowKill, aboveMax *grid.Cube[uint8], g int) (*grid.Cube[uint8], *grid.Cube[uint16], *grid.Cube[uint16], error) {
	p := s.params

	ktmpDays, err := rolling.ForwardSum[uint16](belowKill, g)
	if err != nil {
		return nil, nil, nil, err
	}
	kmaxDays, err := rolling.ForwardSum[uint16](aboveMax, g)
	if err != nil {
		return nil, nil, nil, err
	}

	out := grid.NewCube[uint8](tas.Calendar, ktmpDays.Times, tas.Y, tas.X)
	switch s.method {
	case Annual:
		days, err := rolling.ForwardSum[float32](optimal, g)
		if err != nil {
			return nil, nil, nil, err
		}
		full := score.SeasonLength(g, p.GMin, p.GMax)
		gmin := float64(p.GMin)
		for k, d := range days.Data {
			if math.RoundToEven(float64(d)) >= gmin {
				out.Data[k] = full
			}
		}
	case Perennial:
		total, err := rolling.ForwardSum[float64](tas, g)
		if err != nil {
			return nil, nil, nil, err
		}
		b := p.TempBounds()
		for k, v := range total.Data {
			out.Data[k] = b.Perennial(v / float64(g))
		}
	}

	for k := range out.Data {
		if ktmpDays.Data[k] > 0 {
			out.Data[k] = 0
			continue
		}
		if v := int(out.Data[k]) - int(kmaxDays.Data[k]); v > 0 {
			out.Data[k] = uint8(v)
		} else {
			out.Data[k] = 0
		}
	}
	return out, ktmpDays, kmaxDays, nil
}

func (s *Searcher) precipScore(pr *grid.Cube[float32], g int) (*grid.Cube[uint8], error) {
	total, err := rolling.ForwardSum[float32](pr, g)
	if err != nil {
		return nil, err
	}
	out := grid.NewCube[uint8](pr.Calendar, total.Times, pr.Y, pr.X)
	for k, v := range total.Data {
		out.Data[k] = s.precip(float64(v))
	}
	return out, nil
}

// foldMax truncates best and candidate to the shorter time axis, both
// anchored at the first start day, and keeps the elementwise maximum.
func foldMax(best, candidate *grid.Cube[uint8]) *grid.Cube[uint8] {
	if best == nil {
		return candidate
	}
	n := min(best.NT(), candidate.NT())
	out := best.Head(n)
	c := candidate.Head(n)
	for k, v := range c.Data {
		if v > out.Data[k] {
			out.Data[k] = v
		}
	}
	return out
}

// accumulateProportion adds count/g for the leading len(total) entries.
func accumulateProportion(total []float64, counts []uint16, g int) {
	fg := float64(g)
	for k := range total {
		total[k] += float64(counts[k]) / fg
	}
}

func averageProportion(ref *grid.Cube[float32], total []float64, n, candidates int) *grid.Cube[float32] {
	out := grid.NewCube[float32](ref.Calendar, slices.Clone(ref.Times[:n]), ref.Y, ref.X)
	fc := float64(candidates)
	for k, v := range total {
		out.Data[k] = float32(v / fc)
	}
	return out
}
