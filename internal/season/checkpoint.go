package season

import (
	"fmt"
	"slices"

	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/metrics"
)

// State is the search progress persisted between candidates.
type State struct {
	Crop       string `msgpack:"crop"`
	Method     string `msgpack:"method"`
	Candidates []int  `msgpack:"candidates"`
	Done       int    `msgpack:"done"`

	// Start, Steps and Cells identify the drivers the state was built from.
	Start string `msgpack:"start"`
	Steps int    `msgpack:"steps"`
	Cells int    `msgpack:"cells"`

	// BestSteps is the time length of the running best series.
	BestSteps int       `msgpack:"best_steps"`
	Temp      []uint8   `msgpack:"temp"`
	Precip    []uint8   `msgpack:"precip"`
	KillTemp  []float64 `msgpack:"ktmp_total"`
	KillMax   []float64 `msgpack:"kmax_total"`
}

// Checkpointer persists search state. Load returns nil, nil when nothing
// is stored under key.
type Checkpointer interface {
	Load(key string) (*State, error)
	Save(key string, st *State) error
	Remove(key string) error
}

func (s *Searcher) save(acc *accumulator, in Inputs, cands []int) error {
	if s.store == nil {
		return nil
	}
	st := &State{
		Crop:       s.params.Name,
		Method:     s.method.String(),
		Candidates: cands,
		Done:       acc.done,
		Start:      in.Tas.Times[0].String(),
		Steps:      in.Tas.NT(),
		Cells:      in.Tas.Cells(),
		BestSteps:  acc.bestTemp.NT(),
		Temp:       acc.bestTemp.Data,
		Precip:     acc.bestPrecip.Data,
		KillTemp:   acc.ktmpTotal,
		KillMax:    acc.kmaxTotal,
	}
	if err := s.store.Save(s.key, st); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// resume restores acc from a stored state that matches this run. A state
// built from different drivers or parameters is ignored.
func (s *Searcher) resume(acc *accumulator, in Inputs, cands []int) error {
	if s.store == nil {
		return nil
	}
	st, err := s.store.Load(s.key)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if st == nil || st.Done == 0 {
		return nil
	}

	cells := in.Tas.Cells()
	compatible := st.Crop == s.params.Name &&
		st.Method == s.method.String() &&
		slices.Equal(st.Candidates, cands) &&
		st.Done <= len(cands) &&
		st.Start == in.Tas.Times[0].String() &&
		st.Steps == in.Tas.NT() &&
		st.Cells == cells &&
		st.BestSteps <= in.Tas.NT() &&
		len(st.Temp) == st.BestSteps*cells &&
		len(st.Precip) == st.BestSteps*cells &&
		len(st.KillTemp) == len(acc.ktmpTotal) &&
		len(st.KillMax) == len(acc.kmaxTotal)
	if !compatible {
		s.logger.Warnf("ignoring checkpoint %s: it was written for different inputs", s.key)
		return nil
	}

	restore := func(data []uint8) *grid.Cube[uint8] {
		return &grid.Cube[uint8]{
			Calendar: in.Tas.Calendar,
			Times:    in.Tas.Times[:st.BestSteps],
			Y:        in.Tas.Y,
			X:        in.Tas.X,
			Data:     data,
		}
	}
	acc.done = st.Done
	acc.bestTemp = restore(st.Temp)
	acc.bestPrecip = restore(st.Precip)
	copy(acc.ktmpTotal, st.KillTemp)
	copy(acc.kmaxTotal, st.KillMax)

	metrics.CandidatesResumed.WithLabelValues(s.params.Name).Add(float64(st.Done))
	s.logger.Infof("resuming %s from checkpoint after %d of %d candidate lengths", s.params.Name, st.Done, len(cands))
	return nil
}
