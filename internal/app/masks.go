package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/ncio"
	"github.com/chrissnell/ecocrop/internal/suitability"
	"github.com/chrissnell/ecocrop/pkg/config"
)

// maskPlanes are the raw mask grids of a run, read before the search so a
// missing file fails the run early.
type maskPlanes struct {
	landCover *grid.Plane[float32]
	soil      *grid.Plane[float32]
}

func (r *Runner) loadMasks(ctx context.Context, groups []crop.SoilGroup) (*maskPlanes, error) {
	mc := r.cfg.Masks
	coords := ncio.Coords{Y: r.cfg.Inputs.Coords.Y, X: r.cfg.Inputs.Coords.X}
	planes := &maskPlanes{}

	if lc := mc.LandCover; lc != nil {
		r.logger.Infof("reading land cover mask %s", lc.Path)
		p, err := ncio.ReadPlane(ctx, lc.Path, lc.Variable, coords)
		if err != nil {
			return nil, fmt.Errorf("land cover mask: %w", err)
		}
		planes.landCover = p
	}

	if mc.SoilDir == "" {
		return planes, nil
	}
	if len(groups) == 0 {
		r.logger.Warnf("crop names no soil group, skipping soil masking")
		return planes, nil
	}

	masks, err := readSoilMasks(ctx, mc, coords, groups)
	if err != nil {
		return nil, err
	}
	p, err := masks.For(groups)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("masking to %s soils", suitability.SoilKey(groups))
	planes.soil = p
	return planes, nil
}

// readSoilMasks reads <key>_soil_mask.nc for the crop's combination of
// soil groups and, when that file is absent, the single-group files.
func readSoilMasks(ctx context.Context, mc config.MasksData, coords ncio.Coords, groups []crop.SoilGroup) (suitability.SoilMasks, error) {
	keys := []string{suitability.SoilKey(groups)}
	masks := suitability.SoilMasks{}

	for i := 0; i < len(keys); i++ {
		key := keys[i]
		path := filepath.Join(mc.SoilDir, key+"_soil_mask.nc")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if i == 0 && len(groups) > 1 {
				for _, g := range groups {
					keys = append(keys, string(g))
				}
			}
			continue
		}

		variable := mc.SoilVariable
		if variable == "" {
			variable = key + "_soil_mask"
		}
		p, err := ncio.ReadPlane(ctx, path, variable, coords)
		if err != nil {
			return nil, fmt.Errorf("soil mask: %w", err)
		}
		masks[key] = p
		if i == 0 {
			break
		}
	}
	return masks, nil
}

// buildMask combines the mask planes on the grid of the scores.
func buildMask(planes *maskPlanes, y, x []float64) (*suitability.Mask, error) {
	m := suitability.NewMask(y, x)
	if planes.landCover != nil {
		if err := m.Restrict(planes.landCover); err != nil {
			return nil, fmt.Errorf("land cover mask: %w", err)
		}
	}
	if planes.soil != nil {
		if err := m.Restrict(planes.soil); err != nil {
			return nil, fmt.Errorf("soil mask: %w", err)
		}
	}
	return m, nil
}
