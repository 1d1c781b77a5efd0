// Package crop describes a crop's physiological parameters and validates
// them before any array work starts.
package crop

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chrissnell/ecocrop/internal/constants"
	"github.com/chrissnell/ecocrop/internal/score"
)

// SoilGroup is a soil texture class a crop tolerates.
type SoilGroup string

const (
	SoilLight  SoilGroup = "light"
	SoilMedium SoilGroup = "medium"
	SoilHeavy  SoilGroup = "heavy"
)

// Params is one crop record in SI units: temperatures in Kelvin,
// precipitation limits as season totals of daily rates in kg/m²/s.
// It is built once per run and not modified afterwards.
type Params struct {
	Name string

	TempMin float64
	TopMin  float64
	TopMax  float64
	TempMax float64

	// KillTemp is the minimum-temperature killing threshold.
	KillTemp float64
	// KillMax is the maximum-temperature ceiling for the heat penalty; equal to TempMax.
	KillMax float64

	PrecipMin    float64
	PrecipOptMin float64
	PrecipOptMax float64
	PrecipMax    float64

	GMin int
	GMax int

	SoilGroups []SoilGroup
}

// ConfigError reports a missing or unusable crop parameter or run setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TempBounds returns the temperature breakpoints for scoring.
func (p *Params) TempBounds() score.TempBounds {
	return score.TempBounds{Min: p.TempMin, OptMin: p.TopMin, OptMax: p.TopMax, Max: p.TempMax}
}

// PrecipBounds returns the precipitation breakpoints for scoring.
func (p *Params) PrecipBounds() score.PrecipBounds {
	return score.PrecipBounds{Min: p.PrecipMin, OptMin: p.PrecipOptMin, OptMax: p.PrecipOptMax, Max: p.PrecipMax}
}

// ApplyDefaults fills the killing temperature when it is absent and ties
// KillMax to TempMax.
func (p *Params) ApplyDefaults() {
	if math.IsNaN(p.KillTemp) {
		p.KillTemp = constants.DefaultKillTempK
	}
	p.KillMax = p.TempMax
}

// Validate rejects records that cannot be scored: missing values, a season
// range too narrow to distinguish lengths, bounds out of order, and any
// scorer denominator that would be zero for the selected precipitation shape.
func (p *Params) Validate(shape score.PrecipShape) error {
	required := []struct {
		field string
		v     float64
	}{
		{"temp_min", p.TempMin},
		{"top_min", p.TopMin},
		{"top_max", p.TopMax},
		{"temp_max", p.TempMax},
		{"precip_min", p.PrecipMin},
		{"precip_max", p.PrecipMax},
		{"precip_opt_min", p.PrecipOptMin},
		{"precip_opt_max", p.PrecipOptMax},
	}
	for _, r := range required {
		if math.IsNaN(r.v) || math.IsInf(r.v, 0) {
			return &ConfigError{Field: r.field, Reason: "missing value"}
		}
	}
	if p.GMin <= 0 {
		return &ConfigError{Field: "gmin", Reason: "missing value"}
	}
	if p.GMax <= 0 {
		return &ConfigError{Field: "gmax", Reason: "missing value"}
	}
	if p.GMax-p.GMin <= constants.MinSeasonSpread {
		return &ConfigError{
			Field:  "gmax",
			Reason: fmt.Sprintf("gmin (%d) and gmax (%d) too close, not enough info to calculate suitability", p.GMin, p.GMax),
		}
	}

	if !(p.TempMin < p.TopMin && p.TopMin <= p.TopMax && p.TopMax < p.TempMax) {
		return &ConfigError{
			Field:  "temperature bounds",
			Reason: fmt.Sprintf("need temp_min < top_min <= top_max < temp_max, got %g, %g, %g, %g", p.TempMin, p.TopMin, p.TopMax, p.TempMax),
		}
	}
	if !(p.PrecipMin <= p.PrecipOptMin && p.PrecipOptMin <= p.PrecipOptMax && p.PrecipOptMax <= p.PrecipMax) {
		return &ConfigError{
			Field:  "precipitation bounds",
			Reason: fmt.Sprintf("need precip_min <= precip_opt_min <= precip_opt_max <= precip_max, got %g, %g, %g, %g", p.PrecipMin, p.PrecipOptMin, p.PrecipOptMax, p.PrecipMax),
		}
	}

	denoms := p.PrecipBounds().Denominators(shape)
	names := make([]string, 0, len(denoms))
	for name := range denoms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if denoms[name] == 0 {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("zero denominator for precip score shape %d", shape)}
		}
	}

	if math.IsNaN(p.KillTemp) {
		return &ConfigError{Field: "kill_temp", Reason: "missing value (call ApplyDefaults)"}
	}
	return nil
}

// ParseSoilGroups extracts the soil groups named in a free-text texture
// field such as "light, medium" or "HEAVY". Unknown words are ignored.
func ParseSoilGroups(text string) []SoilGroup {
	lower := strings.ToLower(text)
	var groups []SoilGroup
	for _, g := range []SoilGroup{SoilLight, SoilMedium, SoilHeavy} {
		if strings.Contains(lower, string(g)) {
			groups = append(groups, g)
		}
	}
	return groups
}

// SanitizeName turns a common-name field into an identifier usable in file
// names: only the first comma-separated name is kept, spaces become
// underscores and brackets and apostrophes are dropped.
func SanitizeName(common string) string {
	name := strings.TrimSpace(strings.Split(common, ",")[0])
	name = strings.Join(strings.Fields(name), "_")
	return strings.NewReplacer("(", "", ")", "", "'", "").Replace(name)
}
