// Package constants defines unit conversions, defaults and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

const (
	// CelsiusToKelvin is added to a Celsius temperature to get Kelvin.
	CelsiusToKelvin = 273.15

	// SecondsPerDay converts a daily total in mm (kg/m²) to a rate in kg/m²/s.
	SecondsPerDay = 86400.0

	// DefaultKillTempK is used when a crop record has no killing temperature (-1 °C).
	DefaultKillTempK = 271.15

	// SeasonStep is the spacing of candidate growing-season lengths in days.
	SeasonStep = 10

	// MinSeasonSpread is the smallest accepted gmax-gmin; records at or below it are rejected.
	MinSeasonSpread = 10

	// NarrowSeasonSpread selects floor instead of ceil when choosing the first candidate length.
	NarrowSeasonSpread = 15

	// DecadeLength is the number of years averaged into one decade.
	DecadeLength = 10

	// YearPercentile is the percentile used by the percentile year aggregation.
	YearPercentile = 95.0

	// MaxScore is the top of the suitability scale.
	MaxScore = 100
)
