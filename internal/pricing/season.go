package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Named seasonal windows. Anything outside them resolves to "default".
const (
	SeasonHoliday = "holiday"
	SeasonSummer  = "summer"
	SeasonSpring  = "spring"
	SeasonDefault = "default"
)

// SeasonFor resolves the named season for a point in time.
func SeasonFor(t time.Time) string {
	t = t.UTC()
	switch month := t.Month(); {
	case month == time.December, month == time.November && t.Day() >= 15:
		return SeasonHoliday
	case month >= time.June && month <= time.August:
		return SeasonSummer
	case month >= time.March && month <= time.May:
		return SeasonSpring
	default:
		return SeasonDefault
	}
}

// SeasonalMultiplier returns the configured multiplier for the season active
// at t, falling back to the default entry and finally to 1.0.
func (e *Engine) SeasonalMultiplier(t time.Time) (string, decimal.Decimal) {
	season := SeasonFor(t)
	if m, ok := e.seasonal[season]; ok {
		return season, m
	}
	if m, ok := e.seasonal[SeasonDefault]; ok {
		return season, m
	}
	return season, decOne
}
