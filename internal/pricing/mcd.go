package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recalculation reasons recorded on the audit trail.
const (
	ReasonDisabled     = "mcd_disabled"
	ReasonBelowSpend   = "below_spend_threshold"
	ReasonROIAboveGoal = "roi_above_target"
	ReasonROIBelowGoal = "roi_below_target"
)

// MultiplierResult carries every intermediate of one recalculation so the
// audit record can explain the final value.
type MultiplierResult struct {
	WeightedSpend decimal.Decimal
	Revenue       decimal.Decimal
	ROI           decimal.Decimal
	Raw           decimal.Decimal
	Previous      decimal.Decimal
	Smoothed      decimal.Decimal
	Final         decimal.Decimal
	Reason        string
	UpdatedAt     time.Time
}

// RecalculateMultiplier derives a new multiplier from window aggregates and
// installs it as the current value. When MCD is disabled or weighted spend
// sits below the minimum threshold the multiplier resets to neutral 1.0.
func (e *Engine) RecalculateMultiplier(now time.Time, weightedSpend, revenue decimal.Decimal) MultiplierResult {
	prev, _ := e.CurrentMultiplier()

	result := MultiplierResult{
		WeightedSpend: weightedSpend,
		Revenue:       revenue,
		Previous:      prev,
		UpdatedAt:     now,
	}

	if !e.mcdEnabled {
		result.Reason = ReasonDisabled
		return e.installMultiplier(result, decOne, decOne)
	}
	if weightedSpend.LessThan(e.minSpend) || weightedSpend.IsZero() {
		result.Reason = ReasonBelowSpend
		return e.installMultiplier(result, decOne, decOne)
	}

	roi := revenue.Div(weightedSpend)
	result.ROI = roi

	var raw decimal.Decimal
	if roi.GreaterThan(e.targetROI) {
		// Spend is earning above target: give price relief below 1.
		relief := decRelief.Mul(roi.Sub(e.targetROI)).Div(e.targetROI)
		raw = decOne.Sub(relief)
		result.Reason = ReasonROIAboveGoal
	} else {
		// Spend is underperforming: displace the cost into prices.
		increase := e.sensitivity.Mul(e.targetROI.Sub(roi)).Div(e.targetROI)
		raw = decOne.Add(increase)
		result.Reason = ReasonROIBelowGoal
	}

	decayed := decOne.Add(prev.Sub(decOne).Mul(e.decay))
	smoothed := e.smoothing.Mul(raw).Add(decOne.Sub(e.smoothing).Mul(decayed))

	return e.installMultiplier(result, raw, smoothed)
}

func (e *Engine) installMultiplier(result MultiplierResult, raw, smoothed decimal.Decimal) MultiplierResult {
	result.Raw = raw
	result.Smoothed = smoothed
	result.Final = e.clampMultiplier(smoothed).Round(3)

	next := e.state.Load().clone()
	next.multiplier = result.Final
	next.updatedAt = result.UpdatedAt
	e.state.Store(next)

	e.logger.Info().
		Time("window_start", result.UpdatedAt.Add(-e.window)).
		Str("roi", result.ROI.String()).
		Str("raw", raw.String()).
		Str("multiplier", result.Final.String()).
		Str("reason", result.Reason).
		Msg("multiplier recalculated")

	return result
}
