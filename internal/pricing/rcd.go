package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	decSpendNorm   = decimal.NewFromInt(1000)
	decVisitNorm   = decimal.NewFromInt(10)
	decRecencyDays = decimal.NewFromInt(30)
	decHoursPerDay = decimal.NewFromInt(24)
)

// DiscountInput is the trailing-365-day aggregate the calculator consumes.
type DiscountInput struct {
	TotalSpend     decimal.Decimal
	VisitCount     int64
	LastPurchaseAt *time.Time
}

// DiscountResult is the computed discount plus classification side outputs.
type DiscountResult struct {
	Discount    decimal.Decimal
	Base        decimal.Decimal
	Season      string
	Seasonal    decimal.Decimal
	Segment     string
	LoyaltyTier string
	ComputedAt  time.Time
}

// ComputeDiscount derives the returning-customer discount percentage from a
// customer's trailing aggregates. Customers below the configured spend or
// visit minimums always get zero; otherwise the three weighted components are
// averaged, scaled by the seasonal multiplier, clamped, and rounded.
func (e *Engine) ComputeDiscount(in DiscountInput, now time.Time) DiscountResult {
	season, seasonal := e.SeasonalMultiplier(now)

	result := DiscountResult{
		Discount:    decimal.Zero,
		Season:      season,
		Seasonal:    seasonal,
		Segment:     e.SegmentFor(in.TotalSpend, in.VisitCount),
		LoyaltyTier: e.TierFor(in.TotalSpend),
		ComputedAt:  now,
	}

	if !e.rcdEnabled {
		return result
	}
	if in.TotalSpend.LessThan(e.minRCDSpend) || in.VisitCount < e.minRCDVisits {
		return result
	}

	weightSum := e.spendWeight.Add(e.freqWeight).Add(e.recWeight)
	if weightSum.IsZero() {
		return result
	}

	spendComponent := capAtOne(in.TotalSpend.Div(decSpendNorm)).Mul(e.spendWeight)
	freqComponent := capAtOne(decimal.NewFromInt(in.VisitCount).Div(decVisitNorm)).Mul(e.freqWeight)
	recComponent := recencyFactor(in.LastPurchaseAt, now).Mul(e.recWeight)

	base := spendComponent.Add(freqComponent).Add(recComponent).Div(weightSum)
	result.Base = base

	discount := base.Mul(seasonal).Mul(decHundred)
	result.Discount = e.clampDiscount(discount).Round(2)
	return result
}

// recencyFactor decays linearly from 1 to 0 over thirty days since the last
// purchase. No purchase history means no recency credit.
func recencyFactor(lastPurchase *time.Time, now time.Time) decimal.Decimal {
	if lastPurchase == nil {
		return decimal.Zero
	}
	hours := decimal.NewFromFloat(now.Sub(*lastPurchase).Hours())
	if hours.IsNegative() {
		return decOne
	}
	days := hours.Div(decHoursPerDay)
	factor := decOne.Sub(days.Div(decRecencyDays))
	if factor.IsNegative() {
		return decimal.Zero
	}
	return factor
}

func capAtOne(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decOne) {
		return decOne
	}
	return d
}
