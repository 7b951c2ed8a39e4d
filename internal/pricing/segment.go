package pricing

import "github.com/shopspring/decimal"

// Customer segments, coarse to fine.
const (
	SegmentNew        = "new"
	SegmentOccasional = "occasional"
	SegmentFrequent   = "frequent"
	SegmentLoyal      = "loyal"
	SegmentVIP        = "vip"
)

// Loyalty tiers, spend-based only.
const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
)

const frequentVisitFloor = 5

// SegmentFor classifies a customer from trailing aggregates.
func (e *Engine) SegmentFor(spend decimal.Decimal, visits int64) string {
	switch {
	case visits == 0:
		return SegmentNew
	case spend.GreaterThan(e.tierTwo):
		return SegmentVIP
	case spend.GreaterThan(e.tierOne):
		return SegmentLoyal
	case visits > frequentVisitFloor:
		return SegmentFrequent
	default:
		return SegmentOccasional
	}
}

// TierFor ranks a customer on the three-level loyalty ladder.
func (e *Engine) TierFor(spend decimal.Decimal) string {
	switch {
	case spend.GreaterThan(e.tierTwo):
		return TierGold
	case spend.GreaterThan(e.tierOne):
		return TierSilver
	default:
		return TierBronze
	}
}
