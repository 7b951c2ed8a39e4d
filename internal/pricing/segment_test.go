package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSegmentLadder(t *testing.T) {
	engine := newTestEngine(t, nil)

	cases := []struct {
		spend   int64
		visits  int64
		segment string
	}{
		{0, 0, SegmentNew},
		{100, 3, SegmentOccasional},
		{100, 6, SegmentFrequent},
		{600, 2, SegmentLoyal},
		{2500, 1, SegmentVIP},
		{500, 2, SegmentOccasional},  // threshold is exclusive
		{2500, 10, SegmentVIP},       // spend outranks visits
	}

	for _, tc := range cases {
		got := engine.SegmentFor(decimal.NewFromInt(tc.spend), tc.visits)
		if got != tc.segment {
			t.Errorf("SegmentFor(%d, %d) = %q, want %q", tc.spend, tc.visits, got, tc.segment)
		}
	}
}

func TestLoyaltyTiers(t *testing.T) {
	engine := newTestEngine(t, nil)

	cases := []struct {
		spend int64
		tier  string
	}{
		{0, TierBronze},
		{500, TierBronze},
		{501, TierSilver},
		{2000, TierSilver},
		{2001, TierGold},
	}

	for _, tc := range cases {
		got := engine.TierFor(decimal.NewFromInt(tc.spend))
		if got != tc.tier {
			t.Errorf("TierFor(%d) = %q, want %q", tc.spend, got, tc.tier)
		}
	}
}
