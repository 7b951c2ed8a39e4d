package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComposePriceAnonymous(t *testing.T) {
	engine := newTestEngine(t, nil)

	quote := engine.ComposePrice(decimal.NewFromInt(100), decimal.NewFromFloat(1.08), decimal.Zero, "")

	if !quote.FinalPrice.Equal(decimal.NewFromInt(108)) {
		t.Fatalf("expected final price 108, got %s", quote.FinalPrice)
	}
	if !quote.DiscountPct.IsZero() || !quote.DiscountAmount.IsZero() {
		t.Fatalf("anonymous quote should carry zero discount fields: %s / %s", quote.DiscountPct, quote.DiscountAmount)
	}
	if !quote.Multiplier.Equal(decimal.NewFromFloat(1.08)) {
		t.Fatalf("unexpected multiplier %s", quote.Multiplier)
	}
}

func TestComposePriceMarginFloor(t *testing.T) {
	engine := newTestEngine(t, nil)

	// 100 * 0.85 = 85, 25% off would be 63.75, floored at 70.
	quote := engine.ComposePrice(decimal.NewFromInt(100), decimal.NewFromFloat(0.85), decimal.NewFromInt(25), "")

	if !quote.FinalPrice.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected floor at 70, got %s", quote.FinalPrice)
	}
	if !quote.DiscountAmount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected discount amount 15, got %s", quote.DiscountAmount)
	}
}

func TestComposePriceCategoryWeight(t *testing.T) {
	engine := newTestEngine(t, nil)

	// electronics weight 0.8 scales a 10% discount down to 8%.
	quote := engine.ComposePrice(decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(10), "electronics")

	if !quote.DiscountPct.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected effective discount 8, got %s", quote.DiscountPct)
	}
	if !quote.FinalPrice.Equal(decimal.NewFromInt(92)) {
		t.Fatalf("expected final price 92, got %s", quote.FinalPrice)
	}
}

func TestComposePriceRounding(t *testing.T) {
	engine := newTestEngine(t, nil)

	quote := engine.ComposePrice(decimal.NewFromFloat(99.99), decimal.NewFromFloat(1.1234), decimal.Zero, "")

	if quote.Multiplier.Exponent() < -3 {
		t.Fatalf("multiplier should round to 3 places, got %s", quote.Multiplier)
	}
	if !quote.FinalPrice.Equal(decimal.NewFromFloat(112.33)) {
		t.Fatalf("expected final price 112.33, got %s", quote.FinalPrice)
	}
}
