package pricing

import "github.com/shopspring/decimal"

// Floor under the final price relative to the original base, the minimum
// margin guard.
var decMarginFloor = decimal.NewFromFloat(0.70)

// Quote is the full breakdown of one composed price.
type Quote struct {
	BasePrice      decimal.Decimal
	Multiplier     decimal.Decimal
	DiscountPct    decimal.Decimal
	AdjustedPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

// ComposePrice applies the multiplier to the base price, then the
// category-weighted discount, then the 70% margin floor. Monetary figures are
// rounded to 2 places, the multiplier to 3.
func (e *Engine) ComposePrice(base, multiplier, discount decimal.Decimal, category string) Quote {
	effective := e.clampDiscount(discount.Mul(e.CategoryWeight(category)))

	adjusted := base.Mul(multiplier)
	discounted := adjusted.Mul(decOne.Sub(effective.Div(decHundred)))

	floor := base.Mul(decMarginFloor)
	final := discounted
	if final.LessThan(floor) {
		final = floor
	}

	adjusted = adjusted.Round(2)
	final = final.Round(2)

	amount := adjusted.Sub(final)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Quote{
		BasePrice:      base.Round(2),
		Multiplier:     multiplier.Round(3),
		DiscountPct:    effective.Round(2),
		AdjustedPrice:  adjusted,
		DiscountAmount: amount.Round(2),
		FinalPrice:     final,
	}
}
