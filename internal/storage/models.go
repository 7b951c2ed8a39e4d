package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketingSpendRecord is one append-only spend entry for a platform.
type MarketingSpendRecord struct {
	ID        string
	Platform  string
	Amount    decimal.Decimal
	Campaign  *string
	Weight    decimal.Decimal
	SpentAt   time.Time
	CreatedAt time.Time
}

// CustomerRecord holds the rolling profile keyed by the hashed email.
type CustomerRecord struct {
	ID             string
	EmailHash      string
	TotalSpend365  decimal.Decimal
	PurchaseCount  int64
	LastPurchaseAt *time.Time
	Discount       decimal.Decimal
	Segment        string
	LoyaltyTier    string
	ReferralCode   string
	ReferralCount  int64
	DiscountAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransactionRecord is one append-only purchase entry.
type TransactionRecord struct {
	ID               string
	CustomerID       string
	Amount           decimal.Decimal
	DiscountApplied  decimal.Decimal
	ReferralCode     *string
	Categories       []string
	SeasonMultiplier decimal.Decimal
	OccurredAt       time.Time
	CreatedAt        time.Time
}

// PriceAdjustmentRecord audits one multiplier recalculation.
type PriceAdjustmentRecord struct {
	ID             string
	WindowStart    time.Time
	WeightedSpend  decimal.Decimal
	Revenue        decimal.Decimal
	ROI            decimal.Decimal
	RawMultiplier  decimal.Decimal
	PrevMultiplier decimal.Decimal
	Multiplier     decimal.Decimal
	Reason         string
	CreatedAt      time.Time
}

// ReferralActivityRecord logs a successful referral bonus application.
type ReferralActivityRecord struct {
	ID           string
	ReferrerID   string
	CustomerID   string
	ReferralCode string
	Bonus        decimal.Decimal
	CreatedAt    time.Time
}

// CustomerAggregate summarises a customer's trailing transaction history.
type CustomerAggregate struct {
	TotalSpend     decimal.Decimal
	VisitCount     int64
	LastPurchaseAt *time.Time
}

// PlatformSpend is a per-platform spend sum over a window.
type PlatformSpend struct {
	Platform string
	Amount   decimal.Decimal
}
