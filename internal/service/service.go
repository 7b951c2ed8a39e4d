package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/cache"
	"dynamic-pricing/internal/config"
	"dynamic-pricing/internal/logging"
	"dynamic-pricing/internal/pricing"
	"dynamic-pricing/internal/storage"
)

// Validation errors surfaced verbatim to the boundary layer.
var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrMissingPlatform  = errors.New("platform is required")
	ErrMissingEmail     = errors.New("email is required")
	ErrInvalidBasePrice = errors.New("base price must be greater than zero")
)

const (
	customerWindow = 365 * 24 * time.Hour
	discountMaxAge = 24 * time.Hour
)

// Stores bundles the persistence collaborators the service needs.
type Stores struct {
	Spends      storage.SpendStore
	Txns        storage.TransactionStore
	Customers   storage.CustomerStore
	Adjustments storage.AdjustmentStore
	Referrals   storage.ReferralStore
}

// Service orchestrates validation, aggregate reads, engine computation, and
// persistence writes. Each operation is a single synchronous chain.
type Service struct {
	engine    *pricing.Engine
	cfg       config.PricingConfig
	stores    Stores
	discounts cache.DiscountCache
	logger    zerolog.Logger
	now       func() time.Time
}

// New wires the engine and its collaborators into a Service.
func New(cfg config.PricingConfig, engine *pricing.Engine, stores Stores, discounts cache.DiscountCache, logger zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		cfg:       cfg,
		stores:    stores,
		discounts: discounts,
		logger:    logging.Component(logger, "service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Engine exposes the underlying engine, mostly for bootstrap restoration.
func (s *Service) Engine() *pricing.Engine {
	return s.engine
}

// RestoreMultiplier seeds engine state from the latest audit record, if any.
func (s *Service) RestoreMultiplier(ctx context.Context) error {
	if s.stores.Adjustments == nil {
		return nil
	}
	records, err := s.stores.Adjustments.ListRecentAdjustments(ctx, 1)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil
		}
		return err
	}
	if len(records) == 0 {
		return nil
	}
	s.engine.Restore(records[0].Multiplier, records[0].CreatedAt)
	multiplier, updatedAt := s.engine.CurrentMultiplier()
	s.logger.Info().
		Str("multiplier", multiplier.String()).
		Time("updated_at", updatedAt).
		Msg("multiplier state restored")
	return nil
}

// SpendInput is a marketing spend submission.
type SpendInput struct {
	Platform string
	Amount   decimal.Decimal
	Campaign string
	SpentAt  *time.Time
}

// SpendResult reports the stored record and the weight applied to it.
type SpendResult struct {
	Record         storage.MarketingSpendRecord
	PlatformWeight decimal.Decimal
}

// RecordSpend validates and appends a marketing spend record, then lets the
// optimizer tune the platform weight from realized ROI.
func (s *Service) RecordSpend(ctx context.Context, in SpendInput) (SpendResult, error) {
	if in.Platform == "" {
		return SpendResult{}, ErrMissingPlatform
	}
	if !in.Amount.IsPositive() {
		return SpendResult{}, ErrInvalidAmount
	}

	now := s.now()
	spentAt := now
	if in.SpentAt != nil {
		spentAt = in.SpentAt.UTC()
	}

	rec := storage.MarketingSpendRecord{
		ID:       uuid.NewString(),
		Platform: in.Platform,
		Amount:   in.Amount,
		Weight:   s.engine.PlatformWeight(in.Platform),
		SpentAt:  spentAt,
	}
	if in.Campaign != "" {
		campaign := in.Campaign
		rec.Campaign = &campaign
	}

	if err := s.stores.Spends.InsertMarketingSpend(ctx, rec); err != nil {
		return SpendResult{}, err
	}

	weight := s.tunePlatform(ctx, in.Platform, now)

	s.logger.Info().
		Str("platform", in.Platform).
		Str("amount", in.Amount.String()).
		Str("weight", weight.String()).
		Msg("marketing spend recorded")

	return SpendResult{Record: rec, PlatformWeight: weight}, nil
}

// tunePlatform feeds the platform's realized ROI back into its weight.
// Revenue is not attributed per platform, so window revenue over the
// platform's raw spend stands in for realized ROI.
func (s *Service) tunePlatform(ctx context.Context, platform string, now time.Time) decimal.Decimal {
	since := now.Add(-s.engine.UpdateWindow())

	spend, err := s.stores.Spends.SumPlatformSpend(ctx, platform, since)
	if err != nil {
		s.logger.Error().Err(err).Str("platform", platform).Msg("failed to aggregate platform spend")
		return s.engine.PlatformWeight(platform)
	}
	if spend.IsZero() {
		return s.engine.PlatformWeight(platform)
	}

	revenue, err := s.stores.Txns.SumRevenueSince(ctx, since)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to aggregate revenue for weight tuning")
		return s.engine.PlatformWeight(platform)
	}

	return s.engine.TuneWeight(platform, revenue.Div(spend))
}

// TransactionInput is a purchase submission.
type TransactionInput struct {
	Email        string
	Amount       decimal.Decimal
	ReferralCode string
	Categories   []string
	OccurredAt   *time.Time
}

// TransactionResult reports the stored transaction and the refreshed
// customer snapshot.
type TransactionResult struct {
	Transaction storage.TransactionRecord
	Customer    storage.CustomerRecord
	Discount    pricing.DiscountResult
}

// RecordTransaction validates and appends a transaction, processes any
// referral code, and refreshes the customer's rolling profile and discount.
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (TransactionResult, error) {
	if in.Email == "" {
		return TransactionResult{}, ErrMissingEmail
	}
	if !in.Amount.IsPositive() {
		return TransactionResult{}, ErrInvalidAmount
	}

	now := s.now()
	occurredAt := now
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}

	customer, err := s.ensureCustomer(ctx, pricing.CustomerKey(in.Email))
	if err != nil {
		return TransactionResult{}, err
	}

	season, seasonal := s.engine.SeasonalMultiplier(occurredAt)

	txn := storage.TransactionRecord{
		ID:               uuid.NewString(),
		CustomerID:       customer.ID,
		Amount:           in.Amount,
		DiscountApplied:  customer.Discount,
		Categories:       in.Categories,
		SeasonMultiplier: seasonal,
		OccurredAt:       occurredAt,
	}
	if in.ReferralCode != "" {
		code := in.ReferralCode
		txn.ReferralCode = &code
	}

	if err := s.stores.Txns.InsertTransaction(ctx, txn); err != nil {
		return TransactionResult{}, err
	}

	if in.ReferralCode != "" {
		s.processReferral(ctx, customer, in.ReferralCode)
	}

	refreshed, result, err := s.refreshCustomer(ctx, customer, now)
	if err != nil {
		return TransactionResult{}, err
	}

	s.logger.Info().
		Str("customer", refreshed.EmailHash).
		Str("amount", in.Amount.String()).
		Str("season", season).
		Str("discount", result.Discount.String()).
		Msg("transaction recorded")

	return TransactionResult{Transaction: txn, Customer: refreshed, Discount: result}, nil
}

// ensureCustomer fetches the profile or creates a fresh one for the hash.
func (s *Service) ensureCustomer(ctx context.Context, emailHash string) (storage.CustomerRecord, error) {
	customer, err := s.stores.Customers.CustomerByHash(ctx, emailHash)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, storage.ErrCustomerNotFound) {
		return storage.CustomerRecord{}, err
	}

	customer = storage.CustomerRecord{
		ID:            uuid.NewString(),
		EmailHash:     emailHash,
		TotalSpend365: decimal.Zero,
		Discount:      decimal.Zero,
		Segment:       pricing.SegmentNew,
		LoyaltyTier:   pricing.TierBronze,
		ReferralCode:  pricing.NewReferralCode(),
	}
	if err := s.stores.Customers.UpsertCustomer(ctx, customer); err != nil {
		return storage.CustomerRecord{}, err
	}
	return customer, nil
}

// processReferral applies the flat bonus to the referrer's stored discount.
// Unknown codes and self-referrals are no-ops. Failures here never fail the
// purchase itself.
func (s *Service) processReferral(ctx context.Context, purchaser storage.CustomerRecord, code string) {
	referrer, err := s.stores.Customers.CustomerByReferralCode(ctx, code)
	if err != nil {
		if !errors.Is(err, storage.ErrCustomerNotFound) {
			s.logger.Error().Err(err).Msg("referral lookup failed")
		}
		return
	}
	if referrer.ID == purchaser.ID {
		s.logger.Debug().Str("code", code).Msg("self-referral ignored")
		return
	}

	bonus := s.engine.ReferralBonus()
	boosted := referrer.Discount.Add(bonus)
	if boosted.GreaterThan(s.engine.MaxDiscount()) {
		boosted = s.engine.MaxDiscount()
	}
	referrer.Discount = boosted
	referrer.ReferralCount++

	if err := s.stores.Customers.UpsertCustomer(ctx, referrer); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist referral bonus")
		return
	}

	activity := storage.ReferralActivityRecord{
		ID:           uuid.NewString(),
		ReferrerID:   referrer.ID,
		CustomerID:   purchaser.ID,
		ReferralCode: referrer.ReferralCode,
		Bonus:        bonus,
	}
	if err := s.stores.Referrals.InsertReferralActivity(ctx, activity); err != nil {
		s.logger.Error().Err(err).Msg("failed to log referral activity")
	}

	s.invalidateCachedDiscount(ctx, referrer.EmailHash)

	s.logger.Info().
		Str("referrer", referrer.EmailHash).
		Str("code", code).
		Str("bonus", bonus.String()).
		Msg("referral bonus applied")
}

// refreshCustomer recomputes aggregates, discount, segment, and tier, and
// persists the updated profile.
func (s *Service) refreshCustomer(ctx context.Context, customer storage.CustomerRecord, now time.Time) (storage.CustomerRecord, pricing.DiscountResult, error) {
	agg, err := s.stores.Txns.CustomerAggregate(ctx, customer.ID, now.Add(-customerWindow))
	if err != nil {
		return storage.CustomerRecord{}, pricing.DiscountResult{}, err
	}

	result := s.engine.ComputeDiscount(pricing.DiscountInput{
		TotalSpend:     agg.TotalSpend,
		VisitCount:     agg.VisitCount,
		LastPurchaseAt: agg.LastPurchaseAt,
	}, now)

	customer.TotalSpend365 = agg.TotalSpend
	customer.PurchaseCount = agg.VisitCount
	customer.LastPurchaseAt = agg.LastPurchaseAt
	customer.Discount = result.Discount
	customer.Segment = result.Segment
	customer.LoyaltyTier = result.LoyaltyTier
	computedAt := result.ComputedAt
	customer.DiscountAt = &computedAt

	if err := s.stores.Customers.UpsertCustomer(ctx, customer); err != nil {
		return storage.CustomerRecord{}, pricing.DiscountResult{}, err
	}

	s.cacheDiscount(ctx, customer, result)
	return customer, result, nil
}

// DiscountSnapshot is the read surface for a customer's current discount.
type DiscountSnapshot struct {
	Discount     decimal.Decimal
	Segment      string
	LoyaltyTier  string
	ReferralCode string
	ComputedAt   time.Time
	FromCache    bool
}

// CustomerDiscount serves the cached discount when fresh, recomputing once
// the 24-hour window lapses.
func (s *Service) CustomerDiscount(ctx context.Context, email string) (DiscountSnapshot, error) {
	if email == "" {
		return DiscountSnapshot{}, ErrMissingEmail
	}
	emailHash := pricing.CustomerKey(email)
	now := s.now()

	if s.discounts != nil {
		entry, err := s.discounts.GetDiscount(ctx, emailHash)
		if err != nil {
			s.logger.Warn().Err(err).Msg("discount cache read failed")
		} else if entry != nil && now.Sub(entry.ComputedAt) < discountMaxAge {
			return DiscountSnapshot{
				Discount:     entry.Discount,
				Segment:      entry.Segment,
				LoyaltyTier:  entry.LoyaltyTier,
				ReferralCode: entry.ReferralCode,
				ComputedAt:   entry.ComputedAt,
				FromCache:    true,
			}, nil
		}
	}

	customer, err := s.stores.Customers.CustomerByHash(ctx, emailHash)
	if err != nil {
		return DiscountSnapshot{}, err
	}

	if customer.DiscountAt != nil && now.Sub(*customer.DiscountAt) < discountMaxAge {
		return DiscountSnapshot{
			Discount:     customer.Discount,
			Segment:      customer.Segment,
			LoyaltyTier:  customer.LoyaltyTier,
			ReferralCode: customer.ReferralCode,
			ComputedAt:   *customer.DiscountAt,
		}, nil
	}

	refreshed, result, err := s.refreshCustomer(ctx, customer, now)
	if err != nil {
		return DiscountSnapshot{}, err
	}
	return DiscountSnapshot{
		Discount:     result.Discount,
		Segment:      result.Segment,
		LoyaltyTier:  result.LoyaltyTier,
		ReferralCode: refreshed.ReferralCode,
		ComputedAt:   result.ComputedAt,
	}, nil
}

func (s *Service) cacheDiscount(ctx context.Context, customer storage.CustomerRecord, result pricing.DiscountResult) {
	if s.discounts == nil {
		return
	}
	entry := cache.CachedDiscount{
		Discount:     result.Discount,
		Segment:      result.Segment,
		LoyaltyTier:  result.LoyaltyTier,
		ReferralCode: customer.ReferralCode,
		ComputedAt:   result.ComputedAt,
	}
	if err := s.discounts.SetDiscount(ctx, customer.EmailHash, entry); err != nil {
		s.logger.Warn().Err(err).Msg("discount cache write failed")
	}
}

func (s *Service) invalidateCachedDiscount(ctx context.Context, emailHash string) {
	if s.discounts == nil {
		return
	}
	if err := s.discounts.InvalidateDiscount(ctx, emailHash); err != nil {
		s.logger.Warn().Err(err).Msg("discount cache invalidation failed")
	}
}

// MultiplierStatus reports the held multiplier and its provenance.
type MultiplierStatus struct {
	Multiplier   decimal.Decimal
	UpdatedAt    time.Time
	Recalculated bool
}

// CurrentMultiplier serves the held multiplier, recalculating first when the
// debounce window has lapsed. The guard runs on every read; there is no
// background refresh.
func (s *Service) CurrentMultiplier(ctx context.Context) (MultiplierStatus, error) {
	now := s.now()
	if !s.engine.ShouldRecalculate(now) {
		multiplier, updatedAt := s.engine.CurrentMultiplier()
		return MultiplierStatus{Multiplier: multiplier, UpdatedAt: updatedAt}, nil
	}

	since := now.Add(-s.engine.UpdateWindow())

	sums, err := s.stores.Spends.SumSpendByPlatform(ctx, since)
	if err != nil {
		return MultiplierStatus{}, err
	}
	revenue, err := s.stores.Txns.SumRevenueSince(ctx, since)
	if err != nil {
		return MultiplierStatus{}, err
	}

	result := s.engine.RecalculateMultiplier(now, s.engine.WeightedSpend(sums), revenue)

	audit := storage.PriceAdjustmentRecord{
		ID:             uuid.NewString(),
		WindowStart:    since,
		WeightedSpend:  result.WeightedSpend,
		Revenue:        result.Revenue,
		ROI:            result.ROI,
		RawMultiplier:  result.Raw,
		PrevMultiplier: result.Previous,
		Multiplier:     result.Final,
		Reason:         result.Reason,
	}
	if _, err := s.stores.Adjustments.InsertAdjustment(ctx, audit); err != nil {
		// Audit is informational; the fresh multiplier still serves.
		s.logger.Error().Err(err).Msg("failed to persist price adjustment")
	}

	return MultiplierStatus{Multiplier: result.Final, UpdatedAt: now, Recalculated: true}, nil
}

// PriceInput is a price quote request.
type PriceInput struct {
	BasePrice decimal.Decimal
	Email     string
	Category  string
}

// PriceResult pairs the quote with the discount snapshot that shaped it.
type PriceResult struct {
	Quote    pricing.Quote
	Discount DiscountSnapshot
}

// CalculatePrice composes a final price from the current multiplier and,
// when an email is supplied, the customer's discount. Unknown customers
// price as anonymous.
func (s *Service) CalculatePrice(ctx context.Context, in PriceInput) (PriceResult, error) {
	if !in.BasePrice.IsPositive() {
		return PriceResult{}, ErrInvalidBasePrice
	}

	status, err := s.CurrentMultiplier(ctx)
	if err != nil {
		return PriceResult{}, err
	}

	var snapshot DiscountSnapshot
	if in.Email != "" {
		snapshot, err = s.CustomerDiscount(ctx, in.Email)
		if err != nil {
			if !errors.Is(err, storage.ErrCustomerNotFound) {
				return PriceResult{}, err
			}
			snapshot = DiscountSnapshot{Discount: decimal.Zero}
		}
	}

	quote := s.engine.ComposePrice(in.BasePrice, status.Multiplier, snapshot.Discount, in.Category)
	return PriceResult{Quote: quote, Discount: snapshot}, nil
}

// RecentAdjustments lists the latest audit records.
func (s *Service) RecentAdjustments(ctx context.Context, limit int) ([]storage.PriceAdjustmentRecord, error) {
	return s.stores.Adjustments.ListRecentAdjustments(ctx, limit)
}

// EffectiveConfig exposes the pricing parameters plus live platform weights,
// the read surface for the configuration dashboard.
func (s *Service) EffectiveConfig() (config.PricingConfig, map[string]decimal.Decimal) {
	return s.cfg, s.engine.PlatformWeights()
}
