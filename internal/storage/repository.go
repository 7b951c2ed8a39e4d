package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrCustomerNotFound indicates no customer row matched the lookup.
	ErrCustomerNotFound = errors.New("storage: customer not found")
)

const (
	insertSpendSQL = `INSERT INTO marketing_spend (
        id,
        platform,
        amount,
        campaign,
        platform_weight,
        spent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	sumSpendByPlatformSQL = `SELECT
        platform,
        COALESCE(SUM(amount), 0)
    FROM marketing_spend
    WHERE spent_at >= $1
    GROUP BY platform;`

	sumPlatformSpendSQL = `SELECT COALESCE(SUM(amount), 0)
    FROM marketing_spend
    WHERE platform = $1
      AND spent_at >= $2;`

	insertTransactionSQL = `INSERT INTO transactions (
        id,
        customer_id,
        amount,
        discount_applied,
        referral_code,
        categories,
        season_multiplier,
        occurred_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	sumRevenueSinceSQL = `SELECT COALESCE(SUM(amount), 0)
    FROM transactions
    WHERE occurred_at >= $1;`

	customerAggregateSQL = `SELECT
        COALESCE(SUM(amount), 0),
        COUNT(*),
        MAX(occurred_at)
    FROM transactions
    WHERE customer_id = $1
      AND occurred_at >= $2;`

	upsertCustomerSQL = `INSERT INTO customers (
        id,
        email_hash,
        total_spend_365,
        purchase_count,
        last_purchase_at,
        discount_pct,
        segment,
        loyalty_tier,
        referral_code,
        referral_count,
        discount_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (email_hash) DO UPDATE
    SET
        total_spend_365  = EXCLUDED.total_spend_365,
        purchase_count   = EXCLUDED.purchase_count,
        last_purchase_at = EXCLUDED.last_purchase_at,
        discount_pct     = EXCLUDED.discount_pct,
        segment          = EXCLUDED.segment,
        loyalty_tier     = EXCLUDED.loyalty_tier,
        referral_count   = EXCLUDED.referral_count,
        discount_at      = EXCLUDED.discount_at,
        updated_at       = now();`

	selectCustomerSQL = `SELECT
        id,
        email_hash,
        total_spend_365,
        purchase_count,
        last_purchase_at,
        discount_pct,
        segment,
        loyalty_tier,
        referral_code,
        referral_count,
        discount_at,
        created_at,
        updated_at
    FROM customers`

	customerByHashSQL = selectCustomerSQL + `
    WHERE email_hash = $1;`

	customerByReferralCodeSQL = selectCustomerSQL + `
    WHERE UPPER(referral_code) = UPPER($1);`

	insertAdjustmentSQL = `INSERT INTO price_adjustments (
        id,
        window_start,
        weighted_spend,
        revenue,
        roi,
        raw_multiplier,
        prev_multiplier,
        multiplier,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING created_at;`

	listRecentAdjustmentsSQL = `SELECT
        id,
        window_start,
        weighted_spend,
        revenue,
        roi,
        raw_multiplier,
        prev_multiplier,
        multiplier,
        reason,
        created_at
    FROM price_adjustments
    ORDER BY created_at DESC
    LIMIT $1;`

	listAdjustmentsBetweenSQL = `SELECT
        id,
        window_start,
        weighted_spend,
        revenue,
        roi,
        raw_multiplier,
        prev_multiplier,
        multiplier,
        reason,
        created_at
    FROM price_adjustments
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	insertReferralActivitySQL = `INSERT INTO referral_activity (
        id,
        referrer_id,
        customer_id,
        referral_code,
        bonus
    ) VALUES (
        $1,$2,$3,$4,$5
    );`
)

// SpendStore defines operations for marketing spend persistence.
type SpendStore interface {
	InsertMarketingSpend(ctx context.Context, rec MarketingSpendRecord) error
	SumSpendByPlatform(ctx context.Context, since time.Time) ([]PlatformSpend, error)
	SumPlatformSpend(ctx context.Context, platform string, since time.Time) (decimal.Decimal, error)
}

// TransactionStore defines operations for transaction persistence.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, rec TransactionRecord) error
	SumRevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	CustomerAggregate(ctx context.Context, customerID string, since time.Time) (CustomerAggregate, error)
}

// CustomerStore defines operations on customer profiles.
type CustomerStore interface {
	UpsertCustomer(ctx context.Context, rec CustomerRecord) error
	CustomerByHash(ctx context.Context, emailHash string) (CustomerRecord, error)
	CustomerByReferralCode(ctx context.Context, code string) (CustomerRecord, error)
}

// AdjustmentStore defines operations for multiplier audit records.
type AdjustmentStore interface {
	InsertAdjustment(ctx context.Context, rec PriceAdjustmentRecord) (PriceAdjustmentRecord, error)
	ListRecentAdjustments(ctx context.Context, limit int) ([]PriceAdjustmentRecord, error)
	ListAdjustmentsBetween(ctx context.Context, from, to time.Time) ([]PriceAdjustmentRecord, error)
}

// ReferralStore defines operations for referral activity auditing.
type ReferralStore interface {
	InsertReferralActivity(ctx context.Context, rec ReferralActivityRecord) error
}

// Store aggregates access to all pricing tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertMarketingSpend appends one spend record.
func (s *Store) InsertMarketingSpend(ctx context.Context, rec MarketingSpendRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var campaign interface{}
	if rec.Campaign != nil {
		campaign = *rec.Campaign
	}

	_, execErr := pool.Exec(ctx, insertSpendSQL,
		rec.ID,
		rec.Platform,
		rec.Amount.String(),
		campaign,
		rec.Weight.String(),
		rec.SpentAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert marketing spend: %w", execErr)
	}
	return nil
}

// SumSpendByPlatform sums spend per platform since the given time.
func (s *Store) SumSpendByPlatform(ctx context.Context, since time.Time) ([]PlatformSpend, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sumSpendByPlatformSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("sum spend by platform: %w", queryErr)
	}
	defer rows.Close()

	sums := make([]PlatformSpend, 0)
	for rows.Next() {
		var platform, amountStr string
		if err := rows.Scan(&platform, &amountStr); err != nil {
			return nil, err
		}
		amount, convErr := decimal.NewFromString(amountStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse platform spend: %w", convErr)
		}
		sums = append(sums, PlatformSpend{Platform: platform, Amount: amount})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sums, nil
}

// SumPlatformSpend sums raw spend for one platform since the given time.
func (s *Store) SumPlatformSpend(ctx context.Context, platform string, since time.Time) (decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Decimal{}, err
	}

	var amountStr string
	if scanErr := pool.QueryRow(ctx, sumPlatformSpendSQL, platform, since).Scan(&amountStr); scanErr != nil {
		return decimal.Decimal{}, fmt.Errorf("sum platform spend: %w", scanErr)
	}
	amount, convErr := decimal.NewFromString(amountStr)
	if convErr != nil {
		return decimal.Decimal{}, fmt.Errorf("parse platform spend: %w", convErr)
	}
	return amount, nil
}

// InsertTransaction appends one transaction record.
func (s *Store) InsertTransaction(ctx context.Context, rec TransactionRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var referral interface{}
	if rec.ReferralCode != nil {
		referral = *rec.ReferralCode
	}

	_, execErr := pool.Exec(ctx, insertTransactionSQL,
		rec.ID,
		rec.CustomerID,
		rec.Amount.String(),
		rec.DiscountApplied.String(),
		referral,
		rec.Categories,
		rec.SeasonMultiplier.String(),
		rec.OccurredAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert transaction: %w", execErr)
	}
	return nil
}

// SumRevenueSince sums transaction revenue since the given time.
func (s *Store) SumRevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Decimal{}, err
	}

	var revenueStr string
	if scanErr := pool.QueryRow(ctx, sumRevenueSinceSQL, since).Scan(&revenueStr); scanErr != nil {
		return decimal.Decimal{}, fmt.Errorf("sum revenue: %w", scanErr)
	}
	revenue, convErr := decimal.NewFromString(revenueStr)
	if convErr != nil {
		return decimal.Decimal{}, fmt.Errorf("parse revenue: %w", convErr)
	}
	return revenue, nil
}

// CustomerAggregate sums one customer's transactions since the given time.
func (s *Store) CustomerAggregate(ctx context.Context, customerID string, since time.Time) (CustomerAggregate, error) {
	pool, err := s.getPool()
	if err != nil {
		return CustomerAggregate{}, err
	}

	var (
		spendStr string
		count    int64
		last     sql.NullTime
	)
	row := pool.QueryRow(ctx, customerAggregateSQL, customerID, since)
	if scanErr := row.Scan(&spendStr, &count, &last); scanErr != nil {
		return CustomerAggregate{}, fmt.Errorf("customer aggregate: %w", scanErr)
	}

	spend, convErr := decimal.NewFromString(spendStr)
	if convErr != nil {
		return CustomerAggregate{}, fmt.Errorf("parse customer spend: %w", convErr)
	}

	agg := CustomerAggregate{TotalSpend: spend, VisitCount: count}
	if last.Valid {
		value := last.Time
		agg.LastPurchaseAt = &value
	}
	return agg, nil
}

// UpsertCustomer persists or refreshes a customer profile.
func (s *Store) UpsertCustomer(ctx context.Context, rec CustomerRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var lastPurchase interface{}
	if rec.LastPurchaseAt != nil {
		lastPurchase = *rec.LastPurchaseAt
	}
	var discountAt interface{}
	if rec.DiscountAt != nil {
		discountAt = *rec.DiscountAt
	}

	_, execErr := pool.Exec(ctx, upsertCustomerSQL,
		rec.ID,
		rec.EmailHash,
		rec.TotalSpend365.String(),
		rec.PurchaseCount,
		lastPurchase,
		rec.Discount.String(),
		rec.Segment,
		rec.LoyaltyTier,
		rec.ReferralCode,
		rec.ReferralCount,
		discountAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert customer: %w", execErr)
	}
	return nil
}

// CustomerByHash looks a customer up by hashed email.
func (s *Store) CustomerByHash(ctx context.Context, emailHash string) (CustomerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return CustomerRecord{}, err
	}
	return scanCustomer(pool.QueryRow(ctx, customerByHashSQL, emailHash))
}

// CustomerByReferralCode looks a customer up by referral code, case-insensitively.
func (s *Store) CustomerByReferralCode(ctx context.Context, code string) (CustomerRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return CustomerRecord{}, err
	}
	return scanCustomer(pool.QueryRow(ctx, customerByReferralCodeSQL, code))
}

// InsertAdjustment persists a multiplier audit record.
func (s *Store) InsertAdjustment(ctx context.Context, rec PriceAdjustmentRecord) (PriceAdjustmentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceAdjustmentRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAdjustmentSQL,
		rec.ID,
		rec.WindowStart,
		rec.WeightedSpend.String(),
		rec.Revenue.String(),
		rec.ROI.String(),
		rec.RawMultiplier.String(),
		rec.PrevMultiplier.String(),
		rec.Multiplier.String(),
		rec.Reason,
	)
	if scanErr := row.Scan(&rec.CreatedAt); scanErr != nil {
		return PriceAdjustmentRecord{}, fmt.Errorf("insert price adjustment: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAdjustments lists the most recent audit records.
func (s *Store) ListRecentAdjustments(ctx context.Context, limit int) ([]PriceAdjustmentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAdjustmentsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent adjustments: %w", queryErr)
	}
	defer rows.Close()

	return collectAdjustments(rows, limit)
}

// ListAdjustmentsBetween lists audit records within a time window.
func (s *Store) ListAdjustmentsBetween(ctx context.Context, from, to time.Time) ([]PriceAdjustmentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAdjustmentsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list adjustments between: %w", queryErr)
	}
	defer rows.Close()

	return collectAdjustments(rows, 0)
}

// InsertReferralActivity logs a referral bonus application.
func (s *Store) InsertReferralActivity(ctx context.Context, rec ReferralActivityRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertReferralActivitySQL,
		rec.ID,
		rec.ReferrerID,
		rec.CustomerID,
		rec.ReferralCode,
		rec.Bonus.String(),
	)
	if execErr != nil {
		return fmt.Errorf("insert referral activity: %w", execErr)
	}
	return nil
}

func collectAdjustments(rows pgx.Rows, capacity int) ([]PriceAdjustmentRecord, error) {
	records := make([]PriceAdjustmentRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanAdjustment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanAdjustment(rows pgx.Rows) (PriceAdjustmentRecord, error) {
	var (
		rec        PriceAdjustmentRecord
		spendStr   string
		revenueStr string
		roiStr     string
		rawStr     string
		prevStr    string
		multStr    string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.WindowStart,
		&spendStr,
		&revenueStr,
		&roiStr,
		&rawStr,
		&prevStr,
		&multStr,
		&rec.Reason,
		&rec.CreatedAt,
	); err != nil {
		return PriceAdjustmentRecord{}, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
		tag string
	}{
		{&rec.WeightedSpend, spendStr, "weighted spend"},
		{&rec.Revenue, revenueStr, "revenue"},
		{&rec.ROI, roiStr, "roi"},
		{&rec.RawMultiplier, rawStr, "raw multiplier"},
		{&rec.PrevMultiplier, prevStr, "prev multiplier"},
		{&rec.Multiplier, multStr, "multiplier"},
	}
	for _, f := range fields {
		value, convErr := decimal.NewFromString(f.src)
		if convErr != nil {
			return PriceAdjustmentRecord{}, fmt.Errorf("parse %s: %w", f.tag, convErr)
		}
		*f.dst = value
	}

	return rec, nil
}

func scanCustomer(row pgx.Row) (CustomerRecord, error) {
	var (
		rec          CustomerRecord
		spendStr     string
		discountStr  string
		lastPurchase sql.NullTime
		discountAt   sql.NullTime
	)

	if err := row.Scan(
		&rec.ID,
		&rec.EmailHash,
		&spendStr,
		&rec.PurchaseCount,
		&lastPurchase,
		&discountStr,
		&rec.Segment,
		&rec.LoyaltyTier,
		&rec.ReferralCode,
		&rec.ReferralCount,
		&discountAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerRecord{}, ErrCustomerNotFound
		}
		return CustomerRecord{}, fmt.Errorf("scan customer: %w", err)
	}

	spend, convErr := decimal.NewFromString(spendStr)
	if convErr != nil {
		return CustomerRecord{}, fmt.Errorf("parse customer spend: %w", convErr)
	}
	discount, convErr := decimal.NewFromString(discountStr)
	if convErr != nil {
		return CustomerRecord{}, fmt.Errorf("parse customer discount: %w", convErr)
	}

	rec.TotalSpend365 = spend
	rec.Discount = discount
	if lastPurchase.Valid {
		value := lastPurchase.Time
		rec.LastPurchaseAt = &value
	}
	if discountAt.Valid {
		value := discountAt.Time
		rec.DiscountAt = &value
	}
	return rec, nil
}
