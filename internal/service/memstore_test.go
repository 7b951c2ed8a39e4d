package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/cache"
	"dynamic-pricing/internal/storage"
)

// memStores is an in-memory stand-in for the Postgres store, compiled
// against the same interfaces.
type memStores struct {
	spends      []storage.MarketingSpendRecord
	txns        []storage.TransactionRecord
	customers   map[string]storage.CustomerRecord
	adjustments []storage.PriceAdjustmentRecord
	referrals   []storage.ReferralActivityRecord

	aggregateCalls int
}

func newMemStores() *memStores {
	return &memStores{customers: make(map[string]storage.CustomerRecord)}
}

func (m *memStores) InsertMarketingSpend(_ context.Context, rec storage.MarketingSpendRecord) error {
	m.spends = append(m.spends, rec)
	return nil
}

func (m *memStores) SumSpendByPlatform(_ context.Context, since time.Time) ([]storage.PlatformSpend, error) {
	sums := make(map[string]decimal.Decimal)
	for _, rec := range m.spends {
		if rec.SpentAt.Before(since) {
			continue
		}
		sums[rec.Platform] = sums[rec.Platform].Add(rec.Amount)
	}
	out := make([]storage.PlatformSpend, 0, len(sums))
	for platform, amount := range sums {
		out = append(out, storage.PlatformSpend{Platform: platform, Amount: amount})
	}
	return out, nil
}

func (m *memStores) SumPlatformSpend(_ context.Context, platform string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range m.spends {
		if rec.Platform == platform && !rec.SpentAt.Before(since) {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (m *memStores) InsertTransaction(_ context.Context, rec storage.TransactionRecord) error {
	m.txns = append(m.txns, rec)
	return nil
}

func (m *memStores) SumRevenueSince(_ context.Context, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range m.txns {
		if !rec.OccurredAt.Before(since) {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (m *memStores) CustomerAggregate(_ context.Context, customerID string, since time.Time) (storage.CustomerAggregate, error) {
	m.aggregateCalls++
	agg := storage.CustomerAggregate{TotalSpend: decimal.Zero}
	for _, rec := range m.txns {
		if rec.CustomerID != customerID || rec.OccurredAt.Before(since) {
			continue
		}
		agg.TotalSpend = agg.TotalSpend.Add(rec.Amount)
		agg.VisitCount++
		occurred := rec.OccurredAt
		if agg.LastPurchaseAt == nil || occurred.After(*agg.LastPurchaseAt) {
			agg.LastPurchaseAt = &occurred
		}
	}
	return agg, nil
}

func (m *memStores) UpsertCustomer(_ context.Context, rec storage.CustomerRecord) error {
	m.customers[rec.EmailHash] = rec
	return nil
}

func (m *memStores) CustomerByHash(_ context.Context, emailHash string) (storage.CustomerRecord, error) {
	rec, ok := m.customers[emailHash]
	if !ok {
		return storage.CustomerRecord{}, storage.ErrCustomerNotFound
	}
	return rec, nil
}

func (m *memStores) CustomerByReferralCode(_ context.Context, code string) (storage.CustomerRecord, error) {
	for _, rec := range m.customers {
		if strings.EqualFold(rec.ReferralCode, code) {
			return rec, nil
		}
	}
	return storage.CustomerRecord{}, storage.ErrCustomerNotFound
}

func (m *memStores) InsertAdjustment(_ context.Context, rec storage.PriceAdjustmentRecord) (storage.PriceAdjustmentRecord, error) {
	rec.CreatedAt = time.Now().UTC()
	m.adjustments = append(m.adjustments, rec)
	return rec, nil
}

func (m *memStores) ListRecentAdjustments(_ context.Context, limit int) ([]storage.PriceAdjustmentRecord, error) {
	out := make([]storage.PriceAdjustmentRecord, 0, limit)
	for i := len(m.adjustments) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.adjustments[i])
	}
	return out, nil
}

func (m *memStores) ListAdjustmentsBetween(_ context.Context, from, to time.Time) ([]storage.PriceAdjustmentRecord, error) {
	out := make([]storage.PriceAdjustmentRecord, 0)
	for _, rec := range m.adjustments {
		if !rec.CreatedAt.Before(from) && rec.CreatedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStores) InsertReferralActivity(_ context.Context, rec storage.ReferralActivityRecord) error {
	m.referrals = append(m.referrals, rec)
	return nil
}

// memDiscountCache is an in-memory stand-in for the Redis discount cache.
type memDiscountCache struct {
	entries map[string]cache.CachedDiscount
}

func newMemDiscountCache() *memDiscountCache {
	return &memDiscountCache{entries: make(map[string]cache.CachedDiscount)}
}

func (c *memDiscountCache) GetDiscount(_ context.Context, emailHash string) (*cache.CachedDiscount, error) {
	entry, ok := c.entries[emailHash]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *memDiscountCache) SetDiscount(_ context.Context, emailHash string, entry cache.CachedDiscount) error {
	c.entries[emailHash] = entry
	return nil
}

func (c *memDiscountCache) InvalidateDiscount(_ context.Context, emailHash string) error {
	delete(c.entries, emailHash)
	return nil
}

var (
	_ cache.DiscountCache      = (*memDiscountCache)(nil)
	_ storage.SpendStore       = (*memStores)(nil)
	_ storage.TransactionStore = (*memStores)(nil)
	_ storage.CustomerStore    = (*memStores)(nil)
	_ storage.AdjustmentStore  = (*memStores)(nil)
	_ storage.ReferralStore    = (*memStores)(nil)
)
