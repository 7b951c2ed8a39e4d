package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/service"
)

var seedPlatforms = []string{"google_ads", "facebook", "instagram", "tiktok", "email"}

// Seed pushes synthetic spends and transactions through the real service
// path so a fresh environment has data for the dashboard to read.
func (a *App) Seed(ctx context.Context, opts SeedOptions) error {
	if opts.Customers <= 0 {
		return errors.New("--customers must be greater than zero")
	}
	if opts.Days <= 0 {
		return errors.New("--days must be greater than zero")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot seed")
	}
	defer closeStore()

	svc, err := a.newService(store, nil)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(42))
	now := time.Now().UTC()

	spends := 0
	for day := 0; day < opts.Days; day++ {
		spentAt := now.Add(-time.Duration(opts.Days-1-day) * 24 * time.Hour)
		for _, platform := range seedPlatforms {
			amount := decimal.NewFromFloat(50 + rng.Float64()*450).Round(2)
			if _, err := svc.RecordSpend(ctx, service.SpendInput{
				Platform: platform,
				Amount:   amount,
				Campaign: fmt.Sprintf("seed-%s-day%d", platform, day),
				SpentAt:  &spentAt,
			}); err != nil {
				return fmt.Errorf("seed spend: %w", err)
			}
			spends++
		}
	}

	txns := 0
	for i := 0; i < opts.Customers; i++ {
		email := fmt.Sprintf("customer%03d@example.com", i)
		purchases := 1 + rng.Intn(8)
		for p := 0; p < purchases; p++ {
			amount := decimal.NewFromFloat(20 + rng.Float64()*380).Round(2)
			occurredAt := now.Add(-time.Duration(rng.Intn(opts.Days*24)) * time.Hour)
			if _, err := svc.RecordTransaction(ctx, service.TransactionInput{
				Email:      email,
				Amount:     amount,
				Categories: []string{seedCategory(rng)},
				OccurredAt: &occurredAt,
			}); err != nil {
				return fmt.Errorf("seed transaction: %w", err)
			}
			txns++
		}
	}

	// Force one recalculation so the audit trail has a starting point.
	status, err := svc.CurrentMultiplier(ctx)
	if err != nil {
		return fmt.Errorf("seed multiplier: %w", err)
	}

	a.Logger.Info().
		Int("spends", spends).
		Int("transactions", txns).
		Str("multiplier", status.Multiplier.String()).
		Msg("seed data generated")
	return nil
}

func seedCategory(rng *rand.Rand) string {
	categories := []string{"electronics", "apparel", "home", "beauty", "sports"}
	return categories[rng.Intn(len(categories))]
}
