package pricing

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/config"
	"dynamic-pricing/internal/logging"
	"dynamic-pricing/internal/storage"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
	decRelief  = decimal.NewFromFloat(0.1)
)

// engineState is the mutable cross-call state, replaced wholesale on every
// update. Readers work from a point-in-time snapshot; staleness between
// concurrent updates is acceptable, last write wins.
type engineState struct {
	multiplier decimal.Decimal
	updatedAt  time.Time
	weights    map[string]decimal.Decimal
}

func (s *engineState) clone() *engineState {
	weights := make(map[string]decimal.Decimal, len(s.weights))
	for platform, w := range s.weights {
		weights[platform] = w
	}
	return &engineState{
		multiplier: s.multiplier,
		updatedAt:  s.updatedAt,
		weights:    weights,
	}
}

// Engine computes multipliers, discounts, and final prices from aggregate
// business metrics. Construction-time configuration is immutable; only the
// multiplier and the per-platform weights evolve.
type Engine struct {
	mcdEnabled  bool
	window      time.Duration
	targetROI   decimal.Decimal
	sensitivity decimal.Decimal
	smoothing   decimal.Decimal
	decay       decimal.Decimal
	minMult     decimal.Decimal
	maxMult     decimal.Decimal
	minSpend    decimal.Decimal

	rcdEnabled    bool
	maxDiscount   decimal.Decimal
	spendWeight   decimal.Decimal
	freqWeight    decimal.Decimal
	recWeight     decimal.Decimal
	minRCDSpend   decimal.Decimal
	minRCDVisits  int64
	tierOne       decimal.Decimal
	tierTwo       decimal.Decimal
	referralBonus decimal.Decimal
	seasonal      map[string]decimal.Decimal
	categories    map[string]decimal.Decimal

	optEnabled   bool
	learningRate decimal.Decimal
	minWeight    decimal.Decimal
	maxWeight    decimal.Decimal

	state  atomic.Pointer[engineState]
	logger zerolog.Logger
}

// New constructs an engine from the nested pricing configuration.
func New(cfg config.PricingConfig, logger zerolog.Logger) (*Engine, error) {
	window, err := cfg.MCD.UpdateWindow()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		mcdEnabled:  cfg.MCD.Enabled,
		window:      window,
		targetROI:   decimal.NewFromFloat(cfg.MCD.TargetROI),
		sensitivity: decimal.NewFromFloat(cfg.MCD.Sensitivity),
		smoothing:   decimal.NewFromFloat(cfg.MCD.SmoothingFactor),
		decay:       decimal.NewFromFloat(cfg.MCD.DecayFactor),
		minMult:     decimal.NewFromFloat(cfg.MCD.MinMultiplier),
		maxMult:     decimal.NewFromFloat(cfg.MCD.MaxMultiplier),
		minSpend:    decimal.NewFromFloat(cfg.MCD.MinimumSpendThreshold),

		rcdEnabled:    cfg.RCD.Enabled,
		maxDiscount:   decimal.NewFromFloat(cfg.RCD.MaxDiscount),
		spendWeight:   decimal.NewFromFloat(cfg.RCD.SpendWeight),
		freqWeight:    decimal.NewFromFloat(cfg.RCD.FrequencyWeight),
		recWeight:     decimal.NewFromFloat(cfg.RCD.RecencyWeight),
		minRCDSpend:   decimal.NewFromFloat(cfg.RCD.MinSpend),
		minRCDVisits:  int64(cfg.RCD.MinVisits),
		tierOne:       decimal.NewFromFloat(cfg.RCD.TierOneThreshold),
		tierTwo:       decimal.NewFromFloat(cfg.RCD.TierTwoThreshold),
		referralBonus: decimal.NewFromFloat(cfg.RCD.ReferralBonus),
		seasonal:      toDecimalMap(cfg.RCD.SeasonalMultipliers),
		categories:    toDecimalMap(cfg.RCD.CategoryWeights),

		optEnabled:   cfg.Optimizer.Enabled,
		learningRate: decimal.NewFromFloat(cfg.Optimizer.LearningRate),
		minWeight:    decimal.NewFromFloat(cfg.Optimizer.MinWeight),
		maxWeight:    decimal.NewFromFloat(cfg.Optimizer.MaxWeight),

		logger: logging.Component(logger, "pricing_engine"),
	}

	e.state.Store(&engineState{
		multiplier: decOne,
		weights:    toDecimalMap(cfg.MCD.PlatformWeights),
	})
	return e, nil
}

func toDecimalMap(src map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(src))
	for key, value := range src {
		out[key] = decimal.NewFromFloat(value)
	}
	return out
}

// Restore seeds the multiplier state, typically from the latest audit record.
// A disabled engine ignores the seed and keeps serving neutral 1.0.
func (e *Engine) Restore(multiplier decimal.Decimal, updatedAt time.Time) {
	if !e.mcdEnabled {
		return
	}
	next := e.state.Load().clone()
	next.multiplier = e.clampMultiplier(multiplier)
	next.updatedAt = updatedAt
	e.state.Store(next)
}

// CurrentMultiplier returns the held multiplier and its update timestamp.
func (e *Engine) CurrentMultiplier() (decimal.Decimal, time.Time) {
	s := e.state.Load()
	return s.multiplier, s.updatedAt
}

// UpdateWindow is the configured recalculation window.
func (e *Engine) UpdateWindow() time.Duration {
	return e.window
}

// ShouldRecalculate reports whether enough time elapsed since the last
// multiplier update. The debounce is pull-based: callers evaluate it before
// every multiplier read rather than scheduling background work.
func (e *Engine) ShouldRecalculate(now time.Time) bool {
	if !e.mcdEnabled {
		return false
	}
	s := e.state.Load()
	if s.updatedAt.IsZero() {
		return true
	}
	return now.Sub(s.updatedAt) > e.window
}

// PlatformWeight returns the current weight for a platform, defaulting to 1.
func (e *Engine) PlatformWeight(platform string) decimal.Decimal {
	if w, ok := e.state.Load().weights[platform]; ok {
		return w
	}
	return decOne
}

// PlatformWeights returns a copy of the current weight table.
func (e *Engine) PlatformWeights() map[string]decimal.Decimal {
	return e.state.Load().clone().weights
}

// WeightedSpend applies current platform weights to raw per-platform sums.
func (e *Engine) WeightedSpend(sums []storage.PlatformSpend) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range sums {
		total = total.Add(entry.Amount.Mul(e.PlatformWeight(entry.Platform)))
	}
	return total
}

// MaxDiscount is the configured discount ceiling in percent.
func (e *Engine) MaxDiscount() decimal.Decimal {
	return e.maxDiscount
}

// ReferralBonus is the flat percentage added to a referrer's discount.
func (e *Engine) ReferralBonus() decimal.Decimal {
	return e.referralBonus
}

// CategoryWeight scales the discount for a product category, defaulting to 1.
func (e *Engine) CategoryWeight(category string) decimal.Decimal {
	if category == "" {
		return decOne
	}
	if w, ok := e.categories[category]; ok {
		return w
	}
	return decOne
}

func (e *Engine) clampMultiplier(m decimal.Decimal) decimal.Decimal {
	if m.LessThan(e.minMult) {
		return e.minMult
	}
	if m.GreaterThan(e.maxMult) {
		return e.maxMult
	}
	return m
}

func (e *Engine) clampDiscount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(e.maxDiscount) {
		return e.maxDiscount
	}
	return d
}
