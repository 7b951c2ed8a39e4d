package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"dynamic-pricing/internal/config"
)

// CachedDiscount is the payload held for up to the configured TTL.
type CachedDiscount struct {
	Discount     decimal.Decimal `json:"discount"`
	Segment      string          `json:"segment"`
	LoyaltyTier  string          `json:"loyalty_tier"`
	ReferralCode string          `json:"referral_code"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// DiscountCache serves previously computed discounts.
type DiscountCache interface {
	GetDiscount(ctx context.Context, emailHash string) (*CachedDiscount, error)
	SetDiscount(ctx context.Context, emailHash string, entry CachedDiscount) error
	InvalidateDiscount(ctx context.Context, emailHash string) error
}

// RedisCache implements DiscountCache on top of Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ DiscountCache = (*RedisCache)(nil)

// NewRedisCache connects a Redis-backed discount cache.
func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisCache{client: client, ttl: ttl}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func discountKey(emailHash string) string {
	return fmt.Sprintf("discount:%s", emailHash)
}

// GetDiscount returns the cached entry, or nil on a miss.
func (c *RedisCache) GetDiscount(ctx context.Context, emailHash string) (*CachedDiscount, error) {
	data, err := c.client.Get(ctx, discountKey(emailHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached discount: %w", err)
	}

	var entry CachedDiscount
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cached discount: %w", err)
	}
	return &entry, nil
}

// SetDiscount stores an entry under the configured TTL.
func (c *RedisCache) SetDiscount(ctx context.Context, emailHash string, entry CachedDiscount) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cached discount: %w", err)
	}
	if err := c.client.Set(ctx, discountKey(emailHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached discount: %w", err)
	}
	return nil
}

// InvalidateDiscount drops the entry so the next read recomputes.
func (c *RedisCache) InvalidateDiscount(ctx context.Context, emailHash string) error {
	if err := c.client.Del(ctx, discountKey(emailHash)).Err(); err != nil {
		return fmt.Errorf("invalidate cached discount: %w", err)
	}
	return nil
}
