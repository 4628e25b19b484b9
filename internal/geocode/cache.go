package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

const defaultCacheTTL = 24 * time.Hour

// CachedGeocoder memoizes successful lookups in Redis. Misses and failures
// are never cached so a resend always reaches the provider again.
type CachedGeocoder struct {
	next   Geocoder
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedGeocoder wraps next. A nil redis client disables caching.
func NewCachedGeocoder(next Geocoder, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedGeocoder {
	if next == nil {
		panic("geocode: underlying geocoder required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedGeocoder{next: next, redis: client, ttl: ttl, logger: logger}
}

// Reverse consults the cache before the wrapped geocoder.
func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if c.redis == nil {
		return c.next.Reverse(ctx, lat, lon)
	}

	key := cacheKey(lat, lon)
	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		return cached, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn("geocode cache read failed", "error", err, "key", key)
	}

	address, err := c.next.Reverse(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	if err := c.redis.Set(ctx, key, address, c.ttl).Err(); err != nil {
		c.logger.Warn("geocode cache write failed", "error", err, "key", key)
	}
	return address, nil
}

// cacheKey rounds to 5 decimals (about a metre).
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("geocode:%.5f:%.5f", lat, lon)
}
