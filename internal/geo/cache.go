package geo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextvisit/practice-availability/pkg/logging"
)

// CachedGeocoder wraps a Geocoder with a Redis cache. Geocoding results for
// a fixed address are stable, so a long TTL is safe; misses fall through to
// the upstream and cache failures never fail the lookup.
type CachedGeocoder struct {
	inner  Geocoder
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedGeocoder creates a caching layer in front of inner.
func NewCachedGeocoder(inner Geocoder, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedGeocoder {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedGeocoder{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Geocode returns the cached point for address, or resolves and caches it.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	key := cacheKey(address)

	if c.client != nil {
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var p Point
			if err := json.Unmarshal(raw, &p); err == nil {
				return p, nil
			}
		}
	}

	p, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return Point{}, err
	}

	if c.client != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("geocode cache write failed", "error", err)
			}
		}
	}
	return p, nil
}

func cacheKey(address string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return "geo:geocode:" + hex.EncodeToString(sum[:])
}

var _ Geocoder = (*CachedGeocoder)(nil)
var _ Geocoder = (*HTTPGeocoder)(nil)
