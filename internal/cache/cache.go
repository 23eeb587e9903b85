package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// Well-known keys for the computed analytics views. The payment event
// consumer invalidates all of them whenever a purchase changes.
const (
	KeyBreakdown     = "analytics:breakdown"
	KeySeriesWeekly  = "analytics:series:weekly"
	KeySeriesMonthly = "analytics:series:monthly"
)

// ViewKeys lists every cached view key for bulk invalidation.
var ViewKeys = []string{KeyBreakdown, KeySeriesWeekly, KeySeriesMonthly}

// Cache stores computed view models as JSON blobs with a TTL, so the
// per-request aggregation only reruns when purchases changed or the
// entry aged out.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

// GetJSON loads a cached view into v. The bool reports whether the key
// was present; a miss is not an error.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores a view model under key with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, c.TTL).Err()
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}
