package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ratefeed/internal/rate"
)

// CachedSource wraps a Source with a short-lived Redis cache so that
// several instances polling the same providers share one upstream call.
type CachedSource struct {
	source Source
	cache  *redis.Client
	ttl    time.Duration
}

// NewCachedSource creates a CachedSource. A nil cache disables caching.
func NewCachedSource(source Source, cache *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

// Name returns the wrapped source's id.
func (c *CachedSource) Name() string { return c.source.Name() }

func (c *CachedSource) cacheKey(base, target string) string {
	return fmt.Sprintf("source_cache:%s:{%s:%s}", c.source.Name(), base, target)
}

// Fetch returns the cached rate when present, otherwise calls the wrapped source.
// Failures are never cached.
func (c *CachedSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	if c.cache == nil {
		return c.source.Fetch(ctx, base, target)
	}

	key := c.cacheKey(base, target)

	vals, err := c.cache.HMGet(ctx, key, "rate", "observed_at", "label").Result()
	if err == nil && len(vals) == 3 {
		if r, ok := fromCache(base, target, vals); ok {
			return r, nil
		}
	}

	r, err := c.source.Fetch(ctx, base, target)
	if err != nil {
		return rate.ConversionRate{}, err
	}

	pipe := c.cache.Pipeline()
	pipe.HSet(ctx, key,
		"rate", strconv.FormatFloat(r.Rate, 'f', -1, 64),
		"observed_at", r.ObservedAt.Format(time.RFC3339Nano),
		"label", r.Source,
	)
	pipe.Expire(ctx, key, c.ttl)
	_, _ = pipe.Exec(ctx)

	return r, nil
}

func fromCache(base, target string, vals []any) (rate.ConversionRate, bool) {
	rateStr, ok1 := vals[0].(string)
	tsStr, ok2 := vals[1].(string)
	label, ok3 := vals[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return rate.ConversionRate{}, false
	}
	v, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || !rate.Valid(v) {
		return rate.ConversionRate{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return rate.ConversionRate{}, false
	}
	return rate.ConversionRate{
		From:       base,
		To:         target,
		Rate:       v,
		ObservedAt: ts,
		Source:     label,
	}, true
}

var _ Source = (*CachedSource)(nil)
