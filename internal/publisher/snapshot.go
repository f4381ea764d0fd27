package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ratefeed/internal/rate"
)

const snapshotKeyPrefix = "rate:latest:"

func snapshotKey(base, target string) string {
	return snapshotKeyPrefix + "{" + base + ":" + target + "}"
}

// RedisSnapshot keeps the latest resolved rate in Redis for readers outside
// this process.
type RedisSnapshot struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisSnapshot creates a RedisSnapshot whose entries expire after ttl.
func NewRedisSnapshot(cache *redis.Client, ttl time.Duration) *RedisSnapshot {
	return &RedisSnapshot{cache: cache, ttl: ttl}
}

// Publish overwrites the snapshot for r's pair.
func (s *RedisSnapshot) Publish(ctx context.Context, r rate.ConversionRate) error {
	key := snapshotKey(r.From, r.To)
	pipe := s.cache.Pipeline()
	pipe.HSet(ctx, key,
		"rate", strconv.FormatFloat(r.Rate, 'f', -1, 64),
		"source", r.Source,
		"observed_at", r.ObservedAt.Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update snapshot %s: %w", key, err)
	}
	return nil
}

// ErrNoSnapshot indicates no snapshot exists for the pair.
var ErrNoSnapshot = errors.New("no snapshot")

// Latest reads the snapshot for a pair.
func (s *RedisSnapshot) Latest(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	vals, err := s.cache.HMGet(ctx, snapshotKey(base, target), "rate", "source", "observed_at").Result()
	if err != nil {
		return rate.ConversionRate{}, err
	}
	rateStr, ok1 := vals[0].(string)
	source, ok2 := vals[1].(string)
	tsStr, ok3 := vals[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return rate.ConversionRate{}, ErrNoSnapshot
	}
	v, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return rate.ConversionRate{}, fmt.Errorf("parse snapshot rate: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return rate.ConversionRate{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	return rate.ConversionRate{From: base, To: target, Rate: v, Source: source, ObservedAt: ts}, nil
}
