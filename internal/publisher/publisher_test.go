package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/rate"
)

var sample = rate.ConversionRate{
	From:       "GHS",
	To:         "USDC",
	Rate:       15.9,
	ObservedAt: time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC),
	Source:     "binance-inverse-proxy-fallback",
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), sample))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "GHS/USDC", string(w.msgs[0].Key))

	var ev RateEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 15.9, ev.Rate)
	assert.Equal(t, "binance-inverse-proxy-fallback", ev.Source)
	assert.False(t, ev.Fallback)
	assert.True(t, ev.ObservedAt.Equal(sample.ObservedAt))

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), sample))
}

func TestNewRateEvent_Fallback(t *testing.T) {
	ev := NewRateEvent(rate.Fallback(rate.DefaultPricingConfig(), time.Now()))
	assert.True(t, ev.Fallback)
	assert.Equal(t, 16.3, ev.Rate)
}

func TestRedisSnapshot(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisSnapshot(rdb, time.Minute)
	ctx := context.Background()

	_, err = s.Latest(ctx, "GHS", "USDC")
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, s.Publish(ctx, sample))
	got, err := s.Latest(ctx, "GHS", "USDC")
	require.NoError(t, err)
	assert.Equal(t, sample.Rate, got.Rate)
	assert.Equal(t, sample.Source, got.Source)
	assert.True(t, got.ObservedAt.Equal(sample.ObservedAt))

	mr.FastForward(2 * time.Minute)
	_, err = s.Latest(ctx, "GHS", "USDC")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
