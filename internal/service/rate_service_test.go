package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ratefeed/internal/config"
	"ratefeed/internal/provider"
	"ratefeed/internal/rate"
	"ratefeed/internal/repository"
	"ratefeed/internal/scheduler"
)

// Mock source
type mockSource struct {
	name      string
	fetchFunc func(ctx context.Context, base, target string) (rate.ConversionRate, error)
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	return m.fetchFunc(ctx, base, target)
}

// Mock config repository
type mockConfigRepo struct {
	loadFunc func(ctx context.Context) (*rate.PricingConfig, error)
	saveFunc func(ctx context.Context, cfg rate.PricingConfig) error
}

func (m *mockConfigRepo) Load(ctx context.Context) (*rate.PricingConfig, error) {
	return m.loadFunc(ctx)
}

func (m *mockConfigRepo) Save(ctx context.Context, cfg rate.PricingConfig) error {
	return m.saveFunc(ctx, cfg)
}

// Mock enqueuer
type mockEnqueuer struct {
	enqueueFunc func(ctx context.Context, payload RefreshPayload) (string, error)
}

func (m *mockEnqueuer) EnqueueRefresh(ctx context.Context, payload RefreshPayload) (string, error) {
	return m.enqueueFunc(ctx, payload)
}

var testPricingCfg = config.PricingConfig{
	BaseCurrency:      "GHS",
	TargetCurrency:    "USDC",
	RefreshIntervalMs: 3_600_000,
	FallbackRate:      16.3,
	Sources:           []string{"coinbase"},
	HistoryLimit:      100,
	StaleAfterMinutes: 5,
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedSource(v float64, observedAt time.Time) *mockSource {
	return &mockSource{name: "coinbase", fetchFunc: func(context.Context, string, string) (rate.ConversionRate, error) {
		return rate.ConversionRate{From: "GHS", To: "USDC", Rate: v, ObservedAt: observedAt, Source: "coinbase"}, nil
	}}
}

func failingSource() *mockSource {
	return &mockSource{name: "coinbase", fetchFunc: func(context.Context, string, string) (rate.ConversionRate, error) {
		return rate.ConversionRate{}, provider.ErrNetwork
	}}
}

func newTestService(t *testing.T, src provider.Source, store *mockConfigRepo, enq RefreshEnqueuer) *RateService {
	t.Helper()
	var sources []provider.Source
	if src != nil {
		sources = append(sources, src)
	}
	var repo repository.ConfigRepository
	if store != nil {
		repo = store
	}
	svc, err := NewRateService(sources, repo, enq, zap.NewNop().Sugar(), nil, testPricingCfg)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	t.Cleanup(svc.Destroy)
	return svc
}

func TestConversion_UsesFallbackWhenUnset(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	assert.InDelta(t, 10.0, svc.ToTarget(163), 1e-9)
	assert.InDelta(t, 163.0, svc.ToBase(10), 1e-9)

	res, err := svc.Convert(ConversionRequest{Amount: decimal.RequireFromString("163"), Direction: DirectionToTarget})
	require.NoError(t, err)
	assert.True(t, res.Result.Equal(decimal.NewFromInt(10)), res.Result.String())
	assert.True(t, res.UsedFallback)
	assert.Equal(t, "GHS", res.From)
	assert.Equal(t, "USDC", res.To)
}

func TestConversion_RoundTrip(t *testing.T) {
	svc := newTestService(t, fixedSource(15.87, testNow), nil, nil)
	svc.ForceUpdate(context.Background())

	for _, a := range []float64{0, 1, 12.34, 1e6, 0.0001} {
		assert.InDelta(t, a, svc.ToBase(svc.ToTarget(a)), 1e-9*math.Max(1, a))
	}

	res, err := svc.Convert(ConversionRequest{Amount: decimal.RequireFromString("2"), Direction: DirectionToBase})
	require.NoError(t, err)
	assert.Equal(t, "31.74", res.Result.String())
	assert.Equal(t, "USDC", res.From)
	assert.Equal(t, "GHS", res.To)
	assert.False(t, res.UsedFallback)
}

func TestConvert_Invalid(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.Convert(ConversionRequest{Amount: decimal.NewFromInt(-1), Direction: DirectionToBase})
	assert.ErrorIs(t, err, ErrInvalidConversion)

	_, err = svc.Convert(ConversionRequest{Amount: decimal.NewFromInt(1), Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidConversion)
}

func TestStaleness(t *testing.T) {
	t.Run("unset is infinitely old", func(t *testing.T) {
		svc := newTestService(t, nil, nil, nil)
		assert.True(t, math.IsInf(svc.RateAgeMinutes(), 1))
		assert.True(t, svc.IsStale(5))

		_, err := svc.Current(context.Background())
		assert.ErrorIs(t, err, ErrNoRate)
	})

	t.Run("exactly at threshold is fresh", func(t *testing.T) {
		svc := newTestService(t, fixedSource(15.9, testNow.Add(-5*time.Minute)), nil, nil)
		svc.ForceUpdate(context.Background())

		assert.InDelta(t, 5.0, svc.RateAgeMinutes(), 1e-9)
		assert.False(t, svc.IsStale(5))
		assert.False(t, svc.IsStaleDefault())
		assert.True(t, svc.IsStale(4.99))

		cur, err := svc.Current(context.Background())
		require.NoError(t, err)
		assert.False(t, cur.Stale)
		assert.Equal(t, 15.9, cur.Rate.Rate)
	})

	t.Run("zero threshold is not replaced by the default", func(t *testing.T) {
		svc := newTestService(t, fixedSource(15.9, testNow.Add(-time.Minute)), nil, nil)
		svc.ForceUpdate(context.Background())

		assert.True(t, svc.IsStale(0))
		assert.False(t, svc.IsStaleDefault())
	})

	t.Run("past threshold is stale", func(t *testing.T) {
		svc := newTestService(t, fixedSource(15.9, testNow.Add(-5*time.Minute-time.Second)), nil, nil)
		svc.ForceUpdate(context.Background())
		assert.True(t, svc.IsStale(5))
		assert.True(t, svc.IsStaleDefault())
	})
}

func TestUpdateConfig_Validation(t *testing.T) {
	str := func(s string) *string { return &s }
	i64 := func(v int64) *int64 { return &v }
	f64 := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		u    rate.ConfigUpdate
		want string
	}{
		{"lowercase currency", rate.ConfigUpdate{BaseCurrency: str("ghs")}, "base_currency"},
		{"long currency", rate.ConfigUpdate{TargetCurrency: str("USDCXX")}, "target_currency"},
		{"interval too short", rate.ConfigUpdate{RefreshIntervalMs: i64(999)}, "refresh_interval_ms"},
		{"zero fallback", rate.ConfigUpdate{FallbackRate: f64(0)}, "fallback_rate"},
		{"infinite fallback", rate.ConfigUpdate{FallbackRate: f64(math.Inf(1))}, "fallback_rate"},
		{"empty sources", rate.ConfigUpdate{Sources: []string{}}, "sources"},
		{"unknown source", rate.ConfigUpdate{Sources: []string{"kraken"}}, "sources[0]"},
		{"duplicate sources", rate.ConfigUpdate{Sources: []string{"binance", "binance"}}, "duplicates"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockConfigRepo{saveFunc: func(context.Context, rate.PricingConfig) error {
				t.Error("Save must not be called for an invalid update")
				return nil
			}}
			svc := newTestService(t, nil, store, nil)

			_, err := svc.UpdateConfig(context.Background(), tc.u)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tc.want)
			assert.Equal(t, testPricingCfg.Rate(), svc.Config())
		})
	}
}

func TestUpdateConfig_Applies(t *testing.T) {
	var saved *rate.PricingConfig
	store := &mockConfigRepo{saveFunc: func(_ context.Context, cfg rate.PricingConfig) error {
		saved = &cfg
		return nil
	}}
	svc := newTestService(t, nil, store, nil)

	interval := int64(60_000)
	fallback := 17.5
	next, err := svc.UpdateConfig(context.Background(), rate.ConfigUpdate{
		RefreshIntervalMs: &interval,
		FallbackRate:      &fallback,
		Sources:           []string{"binance", "coingecko"},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Minute, next.RefreshInterval)
	assert.Equal(t, 17.5, next.FallbackRate)
	assert.Equal(t, []string{"binance", "coingecko"}, next.Sources)
	assert.Equal(t, "GHS", next.BaseCurrency)
	assert.Equal(t, next, svc.Config())
	require.NotNil(t, saved)
	assert.Equal(t, next, *saved)
	assert.Equal(t, time.Minute, svc.scheduler.Interval())

	// callers get copies
	cfg := svc.Config()
	cfg.Sources[0] = "mutated"
	assert.Equal(t, "binance", svc.Config().Sources[0])
}

func TestUpdateConfig_StoreFailure(t *testing.T) {
	store := &mockConfigRepo{saveFunc: func(context.Context, rate.PricingConfig) error {
		return errors.New("db down")
	}}
	svc := newTestService(t, nil, store, nil)

	fallback := 17.5
	_, err := svc.UpdateConfig(context.Background(), rate.ConfigUpdate{FallbackRate: &fallback})
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 16.3, svc.Config().FallbackRate)
}

func TestStart(t *testing.T) {
	t.Run("loads stored config and resolves", func(t *testing.T) {
		stored := testPricingCfg.Rate()
		stored.FallbackRate = 20
		stored.RefreshInterval = 2 * time.Hour
		store := &mockConfigRepo{loadFunc: func(context.Context) (*rate.PricingConfig, error) {
			return &stored, nil
		}}
		svc := newTestService(t, fixedSource(15.9, testNow), store, nil)

		require.NoError(t, svc.Start(context.Background()))
		assert.Equal(t, 20.0, svc.Config().FallbackRate)
		assert.Equal(t, 2*time.Hour, svc.scheduler.Interval())

		cur, err := svc.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "coinbase", cur.Rate.Source)
	})

	t.Run("all sources failing leaves the fallback set", func(t *testing.T) {
		svc := newTestService(t, failingSource(), nil, nil)
		require.NoError(t, svc.Start(context.Background()))

		cur, err := svc.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, rate.SourceFallback, cur.Rate.Source)
		assert.Equal(t, 16.3, cur.Rate.Rate)
	})

	t.Run("second start is rejected before touching the store", func(t *testing.T) {
		loads := 0
		store := &mockConfigRepo{loadFunc: func(context.Context) (*rate.PricingConfig, error) {
			loads++
			return nil, nil
		}}
		svc := newTestService(t, fixedSource(15.9, testNow), store, nil)

		require.NoError(t, svc.Start(context.Background()))
		assert.ErrorIs(t, svc.Start(context.Background()), scheduler.ErrAlreadyStarted)
		assert.Equal(t, 1, loads)
		assert.Equal(t, 0, svc.hub.Len())
	})

	t.Run("store load error falls back to file config", func(t *testing.T) {
		store := &mockConfigRepo{loadFunc: func(context.Context) (*rate.PricingConfig, error) {
			return nil, errors.New("db down")
		}}
		svc := newTestService(t, failingSource(), store, nil)
		require.NoError(t, svc.Start(context.Background()))
		assert.Equal(t, testPricingCfg.Rate(), svc.Config())
	})
}

func TestSubscribeAndDestroy(t *testing.T) {
	svc := newTestService(t, fixedSource(15.9, testNow), nil, nil)

	var got []rate.ConversionRate
	unsub := svc.Subscribe(func(_ context.Context, r rate.ConversionRate) error {
		got = append(got, r)
		return nil
	})
	svc.ForceUpdate(context.Background())
	unsub()
	svc.ForceUpdate(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, 15.9, got[0].Rate)

	svc.Subscribe(func(_ context.Context, r rate.ConversionRate) error {
		got = append(got, r)
		return nil
	})
	svc.Destroy()
	svc.ForceUpdate(context.Background())
	assert.Len(t, got, 1)
}

func TestForceUpdate_IgnoresCallerCancellation(t *testing.T) {
	src := &mockSource{name: "coinbase", fetchFunc: func(ctx context.Context, _, _ string) (rate.ConversionRate, error) {
		if err := ctx.Err(); err != nil {
			return rate.ConversionRate{}, err
		}
		return rate.ConversionRate{From: "GHS", To: "USDC", Rate: 15.9, ObservedAt: testNow, Source: "coinbase"}, nil
	}}
	svc := newTestService(t, src, nil, nil)

	var delivered int
	svc.Subscribe(func(context.Context, rate.ConversionRate) error {
		delivered++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := svc.ForceUpdate(ctx)

	assert.Equal(t, 15.9, got.Rate)
	assert.Equal(t, "coinbase", got.Source)
	assert.Equal(t, 1, delivered)
}

func TestRequestRefresh(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, nil, nil, nil)
		_, err := svc.RequestRefresh(context.Background())
		assert.ErrorIs(t, err, ErrAsyncDisabled)
	})

	t.Run("enqueued", func(t *testing.T) {
		enq := &mockEnqueuer{enqueueFunc: func(_ context.Context, p RefreshPayload) (string, error) {
			assert.Equal(t, "GHS", p.Base)
			assert.Equal(t, "USDC", p.Target)
			assert.Equal(t, testNow, p.RequestedAt)
			return "task-1", nil
		}}
		svc := newTestService(t, nil, nil, enq)
		id, err := svc.RequestRefresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "task-1", id)
	})

	t.Run("queue failure", func(t *testing.T) {
		enq := &mockEnqueuer{enqueueFunc: func(context.Context, RefreshPayload) (string, error) {
			return "", errors.New("redis down")
		}}
		svc := newTestService(t, nil, nil, enq)
		_, err := svc.RequestRefresh(context.Background())
		assert.ErrorIs(t, err, ErrInternalQueue)
	})
}
