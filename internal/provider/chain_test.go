package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstSuccess(t *testing.T) {
	ok := func(v float64, r Route) func(context.Context) (Quote, error) {
		return func(context.Context) (Quote, error) { return Quote{Value: v, Route: r}, nil }
	}
	fail := func(msg string) func(context.Context) (Quote, error) {
		return func(context.Context) (Quote, error) { return Quote{}, errors.New(msg) }
	}

	t.Run("first succeeds", func(t *testing.T) {
		called := false
		q, stage, err := FirstSuccess(context.Background(),
			Step{Run: ok(1.5, RouteDirect)},
			Step{Stage: "second", Run: func(context.Context) (Quote, error) {
				called = true
				return Quote{}, nil
			}},
		)
		assert.NoError(t, err)
		assert.Equal(t, 1.5, q.Value)
		assert.Equal(t, "", stage)
		assert.False(t, called)
	})

	t.Run("first fails, second succeeds", func(t *testing.T) {
		q, stage, err := FirstSuccess(context.Background(),
			Step{Run: fail("s1 failed")},
			Step{Stage: "inverse", Run: ok(2, RouteRelay)},
		)
		assert.NoError(t, err)
		assert.Equal(t, 2.0, q.Value)
		assert.Equal(t, RouteRelay, q.Route)
		assert.Equal(t, "inverse", stage)
	})

	t.Run("all fail", func(t *testing.T) {
		_, _, err := FirstSuccess(context.Background(),
			Step{Run: fail("s1 failed")},
			Step{Run: fail("s2 failed")},
		)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "s1 failed")
		assert.Contains(t, err.Error(), "s2 failed")
	})

	t.Run("skip consults previous error", func(t *testing.T) {
		relayCalled := false
		steps := directThenRelay(
			func(context.Context) (float64, error) {
				return 0, fmt.Errorf("%w: XYZ", ErrNoSuchPair)
			},
			func(context.Context) (float64, error) {
				relayCalled = true
				return 1, nil
			},
		)
		_, _, err := FirstSuccess(context.Background(), steps...)
		assert.ErrorIs(t, err, ErrNoSuchPair)
		assert.False(t, relayCalled)
	})

	t.Run("relay used after network failure", func(t *testing.T) {
		steps := directThenRelay(
			func(context.Context) (float64, error) { return 0, ErrNetwork },
			func(context.Context) (float64, error) { return 3, nil },
		)
		q, _, err := FirstSuccess(context.Background(), steps...)
		assert.NoError(t, err)
		assert.Equal(t, 3.0, q.Value)
		assert.Equal(t, RouteRelay, q.Route)
	})

	t.Run("cancelled context stops the chain", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := FirstSuccess(ctx, Step{Run: ok(1, RouteDirect)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrNetwork)
	})
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "coingecko", Label("coingecko", "", RouteDirect))
	assert.Equal(t, "coingecko-proxy-fallback", Label("coingecko", "", RouteRelay))
	assert.Equal(t, "binance-inverse", Label("binance", "inverse", RouteDirect))
	assert.Equal(t, "binance-approx-proxy-fallback", Label("binance", "approx", RouteRelay))
}
