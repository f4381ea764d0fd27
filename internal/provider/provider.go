// Package provider implements the per-source rate adapters, their fallback
// chains and the relay client they fall back to.
package provider

import (
	"context"
	"time"

	"ratefeed/internal/rate"
)

// DefaultTimeout bounds every single network call made by an adapter.
const DefaultTimeout = 10 * time.Second

// Source derives a base-per-target rate from one external provider.
// A non-nil error means the source has no usable rate this cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error)
}

// Route tells whether a value was fetched from the provider or through the relay.
type Route int

// Routes, ordered so that the larger value is the less trusted one.
const (
	RouteDirect Route = iota
	RouteRelay
)

func (r Route) String() string {
	if r == RouteRelay {
		return "relay"
	}
	return "direct"
}

// worse returns the less trusted of two routes.
func worse(a, b Route) Route {
	return max(a, b)
}

// Label builds a provenance tag such as "binance-inverse-proxy-fallback".
func Label(source, stage string, route Route) string {
	label := source
	if stage != "" {
		label += "-" + stage
	}
	if route == RouteRelay {
		label += "-proxy-fallback"
	}
	return label
}

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
