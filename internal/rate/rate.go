// Package rate defines the value types shared by the rate feed pipeline.
package rate

import (
	"math"
	"time"
)

// SourceFallback labels a rate built from the configured fallback value.
const SourceFallback = "fallback"

// ConversionRate is one resolved exchange rate, expressed as From-currency
// units per one To-currency unit (GHS per USDC by default).
type ConversionRate struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Rate       float64   `json:"rate"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

// IsFallback reports whether the rate came from the fallback policy rather than a provider.
func (c ConversionRate) IsFallback() bool {
	return c.Source == SourceFallback
}

// Age returns how old the rate is relative to now.
func (c ConversionRate) Age(now time.Time) time.Duration {
	return now.Sub(c.ObservedAt)
}

// PriceObservation is a raw data point recorded for every successful source result.
type PriceObservation struct {
	Currency   string    `json:"currency"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

// Valid reports whether v is usable as a rate: finite and strictly positive.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Fallback builds the safety-net rate from cfg.
func Fallback(cfg PricingConfig, now time.Time) ConversionRate {
	return ConversionRate{
		From:       cfg.BaseCurrency,
		To:         cfg.TargetCurrency,
		Rate:       cfg.FallbackRate,
		ObservedAt: now,
		Source:     SourceFallback,
	}
}
