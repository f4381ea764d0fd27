package rate

import (
	"slices"
	"time"
)

// Known source identifiers.
const (
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
	SourceCoinbase  = "coinbase"
)

// KnownSources lists every source id an adapter exists for, in default order.
var KnownSources = []string{SourceCoinGecko, SourceBinance, SourceCoinbase}

// PricingConfig controls what the resolver fetches and how often.
type PricingConfig struct {
	BaseCurrency    string        `json:"base_currency"`
	TargetCurrency  string        `json:"target_currency"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	FallbackRate    float64       `json:"fallback_rate"`
	Sources         []string      `json:"sources"`
}

// DefaultPricingConfig returns the GHS/USDC defaults.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BaseCurrency:    "GHS",
		TargetCurrency:  "USDC",
		RefreshInterval: 30 * time.Second,
		FallbackRate:    16.3,
		Sources:         slices.Clone(KnownSources),
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c PricingConfig) Clone() PricingConfig {
	c.Sources = slices.Clone(c.Sources)
	return c
}

// ConfigUpdate is a partial configuration change. Nil fields are left untouched;
// set fields replace the current value wholesale.
type ConfigUpdate struct {
	BaseCurrency      *string  `json:"base_currency,omitempty" validate:"omitempty,currency"`
	TargetCurrency    *string  `json:"target_currency,omitempty" validate:"omitempty,currency"`
	RefreshIntervalMs *int64   `json:"refresh_interval_ms,omitempty" validate:"omitempty,gte=1000"`
	FallbackRate      *float64 `json:"fallback_rate,omitempty" validate:"omitempty,gt=0,finite"`
	Sources           []string `json:"sources,omitempty" validate:"omitnil,min=1,unique,dive,oneof=coingecko binance coinbase"`
}

// IsEmpty reports whether the update changes nothing.
func (u ConfigUpdate) IsEmpty() bool {
	return u.BaseCurrency == nil && u.TargetCurrency == nil && u.RefreshIntervalMs == nil &&
		u.FallbackRate == nil && u.Sources == nil
}

// Apply returns a copy of c with u merged in.
func (c PricingConfig) Apply(u ConfigUpdate) PricingConfig {
	next := c.Clone()
	if u.BaseCurrency != nil {
		next.BaseCurrency = *u.BaseCurrency
	}
	if u.TargetCurrency != nil {
		next.TargetCurrency = *u.TargetCurrency
	}
	if u.RefreshIntervalMs != nil {
		next.RefreshInterval = time.Duration(*u.RefreshIntervalMs) * time.Millisecond
	}
	if u.FallbackRate != nil {
		next.FallbackRate = *u.FallbackRate
	}
	if u.Sources != nil {
		next.Sources = slices.Clone(u.Sources)
	}
	return next
}
