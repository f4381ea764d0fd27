// Package api implements the HTTP handlers of the rate feed.
package api

import (
	"math"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"no rate available"`
}

// RateResponse is a resolved rate with its freshness.
type RateResponse struct {
	Base       string   `json:"base" example:"GHS"`
	Target     string   `json:"target" example:"USDC"`
	Rate       float64  `json:"rate" example:"12.5125"`
	Source     string   `json:"source" example:"binance"`
	Fallback   bool     `json:"fallback" example:"false"`
	ObservedAt string   `json:"observed_at" example:"2026-03-01T12:00:00Z"`
	AgeMinutes *float64 `json:"age_minutes,omitempty" example:"0.4"`
	Stale      *bool    `json:"stale,omitempty" example:"false"`
}

// ObservationResponse is one entry of the observation history.
type ObservationResponse struct {
	Currency   string  `json:"currency" example:"USDC"`
	Price      float64 `json:"price" example:"12.5125"`
	Source     string  `json:"source" example:"coingecko"`
	ObservedAt string  `json:"observed_at" example:"2026-03-01T12:00:00Z"`
}

// StaleResponse reports whether the current rate is stale.
type StaleResponse struct {
	Stale            bool     `json:"stale" example:"false"`
	ThresholdMinutes float64  `json:"threshold_minutes" example:"5"`
	AgeMinutes       *float64 `json:"age_minutes" example:"0.4"`
}

// ConvertResponse is the result of a conversion.
type ConvertResponse struct {
	Amount       string  `json:"amount" example:"100"`
	Result       string  `json:"result" example:"7.99200799"`
	From         string  `json:"from" example:"GHS"`
	To           string  `json:"to" example:"USDC"`
	Rate         float64 `json:"rate" example:"12.5125"`
	Source       string  `json:"source" example:"binance"`
	UsedFallback bool    `json:"used_fallback" example:"false"`
}

// ConfigResponse is the pricing configuration.
type ConfigResponse struct {
	BaseCurrency      string   `json:"base_currency" example:"GHS"`
	TargetCurrency    string   `json:"target_currency" example:"USDC"`
	RefreshIntervalMs int64    `json:"refresh_interval_ms" example:"30000"`
	FallbackRate      float64  `json:"fallback_rate" example:"16.3"`
	Sources           []string `json:"sources" example:"coingecko,binance,coinbase"`
}

// RefreshAcceptedResponse is returned when a refresh was queued.
type RefreshAcceptedResponse struct {
	TaskID string `json:"task_id" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// finitePtr returns nil for infinite values, which JSON cannot carry.
func finitePtr(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func toRateResponse(r rate.ConversionRate) RateResponse {
	return RateResponse{
		Base:       r.From,
		Target:     r.To,
		Rate:       r.Rate,
		Source:     r.Source,
		Fallback:   r.IsFallback(),
		ObservedAt: formatTime(r.ObservedAt),
	}
}

func toRateResultResponse(res *service.RateResult) RateResponse {
	out := toRateResponse(res.Rate)
	out.AgeMinutes = finitePtr(res.AgeMinutes)
	stale := res.Stale
	out.Stale = &stale
	return out
}

func toConfigResponse(c rate.PricingConfig) ConfigResponse {
	return ConfigResponse{
		BaseCurrency:      c.BaseCurrency,
		TargetCurrency:    c.TargetCurrency,
		RefreshIntervalMs: c.RefreshInterval.Milliseconds(),
		FallbackRate:      c.FallbackRate,
		Sources:           c.Sources,
	}
}
