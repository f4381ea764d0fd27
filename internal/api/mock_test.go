package api

import (
	"context"

	"ratefeed/internal/hub"
	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

// mockRateService implements service.RateServiceInterface for testing.
// Unset funcs return zero values.
type mockRateService struct {
	currentFunc        func(ctx context.Context) (*service.RateResult, error)
	historyFunc        func(ctx context.Context) []rate.PriceObservation
	configFunc         func() rate.PricingConfig
	updateConfigFunc   func(ctx context.Context, u rate.ConfigUpdate) (rate.PricingConfig, error)
	forceUpdateFunc    func(ctx context.Context) rate.ConversionRate
	requestRefreshFunc func(ctx context.Context) (string, error)
	ageFunc            func() float64
	isStaleFunc        func(threshold float64) bool
	isStaleDefaultFunc func() bool
	convertFunc        func(req service.ConversionRequest) (*service.ConversionResult, error)
	hub                *hub.Hub
}

func (m *mockRateService) Current(ctx context.Context) (*service.RateResult, error) {
	if m.currentFunc == nil {
		return nil, service.ErrNoRate
	}
	return m.currentFunc(ctx)
}

func (m *mockRateService) History(ctx context.Context) []rate.PriceObservation {
	if m.historyFunc == nil {
		return nil
	}
	return m.historyFunc(ctx)
}

func (m *mockRateService) Config() rate.PricingConfig {
	if m.configFunc == nil {
		return rate.DefaultPricingConfig()
	}
	return m.configFunc()
}

func (m *mockRateService) UpdateConfig(ctx context.Context, u rate.ConfigUpdate) (rate.PricingConfig, error) {
	return m.updateConfigFunc(ctx, u)
}

func (m *mockRateService) ForceUpdate(ctx context.Context) rate.ConversionRate {
	return m.forceUpdateFunc(ctx)
}

func (m *mockRateService) RequestRefresh(ctx context.Context) (string, error) {
	return m.requestRefreshFunc(ctx)
}

func (m *mockRateService) RateAgeMinutes() float64 {
	if m.ageFunc == nil {
		return 0
	}
	return m.ageFunc()
}

func (m *mockRateService) IsStale(threshold float64) bool {
	if m.isStaleFunc == nil {
		return false
	}
	return m.isStaleFunc(threshold)
}

func (m *mockRateService) IsStaleDefault() bool {
	if m.isStaleDefaultFunc == nil {
		return false
	}
	return m.isStaleDefaultFunc()
}

func (m *mockRateService) ToTarget(amountInBase float64) float64 { return 0 }

func (m *mockRateService) ToBase(amountInTarget float64) float64 { return 0 }

func (m *mockRateService) Convert(req service.ConversionRequest) (*service.ConversionResult, error) {
	return m.convertFunc(req)
}

func (m *mockRateService) Subscribe(fn hub.Callback) func() {
	if m.hub == nil {
		return func() {}
	}
	return m.hub.Subscribe(fn)
}
