package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ratefeed/internal/rate"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Name() string {
	return "mock"
}

func (m *MockSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	args := m.Called(ctx, base, target)
	return args.Get(0).(rate.ConversionRate), args.Error(1)
}

type MockRelayer struct {
	mock.Mock
}

func (m *MockRelayer) FetchViaRelay(ctx context.Context, source, symbol string) ([]byte, error) {
	args := m.Called(ctx, source, symbol)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}
