package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ratefeed/internal/rate"
)

// ErrInvalidConversion indicates a malformed conversion request.
var ErrInvalidConversion = errors.New("invalid conversion request")

// Direction selects which way an amount is converted.
type Direction string

// Conversion directions.
const (
	DirectionToTarget Direction = "to_target"
	DirectionToBase   Direction = "to_base"
)

// resultPlaces is the number of decimal places kept in conversion results.
const resultPlaces = 8

// ConversionRequest is an amount to convert in the given direction.
type ConversionRequest struct {
	Amount    decimal.Decimal
	Direction Direction
}

// ConversionResult is a converted amount and the rate it used.
type ConversionResult struct {
	Amount       decimal.Decimal
	Result       decimal.Decimal
	From         string
	To           string
	Rate         rate.ConversionRate
	UsedFallback bool
}

// effectiveRate is the current rate, or the configured fallback when unset.
func (s *RateService) effectiveRate() (rate.ConversionRate, bool) {
	if cur, ok := s.resolver.Current(); ok {
		return cur, cur.IsFallback()
	}
	return rate.Fallback(s.Config(), s.now()), true
}

// ToTarget converts an amount of base currency into target currency.
func (s *RateService) ToTarget(amountInBase float64) float64 {
	r, _ := s.effectiveRate()
	return amountInBase / r.Rate
}

// ToBase converts an amount of target currency into base currency.
func (s *RateService) ToBase(amountInTarget float64) float64 {
	r, _ := s.effectiveRate()
	return amountInTarget * r.Rate
}

// Convert performs a conversion in decimal arithmetic.
func (s *RateService) Convert(req ConversionRequest) (*ConversionResult, error) {
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidConversion)
	}

	r, fallback := s.effectiveRate()
	rateDec := decimal.NewFromFloat(r.Rate)

	res := &ConversionResult{
		Amount:       req.Amount,
		Rate:         r,
		UsedFallback: fallback,
	}
	switch req.Direction {
	case DirectionToTarget:
		res.From, res.To = r.From, r.To
		res.Result = req.Amount.Div(rateDec).Round(resultPlaces)
	case DirectionToBase:
		res.From, res.To = r.To, r.From
		res.Result = req.Amount.Mul(rateDec).Round(resultPlaces)
	default:
		return nil, fmt.Errorf("%w: direction must be %q or %q", ErrInvalidConversion, DirectionToTarget, DirectionToBase)
	}
	return res, nil
}
