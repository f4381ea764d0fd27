package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"ratefeed/internal/rate"
)

var _ Source = (*CoinbaseSource)(nil)

// DefaultCoinbaseURL is the public Coinbase API root.
const DefaultCoinbaseURL = "https://api.coinbase.com"

// CoinbaseSource reads the exchange-rates endpoint, which lists rates for one base currency.
type CoinbaseSource struct {
	baseURL string
	client  *http.Client
	relay   Relayer
	now     Clock
}

// NewCoinbaseSource creates a CoinbaseSource. relay may be nil to disable the proxy fallback.
func NewCoinbaseSource(baseURL string, timeoutSec int, relay Relayer) *CoinbaseSource {
	if baseURL == "" {
		baseURL = DefaultCoinbaseURL
	}
	return &CoinbaseSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeoutSec),
		relay:   relay,
		now:     systemClock,
	}
}

// Name returns the source id.
func (s *CoinbaseSource) Name() string { return rate.SourceCoinbase }

// CoinbaseURL forms the exchange-rates URL for currency.
func CoinbaseURL(baseURL, currency string) string {
	return strings.TrimRight(baseURL, "/") + "/v2/exchange-rates?currency=" + url.QueryEscape(currency)
}

type coinbaseResponse struct {
	Data struct {
		Currency string                     `json:"currency"`
		Rates    map[string]json.RawMessage `json:"rates"`
	} `json:"data"`
}

// Fetch returns base units per one target unit. The provider is asked for the
// rates of target, so the base currency is looked up in the rates mapping.
func (s *CoinbaseSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	target = strings.ToUpper(target)
	base = strings.ToUpper(base)
	parse := func(body []byte) (float64, error) {
		var resp coinbaseResponse
		if err := decode(body, &resp); err != nil {
			return 0, err
		}
		return rateField(resp.Data.Rates[base], "data.rates."+base)
	}

	direct := func(ctx context.Context) (float64, error) {
		body, _, err := getBody(ctx, s.client, CoinbaseURL(s.baseURL, target))
		if err != nil {
			return 0, err
		}
		return parse(body)
	}

	var relay func(ctx context.Context) (float64, error)
	if s.relay != nil {
		relay = func(ctx context.Context) (float64, error) {
			body, err := s.relay.FetchViaRelay(ctx, rate.SourceCoinbase, target)
			if err != nil {
				return 0, err
			}
			return parse(body)
		}
	}

	q, stage, err := FirstSuccess(ctx, directThenRelay(direct, relay)...)
	if err != nil {
		return rate.ConversionRate{}, fmt.Errorf("coinbase: %w", err)
	}
	return rate.ConversionRate{
		From:       base,
		To:         target,
		Rate:       q.Value,
		ObservedAt: s.now(),
		Source:     Label(rate.SourceCoinbase, stage, q.Route),
	}, nil
}
