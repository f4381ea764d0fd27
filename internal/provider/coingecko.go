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

var _ Source = (*CoinGeckoSource)(nil)

// DefaultCoinGeckoURL is the public CoinGecko API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// coinGeckoIDs maps ticker codes to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"USDC": "usd-coin",
	"USDT": "tether",
}

// CoinGeckoSource reads the simple-price endpoint, keyed by coin id and quote currency.
type CoinGeckoSource struct {
	baseURL string
	client  *http.Client
	relay   Relayer
	now     Clock
}

// NewCoinGeckoSource creates a CoinGeckoSource. relay may be nil to disable the proxy fallback.
func NewCoinGeckoSource(baseURL string, timeoutSec int, relay Relayer) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGeckoSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeoutSec),
		relay:   relay,
		now:     systemClock,
	}
}

// Name returns the source id.
func (s *CoinGeckoSource) Name() string { return rate.SourceCoinGecko }

// CoinGeckoURL forms the simple-price URL for a coin id priced in vsCurrency.
func CoinGeckoURL(baseURL, coinID, vsCurrency string) string {
	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", vsCurrency)
	return strings.TrimRight(baseURL, "/") + "/simple/price?" + q.Encode()
}

// Fetch returns base units per one target unit, e.g. GHS per USDC.
func (s *CoinGeckoSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	coinID, ok := coinGeckoIDs[strings.ToUpper(target)]
	if !ok {
		return rate.ConversionRate{}, fmt.Errorf("coingecko: %w: no coin id for %s", ErrNoSuchPair, target)
	}
	vs := strings.ToLower(base)
	parse := func(body []byte) (float64, error) {
		return parseCoinGecko(body, coinID, vs)
	}

	direct := func(ctx context.Context) (float64, error) {
		body, _, err := getBody(ctx, s.client, CoinGeckoURL(s.baseURL, coinID, vs))
		if err != nil {
			return 0, err
		}
		return parse(body)
	}

	symbol := strings.ToUpper(target) + strings.ToUpper(base)
	var relay func(ctx context.Context) (float64, error)
	if s.relay != nil {
		relay = func(ctx context.Context) (float64, error) {
			body, err := s.relay.FetchViaRelay(ctx, rate.SourceCoinGecko, symbol)
			if err != nil {
				return 0, err
			}
			return parse(body)
		}
	}

	q, stage, err := FirstSuccess(ctx, directThenRelay(direct, relay)...)
	if err != nil {
		return rate.ConversionRate{}, fmt.Errorf("coingecko: %w", err)
	}
	return rate.ConversionRate{
		From:       strings.ToUpper(base),
		To:         strings.ToUpper(target),
		Rate:       q.Value,
		ObservedAt: s.now(),
		Source:     Label(rate.SourceCoinGecko, stage, q.Route),
	}, nil
}

// parseCoinGecko extracts body[coinID][vs], e.g. {"usd-coin":{"ghs":15.9}}.
func parseCoinGecko(body []byte, coinID, vs string) (float64, error) {
	var resp map[string]map[string]json.RawMessage
	if err := decode(body, &resp); err != nil {
		return 0, err
	}
	prices, ok := resp[coinID]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %s", ErrValidation, coinID)
	}
	return rateField(prices[vs], coinID+"."+vs)
}
