package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"ratefeed/internal/rate"
)

var _ Source = (*BinanceSource)(nil)

// DefaultBinanceURL is the public Binance API root.
const DefaultBinanceURL = "https://api.binance.com"

// Binance error code for an unknown trading symbol.
const binanceInvalidSymbol = -1121

const (
	bridgeStable = "USDT"
	stageInverse = "inverse"
	stageApprox  = "approx"
)

// approxUSDPerBase is a static USD value of one base unit, used only by the
// last-resort derivation. It is not live data.
// TODO: replace with a USD quote from one of the other sources once they expose one.
var approxUSDPerBase = map[string]float64{
	"GHS": 0.061,
}

// BinanceSource derives the rate from spot tickers, bridging through USDT
// because Binance does not list fiat pairs against USDC.
type BinanceSource struct {
	baseURL string
	client  *http.Client
	relay   Relayer
	now     Clock
	log     *zap.SugaredLogger
}

// NewBinanceSource creates a BinanceSource. relay may be nil to disable the proxy fallback.
func NewBinanceSource(baseURL string, timeoutSec int, relay Relayer, log *zap.SugaredLogger) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &BinanceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeoutSec),
		relay:   relay,
		now:     systemClock,
		log:     log,
	}
}

// Name returns the source id.
func (s *BinanceSource) Name() string { return rate.SourceBinance }

// BinanceTickerURL forms the ticker price URL for symbol.
func BinanceTickerURL(baseURL, symbol string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol)
}

type binanceTicker struct {
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Fetch returns base units per one target unit, trying the direct bridge,
// then the inverse bridge, then the approximate USD route.
func (s *BinanceSource) Fetch(ctx context.Context, base, target string) (rate.ConversionRate, error) {
	base = strings.ToUpper(base)
	target = strings.ToUpper(target)

	// Every derivation needs target→USDT; fetch it at most once per call.
	var (
		targetLeg     Quote
		targetLegErr  error
		targetFetched bool
	)
	targetStable := func(ctx context.Context) (Quote, error) {
		if !targetFetched {
			targetFetched = true
			if target == bridgeStable {
				targetLeg = Quote{Value: 1, Route: RouteDirect}
			} else {
				targetLeg, targetLegErr = s.ticker(ctx, target+bridgeStable)
			}
		}
		return targetLeg, targetLegErr
	}

	steps := []Step{
		{Run: func(ctx context.Context) (Quote, error) {
			t, err := targetStable(ctx)
			if err != nil {
				return Quote{}, err
			}
			b, err := s.ticker(ctx, bridgeStable+base)
			if err != nil {
				return Quote{}, err
			}
			return combine(t.Value*b.Value, t, b)
		}},
		{Stage: stageInverse, Run: func(ctx context.Context) (Quote, error) {
			t, err := targetStable(ctx)
			if err != nil {
				return Quote{}, err
			}
			b, err := s.ticker(ctx, base+bridgeStable)
			if err != nil {
				return Quote{}, err
			}
			return combine(t.Value/b.Value, t, b)
		}},
		{Stage: stageApprox, Run: func(ctx context.Context) (Quote, error) {
			usdPerBase, ok := approxUSDPerBase[base]
			if !ok {
				return Quote{}, fmt.Errorf("%w: no USD approximation for %s", ErrNoSuchPair, base)
			}
			t, err := targetStable(ctx)
			if err != nil {
				return Quote{}, err
			}
			parity, err := s.ticker(ctx, bridgeStable+"USD")
			if err != nil {
				s.log.Debugw("USDTUSD unavailable, assuming parity", "error", err)
				parity = Quote{Value: 1, Route: RouteDirect}
			}
			s.log.Warnw("using static USD approximation for base currency",
				"base", base,
				"usd_per_unit", usdPerBase,
			)
			return combine(t.Value*parity.Value/usdPerBase, t, parity)
		}},
	}

	q, stage, err := FirstSuccess(ctx, steps...)
	if err != nil {
		return rate.ConversionRate{}, fmt.Errorf("binance: %w", err)
	}
	return rate.ConversionRate{
		From:       base,
		To:         target,
		Rate:       q.Value,
		ObservedAt: s.now(),
		Source:     Label(rate.SourceBinance, stage, q.Route),
	}, nil
}

// combine validates a derived value and marks it relayed when any leg was.
func combine(v float64, legs ...Quote) (Quote, error) {
	if !rate.Valid(v) {
		return Quote{}, fmt.Errorf("%w: derived value %v is unusable", ErrValidation, v)
	}
	route := RouteDirect
	for _, l := range legs {
		route = worse(route, l.Route)
	}
	return Quote{Value: v, Route: route}, nil
}

// ticker fetches one symbol's price, direct first and then through the relay
// unless the direct call established that the symbol does not exist.
func (s *BinanceSource) ticker(ctx context.Context, symbol string) (Quote, error) {
	direct := func(ctx context.Context) (float64, error) {
		body, status, err := getBody(ctx, s.client, BinanceTickerURL(s.baseURL, symbol))
		if err != nil {
			if status == http.StatusBadRequest && isInvalidSymbol(body) {
				return 0, fmt.Errorf("%w: %s: %w", ErrNoSuchPair, symbol, err)
			}
			return 0, err
		}
		return parseBinanceTicker(body)
	}

	var relay func(ctx context.Context) (float64, error)
	if s.relay != nil {
		relay = func(ctx context.Context) (float64, error) {
			body, err := s.relay.FetchViaRelay(ctx, rate.SourceBinance, symbol)
			if err != nil {
				return 0, err
			}
			return parseBinanceTicker(body)
		}
	}

	q, _, err := FirstSuccess(ctx, directThenRelay(direct, relay)...)
	if err != nil {
		return Quote{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	return q, nil
}

func parseBinanceTicker(body []byte) (float64, error) {
	var t binanceTicker
	if err := decode(body, &t); err != nil {
		return 0, err
	}
	return rateField(t.Price, "price")
}

func isInvalidSymbol(body []byte) bool {
	var e binanceError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Code == binanceInvalidSymbol
}
