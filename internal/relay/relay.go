// Package relay implements the proxy endpoint that repeats a provider request
// on behalf of a client that cannot reach the provider directly.
package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"ratefeed/internal/provider"
	"ratefeed/internal/rate"
)

// ErrConfiguration means the request names a source or symbol the relay does not serve.
var ErrConfiguration = errors.New("relay configuration error")

var (
	binanceSymbol  = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
	coinbaseSymbol = regexp.MustCompile(`^[A-Z]{3,5}$`)
)

const coinGeckoSymbol = "USDCGHS"

// Upstreams holds the provider API roots the relay forwards to.
type Upstreams struct {
	CoinGecko string
	Binance   string
	Coinbase  string
}

// Handler serves GET /api/proxy?source=<id>&symbol=<sym>.
type Handler struct {
	upstreams Upstreams
	client    *http.Client
	log       *zap.SugaredLogger
}

// NewHandler creates a relay Handler. Empty upstream roots fall back to the public APIs.
func NewHandler(upstreams Upstreams, timeoutSec int, log *zap.SugaredLogger) *Handler {
	if upstreams.CoinGecko == "" {
		upstreams.CoinGecko = provider.DefaultCoinGeckoURL
	}
	if upstreams.Binance == "" {
		upstreams.Binance = provider.DefaultBinanceURL
	}
	if upstreams.Coinbase == "" {
		upstreams.Coinbase = provider.DefaultCoinbaseURL
	}
	timeout := provider.DefaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return &Handler{
		upstreams: upstreams,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

// UpstreamURL maps a source id and symbol to the provider URL a direct fetch would use.
func (h *Handler) UpstreamURL(source, symbol string) (string, error) {
	switch source {
	case rate.SourceCoinGecko:
		if symbol != coinGeckoSymbol {
			return "", fmt.Errorf("%w: unsupported symbol %q for %s", ErrConfiguration, symbol, source)
		}
		return provider.CoinGeckoURL(h.upstreams.CoinGecko, "usd-coin", "ghs"), nil
	case rate.SourceBinance:
		if !binanceSymbol.MatchString(symbol) {
			return "", fmt.Errorf("%w: invalid symbol %q for %s", ErrConfiguration, symbol, source)
		}
		return provider.BinanceTickerURL(h.upstreams.Binance, symbol), nil
	case rate.SourceCoinbase:
		if !coinbaseSymbol.MatchString(symbol) {
			return "", fmt.Errorf("%w: invalid symbol %q for %s", ErrConfiguration, symbol, source)
		}
		return provider.CoinbaseURL(h.upstreams.Coinbase, symbol), nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrConfiguration, source)
	}
}

// ServeHTTP godoc
// @Summary Relay a provider request
// @Description Repeats a provider request server-side and forwards the upstream body, status and content type verbatim. The body is not validated.
// @Tags relay
// @Produce json
// @Param source query string true "Source id" Enums(coingecko, binance, coinbase)
// @Param symbol query string true "Provider symbol, e.g. USDCGHS, USDTGHS, USDC"
// @Success 200 {string} string "Upstream body"
// @Failure 400 {object} errorBody "Missing or unsupported source/symbol"
// @Failure 500 {object} errorBody "Upstream unreachable"
// @Router /api/proxy [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if source == "" || symbol == "" {
		writeError(w, http.StatusBadRequest, "source and symbol query params are required")
		return
	}

	upstream, err := h.UpstreamURL(source, symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, http.NoBody)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warnw("relay upstream request failed",
			"source", source,
			"symbol", symbol,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Warnw("relay body copy interrupted", "source", source, "symbol", symbol, "error", err)
	}
}

type errorBody struct {
	Error string `json:"error" example:"unknown source \"kraken\""`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
