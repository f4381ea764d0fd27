package provider

import (
	"context"
	"net/http"
	"net/url"
)

// Relayer is the proxy fallback layer: it repeats a logical provider request
// through the relay endpoint.
type Relayer interface {
	FetchViaRelay(ctx context.Context, source, symbol string) ([]byte, error)
}

var _ Relayer = (*RelayClient)(nil)

// RelayClient calls the relay endpoint with source/symbol query parameters.
type RelayClient struct {
	endpoint string
	client   *http.Client
}

// NewRelayClient creates a RelayClient for the relay at endpoint, e.g.
// "http://localhost:8080/api/proxy".
func NewRelayClient(endpoint string, timeoutSec int) *RelayClient {
	return &RelayClient{
		endpoint: endpoint,
		client:   newHTTPClient(timeoutSec),
	}
}

// FetchViaRelay returns the upstream body forwarded by the relay. The same
// status and JSON checks as a direct fetch apply; field validation is left to
// the adapter's parser.
func (c *RelayClient) FetchViaRelay(ctx context.Context, source, symbol string) ([]byte, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("symbol", symbol)
	body, _, err := getBody(ctx, c.client, c.endpoint+"?"+q.Encode())
	return body, err
}
