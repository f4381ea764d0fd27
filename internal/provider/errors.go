package provider

import "errors"

// Failure kinds. Adapters wrap one of these so callers can classify a failure
// with errors.Is without parsing messages.
var (
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network failure")
	// ErrUpstream is a non-2xx response.
	ErrUpstream = errors.New("upstream error")
	// ErrValidation is an unparseable body or a missing, non-numeric or non-positive rate field.
	ErrValidation = errors.New("validation failure")
	// ErrNoSuchPair means the provider answered but does not list the requested pair.
	ErrNoSuchPair = errors.New("no such pair")
)
