package provider

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"

	"ratefeed/internal/rate"
)

// rateField parses a JSON value that holds a rate either as a number or as a
// decimal string, and checks that it is usable.
func rateField(raw json.RawMessage, name string) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing field %s", ErrValidation, name)
	}

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: field %s: %w", ErrValidation, name, err)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s is not numeric: %q", ErrValidation, name, s)
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: field %s is not numeric: %s", ErrValidation, name, truncate(raw))
	}

	if !rate.Valid(v) {
		return 0, fmt.Errorf("%w: field %s has unusable value %v", ErrValidation, name, v)
	}
	return v, nil
}

func decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrValidation, err)
	}
	return nil
}
