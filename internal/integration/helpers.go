//go:build integration

package integration

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"ratefeed/internal/rate"
)

var (
	testDB  *sql.DB
	testRDB *redis.Client
)

// resetTestData truncates every table and flushes the current Redis database.
func resetTestData(t *testing.T) {
	t.Helper()

	_, err := testDB.ExecContext(context.Background(), "TRUNCATE TABLE pricing_config")
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	if err := testRDB.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// testContext returns a context with a 30-second deadline tied to the test's cleanup.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// stubSource returns a fixed rate and counts its fetches.
type stubSource struct {
	name  string
	value float64
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, base, target string) (rate.ConversionRate, error) {
	s.calls.Add(1)
	return rate.ConversionRate{
		From:       base,
		To:         target,
		Rate:       s.value,
		ObservedAt: time.Now().UTC(),
		Source:     s.name,
	}, nil
}
