package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"ratefeed/internal/rate"
)

// ConfigRepository stores the pricing configuration set at runtime so it
// survives restarts.
type ConfigRepository interface {
	// Load returns the stored configuration, or nil when none was saved.
	Load(ctx context.Context) (*rate.PricingConfig, error)
	Save(ctx context.Context, cfg rate.PricingConfig) error
}

// PostgresConfigRepository is an implementation of ConfigRepository using PostgreSQL.
type PostgresConfigRepository struct {
	db *sql.DB
}

// NewPostgresConfigRepository creates a new PostgresConfigRepository.
func NewPostgresConfigRepository(db *sql.DB) ConfigRepository {
	return &PostgresConfigRepository{db: db}
}

// Load reads the single configuration row.
func (r *PostgresConfigRepository) Load(ctx context.Context) (*rate.PricingConfig, error) {
	query := `SELECT base_currency, target_currency, refresh_interval_ms, fallback_rate, sources
              FROM pricing_config
              WHERE id = 1`

	var (
		cfg        rate.PricingConfig
		intervalMs int64
		sources    []byte
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&cfg.BaseCurrency, &cfg.TargetCurrency, &intervalMs, &cfg.FallbackRate, &sources)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load pricing config: %w", err)
	}
	if err := json.Unmarshal(sources, &cfg.Sources); err != nil {
		return nil, fmt.Errorf("decode stored sources: %w", err)
	}
	cfg.RefreshInterval = time.Duration(intervalMs) * time.Millisecond
	return &cfg, nil
}

// Save upserts the single configuration row.
func (r *PostgresConfigRepository) Save(ctx context.Context, cfg rate.PricingConfig) error {
	sources, err := json.Marshal(cfg.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	query := `INSERT INTO pricing_config (id, base_currency, target_currency, refresh_interval_ms, fallback_rate, sources, updated_at)
              VALUES (1, $1, $2, $3, $4, $5::jsonb, NOW())
              ON CONFLICT (id) DO UPDATE SET
                  base_currency = EXCLUDED.base_currency,
                  target_currency = EXCLUDED.target_currency,
                  refresh_interval_ms = EXCLUDED.refresh_interval_ms,
                  fallback_rate = EXCLUDED.fallback_rate,
                  sources = EXCLUDED.sources,
                  updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query,
		cfg.BaseCurrency, cfg.TargetCurrency, cfg.RefreshInterval.Milliseconds(), cfg.FallbackRate, string(sources))
	if err != nil {
		return fmt.Errorf("failed to save pricing config: %w", err)
	}
	return nil
}
