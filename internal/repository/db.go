// Package repository persists the pricing configuration overrides.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratefeed/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver registration
)

const storePingTimeout = 5 * time.Second

// OpenConfigStore opens the Postgres pool holding the pricing_config table.
// The pool is small: the table is read once on start and written only on a
// configuration change.
func OpenConfigStore(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping config store %s/%s: %w", cfg.Host, cfg.Name, err)
	}
	return db, nil
}
