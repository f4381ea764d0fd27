//go:build integration

package integration

import (
	"testing"
	"time"

	"ratefeed/internal/rate"
	"ratefeed/internal/repository"
)

func TestConfigRepository_LoadEmpty(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresConfigRepository(testDB)

	cfg, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestConfigRepository_SaveOverwrites(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresConfigRepository(testDB)

	first := rate.DefaultPricingConfig()
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	second := first.Clone()
	second.RefreshInterval = time.Minute
	second.FallbackRate = 15.75
	second.Sources = []string{rate.SourceBinance}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored config, got nil")
	}
	if got.RefreshInterval != time.Minute || got.FallbackRate != 15.75 {
		t.Fatalf("expected second config, got %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0] != rate.SourceBinance {
		t.Fatalf("expected [binance], got %v", got.Sources)
	}

	var rows int
	if err := testDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM pricing_config").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single config row, got %d", rows)
	}
}
