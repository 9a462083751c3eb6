package pricing

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"roadside/internal/types"
)

func setupTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("RSA_TEST_DSN")
	if dsn == "" {
		t.Skip("RSA_TEST_DSN not set; skipping DB-backed store tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pricing_rates (
			service_type     TEXT PRIMARY KEY,
			base_price       DOUBLE PRECISION NOT NULL,
			price_per_km     DOUBLE PRECISION NOT NULL,
			price_per_minute DOUBLE PRECISION NOT NULL,
			minimum_charge   DOUBLE PRECISION NOT NULL
		)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE pricing_rates"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec(context.Background(), "TRUNCATE TABLE pricing_rates") })
	return NewStore(db), db
}

func TestStore_LoadOverrides(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	got, err := store.LoadOverrides(ctx)
	if err != nil {
		t.Fatalf("empty table: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no overrides, got %v", got)
	}

	if _, err := db.Exec(ctx, `INSERT INTO pricing_rates VALUES ('TOW', 60, 3, 1, 80)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err = store.LoadOverrides(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Rate{BasePrice: 60, PricePerKm: 3, PricePerMinute: 1, MinimumCharge: 80}
	if got[types.ServiceTow] != want {
		t.Errorf("TOW override = %+v, want %+v", got[types.ServiceTow], want)
	}

	merged := DefaultTable().Merge(got)
	if merged[types.ServiceTow] != want || merged[types.ServiceTireChange] != DefaultTable()[types.ServiceTireChange] {
		t.Errorf("unexpected merged table: %+v", merged)
	}
}

func TestStore_LoadOverridesRejectsUnknownType(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, `INSERT INTO pricing_rates VALUES ('HELICOPTER', 1, 1, 1, 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.LoadOverrides(ctx); !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("expected ErrUnknownServiceType, got %v", err)
	}
}
