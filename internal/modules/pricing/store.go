// README: Pricing store backed by PostgreSQL; optional per-deployment rate overrides.
package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"roadside/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadOverrides reads the pricing_rates table. Rows with unknown service types are rejected.
func (s *Store) LoadOverrides(ctx context.Context) (Table, error) {
	rows, err := s.db.Query(ctx, `
		SELECT service_type, base_price, price_per_km, price_per_minute, minimum_charge
		FROM pricing_rates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Table{}
	for rows.Next() {
		var st string
		var r Rate
		if err := rows.Scan(&st, &r.BasePrice, &r.PricePerKm, &r.PricePerMinute, &r.MinimumCharge); err != nil {
			return nil, err
		}
		if !types.ServiceType(st).Valid() {
			return nil, fmt.Errorf("pricing_rates: %w: %q", ErrUnknownServiceType, st)
		}
		out[types.ServiceType(st)] = r
	}
	return out, rows.Err()
}
