// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoRate = errors.New("no rate configured")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ActiveRate returns the most recently configured rate.
func (s *Store) ActiveRate(ctx context.Context) (Rate, error) {
	row := s.db.QueryRow(ctx, `
        SELECT base_fare, per_km, currency
        FROM fare_rates
        ORDER BY created_at DESC
        LIMIT 1`)

	var r Rate
	err := row.Scan(&r.BaseFare, &r.PerKm, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNoRate
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}
