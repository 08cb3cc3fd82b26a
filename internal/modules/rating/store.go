package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

var ErrAlreadyRated = errors.New("ride already rated by this customer")

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (id, ride_id, customer_id, driver_id, score, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.RideID, r.CustomerID, r.DriverID, r.Score, r.Comment, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRated
	}
	return err
}

// AverageForDriver returns the mean score across all of a driver's ratings,
// or ok=false when the driver has none yet.
func (s *PGStore) AverageForDriver(ctx context.Context, driverID types.ID) (float64, bool, error) {
	var avg *float64
	err := s.db.QueryRow(ctx,
		`SELECT AVG(score)::float8 FROM ratings WHERE driver_id = $1`, driverID,
	).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Rating, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, customer_id, driver_id, score, comment, created_at
		FROM ratings WHERE driver_id = $1 ORDER BY created_at DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.RideID, &r.CustomerID, &r.DriverID,
			&r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
