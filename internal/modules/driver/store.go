package driver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

var (
	ErrNotFound          = errors.New("driver not found")
	ErrAlreadyRegistered = errors.New("driver already registered")
)

const driverColumns = `id, user_id, name, phone, vehicle_make, vehicle_model, vehicle_plate,
	available, last_lat, last_lng, rating, total_rides, registered_at, updated_at`

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, d *Driver) error {
	var lat, lng sql.NullFloat64
	if d.Location != nil {
		lat = sql.NullFloat64{Float64: d.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: d.Location.Lng, Valid: true}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, user_id, name, phone, vehicle_make, vehicle_model, vehicle_plate,
			available, last_lat, last_lng, rating, total_rides, registered_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		d.ID, d.UserID, d.Name, d.Phone, d.VehicleMake, d.VehicleModel, d.VehiclePlate,
		d.Available, lat, lng, d.Rating, d.TotalRides, d.RegisteredAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRegistered
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	return scanDriver(row)
}

func (s *PGStore) GetByUserID(ctx context.Context, userID types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID)
	return scanDriver(row)
}

func (s *PGStore) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET last_lat = $2, last_lng = $3, updated_at = NOW()
		WHERE id = $1`, id, pos.Lat, pos.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET available = $2, updated_at = NOW()
		WHERE id = $1`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListAvailable(ctx context.Context) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+` FROM drivers
		WHERE available ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) IncrementCompleted(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET total_rides = total_rides + 1, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateRating(ctx context.Context, id types.ID, rating int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET rating = $2, updated_at = NOW()
		WHERE id = $1`, id, rating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var (
		d        Driver
		lat, lng sql.NullFloat64
		reg, upd time.Time
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Phone, &d.VehicleMake, &d.VehicleModel,
		&d.VehiclePlate, &d.Available, &lat, &lng, &d.Rating, &d.TotalRides, &reg, &upd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		d.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	d.RegisteredAt = reg
	d.UpdatedAt = upd
	return &d, nil
}
