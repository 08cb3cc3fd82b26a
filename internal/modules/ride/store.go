// README: Ride store backed by PostgreSQL.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rideColumns = `
        id, customer_id, driver_id,
        pickup_lat, pickup_lng, pickup_address,
        dropoff_lat, dropoff_lng, dropoff_address,
        status, status_version, is_shared, max_passengers, current_passengers,
        base_fare, total_fare, fare_per_passenger, currency, estimated_distance,
        requested_at, accepted_at, started_at, completed_at, cancelled_at`

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	var dropLat, dropLng *float64
	if r.Dropoff != nil {
		dropLat, dropLng = &r.Dropoff.Lat, &r.Dropoff.Lng
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO rides (
            id, customer_id, driver_id,
            pickup_lat, pickup_lng, pickup_address,
            dropoff_lat, dropoff_lng, dropoff_address,
            status, status_version, is_shared, max_passengers, current_passengers,
            base_fare, total_fare, fare_per_passenger, currency, estimated_distance,
            requested_at
        ) VALUES (
            $1, $2, $3,
            $4, $5, $6,
            $7, $8, $9,
            $10, $11, $12, $13, $14,
            $15, $16, $17, $18, $19,
            $20
        )`,
		string(r.ID),
		string(r.CustomerID),
		idPtr(r.DriverID),
		r.Pickup.Lat, r.Pickup.Lng, r.PickupAddress,
		dropLat, dropLng, r.DropoffAddress,
		string(r.Status),
		r.StatusVersion,
		r.Shared,
		r.MaxPassengers,
		r.CurrentPassengers,
		r.BaseFare, r.TotalFare, r.FarePerPassenger, r.Currency, r.EstimatedDistance,
		r.RequestedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	r, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateStatus is the single serialization point for ride transitions: the
// row is updated only when both its status and version still match what the
// caller read. The version bump invalidates every concurrent reader.
func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE rides
        SET status = $1,
            status_version = status_version + 1,
            driver_id = COALESCE($2, driver_id),
            accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
            started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		idPtr(driverID),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddPassenger runs the join as one transaction: a guarded increment of the
// ride's passenger count followed by the passenger insert. A zero-row
// increment means capacity, status, or sharing changed underneath the caller.
func (s *PGStore) AddPassenger(ctx context.Context, p *Passenger) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE rides
        SET current_passengers = current_passengers + 1
        WHERE id = $1
          AND is_shared
          AND status IN ('pending', 'accepted')
          AND current_passengers < max_passengers`,
		string(p.RideID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	var dropLat, dropLng *float64
	if p.Dropoff != nil {
		dropLat, dropLng = &p.Dropoff.Lat, &p.Dropoff.Lng
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO ride_passengers (
            id, ride_id, customer_id,
            pickup_lat, pickup_lng, pickup_address,
            dropoff_lat, dropoff_lng, dropoff_address,
            fare_share, status, joined_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(p.ID),
		string(p.RideID),
		string(p.CustomerID),
		p.Pickup.Lat, p.Pickup.Lng, p.PickupAddress,
		dropLat, dropLng, p.DropoffAddress,
		p.FareShare,
		string(p.Status),
		p.JoinedAt,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PGStore) ListShared(ctx context.Context) ([]*Ride, error) {
	return s.list(ctx, `
        SELECT `+rideColumns+`
        FROM rides
        WHERE is_shared
          AND status IN ('pending', 'accepted')
          AND current_passengers < max_passengers
        ORDER BY requested_at DESC`)
}

func (s *PGStore) ListPending(ctx context.Context) ([]*Ride, error) {
	return s.list(ctx, `
        SELECT `+rideColumns+`
        FROM rides
        WHERE status = 'pending'
        ORDER BY requested_at ASC`)
}

func (s *PGStore) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Ride, error) {
	return s.list(ctx, `
        SELECT `+rideColumns+`
        FROM rides
        WHERE customer_id = $1
        ORDER BY requested_at DESC`, string(customerID))
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	return s.list(ctx, `
        SELECT `+rideColumns+`
        FROM rides
        WHERE driver_id = $1
        ORDER BY requested_at DESC`, string(driverID))
}

func (s *PGStore) Passengers(ctx context.Context, rideID types.ID) ([]*Passenger, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, ride_id, customer_id,
               pickup_lat, pickup_lng, pickup_address,
               dropoff_lat, dropoff_lng, dropoff_address,
               fare_share, status, joined_at
        FROM ride_passengers
        WHERE ride_id = $1
        ORDER BY joined_at ASC`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Passenger
	for rows.Next() {
		var p Passenger
		var pickupAddr, dropoffAddr sql.NullString
		var dropLat, dropLng sql.NullFloat64
		err := rows.Scan(
			&p.ID, &p.RideID, &p.CustomerID,
			&p.Pickup.Lat, &p.Pickup.Lng, &pickupAddr,
			&dropLat, &dropLng, &dropoffAddr,
			&p.FareShare, &p.Status, &p.JoinedAt,
		)
		if err != nil {
			return nil, err
		}
		if pickupAddr.Valid {
			p.PickupAddress = &pickupAddr.String
		}
		if dropoffAddr.Valid {
			p.DropoffAddress = &dropoffAddr.String
		}
		if dropLat.Valid && dropLng.Valid {
			p.Dropoff = &types.Point{Lat: dropLat.Float64, Lng: dropLng.Float64}
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO ride_state_events (
            ride_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) list(ctx context.Context, query string, args ...any) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*Ride, error) {
	var r Ride
	var driverID, pickupAddr, dropoffAddr sql.NullString
	var dropLat, dropLng sql.NullFloat64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.CustomerID, &driverID,
		&r.Pickup.Lat, &r.Pickup.Lng, &pickupAddr,
		&dropLat, &dropLng, &dropoffAddr,
		&r.Status, &r.StatusVersion, &r.Shared, &r.MaxPassengers, &r.CurrentPassengers,
		&r.BaseFare, &r.TotalFare, &r.FarePerPassenger, &r.Currency, &r.EstimatedDistance,
		&r.RequestedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	if pickupAddr.Valid {
		r.PickupAddress = &pickupAddr.String
	}
	if dropoffAddr.Valid {
		r.DropoffAddress = &dropoffAddr.String
	}
	if dropLat.Valid && dropLng.Valid {
		r.Dropoff = &types.Point{Lat: dropLat.Float64, Lng: dropLng.Float64}
	}
	r.AcceptedAt = timePtr(acceptedAt)
	r.StartedAt = timePtr(startedAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	return &r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
