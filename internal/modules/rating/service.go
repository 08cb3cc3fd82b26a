// README: Rating service: completed rides only, rater must have been on the
// ride, and every new score re-derives the driver's aggregate.
package rating

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

var (
	ErrBadRequest   = errors.New("score must be between 1 and 5")
	ErrForbidden    = errors.New("customer was not on this ride")
	ErrInvalidState = errors.New("ride is not rateable")
)

// Store is the persistence surface. *PGStore satisfies it.
type Store interface {
	Create(ctx context.Context, r *Rating) error
	AverageForDriver(ctx context.Context, driverID types.ID) (float64, bool, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Rating, error)
}

// RideSource is the slice of the ride service ratings need.
type RideSource interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
	Passengers(ctx context.Context, rideID types.ID) ([]*ride.Passenger, error)
}

// DriverSink receives the recomputed aggregate after each new score.
type DriverSink interface {
	ApplyRating(ctx context.Context, driverID types.ID, rating int) error
}

type Service struct {
	store   Store
	rides   RideSource
	drivers DriverSink
}

func NewService(store Store, rides RideSource, drivers DriverSink) *Service {
	return &Service{store: store, rides: rides, drivers: drivers}
}

type RateCommand struct {
	RideID     types.ID
	CustomerID types.ID
	Score      int
	Comment    string
}

// Rate records a score for a completed ride and pushes the driver's new
// rounded mean to the driver service. Half scores round up.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Rating, error) {
	if cmd.Score < 1 || cmd.Score > 5 {
		return nil, ErrBadRequest
	}
	r, err := s.rides.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	onRide := r.CustomerID == cmd.CustomerID
	if !onRide && r.Shared {
		passengers, err := s.rides.Passengers(ctx, cmd.RideID)
		if err != nil {
			return nil, err
		}
		for _, p := range passengers {
			if p.CustomerID == cmd.CustomerID {
				onRide = true
				break
			}
		}
	}
	if !onRide {
		return nil, ErrForbidden
	}
	if r.Status != ride.StatusCompleted || r.DriverID == nil {
		return nil, ErrInvalidState
	}

	rec := &Rating{
		ID:         types.ID(uuid.NewString()),
		RideID:     cmd.RideID,
		CustomerID: cmd.CustomerID,
		DriverID:   *r.DriverID,
		Score:      cmd.Score,
		Comment:    cmd.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	avg, ok, err := s.store.AverageForDriver(ctx, rec.DriverID)
	if err != nil {
		return nil, err
	}
	if ok && s.drivers != nil {
		if err := s.drivers.ApplyRating(ctx, rec.DriverID, int(math.Round(avg))); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// ForDriver lists a driver's ratings, newest first.
func (s *Service) ForDriver(ctx context.Context, driverID types.ID) ([]*Rating, error) {
	return s.store.ListByDriver(ctx, driverID)
}
