// README: Driver service: registration, availability, live position and the
// rolling rating applied by the rating module.
package driver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridepool/internal/types"
)

var (
	ErrBadRequest = errors.New("invalid driver request")
)

// Store is the persistence surface the service needs. *Store satisfies it;
// tests substitute an in-memory implementation.
type Store interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetByUserID(ctx context.Context, userID types.ID) (*Driver, error)
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error
	SetAvailability(ctx context.Context, id types.ID, available bool) error
	ListAvailable(ctx context.Context) ([]*Driver, error)
	IncrementCompleted(ctx context.Context, id types.ID) error
	UpdateRating(ctx context.Context, id types.ID, rating int) error
}

// GeoIndex mirrors the location service. Drivers are tracked while available
// and dropped from the index when they go offline.
type GeoIndex interface {
	Update(ctx context.Context, driverID types.ID, pos types.Point) error
	Track(ctx context.Context, driverID types.ID, pos types.Point) error
	Untrack(ctx context.Context, driverID types.ID) error
}

type Service struct {
	store Store
	geo   GeoIndex
}

// NewService wires the driver service. geo may be nil, in which case only the
// relational position columns are maintained.
func NewService(store Store, geo GeoIndex) *Service {
	return &Service{store: store, geo: geo}
}

type RegisterCommand struct {
	UserID       types.ID
	Name         string
	Phone        string
	VehicleMake  string
	VehicleModel string
	VehiclePlate string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if cmd.UserID == "" || strings.TrimSpace(cmd.Name) == "" {
		return nil, ErrBadRequest
	}
	if strings.TrimSpace(cmd.VehiclePlate) == "" {
		return nil, ErrBadRequest
	}
	now := time.Now().UTC()
	d := &Driver{
		ID:           types.ID(uuid.NewString()),
		UserID:       cmd.UserID,
		Name:         strings.TrimSpace(cmd.Name),
		Phone:        strings.TrimSpace(cmd.Phone),
		VehicleMake:  strings.TrimSpace(cmd.VehicleMake),
		VehicleModel: strings.TrimSpace(cmd.VehicleModel),
		VehiclePlate: strings.TrimSpace(cmd.VehiclePlate),
		Rating:       defaultRating,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Profile(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ProfileByUser(ctx context.Context, userID types.ID) (*Driver, error) {
	return s.store.GetByUserID(ctx, userID)
}

// UpdateLocation persists the driver's position and refreshes the GEO index
// so matching sees the move.
func (s *Service) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	if !pos.Valid() {
		return ErrBadRequest
	}
	if err := s.store.UpdateLocation(ctx, id, pos); err != nil {
		return err
	}
	if s.geo != nil {
		return s.geo.Update(ctx, id, pos)
	}
	return nil
}

// SetAvailability flips the driver on or off duty. Going available requires a
// known position so the driver can enter the GEO index; going offline removes
// it.
func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	if s.geo == nil {
		return nil
	}
	if available {
		if d.Location == nil {
			return nil
		}
		return s.geo.Track(ctx, id, *d.Location)
	}
	return s.geo.Untrack(ctx, id)
}

// Available lists drivers currently on duty, locations included when known.
func (s *Service) Available(ctx context.Context) ([]*Driver, error) {
	return s.store.ListAvailable(ctx)
}

// SetAvailabilityByID is the ride module's gateway hook: accepting a ride
// takes the driver off the pool, completing or cancelling puts them back.
func (s *Service) SetAvailabilityByID(ctx context.Context, id types.ID, available bool) error {
	if err := s.store.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	if s.geo != nil && !available {
		return s.geo.Untrack(ctx, id)
	}
	if s.geo != nil && available {
		d, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if d.Location != nil {
			return s.geo.Track(ctx, id, *d.Location)
		}
	}
	return nil
}

// RecordCompletedRide bumps the driver's completed-ride counter.
func (s *Service) RecordCompletedRide(ctx context.Context, id types.ID) error {
	return s.store.IncrementCompleted(ctx, id)
}

// ApplyRating overwrites the driver's aggregate rating. The rating module
// computes the mean; this just stores it.
func (s *Service) ApplyRating(ctx context.Context, id types.ID, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrBadRequest
	}
	return s.store.UpdateRating(ctx, id, rating)
}
