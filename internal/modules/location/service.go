// README: Location service keeps the driver GEO index and snapshot trail current.
package location

import (
	"context"
	"errors"
	"time"

	"ridepool/internal/types"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Update records a driver's current position in the GEO index and appends a
// snapshot row. The index write goes first so matching sees fresh positions
// even if the snapshot insert fails.
func (s *Service) Update(ctx context.Context, driverID types.ID, pos types.Point) error {
	if !pos.Valid() {
		return ErrInvalidCoordinates
	}
	if err := s.store.SetGeo(ctx, driverID, pos); err != nil {
		return err
	}
	return s.store.AppendSnapshot(ctx, Snapshot{
		DriverID:   driverID,
		Position:   pos,
		RecordedAt: time.Now().UTC(),
	})
}

// Track adds a driver to the GEO index without a snapshot, used when a driver
// goes online at a known position.
func (s *Service) Track(ctx context.Context, driverID types.ID, pos types.Point) error {
	if !pos.Valid() {
		return ErrInvalidCoordinates
	}
	return s.store.SetGeo(ctx, driverID, pos)
}

// Untrack removes a driver from the GEO index, used when a driver goes offline.
func (s *Service) Untrack(ctx context.Context, driverID types.ID) error {
	return s.store.RemoveGeo(ctx, driverID)
}

// Nearby returns driver ids within radiusKm of p, nearest first.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	if !p.Valid() {
		return nil, ErrInvalidCoordinates
	}
	return s.store.NearbyDriverIDs(ctx, p, radiusKm)
}
