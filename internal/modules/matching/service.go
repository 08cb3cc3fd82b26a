// README: Matching ranks available drivers by straight-line distance to a
// pickup point. A Redis GEO index, when wired, narrows the candidate set
// before the exact sort.
package matching

import (
	"context"
	"errors"

	"ridepool/internal/modules/driver"
	"ridepool/internal/modules/location"
	"ridepool/internal/types"
)

const (
	// DefaultLimit bounds the result set when the caller does not say.
	DefaultLimit = 5

	// DefaultRadiusKm bounds the GEO index prefilter.
	DefaultRadiusKm = 50.0
)

var ErrInvalidPickup = errors.New("invalid pickup point")

// DriverSource is the slice of the driver service matching needs.
type DriverSource interface {
	Available(ctx context.Context) ([]*driver.Driver, error)
	Profile(ctx context.Context, id types.ID) (*driver.Driver, error)
}

// GeoSource narrows candidates by index lookup. Optional.
type GeoSource interface {
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type Match struct {
	Driver         *driver.Driver
	DistanceMeters float64
}

type Service struct {
	drivers  DriverSource
	geo      GeoSource
	radiusKm float64
}

// NewService wires the matcher. geo may be nil; matching then scans every
// available driver. radiusKm <= 0 falls back to DefaultRadiusKm.
func NewService(drivers DriverSource, geo GeoSource, radiusKm float64) *Service {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Service{drivers: drivers, geo: geo, radiusKm: radiusKm}
}

// NearestDrivers returns up to limit available drivers ordered by distance
// from pickup, nearest first. Drivers without a known location are skipped.
// Equidistant drivers keep their listing order.
func (s *Service) NearestDrivers(ctx context.Context, pickup types.Point, limit int) ([]Match, error) {
	if !pickup.Valid() {
		return nil, ErrInvalidPickup
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	candidates, err := s.candidates(ctx, pickup)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(candidates))
	for _, d := range candidates {
		if d.Location == nil {
			continue
		}
		matches = append(matches, Match{
			Driver:         d,
			DistanceMeters: location.DistanceMeters(pickup, *d.Location),
		})
	}
	location.SortByDistance(matches, func(m Match) float64 { return m.DistanceMeters })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// candidates prefers the GEO index but falls back to a full scan of available
// drivers when the index is absent or empty.
func (s *Service) candidates(ctx context.Context, pickup types.Point) ([]*driver.Driver, error) {
	if s.geo != nil {
		ids, err := s.geo.Nearby(ctx, pickup, s.radiusKm)
		if err == nil && len(ids) > 0 {
			out := make([]*driver.Driver, 0, len(ids))
			for _, id := range ids {
				d, err := s.drivers.Profile(ctx, id)
				if err != nil {
					continue
				}
				if d.Available {
					out = append(out, d)
				}
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	}
	return s.drivers.Available(ctx)
}
