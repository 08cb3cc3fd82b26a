// README: Driver profile, availability and rolling rating.
package driver

import (
	"time"

	"ridepool/internal/types"
)

const defaultRating = 5

type Driver struct {
	ID           types.ID
	UserID       types.ID
	Name         string
	Phone        string
	VehicleMake  string
	VehicleModel string
	VehiclePlate string

	Available bool
	Location  *types.Point

	// Rating is the rounded mean of completed-ride ratings. New drivers
	// start at defaultRating until their first rating lands.
	Rating     int
	TotalRides int

	RegisteredAt time.Time
	UpdatedAt    time.Time
}
