// README: Per-ride ratings and the driver aggregate they roll into.
package rating

import (
	"time"

	"ridepool/internal/types"
)

type Rating struct {
	ID         types.ID
	RideID     types.ID
	CustomerID types.ID
	DriverID   types.ID
	Score      int
	Comment    string
	CreatedAt  time.Time
}
