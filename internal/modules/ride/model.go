// README: Ride aggregate, shared-ride passengers, and status definitions.
package ride

import (
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllowedTransitions represents the ride state flow as code. Cancellation is
// reachable from every non-terminal state; completed and cancelled are
// terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ride is the trip aggregate. StatusVersion is the optimistic concurrency
// token: every status write is conditional on the version it read, so two
// drivers cannot accept the same pending ride. Fare fields are integer minor
// currency units; EstimatedDistance is meters. Each lifecycle timestamp is
// set exactly once by its transition.
type Ride struct {
	ID                types.ID
	CustomerID        types.ID
	DriverID          *types.ID
	Pickup            types.Point
	PickupAddress     *string
	Dropoff           *types.Point
	DropoffAddress    *string
	Status            Status
	StatusVersion     int
	Shared            bool
	MaxPassengers     int
	CurrentPassengers int
	BaseFare          int64
	TotalFare         int64
	FarePerPassenger  int64
	Currency          string
	EstimatedDistance int64
	RequestedAt       time.Time
	AcceptedAt        *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
}

type PassengerStatus string

const (
	PassengerPending    PassengerStatus = "pending"
	PassengerConfirmed  PassengerStatus = "confirmed"
	PassengerPickedUp   PassengerStatus = "picked_up"
	PassengerDroppedOff PassengerStatus = "dropped_off"
	PassengerCancelled  PassengerStatus = "cancelled"
)

// Passenger is a customer who joined an existing shared ride, with their own
// pickup/dropoff and fare share.
type Passenger struct {
	ID             types.ID
	RideID         types.ID
	CustomerID     types.ID
	Pickup         types.Point
	PickupAddress  *string
	Dropoff        *types.Point
	DropoffAddress *string
	FareShare      int64
	Status         PassengerStatus
	JoinedAt       time.Time
}

// Event is an append-only audit record of one status transition.
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}
