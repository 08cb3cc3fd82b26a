// README: Ride service implements lifecycle transitions, shared-ride joins,
// and fare initialization.
package ride

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"ridepool/internal/modules/location"
	"ridepool/internal/types"
)

var (
	ErrNotFound     = errors.New("ride not found")
	ErrForbidden    = errors.New("actor does not own this ride")
	ErrInvalidState = errors.New("invalid state transition")
	ErrCapacity     = errors.New("shared ride is full")
	ErrConflict     = errors.New("ride state conflict")
	ErrBadRequest   = errors.New("bad request")
)

// Store is the persistence gateway for rides. Every status write is a
// compare-and-set keyed on (current status, status version); UpdateStatus
// reports false when another writer won the race.
type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error)
	// AddPassenger atomically increments the ride's passenger count and
	// inserts the passenger row; it reports false when the capacity or
	// status guard fails.
	AddPassenger(ctx context.Context, p *Passenger) (bool, error)
	ListShared(ctx context.Context) ([]*Ride, error)
	ListPending(ctx context.Context) ([]*Ride, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*Ride, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error)
	Passengers(ctx context.Context, rideID types.ID) ([]*Passenger, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// FareEstimator computes a per-passenger fare for a trip distance.
type FareEstimator interface {
	Estimate(ctx context.Context, distanceMeters float64, passengers int) (types.Money, error)
}

// DriverGateway applies driver-side effects of ride transitions. The ride
// status write always lands first; availability updates follow and are
// eventually consistent with it.
type DriverGateway interface {
	SetAvailabilityByID(ctx context.Context, driverID types.ID, available bool) error
	RecordCompletedRide(ctx context.Context, driverID types.ID) error
}

// Geocoder fills in missing addresses from coordinates. Optional.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Deps struct {
	Store    Store
	Pricing  FareEstimator
	Drivers  DriverGateway
	Geocoder Geocoder // nil disables address fill-in
	// SharedProximitySort orders the available-shared-rides listing by
	// pickup proximity. Off by default: the listing is filter-only.
	SharedProximitySort bool
}

type Service struct {
	store         Store
	pricing       FareEstimator
	drivers       DriverGateway
	geocoder      Geocoder
	proximitySort bool
}

func NewService(d Deps) *Service {
	return &Service{
		store:         d.Store,
		pricing:       d.Pricing,
		drivers:       d.Drivers,
		geocoder:      d.Geocoder,
		proximitySort: d.SharedProximitySort,
	}
}

type RequestCommand struct {
	CustomerID     types.ID
	Pickup         types.Point
	PickupAddress  *string
	Dropoff        *types.Point
	DropoffAddress *string
	Shared         bool
	MaxPassengers  int
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CancelCommand struct {
	RideID     types.ID
	CustomerID types.ID
	Reason     string
}

type JoinCommand struct {
	RideID         types.ID
	CustomerID     types.ID
	Pickup         types.Point
	PickupAddress  *string
	Dropoff        *types.Point
	DropoffAddress *string
}

// Request creates a ride in pending with the requester as the first
// passenger. When a dropoff is given, the estimated distance and base fare
// are computed up front; a shared ride's base fare is quoted per seat at
// full occupancy.
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (types.ID, error) {
	if cmd.CustomerID == "" || !cmd.Pickup.Valid() {
		return "", ErrBadRequest
	}
	if cmd.MaxPassengers == 0 {
		cmd.MaxPassengers = 1
	}
	if cmd.MaxPassengers < 1 || cmd.MaxPassengers > 4 {
		return "", ErrBadRequest
	}
	if cmd.Dropoff != nil && !cmd.Dropoff.Valid() {
		return "", ErrBadRequest
	}

	seats := 1
	if cmd.Shared {
		seats = cmd.MaxPassengers
	}

	var estimatedDistance int64
	fare, err := s.pricing.Estimate(ctx, 0, 1)
	if err != nil {
		return "", err
	}
	if cmd.Dropoff != nil {
		dist := location.DistanceMeters(cmd.Pickup, *cmd.Dropoff)
		estimatedDistance = int64(math.Round(dist))
		fare, err = s.pricing.Estimate(ctx, dist, seats)
		if err != nil {
			return "", err
		}
	}

	r := &Ride{
		ID:                newID(),
		CustomerID:        cmd.CustomerID,
		Pickup:            cmd.Pickup,
		PickupAddress:     cmd.PickupAddress,
		Dropoff:           cmd.Dropoff,
		DropoffAddress:    cmd.DropoffAddress,
		Status:            StatusPending,
		StatusVersion:     0,
		Shared:            cmd.Shared,
		MaxPassengers:     cmd.MaxPassengers,
		CurrentPassengers: 1,
		BaseFare:          fare.Amount,
		TotalFare:         fare.Amount,
		FarePerPassenger:  fare.Amount,
		Currency:          fare.Currency,
		EstimatedDistance: estimatedDistance,
		RequestedAt:       time.Now().UTC(),
	}
	s.fillAddresses(ctx, r)

	if err := s.store.Create(ctx, r); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "customer",
		ActorID:    &cmd.CustomerID,
		CreatedAt:  r.RequestedAt,
	})
	return r.ID, nil
}

// Accept binds a driver to a pending ride and marks the driver unavailable.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusAccepted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusAccepted, r.StatusVersion, &cmd.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := s.drivers.SetAvailabilityByID(ctx, cmd.DriverID, false); err != nil {
		return err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusPending,
		ToStatus:   StatusAccepted,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// Start moves an accepted ride to in_progress. Only the bound driver may
// start it.
func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != cmd.DriverID {
		return ErrForbidden
	}
	if !CanTransition(r.Status, StatusInProgress) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusInProgress, r.StatusVersion, r.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusAccepted,
		ToStatus:   StatusInProgress,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// Complete finishes an in-progress ride, frees the driver, and bumps their
// completed-ride counter.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != cmd.DriverID {
		return ErrForbidden
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCompleted, r.StatusVersion, r.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := s.drivers.SetAvailabilityByID(ctx, cmd.DriverID, true); err != nil {
		return err
	}
	if err := s.drivers.RecordCompletedRide(ctx, cmd.DriverID); err != nil {
		return err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusInProgress,
		ToStatus:   StatusCompleted,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// Cancel aborts a non-terminal ride. Only the requesting customer may cancel;
// a bound driver is released back to the available pool.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.CustomerID != cmd.CustomerID {
		return ErrForbidden
	}
	if r.Status.Terminal() {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, r.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if r.DriverID != nil {
		if err := s.drivers.SetAvailabilityByID(ctx, *r.DriverID, true); err != nil {
			return err
		}
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusCancelled,
		ActorType:  "customer",
		ActorID:    &cmd.CustomerID,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// JoinShared admits a passenger into a shared ride. The new passenger's fare
// share is the base fare split across the new passenger count; the increment
// of the ride's passenger count and the passenger insert happen atomically in
// the store. Existing passengers' stored shares are left as quoted.
func (s *Service) JoinShared(ctx context.Context, cmd JoinCommand) (*Ride, *Passenger, error) {
	if cmd.CustomerID == "" || !cmd.Pickup.Valid() {
		return nil, nil, ErrBadRequest
	}
	if cmd.Dropoff != nil && !cmd.Dropoff.Valid() {
		return nil, nil, ErrBadRequest
	}

	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, nil, err
	}
	if !r.Shared {
		return nil, nil, ErrNotFound
	}
	if r.CurrentPassengers >= r.MaxPassengers {
		return nil, nil, ErrCapacity
	}
	if r.Status != StatusPending && r.Status != StatusAccepted {
		return nil, nil, ErrInvalidState
	}

	newCount := r.CurrentPassengers + 1
	share := int64(math.Round(float64(r.BaseFare) / float64(newCount)))

	p := &Passenger{
		ID:             newID(),
		RideID:         r.ID,
		CustomerID:     cmd.CustomerID,
		Pickup:         cmd.Pickup,
		PickupAddress:  cmd.PickupAddress,
		Dropoff:        cmd.Dropoff,
		DropoffAddress: cmd.DropoffAddress,
		FareShare:      share,
		Status:         PassengerPending,
		JoinedAt:       time.Now().UTC(),
	}

	ok, err := s.store.AddPassenger(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		// Guard lost between the read and the insert.
		return nil, nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, p, nil
}

// AvailableShared lists joinable shared rides: shared, pending or accepted,
// with spare capacity. The listing is filter-only unless proximity ordering
// was enabled.
func (s *Service) AvailableShared(ctx context.Context, pickup types.Point) ([]*Ride, error) {
	rides, err := s.store.ListShared(ctx)
	if err != nil {
		return nil, err
	}
	if s.proximitySort && pickup.Valid() {
		location.SortByDistance(rides, func(r *Ride) float64 {
			return location.DistanceMeters(pickup, r.Pickup)
		})
	}
	return rides, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// Pending lists rides still waiting for a driver.
func (s *Service) Pending(ctx context.Context) ([]*Ride, error) {
	return s.store.ListPending(ctx)
}

// CustomerHistory returns a customer's rides, newest first.
func (s *Service) CustomerHistory(ctx context.Context, customerID types.ID) ([]*Ride, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// DriverHistory returns a driver's rides, newest first.
func (s *Service) DriverHistory(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	return s.store.ListByDriver(ctx, driverID)
}

// Passengers returns the joined passengers of a shared ride.
func (s *Service) Passengers(ctx context.Context, rideID types.ID) ([]*Passenger, error) {
	return s.store.Passengers(ctx, rideID)
}

// fillAddresses reverse-geocodes missing addresses. Best effort: a geocoding
// failure never blocks the ride request.
func (s *Service) fillAddresses(ctx context.Context, r *Ride) {
	if s.geocoder == nil {
		return
	}
	if r.PickupAddress == nil {
		if addr, err := s.geocoder.ReverseGeocode(ctx, r.Pickup); err == nil && addr != "" {
			r.PickupAddress = &addr
		}
	}
	if r.DropoffAddress == nil && r.Dropoff != nil {
		if addr, err := s.geocoder.ReverseGeocode(ctx, *r.Dropoff); err == nil && addr != "" {
			r.DropoffAddress = &addr
		}
	}
}

func newID() types.ID {
	return types.ID(uuid.NewString())
}
