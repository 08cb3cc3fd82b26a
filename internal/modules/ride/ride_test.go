// README: Ride service tests (state machine, lifecycle flows, fares).
package ride

import (
	"context"
	"math"
	"testing"

	"ridepool/internal/modules/location"
	"ridepool/internal/modules/pricing"
	"ridepool/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// cancels from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusAccepted, false},
		// invalid: skipping or reversing states
		{StatusPending, StatusInProgress, false},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, false},
		{StatusInProgress, StatusAccepted, false},
		{StatusAccepted, StatusPending, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func newTestService() (*Service, *memStore, *mockDriverGateway) {
	store := newMemStore()
	drivers := newMockDriverGateway()
	svc := NewService(Deps{
		Store:   store,
		Pricing: pricing.NewService(nil),
		Drivers: drivers,
	})
	return svc, store, drivers
}

func mustRequest(t *testing.T, svc *Service, cmd RequestCommand) types.ID {
	t.Helper()
	id, err := svc.Request(context.Background(), cmd)
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return id
}

func assertStatus(t *testing.T, svc *Service, rideID types.ID, want Status) {
	t.Helper()
	r, err := svc.Get(context.Background(), rideID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if r.Status != want {
		t.Fatalf("expected status %s, got %s", want, r.Status)
	}
}

func TestRequestRideComputesDistanceAndFare(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	pickup := types.Point{Lat: 33.5, Lng: 36.2}
	dropoff := types.Point{Lat: 33.51, Lng: 36.21}
	id := mustRequest(t, svc, RequestCommand{
		CustomerID: "c1",
		Pickup:     pickup,
		Dropoff:    &dropoff,
	})

	r, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if r.CurrentPassengers != 1 {
		t.Fatalf("expected 1 passenger, got %d", r.CurrentPassengers)
	}
	if r.EstimatedDistance <= 0 {
		t.Fatalf("expected positive estimated distance, got %d", r.EstimatedDistance)
	}

	dist := location.DistanceMeters(pickup, dropoff)
	want, err := pricing.NewService(nil).Estimate(ctx, dist, 1)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if r.BaseFare != want.Amount {
		t.Fatalf("base fare %d does not match estimate %d", r.BaseFare, want.Amount)
	}
	if r.TotalFare != r.BaseFare || r.FarePerPassenger != r.BaseFare {
		t.Fatal("total fare and per-passenger fare must start equal to the base fare")
	}
}

func TestRequestRideWithoutDropoffUsesFlatBase(t *testing.T) {
	svc, _, _ := newTestService()

	id := mustRequest(t, svc, RequestCommand{
		CustomerID: "c1",
		Pickup:     types.Point{Lat: 33.5, Lng: 36.2},
	})

	r, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if r.BaseFare != 500 {
		t.Fatalf("expected flat base fare 500, got %d", r.BaseFare)
	}
	if r.EstimatedDistance != 0 {
		t.Fatalf("expected zero estimated distance, got %d", r.EstimatedDistance)
	}
}

func TestRequestSharedRideQuotesPerSeat(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	pickup := types.Point{Lat: 33.5, Lng: 36.2}
	dropoff := types.Point{Lat: 33.52, Lng: 36.22}
	id := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c1",
		Pickup:        pickup,
		Dropoff:       &dropoff,
		Shared:        true,
		MaxPassengers: 3,
	})

	r, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	dist := location.DistanceMeters(pickup, dropoff)
	want, _ := pricing.NewService(nil).Estimate(ctx, dist, 3)
	if r.BaseFare != want.Amount {
		t.Fatalf("shared base fare %d, want per-seat quote %d", r.BaseFare, want.Amount)
	}
}

func TestRequestRideValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Request(ctx, RequestCommand{Pickup: types.Point{Lat: 1, Lng: 1}}); err != ErrBadRequest {
		t.Fatalf("missing customer: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Request(ctx, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 91, Lng: 0}}); err != ErrBadRequest {
		t.Fatalf("bad latitude: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Request(ctx, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 1, Lng: 1}, MaxPassengers: 5}); err != ErrBadRequest {
		t.Fatalf("too many passengers: expected ErrBadRequest, got %v", err)
	}
}

func TestRideFlowHappyPath(t *testing.T) {
	svc, _, drivers := newTestService()
	ctx := context.Background()

	id := mustRequest(t, svc, RequestCommand{CustomerID: "c_happy", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
	assertStatus(t, svc, id, StatusPending)

	if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	assertStatus(t, svc, id, StatusAccepted)
	if drivers.isAvailable("d1") {
		t.Fatal("driver must be unavailable after accepting")
	}

	if err := svc.Start(ctx, StartCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	assertStatus(t, svc, id, StatusInProgress)

	if err := svc.Complete(ctx, CompleteCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertStatus(t, svc, id, StatusCompleted)
	if !drivers.isAvailable("d1") {
		t.Fatal("driver must be available again after completing")
	}
	if drivers.completedRides("d1") != 1 {
		t.Fatalf("expected 1 completed ride recorded, got %d", drivers.completedRides("d1"))
	}

	r, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.AcceptedAt == nil || r.StartedAt == nil || r.CompletedAt == nil {
		t.Fatal("lifecycle timestamps must be set")
	}
	if r.DriverID == nil || *r.DriverID != "d1" {
		t.Fatal("driver id must be bound")
	}
}

func TestAcceptTwiceFailsSecondTime(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})

	if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d2"}); err != ErrInvalidState {
		t.Fatalf("second accept: expected ErrInvalidState, got %v", err)
	}
}

func TestStartAndCompleteRequireBoundDriver(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
	if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.Start(ctx, StartCommand{RideID: id, DriverID: "d_other"}); err != ErrForbidden {
		t.Fatalf("start by stranger: expected ErrForbidden, got %v", err)
	}
	if err := svc.Complete(ctx, CompleteCommand{RideID: id, DriverID: "d1"}); err != ErrInvalidState {
		t.Fatalf("complete before start: expected ErrInvalidState, got %v", err)
	}

	if err := svc.Start(ctx, StartCommand{RideID: id, DriverID: "d1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Complete(ctx, CompleteCommand{RideID: id, DriverID: "d_other"}); err != ErrForbidden {
		t.Fatalf("complete by stranger: expected ErrForbidden, got %v", err)
	}
}

func TestCancelFlows(t *testing.T) {
	svc, _, drivers := newTestService()
	ctx := context.Background()

	t.Run("only owner may cancel", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{CustomerID: "c_owner", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c_other"}); err != ErrForbidden {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c_owner"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		assertStatus(t, svc, id, StatusCancelled)
	})

	t.Run("cancel releases bound driver", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
		if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d_rel"}); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c1"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if !drivers.isAvailable("d_rel") {
			t.Fatal("driver must be released after cancel")
		}
	})

	t.Run("terminal rides cannot be cancelled", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c1"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c1"}); err != ErrInvalidState {
			t.Fatalf("second cancel: expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("cancelled rides cannot be accepted", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c1"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := svc.Accept(ctx, AcceptCommand{RideID: id, DriverID: "d1"}); err != ErrInvalidState {
			t.Fatalf("accept after cancel: expected ErrInvalidState, got %v", err)
		}
	})
}

func TestJoinSharedRide(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	dropoff := types.Point{Lat: 33.52, Lng: 36.22}
	id := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c_host",
		Pickup:        types.Point{Lat: 33.5, Lng: 36.2},
		Dropoff:       &dropoff,
		Shared:        true,
		MaxPassengers: 3,
	})

	host, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	updated, p, err := svc.JoinShared(ctx, JoinCommand{
		RideID:     id,
		CustomerID: "c_join",
		Pickup:     types.Point{Lat: 33.505, Lng: 36.205},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if updated.CurrentPassengers != 2 {
		t.Fatalf("expected 2 passengers, got %d", updated.CurrentPassengers)
	}
	wantShare := int64(math.Round(float64(host.BaseFare) / 2))
	if p.FareShare != wantShare {
		t.Fatalf("fare share %d, want %d", p.FareShare, wantShare)
	}
	if p.Status != PassengerPending {
		t.Fatalf("new passenger status %s, want pending", p.Status)
	}

	passengers, err := svc.Passengers(ctx, id)
	if err != nil {
		t.Fatalf("passengers: %v", err)
	}
	if len(passengers) != 1 {
		t.Fatalf("expected 1 passenger row, got %d", len(passengers))
	}
}

func TestJoinSharedRideGuards(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	t.Run("non-shared ride", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{CustomerID: "c1", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})
		if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: id, CustomerID: "c2", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("full ride", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{
			CustomerID:    "c1",
			Pickup:        types.Point{Lat: 33.5, Lng: 36.2},
			Shared:        true,
			MaxPassengers: 2,
		})
		if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: id, CustomerID: "c2", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != nil {
			t.Fatalf("first join: %v", err)
		}
		if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: id, CustomerID: "c3", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != ErrCapacity {
			t.Fatalf("expected ErrCapacity, got %v", err)
		}
	})

	t.Run("terminal ride", func(t *testing.T) {
		id := mustRequest(t, svc, RequestCommand{
			CustomerID:    "c1",
			Pickup:        types.Point{Lat: 33.5, Lng: 36.2},
			Shared:        true,
			MaxPassengers: 3,
		})
		if err := svc.Cancel(ctx, CancelCommand{RideID: id, CustomerID: "c1"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: id, CustomerID: "c2", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != ErrInvalidState {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("missing ride", func(t *testing.T) {
		if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: "nope", CustomerID: "c2", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailableSharedFiltersOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	shared := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c1",
		Pickup:        types.Point{Lat: 33.5, Lng: 36.2},
		Shared:        true,
		MaxPassengers: 3,
	})
	mustRequest(t, svc, RequestCommand{CustomerID: "c2", Pickup: types.Point{Lat: 33.5, Lng: 36.2}})

	full := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c3",
		Pickup:        types.Point{Lat: 33.5, Lng: 36.2},
		Shared:        true,
		MaxPassengers: 2,
	})
	if _, _, err := svc.JoinShared(ctx, JoinCommand{RideID: full, CustomerID: "c4", Pickup: types.Point{Lat: 33.5, Lng: 36.2}}); err != nil {
		t.Fatalf("fill ride: %v", err)
	}

	rides, err := svc.AvailableShared(ctx, types.Point{Lat: 33.5, Lng: 36.2})
	if err != nil {
		t.Fatalf("available shared: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != shared {
		t.Fatalf("expected only the joinable shared ride, got %d rides", len(rides))
	}
}

func TestAvailableSharedProximitySort(t *testing.T) {
	store := newMemStore()
	svc := NewService(Deps{
		Store:               store,
		Pricing:             pricing.NewService(nil),
		Drivers:             newMockDriverGateway(),
		SharedProximitySort: true,
	})
	ctx := context.Background()

	far := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c_far",
		Pickup:        types.Point{Lat: 34.0, Lng: 36.7},
		Shared:        true,
		MaxPassengers: 3,
	})
	near := mustRequest(t, svc, RequestCommand{
		CustomerID:    "c_near",
		Pickup:        types.Point{Lat: 33.51, Lng: 36.21},
		Shared:        true,
		MaxPassengers: 3,
	})

	rides, err := svc.AvailableShared(ctx, types.Point{Lat: 33.5, Lng: 36.2})
	if err != nil {
		t.Fatalf("available shared: %v", err)
	}
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides, got %d", len(rides))
	}
	if rides[0].ID != near || rides[1].ID != far {
		t.Fatal("expected proximity ordering nearest first")
	}
}
