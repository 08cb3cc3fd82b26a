package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridepool/internal/types"
)

// memStore is an in-memory Store with the same compare-and-set semantics as
// the SQL implementation, so the concurrency tests exercise the real guard
// logic without a database.
type memStore struct {
	mu         sync.Mutex
	rides      map[types.ID]*Ride
	passengers map[types.ID][]*Passenger
	events     []*Event
}

func newMemStore() *memStore {
	return &memStore{
		rides:      make(map[types.ID]*Ride),
		passengers: make(map[types.ID][]*Passenger),
	}
}

func (m *memStore) Create(_ context.Context, r *Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	if driverID != nil && r.DriverID == nil {
		d := *driverID
		r.DriverID = &d
	}
	now := time.Now().UTC()
	switch to {
	case StatusAccepted:
		if r.AcceptedAt == nil {
			r.AcceptedAt = &now
		}
	case StatusInProgress:
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
	case StatusCompleted:
		if r.CompletedAt == nil {
			r.CompletedAt = &now
		}
	case StatusCancelled:
		if r.CancelledAt == nil {
			r.CancelledAt = &now
		}
	}
	return true, nil
}

func (m *memStore) AddPassenger(_ context.Context, p *Passenger) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[p.RideID]
	if !ok || !r.Shared || r.CurrentPassengers >= r.MaxPassengers {
		return false, nil
	}
	if r.Status != StatusPending && r.Status != StatusAccepted {
		return false, nil
	}
	r.CurrentPassengers++
	cp := *p
	m.passengers[p.RideID] = append(m.passengers[p.RideID], &cp)
	return true, nil
}

func (m *memStore) ListShared(_ context.Context) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if r.Shared && (r.Status == StatusPending || r.Status == StatusAccepted) &&
			r.CurrentPassengers < r.MaxPassengers {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *memStore) ListPending(_ context.Context) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if r.Status == StatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID types.ID) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if r.CustomerID == customerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *memStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if r.DriverID != nil && *r.DriverID == driverID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *memStore) Passengers(_ context.Context, rideID types.ID) ([]*Passenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.passengers[rideID]
	out := make([]*Passenger, 0, len(src))
	for _, p := range src {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

// mockDriverGateway records availability flips and completed-ride bumps.
type mockDriverGateway struct {
	mu        sync.Mutex
	available map[types.ID]bool
	completed map[types.ID]int
}

func newMockDriverGateway() *mockDriverGateway {
	return &mockDriverGateway{
		available: make(map[types.ID]bool),
		completed: make(map[types.ID]int),
	}
}

func (m *mockDriverGateway) SetAvailabilityByID(_ context.Context, id types.ID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[id] = available
	return nil
}

func (m *mockDriverGateway) RecordCompletedRide(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[id]++
	return nil
}

func (m *mockDriverGateway) isAvailable(id types.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[id]
}

func (m *mockDriverGateway) completedRides(id types.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed[id]
}
