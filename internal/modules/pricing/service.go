// README: Pricing service computes fare estimates from geodistance.
package pricing

import (
	"context"
	"errors"
	"math"

	"ridepool/internal/types"
)

// Defaults used when no rate row is configured.
const (
	defaultBaseFare = 500 // 5.00 in cents
	defaultPerKm    = 150 // 1.50 per km in cents
	defaultCurrency = "USD"
)

var ErrInvalidPassengerCount = errors.New("passenger count must be at least 1")

// RateSource yields the active fare rate. Satisfied by *Store.
type RateSource interface {
	ActiveRate(ctx context.Context) (Rate, error)
}

type Service struct {
	rates RateSource
}

// NewService builds a pricing service. A nil rate source means the built-in
// defaults are always used.
func NewService(rates RateSource) *Service {
	return &Service{rates: rates}
}

// Estimate computes the per-passenger fare for a trip of the given distance:
// base fare plus a per-km charge, split evenly, rounded once at the end.
func (s *Service) Estimate(ctx context.Context, distanceMeters float64, passengers int) (types.Money, error) {
	if passengers < 1 {
		return types.Money{}, ErrInvalidPassengerCount
	}

	rate := Rate{BaseFare: defaultBaseFare, PerKm: defaultPerKm, Currency: defaultCurrency}
	if s.rates != nil {
		if r, err := s.rates.ActiveRate(ctx); err == nil {
			rate = r
		} else if !errors.Is(err, ErrNoRate) {
			return types.Money{}, err
		}
	}

	distanceKm := distanceMeters / 1000.0
	total := float64(rate.BaseFare) + distanceKm*float64(rate.PerKm)
	perPassenger := int64(math.Round(total / float64(passengers)))

	return types.Money{Amount: perPassenger, Currency: rate.Currency}, nil
}
