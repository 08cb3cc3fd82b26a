// README: Base handler utilities (JSON helpers, error mapping, identity).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridepool/internal/modules/driver"
	"ridepool/internal/modules/location"
	"ridepool/internal/modules/matching"
	"ridepool/internal/modules/pricing"
	"ridepool/internal/modules/rating"
	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, driver.ErrBadRequest),
		errors.Is(err, rating.ErrBadRequest),
		errors.Is(err, pricing.ErrInvalidPassengerCount),
		errors.Is(err, matching.ErrInvalidPickup),
		errors.Is(err, location.ErrInvalidCoordinates):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrForbidden), errors.Is(err, rating.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrInvalidState),
		errors.Is(err, ride.ErrCapacity),
		errors.Is(err, ride.ErrConflict),
		errors.Is(err, rating.ErrInvalidState),
		errors.Is(err, rating.ErrAlreadyRated),
		errors.Is(err, driver.ErrAlreadyRegistered):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// currentUserID reads the identity set by the auth middleware.
func currentUserID(c *gin.Context) (types.ID, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return types.ID(s), true
}

// bindQueryPoint parses lat/lng query parameters into p.
func bindQueryPoint(c *gin.Context, p *types.Point) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return fmt.Errorf("invalid lat")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return fmt.Errorf("invalid lng")
	}
	p.Lat, p.Lng = lat, lng
	return nil
}

func rideResponse(r *ride.Ride) gin.H {
	out := gin.H{
		"ride_id":            r.ID,
		"customer_id":        r.CustomerID,
		"status":             r.Status,
		"pickup":             gin.H{"lat": r.Pickup.Lat, "lng": r.Pickup.Lng},
		"is_shared":          r.Shared,
		"max_passengers":     r.MaxPassengers,
		"current_passengers": r.CurrentPassengers,
		"base_fare":          r.BaseFare,
		"total_fare":         r.TotalFare,
		"fare_per_passenger": r.FarePerPassenger,
		"currency":           r.Currency,
		"estimated_distance": r.EstimatedDistance,
		"requested_at":       r.RequestedAt,
	}
	if r.DriverID != nil {
		out["driver_id"] = *r.DriverID
	}
	if r.Dropoff != nil {
		out["dropoff"] = gin.H{"lat": r.Dropoff.Lat, "lng": r.Dropoff.Lng}
	}
	if r.PickupAddress != nil {
		out["pickup_address"] = *r.PickupAddress
	}
	if r.DropoffAddress != nil {
		out["dropoff_address"] = *r.DropoffAddress
	}
	return out
}

func driverResponse(d *driver.Driver) gin.H {
	out := gin.H{
		"driver_id":     d.ID,
		"name":          d.Name,
		"phone":         d.Phone,
		"vehicle_make":  d.VehicleMake,
		"vehicle_model": d.VehicleModel,
		"vehicle_plate": d.VehiclePlate,
		"available":     d.Available,
		"rating":        d.Rating,
		"total_rides":   d.TotalRides,
	}
	if d.Location != nil {
		out["location"] = gin.H{"lat": d.Location.Lat, "lng": d.Location.Lng}
	}
	return out
}
