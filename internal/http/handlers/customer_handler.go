// README: Customer-facing ride endpoints: request, track, cancel, shared-ride
// join and rating.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/modules/rating"
	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

type CustomerHandler struct {
	rides   *ride.Service
	ratings *rating.Service
}

func NewCustomerHandler(rides *ride.Service, ratings *rating.Service) *CustomerHandler {
	return &CustomerHandler{rides: rides, ratings: ratings}
}

type requestRideReq struct {
	PickupLat     float64  `json:"pickup_lat"`
	PickupLng     float64  `json:"pickup_lng"`
	DropoffLat    *float64 `json:"dropoff_lat"`
	DropoffLng    *float64 `json:"dropoff_lng"`
	Shared        bool     `json:"is_shared"`
	MaxPassengers int      `json:"max_passengers"`
}

func (h *CustomerHandler) RequestRide(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req requestRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := ride.RequestCommand{
		CustomerID:    customerID,
		Pickup:        types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Shared:        req.Shared,
		MaxPassengers: req.MaxPassengers,
	}
	if req.DropoffLat != nil && req.DropoffLng != nil {
		cmd.Dropoff = &types.Point{Lat: *req.DropoffLat, Lng: *req.DropoffLng}
	}
	id, err := h.rides.Request(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rideResponse(r))
}

func (h *CustomerHandler) GetRide(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing ride id")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideResponse(r))
}

func (h *CustomerHandler) CancelRide(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:     types.ID(c.Param("id")),
		CustomerID: customerID,
		Reason:     req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusCancelled})
}

func (h *CustomerHandler) ListSharedRides(c *gin.Context) {
	var pickup types.Point
	if err := bindQueryPoint(c, &pickup); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	rides, err := h.rides.AvailableShared(c.Request.Context(), pickup)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rides))
	for _, r := range rides {
		out = append(out, rideResponse(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

type joinRideReq struct {
	PickupLat  float64  `json:"pickup_lat"`
	PickupLng  float64  `json:"pickup_lng"`
	DropoffLat *float64 `json:"dropoff_lat"`
	DropoffLng *float64 `json:"dropoff_lng"`
}

func (h *CustomerHandler) JoinSharedRide(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req joinRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := ride.JoinCommand{
		RideID:     types.ID(c.Param("id")),
		CustomerID: customerID,
		Pickup:     types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
	}
	if req.DropoffLat != nil && req.DropoffLng != nil {
		cmd.Dropoff = &types.Point{Lat: *req.DropoffLat, Lng: *req.DropoffLng}
	}
	r, p, err := h.rides.JoinShared(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"ride":       rideResponse(r),
		"fare_share": p.FareShare,
	})
}

func (h *CustomerHandler) RideHistory(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	rides, err := h.rides.CustomerHistory(c.Request.Context(), customerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rides))
	for _, r := range rides {
		out = append(out, rideResponse(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

type rateRideReq struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *CustomerHandler) RateRide(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req rateRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := h.ratings.Rate(c.Request.Context(), rating.RateCommand{
		RideID:     types.ID(c.Param("id")),
		CustomerID: customerID,
		Score:      req.Score,
		Comment:    req.Comment,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"rating_id": rec.ID,
		"driver_id": rec.DriverID,
		"score":     rec.Score,
	})
}
