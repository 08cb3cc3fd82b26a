// README: Driver-facing endpoints: registration, availability, live location
// and the accept/start/complete leg of the ride lifecycle.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/modules/driver"
	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	rides   *ride.Service
}

func NewDriverHandler(drivers *driver.Service, rides *ride.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, rides: rides}
}

// self resolves the authenticated user to their driver profile.
func (h *DriverHandler) self(c *gin.Context) (*driver.Driver, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return nil, false
	}
	d, err := h.drivers.ProfileByUser(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return d, true
}

type registerDriverReq struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	VehiclePlate string `json:"vehicle_plate"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req registerDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		UserID:       userID,
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehiclePlate: req.VehiclePlate,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, driverResponse(d))
}

func (h *DriverHandler) Me(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, driverResponse(d))
}

type updateLocationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.drivers.UpdateLocation(c.Request.Context(), d.ID, types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

type availabilityReq struct {
	Available bool `json:"available"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.drivers.SetAvailability(c.Request.Context(), d.ID, req.Available); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"available": req.Available})
}

func (h *DriverHandler) PendingRides(c *gin.Context) {
	rides, err := h.rides.Pending(c.Request.Context())
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

func (h *DriverHandler) AcceptRide(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	err := h.rides.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: d.ID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusAccepted})
}

func (h *DriverHandler) StartRide(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	err := h.rides.Start(c.Request.Context(), ride.StartCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: d.ID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusInProgress})
}

func (h *DriverHandler) CompleteRide(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: d.ID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusCompleted})
}

func (h *DriverHandler) RideHistory(c *gin.Context) {
	d, ok := h.self(c)
	if !ok {
		return
	}
	rides, err := h.rides.DriverHistory(c.Request.Context(), d.ID)
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
