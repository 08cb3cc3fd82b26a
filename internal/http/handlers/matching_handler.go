// README: Nearest-driver lookup.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridepool/internal/modules/matching"
	"ridepool/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

func (h *MatchingHandler) NearestDrivers(c *gin.Context) {
	var pickup types.Point
	if err := bindQueryPoint(c, &pickup); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	matches, err := h.matching.NearestDrivers(c.Request.Context(), pickup, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(matches))
	for _, m := range matches {
		entry := driverResponse(m.Driver)
		entry["distance_meters"] = m.DistanceMeters
		out = append(out, entry)
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out})
}
