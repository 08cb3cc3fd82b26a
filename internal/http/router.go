// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/handlers"
	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/driver"
	"ridepool/internal/modules/matching"
	"ridepool/internal/modules/rating"
	"ridepool/internal/modules/ride"
)

type ServerDeps struct {
	Rides    *ride.Service
	Drivers  *driver.Service
	Matching *matching.Service
	Ratings  *rating.Service
	Auth     *middleware.Auth
}

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	customerHandler := handlers.NewCustomerHandler(deps.Rides, deps.Ratings)
	customer := r.Group("/api/customer", deps.Auth.RequireAuth())
	{
		customer.POST("/rides", customerHandler.RequestRide)
		customer.GET("/rides", customerHandler.RideHistory)
		customer.GET("/rides/shared", customerHandler.ListSharedRides)
		customer.GET("/rides/:id", customerHandler.GetRide)
		customer.POST("/rides/:id/cancel", customerHandler.CancelRide)
		customer.POST("/rides/:id/join", customerHandler.JoinSharedRide)
		customer.POST("/rides/:id/rating", customerHandler.RateRide)
	}

	driverHandler := handlers.NewDriverHandler(deps.Drivers, deps.Rides)
	drv := r.Group("/api/driver", deps.Auth.RequireRole("driver"))
	{
		drv.POST("/profile", driverHandler.Register)
		drv.GET("/profile", driverHandler.Me)
		drv.PUT("/location", driverHandler.UpdateLocation)
		drv.PUT("/availability", driverHandler.SetAvailability)
		drv.GET("/rides/pending", driverHandler.PendingRides)
		drv.GET("/rides", driverHandler.RideHistory)
		drv.POST("/rides/:id/accept", driverHandler.AcceptRide)
		drv.POST("/rides/:id/start", driverHandler.StartRide)
		drv.POST("/rides/:id/complete", driverHandler.CompleteRide)
	}

	matchingHandler := handlers.NewMatchingHandler(deps.Matching)
	r.GET("/api/drivers/nearest", deps.Auth.RequireAuth(), matchingHandler.NearestDrivers)

	return r
}
