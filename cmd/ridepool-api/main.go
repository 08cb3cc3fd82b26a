// README: Entry point; loads config, wires module services and starts the
// HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ridepool/internal/config"
	httptransport "ridepool/internal/http"
	"ridepool/internal/http/middleware"
	"ridepool/internal/infra"
	"ridepool/internal/logger"
	"ridepool/internal/maps"
	"ridepool/internal/modules/driver"
	"ridepool/internal/modules/location"
	"ridepool/internal/modules/matching"
	"ridepool/internal/modules/pricing"
	"ridepool/internal/modules/rating"
	"ridepool/internal/modules/ride"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	logger.Setup(cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logrus.Fatalf("db init: %v", err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	locationStore := location.NewStore(dbPool, redisClient)
	locationSvc := location.NewService(locationStore)

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore)

	driverStore := driver.NewPGStore(dbPool)
	driverSvc := driver.NewService(driverStore, locationSvc)

	rideDeps := ride.Deps{
		Store:               ride.NewPGStore(dbPool),
		Pricing:             pricingSvc,
		Drivers:             driverSvc,
		SharedProximitySort: cfg.Rides.SharedProximitySort,
	}
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			logrus.Fatalf("maps init: %v", err)
		}
		rideDeps.Geocoder = geocoder
	}
	rideSvc := ride.NewService(rideDeps)

	matchingSvc := matching.NewService(driverSvc, locationSvc, cfg.Matching.RadiusKm)

	ratingStore := rating.NewPGStore(dbPool)
	ratingSvc := rating.NewService(ratingStore, rideSvc, driverSvc)

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := httptransport.NewRouter(httptransport.ServerDeps{
		Rides:    rideSvc,
		Drivers:  driverSvc,
		Matching: matchingSvc,
		Ratings:  ratingSvc,
		Auth:     auth,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", cfg.HTTP.Addr).Info("listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatal(err)
	}
}
