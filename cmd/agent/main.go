package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/driver-agent/internal/alert"
	"github.com/richxcame/driver-agent/internal/api"
	"github.com/richxcame/driver-agent/internal/auth"
	"github.com/richxcame/driver-agent/internal/control"
	"github.com/richxcame/driver-agent/internal/dispatch"
	"github.com/richxcame/driver-agent/internal/location"
	"github.com/richxcame/driver-agent/internal/onboarding"
	"github.com/richxcame/driver-agent/internal/session"
	"github.com/richxcame/driver-agent/internal/store"
	"github.com/richxcame/driver-agent/pkg/config"
	sentryerrors "github.com/richxcame/driver-agent/pkg/errors"
	"github.com/richxcame/driver-agent/pkg/httpclient"
	"github.com/richxcame/driver-agent/pkg/logger"
	"github.com/richxcame/driver-agent/pkg/models"
	"github.com/richxcame/driver-agent/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Agent.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if enabled, err := sentryerrors.InitSentry(cfg.Sentry); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	} else if enabled {
		defer sentryerrors.Flush(2 * time.Second)
	}

	if cfg.Agent.DriverID == "" {
		logger.Fatal("DRIVER_ID is required")
	}

	// Instance ID distinguishes restarts of the same driver's agent in logs
	instanceID := uuid.NewString()
	logger.Info("driver agent starting",
		zap.String("driver_id", cfg.Agent.DriverID),
		zap.String("instance_id", instanceID),
		zap.String("environment", cfg.Agent.Environment),
	)

	// Session store
	sessionStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize session store", zap.Error(err))
	}

	// Platform API client with bearer auth
	tokens := auth.NewTokenSource(cfg.API.Token)
	platform := api.NewClient(cfg.API, tokens)

	if expiring, err := tokens.ExpiresWithin(24 * time.Hour); err != nil {
		logger.Warn("bearer token check failed", zap.Error(err))
	} else if expiring {
		logger.Warn("bearer token expires soon, re-login required")
	}

	// Dispatch connection
	conn := dispatch.NewManager(cfg.Dispatch, dispatch.WithHeader(func() http.Header {
		header := http.Header{}
		if auth := tokens.Header(); auth != "" {
			header.Set("Authorization", auth)
		}
		return header
	}))
	defer conn.Close()

	// Location reporting
	feed := location.NewFeed()
	reporter := location.NewReporter(cfg.Location, conn, feed, buildWebhook(cfg))

	// Ride session engine
	engine := session.NewEngine(
		cfg.Session,
		session.Identity{
			DriverID:   cfg.Agent.DriverID,
			DriverName: cfg.Agent.DriverName,
			UserID:     cfg.Agent.DriverID,
		},
		conn,
		sessionStore,
		alert.New(nil, nil),
		reporter,
		session.WithRESTMirror(platform),
		session.WithCompletionHandoff(func(ride *models.RideSession) {
			// Payment collection happens outside the agent; log the handoff
			logger.WithRide(ride.RequestID).Info("ride handed off for payment",
				zap.Float64("fare", ride.Fare.Amount),
			)
		}),
	)
	engine.Attach(conn)
	defer engine.Detach()

	if err := engine.Resume(context.Background()); err != nil {
		logger.Error("failed to resume persisted session", zap.Error(err))
	}

	// Gate the dispatch connection on driver readiness
	go connectWhenReady(cfg, platform, conn)

	// Control API
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg)))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := control.NewHandler(engine, platform, conn, feed)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Agent.ControlPort,
		Handler: router,
	}

	go func() {
		logger.Info("control api listening", zap.String("port", cfg.Agent.ControlPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("control api failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("control api shutdown", zap.Error(err))
	}

	reporter.Stop()
}

// connectWhenReady polls the platform profile until the driver account is
// Ready, then opens the dispatch connection.
func connectWhenReady(cfg *config.Config, platform *api.Client, conn *dispatch.Manager) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		profile, err := platform.Profile(ctx)
		cancel()

		if err != nil {
			logger.Warn("profile fetch failed", zap.Error(err))
			time.Sleep(10 * time.Second)
			continue
		}

		stage := onboarding.StageFor(onboarding.Conditions{
			Authenticated:     true,
			DocumentsUploaded: profile.DocumentsUploaded,
			DocumentsVerified: profile.DocumentsVerified,
		})
		if stage != onboarding.StageReady {
			logger.Info("driver not ready for dispatch",
				zap.String("stage", string(stage)),
			)
			time.Sleep(30 * time.Second)
			continue
		}

		conn.Connect(dispatch.Identity{
			Role: cfg.Dispatch.Role,
			ID:   cfg.Agent.DriverID,
		})
		return
	}
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend == "redis" {
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, cfg.Agent.DriverID), nil
	}
	return store.NewFileStore(cfg.Store.Path)
}

// buildWebhook returns the optional HTTP mirror for location updates
func buildWebhook(cfg *config.Config) *httpclient.Client {
	if cfg.Location.WebhookURL == "" {
		return nil
	}
	return httpclient.NewClient(cfg.Location.WebhookURL, cfg.Location.Interval)
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	if cfg.Agent.CORSOrigins != "" {
		origins := strings.Split(cfg.Agent.CORSOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	return corsConfig
}
