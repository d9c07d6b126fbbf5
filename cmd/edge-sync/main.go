package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/edgesync/cmd/edge-sync/container"
	"github.com/lyzr/edgesync/cmd/edge-sync/routes"
	"github.com/lyzr/edgesync/common/bootstrap"
	"github.com/lyzr/edgesync/common/config"
	"github.com/lyzr/edgesync/common/db"
	"github.com/lyzr/edgesync/common/logger"
)

const serviceName = "edge-sync"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	// Bootstrap common components (DB, redis, queue, telemetry)
	opts := []bootstrap.Option{
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(log),
		bootstrap.WithDBInitHook(func(ctx context.Context, database *db.DB) error {
			return database.ApplySchema(ctx)
		}),
	}
	if !needsRedis(cfg) {
		opts = append(opts, bootstrap.WithoutRedis())
	}

	components, err := bootstrap.Setup(ctx, serviceName, opts...)
	if err != nil {
		log.Error("failed to bootstrap service", "service", serviceName, "error", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		return
	}

	if err := serviceContainer.Consumer.Start(ctx); err != nil {
		components.Logger.Error("failed to start intake consumer", "error", err)
		return
	}

	if serviceContainer.NotifyHub != nil {
		go serviceContainer.NotifyHub.Run(ctx)
		go func() {
			if err := serviceContainer.NotifySubscriber.Start(ctx); err != nil {
				components.Logger.Error("edge signal subscriber stopped", "error", err)
			}
		}()
	}

	// Initialize Echo server
	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	routes.RegisterTenantRoutes(e, serviceContainer)

	go startServer(e, components)

	<-ctx.Done()
	components.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		components.Logger.Error("http server shutdown error", "error", err)
	}

	// Stop intake first so nothing new is routed, then drain in-flight fan-out
	if err := components.Queue.Close(); err != nil {
		components.Logger.Error("queue close error", "error", err)
	}
	serviceContainer.Router.Wait()

	components.Logger.Info("edge-sync stopped")
}

// needsRedis reports whether any configured feature talks to redis
func needsRedis(cfg *config.Config) bool {
	return cfg.Queue.Type == "redis" || cfg.Sync.SignalEvents || cfg.RateLimit.TenantLimit > 0
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": serviceName,
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("starting edge-sync", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
