package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/edgesync/common/config"
	"github.com/lyzr/edgesync/common/db"
	"github.com/lyzr/edgesync/common/logger"
	"github.com/lyzr/edgesync/common/queue"
	rediscommon "github.com/lyzr/edgesync/common/redis"
	"github.com/lyzr/edgesync/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database (if not skipped)
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		// Register cleanup
		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})

		// Run DB init hook if provided
		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(ctx, components.DB); err != nil {
				components.Shutdown(ctx) // Cleanup what we've initialized
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize redis (if not skipped)
	if !options.skipRedis {
		components.Logger.Info("connecting to redis", "addr", components.Config.RedisAddr())
		components.Redis, err = rediscommon.Connect(ctx, components.Config, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize queue
	components.Logger.Info("initializing queue",
		"type", components.Config.Queue.Type,
		"topic", components.Config.Queue.Topic,
	)

	switch components.Config.Queue.Type {
	case "memory":
		components.Queue = queue.NewMemoryQueue(components.Logger)
	case "redis":
		if components.Redis == nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("redis queue requires redis")
		}
		components.Queue = queue.NewRedisStreamQueue(&queue.RedisStreamQueueOpts{
			Client:       components.Redis,
			Group:        components.Config.Queue.ConsumerGroup,
			BlockTimeout: components.Config.Queue.BlockTimeout,
			Logger:       components.Logger,
		})
	default:
		components.Shutdown(ctx)
		return nil, fmt.Errorf("unknown queue type: %s", components.Config.Queue.Type)
	}

	// Register cleanup
	components.addCleanup(func() error {
		components.Logger.Info("closing queue")
		return components.Queue.Close()
	})

	// 6. Initialize telemetry (if enabled)
	if components.Config.Telemetry.EnablePprof {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
			// Don't fail startup if telemetry fails
		}

		components.addCleanup(func() error {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return components.Telemetry.Stop(stopCtx)
		})
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}
