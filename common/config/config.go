package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds notification intake settings
type QueueConfig struct {
	Type          string // "memory" or "redis"
	Topic         string
	ConsumerGroup string
	BlockTimeout  time.Duration
}

// SyncConfig tunes the notification fan-out
type SyncConfig struct {
	// Page size used when walking rule chains and tenant edges
	PageSize int

	// Max concurrent per-edge branches for a single notification
	FanoutConcurrency int

	// CEL expression selecting notifications that go to every edge of the tenant
	BroadcastPolicy string

	// Publish a wake-up signal on Redis after each saved edge event
	SignalEvents bool
}

// RateLimitConfig limits notification submissions over HTTP
type RateLimitConfig struct {
	// Notifications per tenant per window; 0 disables the limit
	TenantLimit   int64
	WindowSeconds int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// DefaultBroadcastPolicy routes tenant-wide entities to all edges
const DefaultBroadcastPolicy = `entity_type in ["WIDGETS_BUNDLE", "WIDGET_TYPE", "ADMIN_SETTINGS"]`

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "edgesync"),
			User:        getEnv("POSTGRES_USER", "edgesync"),
			Password:    getEnv("POSTGRES_PASSWORD", "edgesync"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Type:          getEnv("QUEUE_TYPE", "memory"),
			Topic:         getEnv("QUEUE_TOPIC", "edge.notifications"),
			ConsumerGroup: getEnv("QUEUE_CONSUMER_GROUP", "edge_sync"),
			BlockTimeout:  getEnvDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
		},
		Sync: SyncConfig{
			PageSize:          getEnvInt("SYNC_PAGE_SIZE", 100),
			FanoutConcurrency: getEnvInt("SYNC_FANOUT_CONCURRENCY", 16),
			BroadcastPolicy:   getEnv("SYNC_BROADCAST_POLICY", DefaultBroadcastPolicy),
			SignalEvents:      getEnvBool("SYNC_SIGNAL_EVENTS", true),
		},
		RateLimit: RateLimitConfig{
			TenantLimit:   int64(getEnvInt("RATE_LIMIT_TENANT", 0)),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	switch c.Queue.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue type: %s", c.Queue.Type)
	}

	if c.Queue.Topic == "" {
		return fmt.Errorf("queue topic is required")
	}

	if c.Sync.PageSize < 1 {
		return fmt.Errorf("sync page size must be positive, got %d", c.Sync.PageSize)
	}

	if c.Sync.FanoutConcurrency < 1 {
		return fmt.Errorf("sync fanout concurrency must be positive, got %d", c.Sync.FanoutConcurrency)
	}

	if c.RateLimit.TenantLimit > 0 && c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate limit window must be positive, got %d", c.RateLimit.WindowSeconds)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
