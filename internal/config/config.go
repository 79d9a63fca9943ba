package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	LogLevel    string
	Store       StoreConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	MinIO       storage.MinIOConfig
	RateLimit   RateLimitConfig
	Batch       BatchConfig
	Workers     WorkersConfig
	Concurrency ConcurrencyConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the persistence engine: memory, mysql, postgres, sqlite or mongo.
type StoreConfig struct {
	Driver string
	DSN    string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
	// ConnectAttempts and ConnectBackoff control startup retries; the
	// backoff doubles after every failed attempt.
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

type BatchConfig struct {
	MaxIDs int
}

type WorkersConfig struct {
	BatchSize      int
	SubmitEnabled  bool
	SubmitDelay    time.Duration
	ApproveEnabled bool
	ApproveDelay   time.Duration
}

type ConcurrencyConfig struct {
	MaxThreads     int
	MaxAttempts    int
	AttemptTimeout time.Duration
}

var sqlDrivers = map[string]bool{"mysql": true, "postgres": true, "sqlite": true}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_DRIVER", "memory")
	viper.SetDefault("MONGODB_DATABASE", "docflow")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("MONGODB_CONNECT_ATTEMPTS", 5)
	viper.SetDefault("MONGODB_CONNECT_BACKOFF", "1s")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("MINIO_BUCKET", "docflow-reports")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("BATCH_MAX_IDS", 1000)
	viper.SetDefault("WORKER_BATCH_SIZE", 50)
	viper.SetDefault("WORKERS_SUBMIT_ENABLED", true)
	viper.SetDefault("WORKERS_SUBMIT_DELAY", "10s")
	viper.SetDefault("WORKERS_APPROVE_ENABLED", true)
	viper.SetDefault("WORKERS_APPROVE_DELAY", "15s")
	viper.SetDefault("CONCURRENCY_MAX_THREADS", 50)
	viper.SetDefault("CONCURRENCY_MAX_ATTEMPTS", 100)
	viper.SetDefault("CONCURRENCY_ATTEMPT_TIMEOUT", "15s")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
			DSN:    viper.GetString("STORE_DSN"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,

			ConnectAttempts: viper.GetInt("MONGODB_CONNECT_ATTEMPTS"),
			ConnectBackoff:  viper.GetDuration("MONGODB_CONNECT_BACKOFF"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		MinIO: storage.MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis: viper.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		Batch: BatchConfig{MaxIDs: viper.GetInt("BATCH_MAX_IDS")},
		Workers: WorkersConfig{
			BatchSize:      viper.GetInt("WORKER_BATCH_SIZE"),
			SubmitEnabled:  viper.GetBool("WORKERS_SUBMIT_ENABLED"),
			SubmitDelay:    viper.GetDuration("WORKERS_SUBMIT_DELAY"),
			ApproveEnabled: viper.GetBool("WORKERS_APPROVE_ENABLED"),
			ApproveDelay:   viper.GetDuration("WORKERS_APPROVE_DELAY"),
		},
		Concurrency: ConcurrencyConfig{
			MaxThreads:     viper.GetInt("CONCURRENCY_MAX_THREADS"),
			MaxAttempts:    viper.GetInt("CONCURRENCY_MAX_ATTEMPTS"),
			AttemptTimeout: viper.GetDuration("CONCURRENCY_ATTEMPT_TIMEOUT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Store.Driver == "memory":
	case sqlDrivers[c.Store.Driver]:
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN is required for store driver %q", c.Store.Driver)
		}
	case c.Store.Driver == "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for store driver mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.RateLimit.UseRedis && c.Redis.Host == "" {
		return fmt.Errorf("RATE_LIMIT_USE_REDIS requires REDIS_HOST")
	}
	if c.Workers.BatchSize <= 0 || c.Batch.MaxIDs <= 0 {
		return fmt.Errorf("WORKER_BATCH_SIZE and BATCH_MAX_IDS must be positive")
	}
	return nil
}
