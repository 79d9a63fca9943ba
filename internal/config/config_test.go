package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "docflow", cfg.MongoDB.Database)
	assert.Equal(t, 5, cfg.MongoDB.ConnectAttempts)
	assert.Equal(t, time.Second, cfg.MongoDB.ConnectBackoff)
	assert.Equal(t, 1000, cfg.Batch.MaxIDs)
	assert.Equal(t, 50, cfg.Workers.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Workers.SubmitDelay)
	assert.Equal(t, 15*time.Second, cfg.Workers.ApproveDelay)
	assert.Equal(t, 50, cfg.Concurrency.MaxThreads)
	assert.Equal(t, 100, cfg.Concurrency.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Concurrency.AttemptTimeout)
	assert.False(t, cfg.MinIO.Enabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("STORE_DSN", "host=localhost user=docflow dbname=docflow")
	t.Setenv("WORKERS_SUBMIT_DELAY", "2s")
	t.Setenv("WORKERS_APPROVE_ENABLED", "false")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Workers.SubmitDelay)
	assert.False(t, cfg.Workers.ApproveEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.MinIO.Enabled())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("sql without dsn", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mysql")
		t.Setenv("STORE_DSN", "")
		_, err := LoadConfig()
		require.Error(t, err)
	})
	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "")
		_, err := LoadConfig()
		require.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "cassandra")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}
