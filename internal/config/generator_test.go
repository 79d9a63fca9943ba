package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGeneratorConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadGeneratorConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.ServiceURL)
		assert.Equal(t, 100, cfg.Count)
		assert.Equal(t, "generator", cfg.Initiator)
		assert.Equal(t, "docflow-generator", cfg.ClientID)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv("GENERATOR_SERVICE_URL", "http://docflow:9090/")
		t.Setenv("GENERATOR_COUNT", "7")
		t.Setenv("GENERATOR_TIMEOUT", "2s")
		cfg, err := LoadGeneratorConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://docflow:9090", cfg.ServiceURL)
		assert.Equal(t, 7, cfg.Count)
		assert.Equal(t, 2*time.Second, cfg.Timeout)
	})
	t.Run("invalid count", func(t *testing.T) {
		t.Setenv("GENERATOR_COUNT", "0")
		_, err := LoadGeneratorConfig()
		require.Error(t, err)
	})
}
