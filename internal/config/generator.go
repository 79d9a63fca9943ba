package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// GeneratorConfig holds the defaults of the document generator CLI.
// Command line flags override every field.
type GeneratorConfig struct {
	ServiceURL string
	Count      int
	Initiator  string
	ClientID   string
	Timeout    time.Duration
	LogLevel   string
}

// LoadGeneratorConfig reads GENERATOR_* variables from the environment and .env file.
func LoadGeneratorConfig() (*GeneratorConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()

	viper.SetDefault("GENERATOR_SERVICE_URL", "http://localhost:8080")
	viper.SetDefault("GENERATOR_COUNT", 100)
	viper.SetDefault("GENERATOR_INITIATOR", "generator")
	viper.SetDefault("GENERATOR_CLIENT_ID", "docflow-generator")
	viper.SetDefault("GENERATOR_TIMEOUT", "10s")
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &GeneratorConfig{
		ServiceURL: strings.TrimRight(viper.GetString("GENERATOR_SERVICE_URL"), "/"),
		Count:      viper.GetInt("GENERATOR_COUNT"),
		Initiator:  viper.GetString("GENERATOR_INITIATOR"),
		ClientID:   viper.GetString("GENERATOR_CLIENT_ID"),
		Timeout:    viper.GetDuration("GENERATOR_TIMEOUT"),
		LogLevel:   viper.GetString("LOG_LEVEL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings after flags were applied.
func (c *GeneratorConfig) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("GENERATOR_SERVICE_URL must not be empty")
	}
	if c.Count <= 0 {
		return fmt.Errorf("GENERATOR_COUNT must be positive, got %d", c.Count)
	}
	if strings.TrimSpace(c.Initiator) == "" {
		return fmt.Errorf("GENERATOR_INITIATOR must not be blank")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be positive")
	}
	return nil
}
