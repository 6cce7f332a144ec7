package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable name, e.g. PULEP_TIMEOUT
const EnvPrefix = "PULEP"

// LoadEnv overlays PULEP_* environment variables onto c. A .env file in the
// working directory is read first; variables already set in the process win.
func (c *Config) LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return fmt.Errorf("loading .env: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}
