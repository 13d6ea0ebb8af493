package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays configuration from environment variables. Variables that
// are unset leave the corresponding fields untouched.
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
