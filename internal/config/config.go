// Package config resolves tool settings from environment variables.
// Command-line flags in cmd/resetpw use these values as defaults, so
// flags always win over the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the reset tool.
type Config struct {
	Host     string `env:"PSFRESET_HOST" envDefault:"localhost"`
	Port     uint16 `env:"PSFRESET_PORT" envDefault:"5432"`
	User     string `env:"PSFRESET_USER" envDefault:"psforever"`
	Database string `env:"PSFRESET_DB" envDefault:"psforever"`
	// Password is optional; when empty the tool tries the conventional
	// default (same as the DB user) and falls back to prompting.
	Password string `env:"PSFRESET_PASSWORD"`

	AuditLog string `env:"PSFRESET_AUDIT_LOG" envDefault:"password_reset.log"`

	MinPasswordLen int           `env:"PSFRESET_MIN_PASSWORD_LEN" envDefault:"6"`
	ConnectTimeout time.Duration `env:"PSFRESET_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
