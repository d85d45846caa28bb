// Package config loads application settings from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	Env      string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"potledger"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"potledger"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// Cron spec for the journal vacuum and how old a completed transfer
	// must be before it is purged.
	VacuumSchedule string `envconfig:"VACUUM_SCHEDULE" default:"0 4 * * *"`
	VacuumAgeDays  int    `envconfig:"VACUUM_AGE_DAYS" default:"30"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// DatabaseDSN builds the Postgres connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.VacuumAgeDays <= 0 {
		return nil, fmt.Errorf("VACUUM_AGE_DAYS must be positive")
	}
	return &cfg, nil
}
