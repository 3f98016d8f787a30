package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/playperu/heartlands/internal/geo"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/heartlands.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// ClientDir is a built map client served at /; empty serves none.
	ClientDir string `env:"CLIENT_DIR"`

	// CatalogPath is a YAML quest catalogue; empty uses the built-in one.
	CatalogPath string `env:"CATALOG_PATH"`

	MaxSpeedMPS               float64       `env:"MAX_SPEED_MPS" envDefault:"5"`
	HeadingMinInterval        time.Duration `env:"HEADING_MIN_INTERVAL" envDefault:"100ms"`
	HeadingRequireCalibration bool          `env:"HEADING_REQUIRE_CALIBRATION" envDefault:"false"`
	SpawnScale                string        `env:"SPAWN_SCALE" envDefault:"flat"`

	AdminUser string `env:"ADMIN_USER" envDefault:"admin"`
	// AdminPasswordHash is a bcrypt hash. Admin routes are disabled when empty.
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if _, err := cfg.Scale(); err != nil {
		return nil, err
	}
	if cfg.MaxSpeedMPS <= 0 {
		return nil, fmt.Errorf("MAX_SPEED_MPS must be positive, got %v", cfg.MaxSpeedMPS)
	}
	return &cfg, nil
}

// Scale parses SpawnScale.
func (c *Config) Scale() (geo.Scale, error) {
	return geo.ParseScale(c.SpawnScale)
}
