// Package config loads the service configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the service configuration. Every field can be set
// through its CHALLENGEBOARD_ variable.
type Config struct {
	CatalogDir string `env:"CATALOG_DIR" envDefault:"catalog" validate:"required"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"file" validate:"oneof=memory file sqlite"`
	StorePath   string `env:"STORE_PATH" envDefault:"data" validate:"required_unless=StoreDriver memory"`

	TickInterval  time.Duration `env:"TICK" envDefault:"50ms" validate:"gt=0"`
	RotationTicks int64         `env:"ROTATION_TICKS" envDefault:"600" validate:"gte=0"`
	RefreshTicks  int64         `env:"REFRESH_TICKS" envDefault:"20" validate:"gte=0"`
	SaveTicks     int64         `env:"SAVE_TICKS" envDefault:"36000" validate:"gte=0"`
	PlayTimeTicks int64         `env:"PLAY_TIME_TICKS" envDefault:"20" validate:"gte=0"`

	ReplacementTimeout time.Duration `env:"REPLACEMENT_TIMEOUT" envDefault:"5m" validate:"gt=0"`
	Policy             string        `env:"ROTATION_POLICY" envDefault:"preserve-active" validate:"oneof=preserve-active cancel-and-reshuffle"`
	Testing            bool          `env:"TESTING_MODE"`

	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	MonitorAddr string `env:"MONITOR_ADDR" envDefault:":8081"`

	WebhookURL     string        `env:"WEBHOOK_URL" validate:"omitempty,url"`
	WebhookToken   string        `env:"WEBHOOK_TOKEN"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	HistoryFile string `env:"HISTORY_FILE"`

	LogsDir  string `env:"LOGS_DIR"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Verbose  bool   `env:"VERBOSE"`
}

// Prefix is prepended to every variable name.
const Prefix = "CHALLENGEBOARD_"

// Load reads dotenvPath when it is set and exists, then parses
// and validates the environment.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		d := NewDotEnv()
		err := d.Load(dotenvPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := d.Apply(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
