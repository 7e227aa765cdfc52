// Package config loads and validates zxferd's configuration: listen
// addresses, per-zone ACLs and rate limits, and the journal backend to
// use.
//
// Grounded on the teacher's tdns/config.go + tdns/parseconfig.go:
// a single Config struct with go-playground/validator `validate` tags,
// loaded through spf13/viper and unmarshaled with
// mitchellh/mapstructure (viper's own default decoder), with a
// Validate entry point that fails fast with a descriptive error
// per section rather than a single opaque error for the whole file.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for a zxferd instance.
type Config struct {
	Service ServiceConf            `mapstructure:"service"`
	Log     LogConf                `mapstructure:"log"`
	Journal JournalConf            `mapstructure:"journal"`
	Zones   map[string]ZoneConf    `mapstructure:"zones"`
	Metrics MetricsConf            `mapstructure:"metrics"`
}

// ServiceConf configures the listening server.
type ServiceConf struct {
	Name      string   `mapstructure:"name" validate:"required"`
	Addresses []string `mapstructure:"addresses" validate:"required,min=1,dive,hostname_port"`
}

// LogConf configures log output and rotation, mirroring the teacher's
// single Log.File setting plus lumberjack's rotation knobs.
type LogConf struct {
	File       string `mapstructure:"file" validate:"required"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

// JournalConf selects and configures the changeset journal backend.
type JournalConf struct {
	Backend    string `mapstructure:"backend" validate:"required,oneof=memory sqlite"`
	File       string `mapstructure:"file" validate:"required_if=Backend sqlite"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// ZoneConf configures transfer policy for one served zone.
type ZoneConf struct {
	AllowTransfer []string `mapstructure:"allow_transfer" validate:"required,min=1,dive,cidr"`
	RateLimitQPS  float64  `mapstructure:"rate_limit_qps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// MetricsConf configures the Prometheus exporter.
type MetricsConf struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// Load reads configuration from cfgfile (any format viper supports --
// YAML, TOML, JSON) and validates it.
func Load(cfgfile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgfile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", cfgfile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling %s: %w", cfgfile, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", cfgfile, err)
	}
	return &cfg, nil
}

// Validate runs struct-tag validation over cfg and every per-zone
// section, so a single missing field is reported with the section name
// that's wrong rather than failing against the whole Config.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg.Service); err != nil {
		return fmt.Errorf("service section: %w", err)
	}
	if err := validate.Struct(cfg.Log); err != nil {
		return fmt.Errorf("log section: %w", err)
	}
	if err := validate.Struct(cfg.Journal); err != nil {
		return fmt.Errorf("journal section: %w", err)
	}
	if err := validate.Struct(cfg.Metrics); err != nil {
		return fmt.Errorf("metrics section: %w", err)
	}
	for zone, zc := range cfg.Zones {
		if err := validate.Struct(zc); err != nil {
			return fmt.Errorf("zone %q: %w", zone, err)
		}
	}
	return nil
}
