// Package config loads the configuration of the pluginctl daemon. Values come
// from struct defaults, then an optional YAML, TOML or JSON file, then
// PLUGGABLE_* environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/pluggable/feeders"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PLUGGABLE"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the pluginctl configuration.
type Config struct {
	// ManifestDir is the directory holding plugin manifest files.
	ManifestDir string `yaml:"manifest_dir" toml:"manifest_dir" json:"manifest_dir" env:"MANIFEST_DIR" default:"plugins" validate:"required"`

	// StatePath is the SQLite database remembering which plugins are enabled.
	StatePath string `yaml:"state_path" toml:"state_path" json:"state_path" env:"STATE_PATH" default:"pluggable.db" validate:"required"`

	// Rescan is a cron spec for periodic manifest rescans. Empty disables them.
	Rescan string `yaml:"rescan" toml:"rescan" json:"rescan" env:"RESCAN" default:"@every 5m"`

	// Watch enables filesystem notifications on ManifestDir.
	Watch bool `yaml:"watch" toml:"watch" json:"watch" env:"WATCH" default:"true"`

	// Debounce delays a rescan after a filesystem change.
	Debounce time.Duration `yaml:"debounce" toml:"debounce" json:"debounce" env:"DEBOUNCE" default:"250ms" validate:"gte=0"`

	// Enable lists plugins to enable at start-up, in addition to the stored ones.
	Enable []string `yaml:"enable" toml:"enable" json:"enable" env:"ENABLE"`

	Admin AdminConfig `yaml:"admin" toml:"admin" json:"admin"`
	Log   LogConfig   `yaml:"log" toml:"log" json:"log"`
}

// AdminConfig configures the admin HTTP API.
type AdminConfig struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr" env:"ADMIN_ADDR" default:"127.0.0.1:8089" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout" env:"ADMIN_SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level" env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" json:"format" env:"LOG_FORMAT" default:"console" validate:"oneof=console json"`
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := ProcessDefaults(cfg); err != nil {
		return nil, err
	}

	if path != "" {
		feeder, err := feeders.ForFile(path)
		if err != nil {
			return nil, err
		}
		if err := feeder.Feed(cfg); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if err := feeders.NewAffixedEnvFeeder(EnvPrefix, "").Feed(cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, _, err := net.SplitHostPort(c.Admin.Addr); err != nil {
		return fmt.Errorf("%w: admin addr: %w", ErrInvalidConfig, err)
	}
	if c.Rescan != "" {
		if _, err := cron.ParseStandard(c.Rescan); err != nil {
			return fmt.Errorf("%w: rescan: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
