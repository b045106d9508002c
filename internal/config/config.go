package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/claude/formcoach/internal/coach"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// ProfilesConfig points at an exercise database. An empty path uses the
// built-in database.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig tunes the form analysis engine. Zero values take engine defaults.
type EngineConfig struct {
	HysteresisMargin      float64 `yaml:"hysteresis_margin"`
	WarningHoldSeconds    float64 `yaml:"warning_hold_seconds"`
	SmoothingWindow       int     `yaml:"smoothing_window"`
	BadRatio              float64 `yaml:"bad_ratio"`
	MinVisibility         float64 `yaml:"min_visibility"`
	HoldRepsDuringWarning bool    `yaml:"hold_reps_during_warning"`
	AngleSmoothing        int     `yaml:"angle_smoothing"`
	DepthCues             bool    `yaml:"depth_cues"`
}

// Options converts the engine section to coach.Options.
func (e EngineConfig) Options() coach.Options {
	return coach.Options{
		HysteresisMargin:      e.HysteresisMargin,
		WarningHold:           e.WarningHoldSeconds,
		WindowSize:            e.SmoothingWindow,
		BadRatio:              e.BadRatio,
		MinVisibility:         e.MinVisibility,
		HoldRepsDuringWarning: e.HoldRepsDuringWarning,
		AngleSmoothing:        e.AngleSmoothing,
		DepthCues:             e.DepthCues,
	}
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix FORMCOACH_ and underscore-separated paths:
//
//	FORMCOACH_SERVER_HOST, FORMCOACH_SERVER_PORT,
//	FORMCOACH_DB_HOST, FORMCOACH_DB_PORT, FORMCOACH_DB_NAME,
//	FORMCOACH_DB_USER, FORMCOACH_DB_PASSWORD, FORMCOACH_DB_SSLMODE,
//	FORMCOACH_AUTH_API_KEY, FORMCOACH_PROFILES_PATH,
//	FORMCOACH_TAILSCALE_ENABLED, FORMCOACH_TAILSCALE_HOSTNAME
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMCOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FORMCOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FORMCOACH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FORMCOACH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FORMCOACH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FORMCOACH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FORMCOACH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FORMCOACH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("FORMCOACH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("FORMCOACH_PROFILES_PATH"); v != "" {
		cfg.Profiles.Path = v
	}
	if v := os.Getenv("FORMCOACH_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("FORMCOACH_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
}

func applyDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.HysteresisMargin == 0 {
		e.HysteresisMargin = coach.DefaultHysteresisMargin
	}
	if e.WarningHoldSeconds == 0 {
		e.WarningHoldSeconds = coach.DefaultWarningHold
	}
	if e.SmoothingWindow == 0 {
		e.SmoothingWindow = coach.DefaultWindowSize
	}
	if e.BadRatio == 0 {
		e.BadRatio = coach.DefaultBadRatio
	}
	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "formcoach"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	e := c.Engine
	if e.HysteresisMargin < 0 || e.WarningHoldSeconds < 0 || e.SmoothingWindow < 0 || e.AngleSmoothing < 0 {
		return fmt.Errorf("engine values must not be negative")
	}
	if e.BadRatio < 0 || e.BadRatio >= 1 {
		return fmt.Errorf("engine.bad_ratio must be in [0, 1)")
	}
	if e.MinVisibility < 0 || e.MinVisibility > 1 {
		return fmt.Errorf("engine.min_visibility must be in [0, 1]")
	}
	return nil
}
