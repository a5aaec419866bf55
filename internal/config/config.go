package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soundreach/fanscout/internal/candidate"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Auth     AuthConfig     `yaml:"auth"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SpotifyConfig contains platform API client settings.
// Credentials are env-only and never read from YAML.
type SpotifyConfig struct {
	ClientID     string   `yaml:"-"`
	ClientSecret string   `yaml:"-"`
	BaseURL      string   `yaml:"base_url"`
	Timeout      Duration `yaml:"timeout"`
	BaseBackoff  Duration `yaml:"base_backoff"`
}

// AuthConfig contains API authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// ScoringConfig wraps the candidate match-score weights.
type ScoringConfig struct {
	Weights candidate.ScoreWeights `yaml:"weights"`
}

// ExportConfig contains CSV snapshot export settings. Uploads go to
// S3-compatible object storage and are disabled unless an endpoint is set.
type ExportConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Interval  Duration `yaml:"interval"`
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	UseSSL    bool     `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("FANSCOUT_CONFIG_PATH", "config/fanscout.yaml")

	// Missing file is not an error; defaults still apply
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/fanscout.db",
		},
		Spotify: SpotifyConfig{
			BaseURL:     "https://api.spotify.com/v1",
			Timeout:     Duration(10 * time.Second),
			BaseBackoff: Duration(500 * time.Millisecond),
		},
		Scoring: ScoringConfig{
			Weights: candidate.DefaultScoreWeights(),
		},
		Export: ExportConfig{
			Enabled:  false,
			Interval: Duration(6 * time.Hour),
			Bucket:   "fanscout-exports",
			UseSSL:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("FANSCOUT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FANSCOUT_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("FANSCOUT_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("FANSCOUT_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("FANSCOUT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Spotify (SPOTIFY_* names are the platform convention)
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := os.Getenv("FANSCOUT_SPOTIFY_BASE_URL"); v != "" {
		cfg.Spotify.BaseURL = v
	}
	if v := os.Getenv("FANSCOUT_SPOTIFY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Spotify.Timeout = Duration(d)
		}
	}

	// Auth
	if v := os.Getenv("FANSCOUT_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Export
	if v := os.Getenv("FANSCOUT_EXPORT_ENABLED"); v != "" {
		cfg.Export.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FANSCOUT_EXPORT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Export.Interval = Duration(d)
		}
	}
	if v := os.Getenv("FANSCOUT_EXPORT_ENDPOINT"); v != "" {
		cfg.Export.Endpoint = v
	}
	if v := os.Getenv("FANSCOUT_EXPORT_BUCKET"); v != "" {
		cfg.Export.Bucket = v
	}
	if v := os.Getenv("FANSCOUT_EXPORT_ACCESS_KEY"); v != "" {
		cfg.Export.AccessKey = v
	}
	if v := os.Getenv("FANSCOUT_EXPORT_SECRET_KEY"); v != "" {
		cfg.Export.SecretKey = v
	}

	// Log
	if v := os.Getenv("FANSCOUT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FANSCOUT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (FANSCOUT_DEV_MODE=true), credential validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("FANSCOUT_DEV_MODE") == "true" {
		return nil
	}

	if c.Spotify.ClientID == "" {
		return errors.New("SPOTIFY_CLIENT_ID is required")
	}
	if c.Spotify.ClientSecret == "" {
		return errors.New("SPOTIFY_CLIENT_SECRET is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("FANSCOUT_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
