// Package config loads heartline runtime configuration.
//
// Values are layered: built-in defaults, then an optional file (TOML, YAML
// or JSON by extension), then HEARTLINE_* environment variables. The result
// is validated before use.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	defaultRelayURL        = "http://127.0.0.1:8080"
	defaultListenAddr      = ":8080"
	defaultLogLevel        = "info"
	defaultCodeTTL         = time.Hour
	defaultRequestTimeout  = 10 * time.Second
	defaultBackoffBase     = time.Second
	defaultBackoffMax      = 5 * time.Minute
	defaultInFlightTimeout = time.Minute
	defaultShutdownPeriod  = 10 * time.Second
	envPrefix              = "HEARTLINE_"

	// maxCodeTTL leaves room under the relay's 24h record limit for the
	// hour expired codes are retained.
	maxCodeTTL = 23 * time.Hour
)

// Mailbox backends served by the relay.
const (
	MailboxMemory   = "memory"
	MailboxRedis    = "redis"
	MailboxPostgres = "postgres"
)

// Config captures runtime configuration for the CLI and the relay.
type Config struct {
	Home           string `toml:"home" yaml:"home" json:"home"`
	RelayURL       string `toml:"relay_url" yaml:"relay_url" json:"relay_url"`
	ListenAddr     string `toml:"listen_addr" yaml:"listen_addr" json:"listen_addr"`
	RedisURL       string `toml:"redis_url" yaml:"redis_url" json:"redis_url"`
	DatabaseURL    string `toml:"database_url" yaml:"database_url" json:"database_url"`
	MailboxBackend string `toml:"mailbox_backend" yaml:"mailbox_backend" json:"mailbox_backend"`
	LogLevel       string `toml:"log_level" yaml:"log_level" json:"log_level"`

	CodeTTL         Duration `toml:"code_ttl" yaml:"code_ttl" json:"code_ttl"`
	RequestTimeout  Duration `toml:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	BackoffBase     Duration `toml:"backoff_base" yaml:"backoff_base" json:"backoff_base"`
	BackoffMax      Duration `toml:"backoff_max" yaml:"backoff_max" json:"backoff_max"`
	InFlightTimeout Duration `toml:"in_flight_timeout" yaml:"in_flight_timeout" json:"in_flight_timeout"`
	ShutdownPeriod  Duration `toml:"shutdown_period" yaml:"shutdown_period" json:"shutdown_period"`
}

// Default returns the built-in configuration.
func Default() Config {
	home := ".heartline"
	if dir, err := os.UserHomeDir(); err == nil {
		home = filepath.Join(dir, ".heartline")
	}
	return Config{
		Home:            home,
		RelayURL:        defaultRelayURL,
		ListenAddr:      defaultListenAddr,
		MailboxBackend:  MailboxMemory,
		LogLevel:        defaultLogLevel,
		CodeTTL:         Duration{defaultCodeTTL},
		RequestTimeout:  Duration{defaultRequestTimeout},
		BackoffBase:     Duration{defaultBackoffBase},
		BackoffMax:      Duration{defaultBackoffMax},
		InFlightTimeout: Duration{defaultInFlightTimeout},
		ShutdownPeriod:  Duration{defaultShutdownPeriod},
	}
}

// Load builds a Config from defaults, the file at path (if non-empty) and
// the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// ApplyEnv overrides fields from HEARTLINE_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Home = getEnv("HOME_DIR", c.Home)
	c.RelayURL = getEnv("RELAY_URL", c.RelayURL)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MailboxBackend = strings.ToLower(getEnv("MAILBOX_BACKEND", c.MailboxBackend))
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))

	durations := []struct {
		key string
		dst *Duration
	}{
		{"CODE_TTL", &c.CodeTTL},
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"BACKOFF_BASE", &c.BackoffBase},
		{"BACKOFF_MAX", &c.BackoffMax},
		{"IN_FLIGHT_TIMEOUT", &c.InFlightTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownPeriod},
	}
	for _, d := range durations {
		v := os.Getenv(envPrefix + d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, d.key, err)
		}
		d.dst.Duration = parsed
	}
	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Home == "" {
		errs = append(errs, errors.New("home must be set"))
	}
	switch c.MailboxBackend {
	case MailboxMemory:
	case MailboxRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis_url must be set for the redis mailbox"))
		}
	case MailboxPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url must be set for the postgres mailbox"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mailbox_backend %q", c.MailboxBackend))
	}

	positive := map[string]Duration{
		"code_ttl":          c.CodeTTL,
		"request_timeout":   c.RequestTimeout,
		"backoff_base":      c.BackoffBase,
		"backoff_max":       c.BackoffMax,
		"in_flight_timeout": c.InFlightTimeout,
	}
	for name, d := range positive {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.CodeTTL.Duration > maxCodeTTL {
		errs = append(errs, fmt.Errorf("code_ttl must not exceed %s", maxCodeTTL))
	}
	if c.BackoffMax.Duration < c.BackoffBase.Duration {
		errs = append(errs, errors.New("backoff_max must not be below backoff_base"))
	}
	if c.ShutdownPeriod.Duration < 0 {
		errs = append(errs, errors.New("shutdown_period must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}
