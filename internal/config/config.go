// Package config loads the central system process's configuration from a
// YAML file with environment-variable overrides, the way the teacher's
// gateway service does.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "/etc/ocpp-central/config.yaml"

// Config holds all configuration for the central system process.
type Config struct {
	// ListenAddr is the address the HTTP server (WebSocket upgrade,
	// HTTP-tunnel ingress, and admin endpoints) binds to.
	ListenAddr string `yaml:"listen_addr"`

	// AdminToken authenticates the /api/* admin endpoints.
	AdminToken string `yaml:"admin_token"`

	// ResponseTimeoutSeconds bounds how long a server-initiated Call waits
	// for its CallResult/CallError before failing with Timeout.
	ResponseTimeoutSeconds int `yaml:"response_timeout_seconds"`

	// WebhookURL, if set, is where server-initiated Calls against
	// HTTP-tunnel sessions are delivered.
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`

	// RedisAddr and RedisDB address the optional side channel
	// (internal/sidechannel/redis) used to share connection state and
	// deliver server-initiated Calls across process boundaries. They are
	// loaded and overridable here, but cmd/central-system does not open the
	// side channel.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// MetricsAddr is the address the Prometheus /metrics endpoint binds to.
	// Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:             ":9000",
		ResponseTimeoutSeconds: 30,
		MetricsAddr:            ":9001",
	}
}

// Load loads configuration from a YAML file and overrides with environment
// variables. Environment variables take precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := defaultConfigPath
	if envPath := os.Getenv("OCPP_CENTRAL_CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	if err := loadConfigFile(cfg, configPath); err != nil {
		slog.Warn("could not load config file, using defaults and env vars",
			"path", configPath,
			"error", err,
		)
	} else {
		slog.Info("loaded config file", "path", configPath)
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OCPP_CENTRAL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("OCPP_CENTRAL_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("OCPP_CENTRAL_RESPONSE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ResponseTimeoutSeconds = n
		}
	}
	if v := os.Getenv("OCPP_CENTRAL_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("OCPP_CENTRAL_WEBHOOK_TOKEN"); v != "" {
		cfg.WebhookToken = v
	}
	if v := os.Getenv("OCPP_CENTRAL_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("OCPP_CENTRAL_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("OCPP_CENTRAL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if cfg.ResponseTimeoutSeconds <= 0 {
		return fmt.Errorf("response_timeout_seconds must be positive, got %d", cfg.ResponseTimeoutSeconds)
	}
	return nil
}
