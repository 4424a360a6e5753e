package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultDemoConfigPath is the default location for the demo Charging
// Station client's configuration file.
const DefaultDemoConfigPath = "/etc/ocpp-central/charging-station.yaml"

// DemoClientConfig holds the configuration for the bundled demo Charging
// Station client. Unlike the central system's own Config (plain YAML +
// manual env overrides), this merges file, env, and defaults through
// viper/mapstructure the way the teacher's host-agent does, since this
// binary is the CLI-shaped half of the pair the teacher itself split this
// way.
type DemoClientConfig struct {
	ServerURL         string `mapstructure:"server_url" yaml:"server_url"`
	ChargingStationID string `mapstructure:"charging_station_id" yaml:"charging_station_id"`
	Subprotocol       string `mapstructure:"subprotocol" yaml:"subprotocol"`
	HeartbeatInterval int    `mapstructure:"heartbeat_interval_seconds" yaml:"heartbeat_interval_seconds"`
	AuthToken         string `mapstructure:"auth_token" yaml:"auth_token"`
}

// LoadDemoClientConfig reads configuration from configPath, falling back to
// DefaultDemoConfigPath if empty, with CHARGESIM_-prefixed environment
// variable overrides.
func LoadDemoClientConfig(configPath string) (*DemoClientConfig, error) {
	v := viper.New()

	v.SetDefault("server_url", "ws://localhost:9000")
	v.SetDefault("subprotocol", "ocpp1.6")
	v.SetDefault("heartbeat_interval_seconds", 30)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultDemoConfigPath)
	}

	v.SetEnvPrefix("CHARGESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv is only consulted by Unmarshal for keys viper already
	// knows; these two have no default, so bind them explicitly.
	_ = v.BindEnv("charging_station_id")
	_ = v.BindEnv("auth_token")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg DemoClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields.
func (c *DemoClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.ChargingStationID == "" {
		return fmt.Errorf("charging_station_id is required")
	}
	return nil
}
