package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GatewayConfig holds the connection settings for the backend gateway.
type GatewayConfig struct {
	// BaseURL is the root URL of the gateway REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// PushURL is the root URL of the per-identity push endpoint
	// (ws:// or wss://). The identity id is appended as a path segment.
	PushURL string `mapstructure:"push_url" yaml:"push_url"`

	// TimeoutSec bounds one-shot requests (login, register, fetches).
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// PushConfig holds the reconnect policy for the push channel.
type PushConfig struct {
	// ReconnectMinSec is the initial backoff after an abnormal closure.
	ReconnectMinSec int `mapstructure:"reconnect_min_sec" yaml:"reconnect_min_sec"`

	// ReconnectMaxSec caps the exponential backoff.
	ReconnectMaxSec int `mapstructure:"reconnect_max_sec" yaml:"reconnect_max_sec"`
}

// NotificationsConfig holds the feed and alert preferences.
type NotificationsConfig struct {
	// MaxEvents caps the in-memory live event log.
	MaxEvents int `mapstructure:"max_events" yaml:"max_events"`

	// Permission is the recorded OS alert permission answer
	// ("default", "granted" or "denied").
	Permission string `mapstructure:"permission" yaml:"permission"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway       GatewayConfig       `mapstructure:"gateway" yaml:"gateway"`
	Push          PushConfig          `mapstructure:"push" yaml:"push"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/patient-portal/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "patient-portal", "config.yaml")
}

// DefaultDataPath returns the default path for the local notification cache
// database.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "portal.db")
	}
	return filepath.Join(home, ".config", "patient-portal", "portal.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Gateway: GatewayConfig{
			BaseURL:    "http://localhost:8090",
			PushURL:    "ws://localhost:8090/api/v1/notifications/ws",
			TimeoutSec: 15,
		},
		Push: PushConfig{
			ReconnectMinSec: 1,
			ReconnectMaxSec: 30,
		},
		Notifications: NotificationsConfig{
			MaxEvents:  200,
			Permission: string(PermissionDefault),
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("gateway.base_url", "http://localhost:8090")
	v.SetDefault("gateway.push_url", "ws://localhost:8090/api/v1/notifications/ws")
	v.SetDefault("gateway.timeout_sec", 15)
	v.SetDefault("push.reconnect_min_sec", 1)
	v.SetDefault("push.reconnect_max_sec", 30)
	v.SetDefault("notifications.max_events", 200)
	v.SetDefault("notifications.permission", string(PermissionDefault))
	v.SetDefault("display.theme", "default")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway", cfg.Gateway)
	v.Set("push", cfg.Push)
	v.Set("notifications", cfg.Notifications)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
