// Package config loads the engine configuration. Every tunable lives in an
// explicit struct handed to constructors; there is no ambient settings
// singleton.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	NATS struct {
		Enabled       bool          `mapstructure:"enabled"`
		URL           string        `mapstructure:"url"`
		MaxReconnects int           `mapstructure:"max_reconnects"`
		ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	} `mapstructure:"nats"`

	Incident struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"incident"`

	Notification struct {
		URL     string        `mapstructure:"url"`
		Channel string        `mapstructure:"channel"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notification"`

	Escalation struct {
		DefaultTeam        string        `mapstructure:"default_team"`
		ManagerEmail       string        `mapstructure:"manager_email"`
		DefaultWaitMinutes int           `mapstructure:"default_wait_minutes"`
		MaxLevel           int           `mapstructure:"max_level"`
		CheckInterval      time.Duration `mapstructure:"check_interval"`
	} `mapstructure:"escalation"`

	Health struct {
		MemoryThreshold float64 `mapstructure:"memory_threshold"`
		DiskThreshold   float64 `mapstructure:"disk_threshold"`
	} `mapstructure:"health"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// Load reads configuration from the given directory (config.yaml) with
// environment variable overrides (ONCALL_ prefix, dots as underscores).
// A missing config file is fine; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("ONCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oncall-engine")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8003)

	v.SetDefault("database.path", "oncall.db")

	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("incident.url", "http://incident-management:8002")
	v.SetDefault("incident.timeout", 10*time.Second)

	v.SetDefault("notification.url", "http://notification-service:8004")
	v.SetDefault("notification.channel", "email")
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("escalation.default_team", "platform")
	v.SetDefault("escalation.manager_email", "oncall-manager@example.com")
	v.SetDefault("escalation.default_wait_minutes", 5)
	v.SetDefault("escalation.max_level", 3)
	v.SetDefault("escalation.check_interval", time.Minute)

	v.SetDefault("health.memory_threshold", 90.0)
	v.SetDefault("health.disk_threshold", 90.0)

	v.SetDefault("metrics.enabled", true)
}
