// Package config handles configuration loading and validation for Graxil.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the miner
type Config struct {
	Pool      PoolConfig      `mapstructure:"pool"`
	Mining    MiningConfig    `mapstructure:"mining"`
	GPU       GPUConfig       `mapstructure:"gpu"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	Log       LogConfig       `mapstructure:"log"`
}

// PoolConfig defines pool connection and identity settings
type PoolConfig struct {
	Address string `mapstructure:"address"`
	Wallet  string `mapstructure:"wallet"`
	Worker  string `mapstructure:"worker"`
}

// MiningConfig defines CPU mining settings
type MiningConfig struct {
	Threads int `mapstructure:"threads"`
}

// GPUConfig defines GPU mining settings
type GPUConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	InformationFile string `mapstructure:"information_file"`
}

// DashboardConfig defines dashboard server settings
type DashboardConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Bind           string        `mapstructure:"bind"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

// WebhookConfig defines share/event webhook notification settings
type WebhookConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	URL                 string `mapstructure:"url"`
	DifficultyThreshold uint64 `mapstructure:"difficulty_threshold"`
}

// ProfilingConfig defines pprof server settings
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// NewRelicConfig defines New Relic APM settings
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LicenseKey string `mapstructure:"license_key"`
	AppName    string `mapstructure:"app_name"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/graxil")
	}

	v.SetEnvPrefix("GRAXIL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Pool defaults
	v.SetDefault("pool.worker", "worker1")

	// Mining defaults: 0 threads means one per logical CPU
	v.SetDefault("mining.threads", 0)

	// GPU defaults
	v.SetDefault("gpu.enabled", false)
	v.SetDefault("gpu.information_file", "gpu_information.json")

	// Dashboard defaults
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.bind", "127.0.0.1:8090")
	v.SetDefault("dashboard.update_interval", "2s")

	// Webhook defaults
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.difficulty_threshold", 1000000000)

	// Profiling defaults
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	// New Relic defaults
	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "graxil-miner")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Pool.Address == "" {
		return fmt.Errorf("pool.address is required (HOST:PORT)")
	}
	if err := validatePoolAddress(c.Pool.Address); err != nil {
		return err
	}

	if c.Pool.Wallet == "" {
		return fmt.Errorf("pool.wallet is required")
	}
	if _, err := ParseWallet(c.Pool.Wallet); err != nil {
		return fmt.Errorf("invalid wallet: %w", err)
	}

	if c.Mining.Threads < 0 || c.Mining.Threads > 1024 {
		return fmt.Errorf("mining.threads must be between 0 and 1024")
	}

	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when webhook is enabled")
	}

	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		return fmt.Errorf("newrelic.license_key is required when newrelic is enabled")
	}

	return nil
}
