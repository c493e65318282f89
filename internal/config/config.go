// Package config defines runtime defaults, loading and sanitizing for the
// chat relay. Values are read once at startup and never change afterwards.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g. CHAT_PORT.
const EnvPrefix = "CHAT"

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config holds the server configuration.
type Config struct {
	Port              int             `mapstructure:"port"`
	HistoryLimit      int             `mapstructure:"history_limit"`
	MaxUsernameLength int             `mapstructure:"max_username_length"`
	AllowedOrigins    []string        `mapstructure:"allowed_origins"`
	MaxMessageSize    int64           `mapstructure:"max_message_size"`
	SendBuffer        int             `mapstructure:"send_buffer"`
	ShutdownTimeout   time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
	Log               LogConfig       `mapstructure:"log"`
}

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Port:              8080,
		HistoryLimit:      100,
		MaxUsernameLength: 20,
		AllowedOrigins:    []string{"*"},
		MaxMessageSize:    4096,
		SendBuffer:        256,
		ShutdownTimeout:   10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Addr returns the listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads configuration from v. Defaults are applied first, then the
// config file set on v (if any), then CHAT_* environment variables and any
// flags already bound to v. The result is sanitized.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg = Sanitize(cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("history_limit", d.HistoryLimit)
	v.SetDefault("max_username_length", d.MaxUsernameLength)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("max_message_size", d.MaxMessageSize)
	v.SetDefault("send_buffer", d.SendBuffer)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("rate_limit.refill_interval", d.RateLimit.RefillInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Sanitize replaces out-of-range values with their defaults.
func Sanitize(cfg Config) Config {
	d := Default()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = d.Port
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = d.HistoryLimit
	}
	if cfg.MaxUsernameLength <= 0 {
		cfg.MaxUsernameLength = d.MaxUsernameLength
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = d.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = d.SendBuffer
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = d.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = d.RateLimit.RefillInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}

	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)
	return cfg
}

// parseOrigins trims entries and splits any comma-separated values that
// arrived as a single string from the environment.
func parseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		for _, part := range strings.Split(o, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
