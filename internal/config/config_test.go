package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, 20, cfg.MaxUsernameLength)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CHAT_PORT", "9090")
	t.Setenv("CHAT_HISTORY_LIMIT", "5")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("CHAT_RATE_LIMIT_BURST", "3")
	t.Setenv("CHAT_RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("CHAT_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 7000,
		"max_username_length": 12,
		"rate_limit": {"burst": 4},
		"log": {"pretty": true}
	}`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 12, cfg.MaxUsernameLength)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load(v)
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	cfg := Sanitize(Config{
		Port:           -1,
		AllowedOrigins: []string{" http://x.example ", "", "*"},
	})

	d := Default()
	assert.Equal(t, d.Port, cfg.Port)
	assert.Equal(t, d.HistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, d.MaxUsernameLength, cfg.MaxUsernameLength)
	assert.Equal(t, d.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, d.SendBuffer, cfg.SendBuffer)
	assert.Equal(t, d.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, d.RateLimit, cfg.RateLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"http://x.example", "*"}, cfg.AllowedOrigins)
}
