package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 50
	cfg.RateLimiting.WebSocket.Burst = 100
	cfg.RateLimiting.WebSocket.MaxConcurrent = 10
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 65536
	return cfg
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mock", cfg.Video.Provider)
	assert.Equal(t, 5.0, cfg.Catalog.DefaultRadius)
	assert.Equal(t, []float64{1, 2, 5, 10, 20, 50}, cfg.Catalog.RadiusOptions)
	assert.Equal(t, 2.0, cfg.Auction.Increment)
	assert.Equal(t, 5.0, cfg.Auction.BuyNowPremium)
	assert.Equal(t, []float64{5, 10}, cfg.Feed.GiftAmounts)
	assert.Equal(t, 10*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Geolocation.MaxAge)
	assert.True(t, cfg.UsesPlaceholderAppID())
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"ws messages per second must be > 0", func(c *Config) { c.RateLimiting.WebSocket.MessagesPerSecond = 0 }},
		{"ws max message size must be >= 0", func(c *Config) { c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1 }},
		{"unknown video provider", func(c *Config) { c.Video.Provider = "agora" }},
		{"webrtc provider needs signal url", func(c *Config) {
			c.Video.Provider = "webrtc"
			c.Video.SignalURL = ""
		}},
		{"unknown device source", func(c *Config) { c.Video.Devices = "usb" }},
		{"file devices need a video file", func(c *Config) { c.Video.Devices = "file" }},
		{"auction increment must be > 0", func(c *Config) { c.Auction.Increment = 0 }},
		{"gift amounts must be positive", func(c *Config) { c.Feed.GiftAmounts = []float64{5, 0} }},
		{"radius options must not be empty", func(c *Config) { c.Catalog.RadiusOptions = nil }},
		{"geolocation timeout must be > 0", func(c *Config) { c.Geolocation.Timeout = 0 }},
		{"pong timeout must exceed ping interval", func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval }},
		{"backup needs a directory", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Dir = ""
		}},
		{"backup retention must be > 0", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.RetentionDays = 0
		}},
		{"tracing needs endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerEndpoint = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("non-existent-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":8081", cfg.Signal.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9000"
  read_timeout: 10s
  write_timeout: 15s

video:
  provider: "mock"
  join_delay: 250ms
  host_delay: 500ms

catalog:
  default_radius_km: 10

logging:
  level: "debug"
`)

	t.Setenv("LOCALLIVE_LOG_LEVEL", "warn")
	t.Setenv("LOCALLIVE_VIDEO_APP_ID", "real-app-id")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Video.JoinDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Video.HostDelay)
	assert.Equal(t, 10.0, cfg.Catalog.DefaultRadius)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "real-app-id", cfg.Video.AppID)
	assert.False(t, cfg.UsesPlaceholderAppID())
	// untouched sections keep defaults
	assert.Equal(t, 2.0, cfg.Auction.Increment)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}
