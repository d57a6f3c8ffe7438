package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// PlaceholderAppID is used when no video application id is supplied.
// Sessions created with it work against the mock provider only.
const PlaceholderAppID = "locallive-placeholder-app-id"

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		Address         string        `yaml:"address"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"signal"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
		PortRange  struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		GatherTimeout time.Duration `yaml:"gather_timeout"`
	} `yaml:"webrtc"`

	Video struct {
		// Provider selects the session implementation: "mock" or "webrtc".
		Provider  string        `yaml:"provider"`
		AppID     string        `yaml:"app_id"`
		SignalURL string        `yaml:"signal_url"`
		JoinDelay time.Duration `yaml:"join_delay"`
		HostDelay time.Duration `yaml:"host_delay"`
		// MockHostUID is the participant announced to audience members by the mock provider.
		MockHostUID string `yaml:"mock_host_uid"`
		// Devices selects the capture source: "test-pattern", "file" or "denied".
		Devices   string `yaml:"devices"`
		VideoFile string `yaml:"video_file"` // VP8 IVF
		AudioFile string `yaml:"audio_file"` // Opus Ogg
	} `yaml:"video"`

	Catalog struct {
		SeedFile      string        `yaml:"seed_file"`
		DefaultRadius float64       `yaml:"default_radius_km"`
		RadiusOptions []float64     `yaml:"radius_options_km"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"catalog"`

	Auction struct {
		Increment     float64       `yaml:"increment"`
		BuyNowPremium float64       `yaml:"buy_now_premium"`
		StartingPrice float64       `yaml:"starting_price"`
		Duration      time.Duration `yaml:"duration"`
		LockTTL       time.Duration `yaml:"lock_ttl"`
	} `yaml:"auction"`

	Feed struct {
		GiftAmounts []float64 `yaml:"gift_amounts"`
		MaxEvents   int       `yaml:"max_events"`
	} `yaml:"feed"`

	Geolocation struct {
		Timeout      time.Duration `yaml:"timeout"`
		MaxAge       time.Duration `yaml:"max_age"`
		HighAccuracy bool          `yaml:"high_accuracy"`
	} `yaml:"geolocation"`

	Sessions struct {
		IdleTTL time.Duration `yaml:"idle_ttl"`
	} `yaml:"sessions"`

	Backup struct {
		Enabled        bool          `yaml:"enabled"`
		Dir            string        `yaml:"dir"`
		Interval       time.Duration `yaml:"interval"`
		RetentionDays  int           `yaml:"retention_days"`
		RestoreOnStart bool          `yaml:"restore_on_start"`
	} `yaml:"backup"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		PrometheusPort    int           `yaml:"prometheus_port"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SamplingRate   float64 `yaml:"sampling_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond   float64 `yaml:"messages_per_second"`
			Burst               int     `yaml:"burst"`
			MaxConcurrent       int     `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signal
	if c.Signal.Address == "" {
		return fmt.Errorf("signal.address must not be empty")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be > signal.ping_interval")
	}

	// WebRTC
	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}

	// Video
	switch c.Video.Provider {
	case "mock", "webrtc":
	default:
		return fmt.Errorf("video.provider must be one of mock, webrtc (got %q)", c.Video.Provider)
	}
	if c.Video.Provider == "webrtc" && c.Video.SignalURL == "" {
		return fmt.Errorf("video.signal_url must not be empty when video.provider=webrtc")
	}
	if c.Video.JoinDelay < 0 || c.Video.HostDelay < 0 {
		return fmt.Errorf("video delays must be >= 0")
	}
	switch c.Video.Devices {
	case "test-pattern", "denied":
	case "file":
		if c.Video.VideoFile == "" {
			return fmt.Errorf("video.video_file must not be empty when video.devices=file")
		}
	default:
		return fmt.Errorf("video.devices must be one of test-pattern, file, denied (got %q)", c.Video.Devices)
	}

	// Catalog
	if len(c.Catalog.RadiusOptions) == 0 {
		return fmt.Errorf("catalog.radius_options_km must not be empty")
	}
	if c.Catalog.DefaultRadius <= 0 {
		return fmt.Errorf("catalog.default_radius_km must be > 0")
	}

	// Auction
	if c.Auction.Increment <= 0 {
		return fmt.Errorf("auction.increment must be > 0")
	}
	if c.Auction.BuyNowPremium < 0 {
		return fmt.Errorf("auction.buy_now_premium must be >= 0")
	}

	// Feed
	if len(c.Feed.GiftAmounts) == 0 {
		return fmt.Errorf("feed.gift_amounts must not be empty")
	}
	for _, amount := range c.Feed.GiftAmounts {
		if amount <= 0 {
			return fmt.Errorf("feed.gift_amounts must all be > 0")
		}
	}

	// Geolocation
	if c.Geolocation.Timeout <= 0 {
		return fmt.Errorf("geolocation.timeout must be > 0")
	}

	// Backup
	if c.Backup.Enabled {
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup.dir must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
		}
		if c.Backup.RetentionDays <= 0 {
			return fmt.Errorf("backup.retention_days must be > 0 when backup.enabled=true")
		}
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Tracing
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.Address = ":8081"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.ShutdownTimeout = 30 * time.Second

	cfg.WebRTC.GatherTimeout = 5 * time.Second

	cfg.Video.Provider = "mock"
	cfg.Video.AppID = PlaceholderAppID
	cfg.Video.SignalURL = "http://localhost:8081"
	cfg.Video.JoinDelay = time.Second
	cfg.Video.HostDelay = 1500 * time.Millisecond
	cfg.Video.MockHostUID = "host_sarah"
	cfg.Video.Devices = "test-pattern"

	cfg.Catalog.DefaultRadius = 5
	cfg.Catalog.RadiusOptions = []float64{1, 2, 5, 10, 20, 50}
	cfg.Catalog.CacheTTL = 30 * time.Second

	cfg.Auction.Increment = 2
	cfg.Auction.BuyNowPremium = 5
	cfg.Auction.StartingPrice = 12
	cfg.Auction.Duration = 30 * time.Minute
	cfg.Auction.LockTTL = 5 * time.Second

	cfg.Feed.GiftAmounts = []float64{5, 10}
	cfg.Feed.MaxEvents = 500

	cfg.Geolocation.Timeout = 10 * time.Second
	cfg.Geolocation.MaxAge = 5 * time.Minute
	cfg.Geolocation.HighAccuracy = true

	cfg.Sessions.IdleTTL = 30 * time.Minute

	cfg.Backup.Enabled = false
	cfg.Backup.Dir = "data/snapshots"
	cfg.Backup.Interval = 15 * time.Minute
	cfg.Backup.RetentionDays = 7
	cfg.Backup.RestoreOnStart = true

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsInterval = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SamplingRate = 0.1

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 20
	cfg.RateLimiting.WebSocket.Burst = 40
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 16 * 1024

	return cfg
}

// UsesPlaceholderAppID reports whether no real video application id was configured.
func (c *Config) UsesPlaceholderAppID() bool {
	return c.Video.AppID == "" || c.Video.AppID == PlaceholderAppID
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LOCALLIVE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("LOCALLIVE_SIGNAL_ADDRESS"); addr != "" {
		c.Signal.Address = addr
	}
	if level := os.Getenv("LOCALLIVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("LOCALLIVE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if appID := os.Getenv("LOCALLIVE_VIDEO_APP_ID"); appID != "" {
		c.Video.AppID = appID
	}
	if provider := os.Getenv("LOCALLIVE_VIDEO_PROVIDER"); provider != "" {
		c.Video.Provider = provider
	}
	if addr := os.Getenv("LOCALLIVE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
}
