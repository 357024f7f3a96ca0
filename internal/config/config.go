package config

import "time"

// Config represents the complete application configuration. Values come from
// the config file, environment variables (PINMAP_ prefix), and defaults, in
// that order of precedence.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Map      MapConfig      `mapstructure:"map"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Locator  LocatorConfig  `mapstructure:"locator"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`

	RateLimits      map[string]time.Duration `mapstructure:"rate_limits"`
	RateLimitMargin float64                  `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig contains geocode result cache TTL configuration.
type CacheConfig struct {
	HitTTL   time.Duration `mapstructure:"hit_ttl"`
	MissTTL  time.Duration `mapstructure:"miss_ttl"`
	ErrorTTL time.Duration `mapstructure:"error_ttl"`
}

// MapConfig contains the initial view configuration. Address, when set, is
// resolved to coordinates before the first draw and overrides Lat/Long.
type MapConfig struct {
	Lat         float64 `mapstructure:"lat"`
	Long        float64 `mapstructure:"long"`
	Zoom        int     `mapstructure:"zoom"`
	Address     string  `mapstructure:"address"`
	ContainerID string  `mapstructure:"container_id"`
	AutoLocate  bool    `mapstructure:"auto_locate"`
	TileURL     string  `mapstructure:"tile_url"`
	Attribution string  `mapstructure:"attribution"`
	Width       int     `mapstructure:"width"`
	Height      int     `mapstructure:"height"`
}

// GeocoderConfig contains geocoding client configuration.
type GeocoderConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Email       string        `mapstructure:"email"`
	Limit       int           `mapstructure:"limit"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LocatorConfig contains IP geolocation client configuration.
type LocatorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level.
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
