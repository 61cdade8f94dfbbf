package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Walk      WalkConfig      `mapstructure:"walk"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	RateLimit      int      `mapstructure:"rate_limit"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Enabled      bool    `mapstructure:"enabled"`
}

// MapboxConfig configures the directions and static image clients.
type MapboxConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AccessToken    string        `mapstructure:"access_token"`
	Profile        string        `mapstructure:"profile"`
	Style          string        `mapstructure:"style"`
	Zoom           float64       `mapstructure:"zoom"`
	Pitch          float64       `mapstructure:"pitch"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// TemporalConfig configures the walk workflow client and worker.
// An empty HostPort disables durable walks.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// WalkConfig holds the simulated walk defaults.
type WalkConfig struct {
	StrideMeters float64       `mapstructure:"stride_meters"`
	Interval     time.Duration `mapstructure:"interval"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "atlas")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "atlas")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.access_token", "")
	v.SetDefault("mapbox.profile", "walking")
	v.SetDefault("mapbox.style", "mapbox/streets-v12")
	v.SetDefault("mapbox.zoom", 16)
	v.SetDefault("mapbox.pitch", 60)
	v.SetDefault("mapbox.width", 600)
	v.SetDefault("mapbox.height", 400)
	v.SetDefault("mapbox.timeout", 5*time.Second)
	v.SetDefault("mapbox.cache_ttl", 24*time.Hour)
	v.SetDefault("mapbox.breaker_timeout", 30*time.Second)
	v.SetDefault("temporal.host_port", "")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "atlas-walks")
	v.SetDefault("walk.stride_meters", 25.0)
	v.SetDefault("walk.interval", time.Second)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ATLAS_MAPBOX_ACCESS_TOKEN → mapbox.access_token
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.Mapbox.BaseURL == "" {
		errs = append(errs, "mapbox.base_url is required")
	}
	if c.Mapbox.Zoom < 0 || c.Mapbox.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("mapbox.zoom must be 0-22, got %v", c.Mapbox.Zoom))
	}
	if c.Mapbox.Pitch < 0 || c.Mapbox.Pitch > 60 {
		errs = append(errs, fmt.Sprintf("mapbox.pitch must be 0-60, got %v", c.Mapbox.Pitch))
	}
	if c.Mapbox.Width < 1 || c.Mapbox.Width > 1280 || c.Mapbox.Height < 1 || c.Mapbox.Height > 1280 {
		errs = append(errs, "mapbox.width and mapbox.height must be 1-1280")
	}
	if c.Mapbox.Timeout <= 0 {
		errs = append(errs, "mapbox.timeout must be positive")
	}
	if c.Temporal.HostPort != "" && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal.host_port is set")
	}
	if c.Walk.StrideMeters < 1 || c.Walk.StrideMeters > 1000 {
		errs = append(errs, fmt.Sprintf("walk.stride_meters must be 1-1000, got %v", c.Walk.StrideMeters))
	}
	if c.Walk.Interval < 100*time.Millisecond || c.Walk.Interval > time.Minute {
		errs = append(errs, fmt.Sprintf("walk.interval must be 100ms-1m, got %s", c.Walk.Interval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
