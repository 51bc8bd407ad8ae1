package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Auphere/places/internal/core/domain"
)

// Config holds all application configuration. The core consumes it but does
// not own it: every knob here is injected into the relevant component at
// wiring time.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Search    SearchConfig    `mapstructure:"search"`
	Regions   RegionsConfig   `mapstructure:"regions"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// DirectoryConfig configures the external directory client and the retry
// policy the orchestrator applies to its calls.
type DirectoryConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	MinCallIntervalMS  int    `mapstructure:"min_call_interval_ms"`
	MaxRetries         int    `mapstructure:"max_retries"`
	BackoffBaseMS      int    `mapstructure:"backoff_base_ms"`
	RateLimitBackoffMS int    `mapstructure:"rate_limit_backoff_ms"`
	RateLimitBudget    int    `mapstructure:"rate_limit_budget"`
	PageCap            int    `mapstructure:"page_cap"`
}

func (d DirectoryConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

func (d DirectoryConfig) MinCallInterval() time.Duration {
	return time.Duration(d.MinCallIntervalMS) * time.Millisecond
}

func (d DirectoryConfig) BackoffBase() time.Duration {
	return time.Duration(d.BackoffBaseMS) * time.Millisecond
}

func (d DirectoryConfig) RateLimitBackoff() time.Duration {
	return time.Duration(d.RateLimitBackoffMS) * time.Millisecond
}

// SyncConfig holds the default grid geometry for ingestion runs.
type SyncConfig struct {
	CellSizeKM      float64 `mapstructure:"cell_size_km"`
	RadiusMeters    int     `mapstructure:"radius_meters"`
	OverlapFraction float64 `mapstructure:"overlap_fraction"`
}

type SearchConfig struct {
	MaxPageSize     int `mapstructure:"max_page_size"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// RegionBounds mirrors domain.Bounds for mapstructure decoding.
type RegionBounds struct {
	MinLat float64 `mapstructure:"min_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLat float64 `mapstructure:"max_lat"`
	MaxLon float64 `mapstructure:"max_lon"`
}

// RegionsConfig is the registry of named regions' bounding boxes. Config
// entries extend or override the built-in defaults.
type RegionsConfig map[string]RegionBounds

// Registry converts the configured regions into the domain registry.
func (r RegionsConfig) Registry() domain.RegionRegistry {
	reg := make(domain.RegionRegistry, len(r))
	for name, b := range r {
		reg[name] = domain.Bounds{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: b.MaxLon}
	}
	return reg
}

// builtinRegions are the regions the service knows out of the box.
// Zaragoza is the actively synced city; the rest are carried for expansion.
var builtinRegions = RegionsConfig{
	"Zaragoza":  {MinLat: 41.6000, MinLon: -0.9500, MaxLat: 41.7000, MaxLon: -0.8200},
	"Madrid":    {MinLat: 40.3119, MinLon: -3.8871, MaxLat: 40.5615, MaxLon: -3.5179},
	"Barcelona": {MinLat: 41.3200, MinLon: 2.0524, MaxLat: 41.4695, MaxLon: 2.2280},
	"Valencia":  {MinLat: 39.4200, MinLon: -0.4300, MaxLat: 39.5200, MaxLon: -0.3000},
	"Sevilla":   {MinLat: 37.3200, MinLon: -6.0500, MaxLat: 37.4300, MaxLon: -5.9200},
	"Bilbao":    {MinLat: 43.2300, MinLon: -2.9800, MaxLat: 43.2900, MaxLon: -2.9000},
	"Malaga":    {MinLat: 36.6800, MinLon: -4.4800, MaxLat: 36.7600, MaxLon: -4.3800},
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "places")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "auphere")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("directory.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("directory.api_key", "")
	v.SetDefault("directory.timeout_seconds", 15)
	v.SetDefault("directory.min_call_interval_ms", 100)
	v.SetDefault("directory.max_retries", 3)
	v.SetDefault("directory.backoff_base_ms", 500)
	v.SetDefault("directory.rate_limit_backoff_ms", 30000)
	v.SetDefault("directory.rate_limit_budget", 2)
	v.SetDefault("directory.page_cap", 3)
	v.SetDefault("sync.cell_size_km", 1.5)
	v.SetDefault("sync.radius_meters", 1000)
	v.SetDefault("sync.overlap_fraction", 0.3)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.cache_ttl_seconds", 300)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: AUPHERE_DIRECTORY_API_KEY → directory.api_key
	v.SetEnvPrefix("AUPHERE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Built-in regions seed the registry; config entries override by name.
	merged := make(RegionsConfig, len(builtinRegions)+len(cfg.Regions))
	for name, b := range builtinRegions {
		merged[name] = b
	}
	for name, b := range cfg.Regions {
		merged[name] = b
	}
	cfg.Regions = merged

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
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Directory.BaseURL == "" {
		errs = append(errs, "directory.base_url is required")
	}
	if c.Directory.MinCallIntervalMS <= 0 {
		errs = append(errs, "directory.min_call_interval_ms must be positive")
	}
	if c.Directory.PageCap <= 0 {
		errs = append(errs, "directory.page_cap must be positive")
	}
	if c.Directory.MaxRetries < 0 {
		errs = append(errs, "directory.max_retries must not be negative")
	}
	if c.Sync.CellSizeKM <= 0 {
		errs = append(errs, "sync.cell_size_km must be positive")
	}
	if c.Sync.RadiusMeters <= 0 {
		errs = append(errs, "sync.radius_meters must be positive")
	}
	if c.Sync.OverlapFraction < 0 || c.Sync.OverlapFraction >= 1 {
		errs = append(errs, "sync.overlap_fraction must be in [0,1)")
	}
	if c.Search.MaxPageSize <= 0 {
		errs = append(errs, "search.max_page_size must be positive")
	}
	if c.Search.DefaultPageSize <= 0 || c.Search.DefaultPageSize > c.Search.MaxPageSize {
		errs = append(errs, "search.default_page_size must be in 1..max_page_size")
	}
	for name, b := range c.Regions {
		reg := domain.Bounds{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: b.MaxLon}
		if !reg.Valid() {
			errs = append(errs, fmt.Sprintf("regions.%s has a degenerate bounding box", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
