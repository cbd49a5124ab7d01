package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Quality  QualityConfig
	Cache    CacheConfig
	Region   RegionConfig
	Sync     SyncConfig
	Search   SearchConfig
	Fallback FallbackConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings for the transport catalog.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// QualityConfig holds the dataset quality thresholds.
//
// A dataset scoring >= ThresholdReal is served as-is; scores in
// [ThresholdRecovery, ThresholdReal) trigger the recovery pipeline; anything
// below ThresholdRecovery is replaced by the demo fallback.
type QualityConfig struct {
	ThresholdReal     int `mapstructure:"QUALITY_THRESHOLD_REAL"`
	ThresholdRecovery int `mapstructure:"QUALITY_THRESHOLD_RECOVERY"`
}

// CacheConfig holds dataset cache settings.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"CACHE_ENABLED"`
	Key       string        `mapstructure:"CACHE_KEY"`
	TTL       time.Duration `mapstructure:"CACHE_TTL_SECONDS"`
	OpTimeout time.Duration `mapstructure:"CACHE_OP_TIMEOUT"`
}

// RegionConfig holds the region geometry used by coordinate recovery and
// hub-route generation.
type RegionConfig struct {
	HubCityName     string  `mapstructure:"HUB_CITY_NAME"`
	RegionCenterLat float64 `mapstructure:"REGION_CENTER_LAT"`
	RegionCenterLon float64 `mapstructure:"REGION_CENTER_LON"`
}

// SyncConfig holds sync worker settings.
type SyncConfig struct {
	Interval     time.Duration `mapstructure:"SYNC_WORKER_INTERVAL_SECONDS"`
	FetchTimeout time.Duration `mapstructure:"SYNC_FETCH_TIMEOUT"`
}

// SearchConfig holds path-finder settings.
type SearchConfig struct {
	Timeout       time.Duration `mapstructure:"SEARCH_TIMEOUT_MS"`
	KAlternatives int           `mapstructure:"SEARCH_K_ALTERNATIVES"`
}

// FallbackConfig points at the demo dataset served when the catalog is
// unreachable or its data is beyond recovery. An empty DataDir selects the
// embedded demo files.
type FallbackConfig struct {
	DataDir string `mapstructure:"FALLBACK_DATA_DIR"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "35s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "transit")
	viper.SetDefault("POSTGRES_PASSWORD", "transit_secret")
	viper.SetDefault("POSTGRES_DB", "transit_catalog")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("QUALITY_THRESHOLD_REAL", 90)
	viper.SetDefault("QUALITY_THRESHOLD_RECOVERY", 50)

	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_KEY", "dataset")
	viper.SetDefault("CACHE_TTL_SECONDS", 3600)
	viper.SetDefault("CACHE_OP_TIMEOUT", "5s")

	viper.SetDefault("HUB_CITY_NAME", "Якутск")
	viper.SetDefault("REGION_CENTER_LAT", 62.0)
	viper.SetDefault("REGION_CENTER_LON", 129.0)

	viper.SetDefault("SYNC_WORKER_INTERVAL_SECONDS", 3600)
	viper.SetDefault("SYNC_FETCH_TIMEOUT", "10s")

	viper.SetDefault("SEARCH_TIMEOUT_MS", 30000)
	viper.SetDefault("SEARCH_K_ALTERNATIVES", 3)

	viper.SetDefault("FALLBACK_DATA_DIR", "")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Pipeline ────────────────────────────────────────
	cfg.Quality = QualityConfig{
		ThresholdReal:     viper.GetInt("QUALITY_THRESHOLD_REAL"),
		ThresholdRecovery: viper.GetInt("QUALITY_THRESHOLD_RECOVERY"),
	}

	// Keys carrying a unit suffix are plain integers in that unit; parsing
	// them as Go durations would read "3600" as nanoseconds.
	cfg.Cache = CacheConfig{
		Enabled:   viper.GetBool("CACHE_ENABLED"),
		Key:       viper.GetString("CACHE_KEY"),
		TTL:       time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		OpTimeout: viper.GetDuration("CACHE_OP_TIMEOUT"),
	}

	cfg.Region = RegionConfig{
		HubCityName:     viper.GetString("HUB_CITY_NAME"),
		RegionCenterLat: viper.GetFloat64("REGION_CENTER_LAT"),
		RegionCenterLon: viper.GetFloat64("REGION_CENTER_LON"),
	}

	cfg.Sync = SyncConfig{
		Interval:     time.Duration(viper.GetInt("SYNC_WORKER_INTERVAL_SECONDS")) * time.Second,
		FetchTimeout: viper.GetDuration("SYNC_FETCH_TIMEOUT"),
	}

	cfg.Search = SearchConfig{
		Timeout:       time.Duration(viper.GetInt("SEARCH_TIMEOUT_MS")) * time.Millisecond,
		KAlternatives: viper.GetInt("SEARCH_K_ALTERNATIVES"),
	}

	cfg.Fallback = FallbackConfig{
		DataDir: viper.GetString("FALLBACK_DATA_DIR"),
	}

	return cfg, nil
}
