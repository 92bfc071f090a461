package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Gates      []string         `yaml:"gates"`
	Shifts     ShiftConfig      `yaml:"shifts"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	StoreTimeoutMS  int     `yaml:"store_timeout_ms"`

	CacheTTL     time.Duration `yaml:"-"`
	StoreTimeout time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// ShiftConfig defines the day shift window in local "HH:MM" form. Anything
// outside the window is the night shift.
type ShiftConfig struct {
	DayStart string `yaml:"day_start"`
	DayEnd   string `yaml:"day_end"`
	Timezone string `yaml:"timezone"`
}

// AnalyticsConfig holds aggregation defaults.
type AnalyticsConfig struct {
	Timezone               string `yaml:"timezone"`
	DefaultWindowDays      int    `yaml:"default_window_days"`
	LongStayHours          int    `yaml:"long_stay_hours"`
	LongStayLimit          int    `yaml:"long_stay_limit"`
	HighFrequencyThreshold int    `yaml:"high_frequency_threshold"`
	HighFrequencyLimit     int    `yaml:"high_frequency_limit"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`

	RefreshInterval time.Duration `yaml:"-"`
}

// BroadcastConfig sizes the per-subscriber event queues.
type BroadcastConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
	KeepAliveSeconds int `yaml:"keep_alive_seconds"`
}

// Load reads the configuration from the given path. A .env file in the
// working directory, if present, is loaded first so that secrets can be kept
// out of the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env file: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.StoreTimeoutMS <= 0 {
		cfg.Server.StoreTimeoutMS = 5000
	}
	cfg.Server.StoreTimeout = time.Duration(cfg.Server.StoreTimeoutMS) * time.Millisecond

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	if len(cfg.Gates) == 0 {
		cfg.Gates = []string{"GATE-1", "GATE-2"}
	}
	for i, g := range cfg.Gates {
		cfg.Gates[i] = strings.ToUpper(strings.TrimSpace(g))
	}

	if cfg.Shifts.DayStart == "" {
		cfg.Shifts.DayStart = "06:00"
	}
	if cfg.Shifts.DayEnd == "" {
		cfg.Shifts.DayEnd = "18:00"
	}

	if cfg.Analytics.Timezone == "" {
		cfg.Analytics.Timezone = "UTC"
	}
	if cfg.Shifts.Timezone == "" {
		cfg.Shifts.Timezone = cfg.Analytics.Timezone
	}
	if cfg.Analytics.DefaultWindowDays <= 0 {
		cfg.Analytics.DefaultWindowDays = 30
	}
	if cfg.Analytics.LongStayHours <= 0 {
		cfg.Analytics.LongStayHours = 12
	}
	if cfg.Analytics.LongStayLimit <= 0 {
		cfg.Analytics.LongStayLimit = 10
	}
	if cfg.Analytics.HighFrequencyThreshold <= 0 {
		cfg.Analytics.HighFrequencyThreshold = 6
	}
	if cfg.Analytics.HighFrequencyLimit <= 0 {
		cfg.Analytics.HighFrequencyLimit = 5
	}
	if cfg.Analytics.RefreshIntervalSeconds <= 0 {
		cfg.Analytics.RefreshIntervalSeconds = 15
	}
	cfg.Analytics.RefreshInterval = time.Duration(cfg.Analytics.RefreshIntervalSeconds) * time.Second

	if cfg.Broadcast.SubscriberBuffer <= 0 {
		cfg.Broadcast.SubscriberBuffer = 256
	}
	if cfg.Broadcast.KeepAliveSeconds <= 0 {
		cfg.Broadcast.KeepAliveSeconds = 25
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// Validate checks settings that have no sensible default.
func (cfg *Config) Validate() error {
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	if _, err := time.LoadLocation(cfg.Analytics.Timezone); err != nil {
		return fmt.Errorf("invalid analytics.timezone %q: %w", cfg.Analytics.Timezone, err)
	}
	if _, err := time.LoadLocation(cfg.Shifts.Timezone); err != nil {
		return fmt.Errorf("invalid shifts.timezone %q: %w", cfg.Shifts.Timezone, err)
	}
	if _, err := ParseClock(cfg.Shifts.DayStart); err != nil {
		return fmt.Errorf("invalid shifts.day_start: %w", err)
	}
	if _, err := ParseClock(cfg.Shifts.DayEnd); err != nil {
		return fmt.Errorf("invalid shifts.day_end: %w", err)
	}
	return nil
}

// ParseClock parses an "HH:MM" wall clock value into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
