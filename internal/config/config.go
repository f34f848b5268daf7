package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/savegress/amldesk/internal/cache"
	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/internal/scoring"
)

// Config holds all configuration for amldesk
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     cache.Config       `yaml:"redis"`
	Scoring   scoring.Thresholds `yaml:"scoring"`
	Ledger    LedgerConfig       `yaml:"ledger"`
	Dashboard dashboard.Config   `yaml:"dashboard"`
	Log       LogConfig          `yaml:"log"`
	Demo      DemoConfig         `yaml:"demo"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Environment     string        `yaml:"environment"`
	JWTSecret       string        `yaml:"jwt_secret"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the record store
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres, sqlite or memory
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LedgerConfig holds comment and audit settings
type LedgerConfig struct {
	AuditCapacity    int `yaml:"audit_capacity"`
	CommentRetention int `yaml:"comment_retention"` // 0 keeps every comment
	MaxCommentLength int `yaml:"max_comment_length"`
	CommentPageSize  int `yaml:"comment_page_size"`
	ReportComments   int `yaml:"report_comments"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DemoConfig seeds the memory store with synthetic clients
type DemoConfig struct {
	Clients int   `yaml:"clients"`
	Seed    int64 `yaml:"seed"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3010,
			Environment:     "development",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:     "memory",
			SQLitePath: "./data",
		},
		Redis: cache.Config{
			Host:      "localhost",
			Port:      6379,
			KeyPrefix: "amldesk",
		},
		Scoring: scoring.DefaultThresholds,
		Ledger: LedgerConfig{
			AuditCapacity:    50,
			MaxCommentLength: 250,
			CommentPageSize:  10,
			ReportComments:   10,
		},
		Dashboard: dashboard.Config{
			RefreshInterval: 5 * time.Minute,
			RefreshTimeout:  time.Minute,
			TopN:            5,
			PageSize:        500,
			Workers:         4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Demo: DemoConfig{
			Clients: 200,
			Seed:    1,
		},
	}
}

// Load reads a YAML file over the defaults. Environment variables in the
// file are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	d := Default()
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", d.Server.Port),
			Environment:     getEnv("ENVIRONMENT", d.Server.Environment),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", d.Server.AllowedOrigins),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", d.Server.ReadTimeout),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", d.Server.WriteTimeout),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", d.Server.ShutdownTimeout),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", d.Database.Driver),
			URL:        getEnv("DATABASE_URL", ""),
			SQLitePath: getEnv("SQLITE_PATH", d.Database.SQLitePath),
		},
		Redis: cache.Config{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			Host:      getEnv("REDIS_HOST", d.Redis.Host),
			Port:      getEnvInt("REDIS_PORT", d.Redis.Port),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_PREFIX", d.Redis.KeyPrefix),
		},
		Scoring: scoring.Thresholds{
			Low:  getEnvInt("SCORE_LOW", d.Scoring.Low),
			High: getEnvInt("SCORE_HIGH", d.Scoring.High),
			Min:  getEnvInt("SCORE_MIN", d.Scoring.Min),
			Max:  getEnvInt("SCORE_MAX", d.Scoring.Max),
		},
		Ledger: LedgerConfig{
			AuditCapacity:    getEnvInt("AUDIT_CAPACITY", d.Ledger.AuditCapacity),
			CommentRetention: getEnvInt("COMMENT_RETENTION", d.Ledger.CommentRetention),
			MaxCommentLength: getEnvInt("MAX_COMMENT_LENGTH", d.Ledger.MaxCommentLength),
			CommentPageSize:  getEnvInt("COMMENT_PAGE_SIZE", d.Ledger.CommentPageSize),
			ReportComments:   getEnvInt("REPORT_COMMENTS", d.Ledger.ReportComments),
		},
		Dashboard: dashboard.Config{
			RefreshInterval: getEnvDuration("DASHBOARD_REFRESH_INTERVAL", d.Dashboard.RefreshInterval),
			RefreshTimeout:  getEnvDuration("DASHBOARD_REFRESH_TIMEOUT", d.Dashboard.RefreshTimeout),
			TopN:            getEnvInt("DASHBOARD_TOP_N", d.Dashboard.TopN),
			PageSize:        getEnvInt("DASHBOARD_PAGE_SIZE", d.Dashboard.PageSize),
			Workers:         getEnvInt("DASHBOARD_WORKERS", d.Dashboard.Workers),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", d.Log.Level),
			Format: getEnv("LOG_FORMAT", d.Log.Format),
		},
		Demo: DemoConfig{
			Clients: getEnvInt("DEMO_CLIENTS", d.Demo.Clients),
			Seed:    int64(getEnvInt("DEMO_SEED", int(d.Demo.Seed))),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Server.Environment == "production" && c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required in production")
	}
	if c.Ledger.AuditCapacity <= 0 {
		return fmt.Errorf("ledger.audit_capacity must be positive")
	}
	if c.Ledger.CommentRetention < 0 {
		return fmt.Errorf("ledger.comment_retention must not be negative")
	}
	if c.Ledger.MaxCommentLength <= 0 {
		return fmt.Errorf("ledger.max_comment_length must be positive")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be positive")
	}
	return nil
}

// NewLogger builds the zap logger described by c
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	switch c.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	zc.Level = level
	return zc.Build()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
