package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Environment string           `json:"environment"`
	Server      ServerConfig     `json:"server"`
	Database    DatabaseConfig   `json:"database"`
	Storage     StorageConfig    `json:"storage"`
	Redis       RedisConfig      `json:"redis"`
	Security    SecurityConfig   `json:"security"`
	Logging     LoggingConfig    `json:"logging"`
	Inspection  InspectionConfig `json:"inspection"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration. Driver is "postgres"
// or "sqlite3"; for sqlite3 DBName is the file path (or ":memory:").
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// StorageConfig selects where rendered documents are kept. Provider is
// "s3" or "memory".
type StorageConfig struct {
	Provider        string `json:"provider"`
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// RedisConfig enables the shared definitions cache when Addr is set
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

type InspectionConfig struct {
	UpstreamTimeout     time.Duration `json:"upstream_timeout"`
	DefinitionsCacheTTL time.Duration `json:"definitions_cache_ttl"`
	DownloadURLExpiry   time.Duration `json:"download_url_expiry"`

	// SessionSweepSchedule is a cron expression; empty disables the sweep
	SessionSweepSchedule string `json:"session_sweep_schedule"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "maintenance_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Provider: "memory",
			Bucket:   "inspection-documents",
			Region:   "us-east-1",
		},
		Redis: RedisConfig{
			Prefix: "inspection:",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Inspection: InspectionConfig{
			UpstreamTimeout:      10 * time.Second,
			DefinitionsCacheTTL:  60 * time.Second,
			DownloadURLExpiry:    15 * time.Minute,
			SessionSweepSchedule: "@every 5m",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setDuration := func(key string, dst *time.Duration) error {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	setString("ENVIRONMENT", &config.Environment)
	setString("SERVER_HOST", &config.Server.Host)
	setString("DATABASE_DRIVER", &config.Database.Driver)
	setString("DATABASE_HOST", &config.Database.Host)
	setString("DATABASE_USER", &config.Database.User)
	setString("DATABASE_PASSWORD", &config.Database.Password)
	setString("DATABASE_DBNAME", &config.Database.DBName)
	setString("DATABASE_SSLMODE", &config.Database.SSLMode)
	setString("STORAGE_PROVIDER", &config.Storage.Provider)
	setString("STORAGE_BUCKET", &config.Storage.Bucket)
	setString("STORAGE_REGION", &config.Storage.Region)
	setString("STORAGE_ENDPOINT", &config.Storage.Endpoint)
	setString("STORAGE_ACCESS_KEY_ID", &config.Storage.AccessKeyID)
	setString("STORAGE_SECRET_ACCESS_KEY", &config.Storage.SecretAccessKey)
	setString("REDIS_ADDR", &config.Redis.Addr)
	setString("REDIS_PASSWORD", &config.Redis.Password)
	setString("JWT_SECRET", &config.Security.JWTSecret)
	setString("LOG_LEVEL", &config.Logging.Level)
	setString("SESSION_SWEEP_SCHEDULE", &config.Inspection.SessionSweepSchedule)

	for key, dst := range map[string]*int{
		"SERVER_PORT":   &config.Server.Port,
		"DATABASE_PORT": &config.Database.Port,
		"REDIS_DB":      &config.Redis.DB,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*time.Duration{
		"UPSTREAM_TIMEOUT":      &config.Inspection.UpstreamTimeout,
		"DEFINITIONS_CACHE_TTL": &config.Inspection.DefinitionsCacheTTL,
		"DOWNLOAD_URL_EXPIRY":   &config.Inspection.DownloadURLExpiry,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.Storage.Provider {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage provider %q", c.Storage.Provider))
	}
	if c.Inspection.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("inspection upstream timeout must be positive"))
	}
	if c.Environment == "production" && c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required in production"))
	}
	return errors.Join(errs...)
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.Driver == "sqlite3" {
		return c.DBName
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
