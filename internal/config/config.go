// Package config provides unified configuration loading for the inspector.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the inspector.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Engines       EnginesConfig       `yaml:"engines"`
	OCR           OCRConfig           `yaml:"ocr"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ExtractionConfig holds per-request defaults.
type ExtractionConfig struct {
	// Timeout bounds one extraction; zero disables the deadline.
	Timeout   time.Duration `yaml:"timeout"`
	Tolerance float64       `yaml:"tolerance"`
	MinChars  int           `yaml:"min_chars"`
	LineScale int           `yaml:"line_scale"`
	Scale     float64       `yaml:"scale"`
	Language  string        `yaml:"language"`
}

// EnginesConfig names the external executables runner-backed adapters use.
type EnginesConfig struct {
	// Python is the interpreter camelot is installed in.
	Python      string   `yaml:"python"`
	Java        string   `yaml:"java"`
	TabulaJar   string   `yaml:"tabula_jar"`
	Ghostscript []string `yaml:"ghostscript"`
	Pdftotext   string   `yaml:"pdftotext"`
	// StderrLimit caps how much engine stderr is kept for logs.
	StderrLimit int `yaml:"stderr_limit"`
}

// OCRConfig holds recognizer and model cache settings.
type OCRConfig struct {
	TessdataPrefix  string        `yaml:"tessdata_prefix"`
	CacheDir        string        `yaml:"cache_dir"`
	WeightsBaseURL  string        `yaml:"weights_base_url"`
	DownloadRetries int           `yaml:"download_retries"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// DatabaseConfig holds the run history store settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds export artifact store settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// StorageConfig holds upload storage settings.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads .env files, the YAML file at path (optional) and environment
// overrides, in that order, then validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   10 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   100 << 20,
		},
		Extraction: ExtractionConfig{
			Timeout:   0,
			Tolerance: 5,
			MinChars:  1,
			LineScale: 15,
			Scale:     2.0,
			Language:  "eng",
		},
		Engines: EnginesConfig{
			Python:      "python3",
			Java:        "java",
			TabulaJar:   "tabula.jar",
			Ghostscript: []string{"gs", "gswin64c", "gswin32c"},
			Pdftotext:   "pdftotext",
			StderrLimit: 8 << 10,
		},
		OCR: OCRConfig{
			CacheDir:        "cache",
			WeightsBaseURL:  "https://github.com/tesseract-ocr/tessdata_best/raw/main",
			DownloadRetries: 3,
			DownloadTimeout: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "pdf-inspector.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 256,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "pdfi:",
			},
		},
		Storage: StorageConfig{
			UploadDir: "docs",
			OutputDir: ".",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "pdf-inspector",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Extraction.LineScale < 10 || c.Extraction.LineScale > 50 {
		return fmt.Errorf("line_scale must be between 10 and 50")
	}

	if c.Extraction.Scale < 1 || c.Extraction.Scale > 3 {
		return fmt.Errorf("scale must be between 1.0 and 3.0")
	}

	if c.Extraction.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}

	if len(c.Engines.Ghostscript) == 0 {
		return fmt.Errorf("at least one ghostscript executable name is required")
	}

	if c.OCR.DownloadRetries < 0 {
		return fmt.Errorf("download_retries cannot be negative")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDFI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PDFI_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("PDFI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extraction.Timeout = d
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("PDFI_PYTHON"); v != "" {
		cfg.Engines.Python = v
	}

	if v := os.Getenv("PDFI_TABULA_JAR"); v != "" {
		cfg.Engines.TabulaJar = v
	}

	if v := os.Getenv("PDFI_JAVA"); v != "" {
		cfg.Engines.Java = v
	}

	if v := os.Getenv("TESSDATA_PREFIX"); v != "" {
		cfg.OCR.TessdataPrefix = v
	}

	if v := os.Getenv("PDFI_CACHE_DIR"); v != "" {
		cfg.OCR.CacheDir = v
	}

	if v := os.Getenv("PDFI_UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
