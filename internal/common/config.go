package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Queue    QueueConfig    `yaml:"queue"`
	Cache    CacheConfig    `yaml:"cache"`
	Upload   UploadConfig   `yaml:"upload"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig holds database-related configuration.
// DSN selects Postgres; otherwise SQLitePath (":memory:" allowed) is used; both empty means in-process memory.
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	SQLitePath       string        `yaml:"sqlite_path"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Language       string `yaml:"language"`
	TessdataDir    string `yaml:"tessdata_dir"`
	HeicConverter  string `yaml:"heic_converter"`
	DPI            int    `yaml:"dpi"`
	MaxPages       int    `yaml:"max_pages"`
	ImageMaxHeight int    `yaml:"image_max_height"`
	TempDir        string `yaml:"temp_dir"`
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	FileTimeout    time.Duration `yaml:"file_timeout"`
	MaxFilesPerJob int           `yaml:"max_files_per_job"`
}

// CacheConfig holds the optional Redis snapshot cache configuration
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// UploadConfig holds upload limits and storage location
type UploadConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:        ":3000",
			GRPCAddr:        ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		OCR: OCRConfig{
			Language:       "spa",
			HeicConverter:  "magick",
			DPI:            300,
			ImageMaxHeight: 1200,
		},
		Queue: QueueConfig{
			FileTimeout:    3 * time.Minute,
			MaxFilesPerJob: 5,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Upload: UploadConfig{
			Dir:         "./uploads",
			MaxFileSize: 10 << 20,
		},
		LogLevel: "info",
	}
}

// LoadDotEnv loads a local .env file when one is present.
func LoadDotEnv(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to load .env", "error", err)
		}
		return
	}
	logger.Debug("loaded .env")
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// (VERIFIER_CONFIG) and environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("VERIFIER_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "failed to read "+path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.OCR.Language = getEnv("TESSERACT_LANG", c.OCR.Language)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.ImageMaxHeight = getEnvAsInt("IMAGE_MAX_HEIGHT", c.OCR.ImageMaxHeight)
	c.OCR.TempDir = getEnv("OCR_TEMP_DIR", c.OCR.TempDir)

	c.Queue.FileTimeout = getEnvAsDuration("QUEUE_FILE_TIMEOUT", c.Queue.FileTimeout)
	c.Queue.MaxFilesPerJob = getEnvAsInt("MAX_FILES_PER_JOB", c.Queue.MaxFilesPerJob)

	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvAsInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)

	c.Upload.Dir = getEnv("UPLOAD_DIR", c.Upload.Dir)
	c.Upload.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", c.Upload.MaxFileSize)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// SlogLevel translates LogLevel into a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("MAX_FILES_PER_JOB", c.Queue.MaxFilesPerJob, IntRange(1, 100)).
		Field("MAX_FILE_SIZE", c.Upload.MaxFileSize, IntRange(1, 1<<31)).
		Field("IMAGE_MAX_HEIGHT", c.OCR.ImageMaxHeight, IntRange(1, 20000)).
		Field("HEIC_CONVERTER", c.OCR.HeicConverter, OneOf("magick", "heif-convert", "sips"))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
