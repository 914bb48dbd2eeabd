package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`
	StaticDir       string        `json:"static_dir"`

	// Database
	DBPath string `json:"db_path"`

	// Redis role cache. Empty URL keeps roles in process memory.
	RedisURL     string        `json:"redis_url"`
	RedisPrefix  string        `json:"redis_prefix"`
	RoleCacheTTL time.Duration `json:"role_cache_ttl"`

	// Sessions
	SessionTTL   time.Duration `json:"session_ttl"`
	CookieSecure bool          `json:"cookie_secure"`
	CookieDomain string        `json:"cookie_domain"`

	// CloudFlare R2 (or any S3 compatible) image storage
	R2Endpoint      string `json:"r2_endpoint"`
	R2AccessKey     string `json:"r2_access_key"`
	R2SecretKey     string `json:"r2_secret_key"`
	R2Bucket        string `json:"r2_bucket"`
	R2Region        string `json:"r2_region"`
	R2PublicBaseURL string `json:"r2_public_base_url"`
	UploadDir       string `json:"upload_dir"`

	// Image ingestion
	MaxFileSize     int64         `json:"max_file_size"`
	ResizeThreshold int64         `json:"resize_threshold"`
	ResizeMaxKB     int           `json:"resize_max_kb"`
	UploadAttempts  int           `json:"upload_attempts"`
	UploadBackoff   time.Duration `json:"upload_backoff"`
	FetchTimeout    time.Duration `json:"fetch_timeout"`

	// Editor
	ScratchPath      string        `json:"scratch_path"`
	AutosaveInterval time.Duration `json:"autosave_interval"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Bootstrap admin, created on start when both are set
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		StaticDir:       getEnv("STATIC_DIR", "./web/static"),

		DBPath: getEnv("DB_PATH", "./data/portal.db"),

		RedisURL:     getEnv("REDIS_URL", ""),
		RedisPrefix:  getEnv("REDIS_PREFIX", "portal:"),
		RoleCacheTTL: getEnvAsDuration("ROLE_CACHE_TTL", 15*time.Minute),

		SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure: getEnvAsBool("COOKIE_SECURE", false),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),

		R2Endpoint:      getEnv("R2_ENDPOINT", ""),
		R2AccessKey:     getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:     getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:        getEnv("R2_BUCKET", "images"),
		R2Region:        getEnv("R2_REGION", "auto"),
		R2PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		UploadDir:       getEnv("UPLOAD_DIR", "./web/static/uploads"),

		MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", 10<<20), // 10MB
		ResizeThreshold: getEnvAsInt64("RESIZE_THRESHOLD", 500<<10),
		ResizeMaxKB:     getEnvAsInt("RESIZE_MAX_KB", 500),
		UploadAttempts:  getEnvAsInt("UPLOAD_ATTEMPTS", 3),
		UploadBackoff:   getEnvAsDuration("UPLOAD_BACKOFF", time.Second),
		FetchTimeout:    getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),

		ScratchPath:      getEnv("SCRATCH_PATH", "./data/scratch.db"),
		AutosaveInterval: getEnvAsDuration("AUTOSAVE_INTERVAL", 10*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.UploadAttempts < 1 {
		return fmt.Errorf("UPLOAD_ATTEMPTS must be at least 1, got %d", c.UploadAttempts)
	}
	if c.ResizeMaxKB < 1 {
		return fmt.Errorf("RESIZE_MAX_KB must be positive, got %d", c.ResizeMaxKB)
	}
	if c.UsesS3() && (c.R2AccessKey == "" || c.R2SecretKey == "") {
		return fmt.Errorf("R2_ACCESS_KEY and R2_SECRET_ACCESS_KEY are required with R2_ENDPOINT")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// UsesS3 reports whether images go to an S3 compatible bucket instead of local disk
func (c *Config) UsesS3() bool {
	return c.R2Endpoint != ""
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
