package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv             = "dev"
	defaultHTTPAddr           = ":5000"
	defaultDatabaseURL        = "videovault.db"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultJWTTTL             = "168h"
	defaultStorageDir         = "./uploads"
	defaultMaxUploadBytes     = "524288000" // 500 MB
	defaultFFProbeBinary      = "ffprobe"
	defaultStageDelay         = "1s"
	defaultRunTimeout         = "10m"
	defaultBroadcastBuffer    = "64"
	defaultShutdownTimeout    = "15s"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = "100"
	defaultLogMaxBackups      = "5"
	defaultLogMaxAgeDays      = "28"
	defaultCORSAllowedOrigins = "http://localhost:5173"
)

type Config struct {
	AppEnv             string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	JWTTTL             time.Duration
	StorageDir         string
	MaxUploadBytes     int64
	FFProbeBinary      string
	StageDelay         time.Duration
	RunTimeout         time.Duration
	BroadcastBuffer    int
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	Log                LogConfig
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("NODE_ENV"))
	}
	if appEnv == "" {
		appEnv = defaultAppEnv
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.StorageDir = strings.TrimSpace(getEnv("STORAGE_DIR", defaultStorageDir))
	cfg.FFProbeBinary = strings.TrimSpace(getEnv("FFPROBE_BINARY", defaultFFProbeBinary))
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.StageDelay, err = parseDurationEnv("PIPELINE_STAGE_DELAY", defaultStageDelay); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = parseDurationEnv("PIPELINE_RUN_TIMEOUT", defaultRunTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = parseInt64Env("MAX_UPLOAD_BYTES", defaultMaxUploadBytes); err != nil {
		return nil, err
	}
	if cfg.BroadcastBuffer, err = parseIntEnv("BROADCAST_BUFFER", defaultBroadcastBuffer); err != nil {
		return nil, err
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.Log.File = strings.TrimSpace(os.Getenv("LOG_FILE"))
	if cfg.Log.MaxSizeMB, err = parseIntEnv("LOG_MAX_SIZE_MB", defaultLogMaxSizeMB); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = parseIntEnv("LOG_MAX_BACKUPS", defaultLogMaxBackups); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = parseIntEnv("LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR must not be empty")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.StageDelay < 0 {
		return fmt.Errorf("PIPELINE_STAGE_DELAY must be >= 0")
	}
	if cfg.RunTimeout < 0 {
		return fmt.Errorf("PIPELINE_RUN_TIMEOUT must be >= 0")
	}
	if cfg.BroadcastBuffer <= 0 {
		return fmt.Errorf("BROADCAST_BUFFER must be > 0")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if isProdLike(cfg.AppEnv) && isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
		return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseInt64Env(name, fallback string) (int64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
