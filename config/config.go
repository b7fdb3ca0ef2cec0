// Package config loads application configuration from the environment, with
// optional .env support. The Config struct is built once at startup and
// passed into constructors; there is no global settings state.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LiveKit   LiveKitConfig
	S3        S3Config
	Recording RecordingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LiveKitConfig holds LiveKit server credentials.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// S3Config holds S3/MinIO settings for recording storage.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	EndpointURL          string // set for MinIO; empty for AWS S3
	RecordingsBucket     string
	PresignExpireSeconds int
}

// RecordingConfig holds egress output settings.
type RecordingConfig struct {
	OutputWidth        int
	OutputHeight       int
	SegmentDuration    int
	EnabledByDefault   bool
	ReconcileIntervalS int
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "echosphere"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		LiveKit: LiveKitConfig{
			URL:       getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:    getEnv("LIVEKIT_API_KEY", "devkey"),
			APISecret: getEnv("LIVEKIT_API_SECRET", "secret"),
		},
		S3: S3Config{
			Region:               getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:          getEnv("S3_ACCESS_KEY", ""),
			SecretAccessKey:      getEnv("S3_SECRET_KEY", ""),
			EndpointURL:          getEnv("S3_ENDPOINT_URL", ""),
			RecordingsBucket:     getEnv("S3_BUCKET_RECORDINGS", "recordings"),
			PresignExpireSeconds: getEnvInt("PRESIGNED_URL_EXPIRY_SECONDS", 3600),
		},
		Recording: RecordingConfig{
			OutputWidth:        getEnvInt("EGRESS_OUTPUT_WIDTH", 1280),
			OutputHeight:       getEnvInt("EGRESS_OUTPUT_HEIGHT", 720),
			SegmentDuration:    getEnvInt("EGRESS_SEGMENT_DURATION", 4),
			EnabledByDefault:   getEnvBool("RECORDING_ENABLED_BY_DEFAULT", false),
			ReconcileIntervalS: getEnvInt("RECONCILE_INTERVAL_SEC", 60),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
