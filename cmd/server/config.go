package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/e-kose/FT-PINPON-sub002/internal/archive"
	"github.com/e-kose/FT-PINPON-sub002/internal/db"
	"github.com/e-kose/FT-PINPON-sub002/internal/redis"
)

// Config holds all configuration values for the game service
type Config struct {
	// Database configuration
	DBConfig db.Config

	// Presence is disabled when RedisConfig.Host is empty
	RedisConfig redis.Config

	// Finished brackets are archived when ArchiveConfig.Bucket is set
	ArchiveConfig archive.Config

	// Server configuration
	ServerPort  string
	Environment string
	LogLevel    string

	// GatewaySecret must match the token the gateway attaches to upgrades
	GatewaySecret string

	SendTimeout         time.Duration
	TournamentRetention time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		DBConfig: db.Config{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "pong"),
			Verbose:  getEnvBool("DB_VERBOSE", false),
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ArchiveConfig: archive.Config{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("ARCHIVE_PREFIX", "tournaments"),
		},
		ServerPort:          getEnv("SERVER_PORT", "8081"),
		Environment:         getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		GatewaySecret:       getEnv("GATEWAY_SHARED_SECRET", ""),
		SendTimeout:         getEnvDuration("SEND_TIMEOUT", 2*time.Second),
		TournamentRetention: getEnvDuration("TOURNAMENT_RETENTION", time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
