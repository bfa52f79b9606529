package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Auth modes.
const (
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
)

// Config holds all configuration values for the gateway
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// GameServiceURL is the upstream the gate proxies admitted upgrades to
	GameServiceURL string
	SharedSecret   string

	AuthMode         string
	JWTSecret        string
	AuthServiceURL   string
	AuthServiceToken string

	// Handshake rate limit per client IP
	RequestsPerSecond float64
	BurstSize         int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		Port:              getEnv("GATEWAY_PORT", "8080"),
		Environment:       getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		GameServiceURL:    getEnv("GAME_SERVICE_URL", "http://localhost:8081"),
		SharedSecret:      getEnv("GATEWAY_SHARED_SECRET", ""),
		AuthMode:          getEnv("AUTH_MODE", AuthModeJWT),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AuthServiceURL:    getEnv("AUTH_SERVICE_URL", ""),
		AuthServiceToken:  getEnv("AUTH_SERVICE_TOKEN", ""),
		RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 10),
		BurstSize:         getEnvInt("RATE_LIMIT_BURST", 20),
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
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}
