// Package config reads runtime settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"attendance-bot/internal/database"
	"attendance-bot/pkg/logger"
)

// Config keeps everything the process needs to start.
type Config struct {
	BotToken string
	OwnerID  int64

	Database database.Config
	Logger   logger.Config

	HealthAddr string
}

// Load builds a Config from the environment. BOT_TOKEN and OWNER_ID are
// required; everything else has defaults suitable for local development.
func Load() (Config, error) {
	cfg := Config{
		BotToken: strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "attendance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logger: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		HealthAddr: getEnv("HEALTH_ADDR", ":8081"),
	}

	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}

	ownerRaw := strings.TrimSpace(os.Getenv("OWNER_ID"))
	if ownerRaw == "" {
		return cfg, fmt.Errorf("OWNER_ID is required")
	}
	ownerID, err := strconv.ParseInt(ownerRaw, 10, 64)
	if err != nil {
		return cfg, fmt.Errorf("invalid OWNER_ID %q: %w", ownerRaw, err)
	}
	cfg.OwnerID = ownerID

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
