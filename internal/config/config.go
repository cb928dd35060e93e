package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port           string
	MongoURI       string
	RedisURL       string
	JWTSecret      string
	AllowedOrigins []string

	// Collaboration tuning
	AutoSaveInterval  time.Duration
	CursorThrottle    time.Duration
	SnapshotRetention time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	// Parse allowed CORS origins (comma-separated)
	originsEnv := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	origins := strings.Split(originsEnv, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:           getEnv("PORT", "3001"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017/slidehub"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: origins,

		AutoSaveInterval:  getDurationEnv("AUTOSAVE_INTERVAL", 15*time.Second),
		CursorThrottle:    getDurationEnv("CURSOR_THROTTLE", 150*time.Millisecond),
		SnapshotRetention: getDurationEnv("SNAPSHOT_RETENTION", 30*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
