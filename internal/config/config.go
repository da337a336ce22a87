package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Agent backend (the execution capability)
	AgentBaseURL string
	AgentTimeout time.Duration

	// Default execution context used when an item carries no snapshot
	DefaultModel        string
	DefaultSystemPrompt string

	// Rate limiting: maximum agent calls per second per conversation
	AgentRateLimit int

	// Scheduling loop
	RoundDelay time.Duration // settle time between rounds

	// Background due-schedule poll interval
	DuePollInterval time.Duration

	// Completion notifications
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		AgentBaseURL: getEnv("AGENT_BASE_URL", "http://localhost:4321"),
		AgentTimeout: getDuration("AGENT_TIMEOUT", 120*time.Second),

		DefaultModel:        getEnv("DEFAULT_MODEL", "gemini-2.5-flash"),
		DefaultSystemPrompt: getEnv("DEFAULT_SYSTEM_PROMPT", "You are a helpful, accurate and friendly AI assistant."),

		AgentRateLimit: getInt("AGENT_RATE_LIMIT", 5),

		RoundDelay:      getDuration("ROUND_DELAY", time.Second),
		DuePollInterval: getDuration("DUE_POLL_INTERVAL", 5*time.Second),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 10*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
