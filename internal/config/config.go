package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Local gateway
	Port     string
	Env      string
	LogLevel string

	// Upstream matchmaking server
	UpstreamWSURL  string
	UpstreamAPIURL string
	AuthToken      string

	// Viewer identity, used for own-slot lookup and chat mentions
	UserID   string
	UserName string

	// Journal; empty DatabaseURL disables persistence
	DatabaseURL       string
	JournalRetention  time.Duration
	JournalPruneEvery time.Duration

	// Session timing
	DraftPickTime    time.Duration
	OvertimeGrace    time.Duration
	LockInTimeout    time.Duration
	AcceptAttempts   int
	AcceptRetryDelay time.Duration
	ReconnectMax     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8787"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		UpstreamWSURL:     getEnv("UPSTREAM_WS_URL", "ws://localhost:5555/matchmaking/events"),
		UpstreamAPIURL:    getEnv("UPSTREAM_API_URL", "http://localhost:5555/api/1"),
		AuthToken:         getEnv("AUTH_TOKEN", ""),
		UserID:            getEnv("USER_ID", ""),
		UserName:          getEnv("USER_NAME", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JournalRetention:  parseDuration(getEnv("JOURNAL_RETENTION", "720h"), 720*time.Hour),
		JournalPruneEvery: parseDuration(getEnv("JOURNAL_PRUNE_EVERY", "1h"), time.Hour),
		DraftPickTime:     parseDuration(getEnv("DRAFT_PICK_TIME", "30s"), 30*time.Second),
		OvertimeGrace:     parseDuration(getEnv("DRAFT_OVERTIME_GRACE", "250ms"), 250*time.Millisecond),
		LockInTimeout:     parseDuration(getEnv("LOCK_IN_TIMEOUT", "2s"), 2*time.Second),
		AcceptAttempts:    parseInt(getEnv("ACCEPT_ATTEMPTS", "10"), 10),
		AcceptRetryDelay:  parseDuration(getEnv("ACCEPT_RETRY_DELAY", "400ms"), 400*time.Millisecond),
		ReconnectMax:      parseDuration(getEnv("RECONNECT_MAX_BACKOFF", "30s"), 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
