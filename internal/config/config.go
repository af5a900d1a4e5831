package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken         string
	MailBaseURL      string
	PollInterval     time.Duration
	ProvisionRetries int
	ProvisionBackoff time.Duration
	InlineBodyLimit  int
	CacheTTL         time.Duration
	HTTPPort         int
	DBPath           string
}

func Load() Config {
	return Config{
		BotToken:         getEnvString("BOT_TOKEN", ""),
		MailBaseURL:      getEnvString("MAILTM_BASE_URL", "https://api.mail.tm"),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 30*time.Second),
		ProvisionRetries: getEnvInt("PROVISION_RETRIES", 3),
		ProvisionBackoff: getEnvDuration("PROVISION_BACKOFF", time.Second),
		InlineBodyLimit:  getEnvInt("INLINE_BODY_LIMIT", 1500),
		CacheTTL:         getEnvDuration("CACHE_TTL", 24*time.Hour),
		HTTPPort:         getEnvInt("HTTP_PORT", 3080),
		DBPath:           getEnvString("DB_PATH", ""),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
