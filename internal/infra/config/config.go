package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	// Upstream PostgreSQL database publishing reminder changes
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	NotifyChannel        string
	ListenerPingInterval time.Duration

	SQLitePath   string
	ScanInterval time.Duration

	NtfyURL     string // Base URL plus topic path
	NtfyTags    string
	NtfyClick   string
	NtfyTimeout time.Duration

	TelegramToken  string // Optional, enables Telegram delivery together with TelegramChatID
	TelegramChatID int64

	HTTPAddr    string
	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		DBHost:        getEnv("DB_HOST", "127.0.0.1"),
		DBName:        getEnv("DB_NAME", "vikunja"),
		DBUser:        getEnv("DB_USER", "vikunja"),
		DBPassword:    getEnv("DB_PASSWORD", "vikunja"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		NotifyChannel: getEnv("NOTIFY_CHANNEL", "task_reminders_changes"),
		SQLitePath:    getEnv("SQLITE_DB_PATH", "./data/reminders.db"),
		NtfyURL:       getEnv("NTFY_URL", "https://ntfy.diplomatictunes.com/vikunja"),
		NtfyTags:      getEnv("NTFY_TAGS", "llama"),
		NtfyClick:     getEnv("NTFY_CLICK", "https://todo.craig.wiki"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8000"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Environment:   strings.ToLower(getEnv("ENVIRONMENT", "development")),
	}

	var err error
	cfg.DBPort, err = strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	if cfg.ListenerPingInterval, err = getDuration("LISTENER_PING_INTERVAL", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = getDuration("SCAN_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.NtfyTimeout, err = getDuration("NTFY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if _, err := url.ParseRequestURI(cfg.NtfyURL); err != nil {
		return nil, fmt.Errorf("invalid NTFY_URL: %w", err)
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	return cfg, nil
}

// TelegramEnabled reports whether both the bot token and the target chat are configured.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// PostgresDSN renders the libpq key/value connection string.
func (c *AppConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		quoteDSN(c.DBHost), c.DBPort, quoteDSN(c.DBName), quoteDSN(c.DBUser), quoteDSN(c.DBPassword), quoteDSN(c.DBSSLMode))
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
