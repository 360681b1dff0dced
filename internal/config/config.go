// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultDataDir       = "."
	defaultListenAddress = ":8433"
)

// Config is the full bot configuration, loaded once at startup.
type Config struct {
	// Token is the Telegram bot token.
	Token string
	// APIEndpoint overrides the Telegram API base URL, e.g. to point at a
	// local bot API server. Empty means the public endpoint.
	APIEndpoint string
	// Admins are the Telegram ids allowed to talk to the bot.
	Admins []int64
	// LocalMode lifts upload limits when running against a local bot API
	// server.
	LocalMode bool

	DataDir    string
	DBFile     string
	CursorFile string

	// Webhook settings; an empty WebhookURL selects long polling.
	WebhookURL    string
	WebhookPath   string
	WebhookSecret string
	ListenAddress string

	ProfilingEnabled bool
}

// Load reads the optional .env file and the process environment.
func Load() (*Config, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	if err := godotenv.Load(filepath.Join(dataDir, ".env")); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	SetLogLevel(ParseLogLevel(os.Getenv("LOG_LEVEL")))

	cfg := &Config{
		Token:            os.Getenv("TELEGRAM_TOKEN"),
		APIEndpoint:      os.Getenv("TELEGRAM_API_URL"),
		LocalMode:        os.Getenv("LOCAL_MODE") == "true",
		DataDir:          dataDir,
		DBFile:           envOr("DB_FILE", filepath.Join(dataDir, "sklad.db")),
		CursorFile:       envOr("CURSOR_FILE", filepath.Join(dataDir, "sklad_bot.dat")),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),
		WebhookPath:      os.Getenv("WEBHOOK_PATH"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		ListenAddress:    envOr("LISTEN_ADDRESS", defaultListenAddress),
		ProfilingEnabled: os.Getenv("ENABLE_PPROF") == "true",
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	admins, err := parseAdmins(os.Getenv("TELEGRAM_ADMINS"))
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, fmt.Errorf("TELEGRAM_ADMINS is not set")
	}
	cfg.Admins = admins

	return cfg, nil
}

// IsAdmin reports whether a Telegram id may use the bot.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Admins {
		if id == telegramID {
			return true
		}
	}
	return false
}

func parseAdmins(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	admins := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		admins = append(admins, id)
	}
	return admins, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseLogLevel parses a string and returns the corresponding logrus.Level.
func ParseLogLevel(logLevel string) logrus.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLogLevel sets the log level for the application.
func SetLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
}
