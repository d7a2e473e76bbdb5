package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that take precedence over the file. Secrets are
// expected to live here rather than in config.toml.
const (
	EnvXBearerToken     = "AUTOPOSTER_X_BEARER_TOKEN"
	EnvDiscordWebhook   = "AUTOPOSTER_DISCORD_WEBHOOK"
	EnvTelegramBotToken = "AUTOPOSTER_TELEGRAM_BOT_TOKEN"
	EnvLogLevel         = "AUTOPOSTER_LOG_LEVEL"
)

var envFiles = []string{".env", ".env.local"}

// LoadEnv loads the local env files that exist, later files overriding
// earlier ones, and returns the names it loaded.
func LoadEnv() ([]string, error) {
	loaded := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return loaded, err
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// ApplyEnvOverrides copies non-empty AUTOPOSTER_* variables onto cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := getEnv(EnvXBearerToken); v != "" {
		cfg.Publisher.XBearerToken = v
	}
	if v := getEnv(EnvDiscordWebhook); v != "" {
		cfg.Notifications.DiscordWebhook = v
	}
	if v := getEnv(EnvTelegramBotToken); v != "" {
		cfg.Notifications.TelegramBotToken = v
	}
	if v := getEnv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
