package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	PublisherModeDryRun = "dry_run"
	PublisherModeX      = "x"
)

type Config struct {
	Storage       StorageConfig       `toml:"storage"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Publisher     PublisherConfig     `toml:"publisher"`
	Notifications NotificationsConfig `toml:"notifications"`
	Logging       LoggingConfig       `toml:"logging"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"` // Empty means <config dir>/autoposter.db
}

type SchedulerConfig struct {
	PollIntervalSeconds    int  `toml:"poll_interval_seconds"`
	PublishTimeoutSeconds  int  `toml:"publish_timeout_seconds"`
	MaxGeneratedSchedules  int  `toml:"max_generated_schedules"`
	MaxGenerationDays      int  `toml:"max_generation_days"`
	ValidatePostOnSchedule bool `toml:"validate_post_on_schedule"`
}

func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s SchedulerConfig) PublishTimeout() time.Duration {
	return time.Duration(s.PublishTimeoutSeconds) * time.Second
}

type PublisherConfig struct {
	Mode              string `toml:"mode"` // dry_run or x
	XAPIBase          string `toml:"x_api_base"`
	XBearerToken      string `toml:"x_bearer_token"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
}

type NotificationsConfig struct {
	Enabled          bool   `toml:"enabled"`
	SystemNotify     bool   `toml:"system_notify"`
	NotifyOnSuccess  bool   `toml:"notify_on_success"`
	NotifyOnFailure  bool   `toml:"notify_on_failure"`
	DiscordWebhook   string `toml:"discord_webhook"`
	DiscordMentionID string `toml:"discord_mention_id"` // user id, or role:<id>
	TelegramBotToken string `toml:"telegram_bot_token"`
	TelegramChatID   string `toml:"telegram_chat_id"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	LogDir     string `toml:"log_dir"` // Empty means <config dir>/logs
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	JSON       bool   `toml:"json"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"` // e.g. "127.0.0.1:9464"; empty disables /metrics
}

func GetConfigPath() string {
	currentDirConfig := "config.toml"
	if _, err := os.Stat(currentDirConfig); err == nil {
		return currentDirConfig
	}

	return filepath.Join(GetConfigDir(), "config.toml")
}

func GetConfigDir() string {
	var configDir string
	var err error

	if runtime.GOOS == "darwin" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		configDir = filepath.Join(homeDir, ".config")
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			log.Fatal(err)
		}
	}

	return filepath.Join(configDir, "autoposter")
}

// SaveConfig writes cfg to configPath, creating the directory if needed.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), os.ModePerm); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}

func OpenConfigInEditor(configPath string) error {
	var cmd *exec.Cmd

	if runtime.GOOS == "windows" {
		// On Windows, use the default program associated with .toml files
		cmd = exec.Command("cmd", "/C", "start", "", configPath)
	} else {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vim"
		}
		cmd = exec.Command(editor, configPath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func copyFile(srcPath string, dstPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", configPath, err)
	}

	ApplyEnvOverrides(&config)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", configPath, err)
	}

	config.Storage.DatabasePath = filepath.ToSlash(config.Storage.DatabasePath)
	config.Logging.LogDir = filepath.ToSlash(config.Logging.LogDir)

	return &config, nil
}

// applyDefaults fills values that an older or hand-written file may leave empty.
func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(GetConfigDir(), "autoposter.db")
	}
	if c.Logging.LogDir == "" {
		c.Logging.LogDir = filepath.Join(GetConfigDir(), "logs")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Publisher.Mode == "" {
		c.Publisher.Mode = PublisherModeDryRun
	}
	if c.Publisher.XAPIBase == "" {
		c.Publisher.XAPIBase = "https://api.x.com"
	}
}

// Validate checks the values the scheduler and publisher cannot run without.
func (c *Config) Validate() error {
	if c.Scheduler.PollIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.poll_interval_seconds must be positive")
	}
	if c.Scheduler.PublishTimeoutSeconds <= 0 {
		return fmt.Errorf("scheduler.publish_timeout_seconds must be positive")
	}
	if c.Scheduler.MaxGeneratedSchedules <= 0 || c.Scheduler.MaxGenerationDays <= 0 {
		return fmt.Errorf("scheduler.max_generated_schedules and max_generation_days must be positive")
	}
	switch c.Publisher.Mode {
	case PublisherModeDryRun:
	case PublisherModeX:
		if c.Publisher.XBearerToken == "" {
			return fmt.Errorf("publisher.x_bearer_token is required in %q mode", PublisherModeX)
		}
	default:
		return fmt.Errorf("unknown publisher.mode %q", c.Publisher.Mode)
	}
	if c.Publisher.RequestsPerMinute < 0 || c.Publisher.MaxRetries < 0 {
		return fmt.Errorf("publisher.requests_per_minute and max_retries cannot be negative")
	}
	return nil
}

func CreateDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "", // Empty means default path
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds:    60,
			PublishTimeoutSeconds:  30,
			MaxGeneratedSchedules:  500,
			MaxGenerationDays:      366,
			ValidatePostOnSchedule: true,
		},
		Publisher: PublisherConfig{
			Mode:              PublisherModeDryRun,
			XAPIBase:          "https://api.x.com",
			XBearerToken:      "",
			RequestsPerMinute: 10,
			MaxRetries:        3,
		},
		Notifications: NotificationsConfig{
			Enabled:         false,
			SystemNotify:    true,
			NotifyOnSuccess: false,
			NotifyOnFailure: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogDir:     "",
			MaxSizeMB:  5,
			MaxBackups: 5,
			JSON:       false,
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
	}
}
