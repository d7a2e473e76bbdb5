package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agnosto/autoposter/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "autoposter.log"

var (
	// Logger is usable before InitLogger; it writes to stderr until then.
	Logger = logrus.New()

	fileWriter io.Writer
)

// InitLogger points Logger at a size-rotated file under cfg.Logging.LogDir.
// Nothing is written to the terminal unless EnableConsole is called, so the
// dashboard keeps a clean screen.
func InitLogger(cfg *config.Config) error {
	logDir := cfg.Logging.LogDir
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	maxSize := cfg.Logging.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 5
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    maxSize, // MB
		MaxBackups: cfg.Logging.MaxBackups,
	}

	Logger.SetLevel(level)
	Logger.SetOutput(fileWriter)
	if cfg.Logging.JSON {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   true,
		})
	}

	return nil
}

// EnableConsole mirrors log output to stderr, for foreground runs.
func EnableConsole() {
	if fileWriter == nil {
		Logger.SetOutput(os.Stderr)
		return
	}
	Logger.SetOutput(io.MultiWriter(fileWriter, os.Stderr))
}

// LogPath returns the active log file for the given config.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Logging.LogDir, logFileName)
}

// Or returns l, or the package logger when l is nil.
func Or(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Logger
	}
	return l
}
