package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agnosto/autoposter/db/models"
	"github.com/agnosto/autoposter/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Database represents the database connection
type Database struct {
	DB   *gorm.DB
	Path string
}

// NewDatabase opens (creating if needed) the SQLite file at dbPath through the
// pure-Go driver and migrates the schema.
func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Configure GORM logger
	logConfig := gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn, // Log only warnings and errors
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        dsn(dbPath),
	}), &gorm.Config{
		Logger: gormlogger.New(
			logger.Logger,
			logConfig,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer and the transaction helpers
	// rely on statements being serialized.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Post{},
		&models.Schedule{},
		&models.Template{},
		&models.ScheduleConfig{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Database{DB: db, Path: dbPath}, nil
}

func dsn(dbPath string) string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_time_format=sqlite",
	}
	return "file:" + filepath.ToSlash(dbPath) + "?" + strings.Join(params, "&")
}

// IntegrityCheck runs SQLite's own consistency check and returns its verdict,
// "ok" for a healthy file.
func (d *Database) IntegrityCheck() (string, error) {
	var result string
	if err := d.DB.Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return "", err
	}
	return result, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
