package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteManager handles the SQLite backend.
type SQLiteManager struct {
	baseManager
}

// SQLiteDSN returns the DSN for path with the recommended pragmas.
func SQLiteDSN(path string) string {
	if path == MemoryPath {
		return path
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
}

// NewSQLiteManager opens settings.Database.SQLite.Path, creating its parent
// directory if needed.
func NewSQLiteManager(settings *conf.Settings, log logger.Logger) (*SQLiteManager, error) {
	path := settings.Database.SQLite.Path
	if path == "" {
		return nil, errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(fmt.Errorf("failed to create database directory: %w", err)).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", dir).
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), newGormConfig(settings, log))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	// Every connection to ":memory:" is a separate database.
	if path == MemoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("opened SQLite database", logger.String("path", path))

	return &SQLiteManager{baseManager{
		db:       db,
		dialect:  conf.DatabaseSQLite,
		location: path,
		seed:     settings.Database.SeedSamples,
		log:      log,
	}}, nil
}
