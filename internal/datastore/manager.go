// Package datastore opens the record database and prepares its schema.
//
// One Manager exists per backend (SQLite, MySQL, PostgreSQL). All of them
// hand out a *gorm.DB that repository.NewRecordRepository works with.
package datastore

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates the schema and, if configured, seeds the sample birds.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location without credentials.
	Path() string
	// Dialect returns "sqlite", "mysql" or "postgres".
	Dialect() string
	// Close closes the database connection.
	Close() error
}

// New opens the backend selected by settings.Database.Type.
func New(settings *conf.Settings, log logger.Logger) (Manager, error) {
	if settings == nil {
		return nil, errors.Newf("settings are nil").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = GetLogger()
	}

	switch settings.Database.Type {
	case conf.DatabaseSQLite:
		return NewSQLiteManager(settings, log)
	case conf.DatabaseMySQL:
		return NewMySQLManager(settings, log)
	case conf.DatabasePostgres:
		return NewPostgresManager(settings, log)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// baseManager holds what every backend shares.
type baseManager struct {
	db       *gorm.DB
	dialect  string
	location string
	seed     bool
	log      logger.Logger
}

func newGormConfig(settings *conf.Settings, log logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log.Module("gorm"), settings.Database.SlowQueryThreshold),
		TranslateError: true,
	}
}

// Initialize runs AutoMigrate for the birds table. When seeding is enabled
// the sample records go into an empty table only, so a deleted sample stays
// deleted on the next start; `birds seed` fills in missing samples.
func (m *baseManager) Initialize() error {
	if err := m.db.AutoMigrate(&entities.Bird{}); err != nil {
		return errors.New(fmt.Errorf("failed to migrate schema: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("dialect", m.dialect).
			Build()
	}

	if !m.seed {
		return nil
	}

	var count int64
	if err := m.db.Model(&entities.Bird{}).Count(&count).Error; err != nil {
		return seedError("sample birds", err)
	}
	if count > 0 {
		return nil
	}

	seeded, err := SeedSamples(m.db)
	if err != nil {
		return err
	}
	m.log.Info("seeded sample birds", logger.Int("count", seeded))
	return nil
}

// DB returns the underlying GORM database.
func (m *baseManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database location without credentials.
func (m *baseManager) Path() string {
	return m.location
}

// Dialect returns the backend name.
func (m *baseManager) Dialect() string {
	return m.dialect
}

// Close closes the database connection.
func (m *baseManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// SeedSamples inserts every sample bird that is not already present and
// returns how many were created. Existing records are never modified.
func SeedSamples(db *gorm.DB) (int, error) {
	samples := entities.SampleBirds()
	genera := make([]string, 0, len(samples))
	for i := range samples {
		genera = append(genera, samples[i].Genus)
	}

	var existing []entities.Bird
	if err := db.Select("genus", "species", "subspecies").
		Where("LOWER(genus) IN ?", lowerAll(genera)).
		Find(&existing).Error; err != nil {
		return 0, seedError("sample birds", err)
	}
	present := make(map[string]bool, len(existing))
	for i := range existing {
		present[existing[i].Key()] = true
	}

	seeded := 0
	for i := range samples {
		bird := samples[i]
		if present[bird.Key()] {
			continue
		}
		if err := db.Create(&bird).Error; err != nil {
			return seeded, seedError(bird.EnglishName, err)
		}
		present[bird.Key()] = true
		seeded++
	}
	return seeded, nil
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func seedError(name string, err error) error {
	return errors.New(fmt.Errorf("failed to seed %s: %w", name, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
