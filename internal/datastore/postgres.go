package datastore

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

const testDatabaseSuffix = "_test"

// PostgresManager handles the PostgreSQL backend.
type PostgresManager struct {
	baseManager
}

// PostgresDSN returns a connection URL. settings.URL wins over the discrete
// values. In the test environment the database name gets a "_test" suffix
// so tests never touch the development database.
func PostgresDSN(s *conf.PostgresSettings, env string) (string, error) {
	var u *url.URL
	if s.URL != "" {
		parsed, err := url.Parse(s.URL)
		if err != nil {
			// url.Error repeats the raw URL, password included.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			return "", fmt.Errorf("invalid database URL: %w", err)
		}
		u = parsed
	} else {
		u = &url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(s.Host, s.Port),
			Path:   "/" + s.Database,
		}
		if s.User != "" {
			u.User = url.UserPassword(s.User, s.Password)
		}
		if s.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
		}
	}

	if env == conf.EnvTest {
		name := strings.TrimPrefix(u.Path, "/")
		if name != "" && !strings.HasSuffix(name, testDatabaseSuffix) {
			u.Path = "/" + name + testDatabaseSuffix
		}
	}

	dsn := u.String()
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("invalid PostgreSQL connection settings: %w", err)
	}
	return dsn, nil
}

// postgresLocation describes dsn without credentials.
func postgresLocation(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "postgres"
	}
	return fmt.Sprintf("%s/%s", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)), cfg.Database)
}

// NewPostgresManager connects to PostgreSQL through pgx.
func NewPostgresManager(settings *conf.Settings, log logger.Logger) (*PostgresManager, error) {
	dsn, err := PostgresDSN(&settings.Database.Postgres, settings.Main.Env)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	location := postgresLocation(dsn)

	db, err := gorm.Open(postgres.Open(dsn), newGormConfig(settings, log))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open PostgreSQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("location", location).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to PostgreSQL", logger.String("location", location))

	return &PostgresManager{baseManager{
		db:       db,
		dialect:  conf.DatabasePostgres,
		location: location,
		seed:     settings.Database.SeedSamples,
		log:      log,
	}}, nil
}
