// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateMainSettings,
		validateWebServerSettings,
		validateDatabaseSettings,
		validateEBirdSettings,
		validateBackupSettings,
		validateSentrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(settings *Settings) error {
	if settings.Main.Env == "" {
		return nil
	}
	if err := validateEnvEnvironment(settings.Main.Env); err != nil {
		return fmt.Errorf("main.env: %w", err)
	}
	return nil
}

// validateWebServerSettings checks the port and, when admin login is enabled,
// that the configured password hash is a usable bcrypt hash.
func validateWebServerSettings(settings *Settings) error {
	ws := &settings.WebServer
	if err := validateEnvPort(ws.Port); err != nil {
		return fmt.Errorf("webserver.port: %w", err)
	}

	if ws.Admin.PasswordHash != "" {
		if ws.Admin.Username == "" {
			return fmt.Errorf("webserver.admin.username is required when a password hash is set")
		}
		if _, err := bcrypt.Cost([]byte(ws.Admin.PasswordHash)); err != nil {
			return fmt.Errorf("webserver.admin.passwordhash is not a bcrypt hash: %w", err)
		}
	}

	if ws.Session.MaxAge < 0 {
		return fmt.Errorf("webserver.session.maxage must not be negative")
	}
	return nil
}

func validateDatabaseSettings(settings *Settings) error {
	db := &settings.Database
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database are required")
		}
		if _, err := strconv.Atoi(db.MySQL.Port); err != nil {
			return fmt.Errorf("database.mysql.port: invalid port '%s'", db.MySQL.Port)
		}
	case DatabasePostgres:
		if db.Postgres.URL != "" {
			return validateEnvDatabaseURL(db.Postgres.URL)
		}
		if db.Postgres.Host == "" || db.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required")
		}
	default:
		return fmt.Errorf("database.type must be one of: %s, %s, %s (got '%s')",
			DatabaseSQLite, DatabaseMySQL, DatabasePostgres, db.Type)
	}

	if db.SlowQueryThreshold < 0 {
		return fmt.Errorf("database.slowquerythreshold must not be negative")
	}
	return nil
}

func validateEBirdSettings(settings *Settings) error {
	eb := &settings.EBird
	if eb.BaseURL != "" {
		if u, err := url.Parse(eb.BaseURL); err != nil || u.Host == "" {
			return fmt.Errorf("ebird.baseurl is not a valid URL: '%s'", eb.BaseURL)
		}
	}
	if eb.RateLimit < 0 {
		return fmt.Errorf("ebird.ratelimit must not be negative, got %g", eb.RateLimit)
	}
	if eb.Timeout < 0 {
		return fmt.Errorf("ebird.timeout must not be negative")
	}
	return nil
}

func validateBackupSettings(settings *Settings) error {
	b := &settings.Backup
	switch b.Target {
	case "", BackupTargetLocal:
		return nil
	case BackupTargetS3:
		if b.S3.Bucket == "" {
			return fmt.Errorf("backup.s3.bucket is required for the s3 target")
		}
		if b.S3.Endpoint != "" && !strings.HasPrefix(b.S3.Endpoint, "http") {
			return fmt.Errorf("backup.s3.endpoint must be an http(s) URL")
		}
		return nil
	default:
		return fmt.Errorf("backup.target must be one of: %s, %s (got '%s')", BackupTargetLocal, BackupTargetS3, b.Target)
	}
}

func validateSentrySettings(settings *Settings) error {
	if !settings.Sentry.Enabled {
		return nil
	}
	if settings.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return validateEnvDSN(settings.Sentry.DSN)
}
