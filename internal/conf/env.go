// env.go - environment variable bindings and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "HELLOBIRDIE_DEBUG", validateEnvBool},
		{"main.env", "HELLOBIRDIE_ENV", validateEnvEnvironment},
		{"webserver.port", "HELLOBIRDIE_PORT", validateEnvPort},
		{"webserver.session.secret", "HELLOBIRDIE_SESSION_SECRET", nil},
		{"webserver.admin.passwordhash", "HELLOBIRDIE_ADMIN_PASSWORD_HASH", nil},

		// Database
		{"database.type", "HELLOBIRDIE_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.postgres.url", "DATABASE_URL", validateEnvDatabaseURL},
		{"database.postgres.host", "POSTGRES_HOST", nil},
		{"database.postgres.port", "POSTGRES_PORT", validateEnvPort},
		{"database.postgres.user", "POSTGRES_USER", nil},
		{"database.postgres.password", "POSTGRES_PASSWORD", nil},
		{"database.postgres.passwordfile", "POSTGRES_PASSWORD_FILE", nil},
		{"database.postgres.database", "POSTGRES_DB", nil},

		// Integrations
		{"ebird.apikey", "EBIRD_API_KEY", nil},
		{"ebird.apikeyfile", "EBIRD_API_KEY_FILE", nil},
		{"sentry.dsn", "SENTRY_DSN", validateEnvDSN},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvEnvironment(value string) error {
	switch value {
	case EnvLocal, EnvTest, EnvProduction:
		return nil
	default:
		return fmt.Errorf("must be one of: %s, %s, %s (got '%s')", EnvLocal, EnvTest, EnvProduction, value)
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case DatabaseSQLite, DatabaseMySQL, DatabasePostgres:
		return nil
	default:
		return fmt.Errorf("must be one of: %s, %s, %s", DatabaseSQLite, DatabaseMySQL, DatabasePostgres)
	}
}

// validateEnvDatabaseURL accepts postgres:// and postgresql:// URLs.
// Credentials are never echoed back in the error.
func validateEnvDatabaseURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("malformed database URL")
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("database URL scheme must be postgres or postgresql, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("database URL has no host")
	}
	return nil
}

func validateEnvDSN(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("sentry DSN must be an http(s) URL")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
