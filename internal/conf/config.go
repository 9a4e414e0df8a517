// config.go: settings struct for hellobirdie and the functions to load and save it.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// Environments mirror the deployment profiles: local development, the test
// suite and production.
const (
	EnvLocal      = "local"
	EnvTest       = "test"
	EnvProduction = "production"
)

// Database backends
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// Backup targets
const (
	BackupTargetLocal = "local"
	BackupTargetS3    = "s3"
)

// MainSettings holds application identity settings
type MainSettings struct {
	Name string // instance name shown in page titles
	Env  string // local, test or production
}

// AdminSettings holds the credentials for the record admin pages.
// An empty PasswordHash disables admin login.
type AdminSettings struct {
	Username     string
	PasswordHash string // bcrypt hash
}

// SessionSettings configures the admin session cookie
type SessionSettings struct {
	Secret     string        // cookie signing key
	SecretFile string        // file holding Secret
	MaxAge     time.Duration // session lifetime
	Secure     bool          // set the Secure flag on the cookie
}

// WebServerSettings holds the HTTP server settings
type WebServerSettings struct {
	Port    string
	Debug   bool
	Admin   AdminSettings
	Session SessionSettings
}

// SQLiteSettings configures the SQLite backend
type SQLiteSettings struct {
	Path string // database file, or ":memory:"
}

// MySQLSettings configures the MySQL backend
type MySQLSettings struct {
	Host         string
	Port         string
	Username     string
	Password     string
	PasswordFile string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// PostgresSettings configures the PostgreSQL backend. URL takes precedence
// over the discrete connection values.
type PostgresSettings struct {
	URL      string
	Host     string
	Port     string
	User         string
	Password     string
	PasswordFile string
	Database     string
	SSLMode      string
}

// DatabaseSettings selects and configures the record store
type DatabaseSettings struct {
	Type               string // sqlite, mysql or postgres; empty picks one from the environment
	SeedSamples        bool   // insert the sample birds on startup
	SlowQueryThreshold time.Duration
	SQLite             SQLiteSettings
	MySQL              MySQLSettings
	Postgres           PostgresSettings
}

// CacheSettings configures the repository read cache
type CacheSettings struct {
	Enabled bool
	TTL     time.Duration
}

// EBirdSettings configures the eBird taxonomy client
type EBirdSettings struct {
	APIKey     string
	APIKeyFile string // file holding APIKey, e.g. /run/secrets/ebird
	BaseURL    string
	Locale    string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RateLimit float64 // requests per second
}

// LocalBackupSettings configures the local directory backup target
type LocalBackupSettings struct {
	Path string
}

// S3BackupSettings configures the S3 backup target
type S3BackupSettings struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO
	Prefix    string
	PathStyle bool
}

// BackupSettings configures record exports
type BackupSettings struct {
	Target string // local or s3
	Local  LocalBackupSettings
	S3     S3BackupSettings
}

// MetricsSettings toggles the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for hellobirdie.
type Settings struct {
	Debug bool

	Main      MainSettings
	Logging   logger.LoggingConfig
	WebServer WebServerSettings
	Database  DatabaseSettings
	Cache     CacheSettings
	EBird     EBirdSettings
	Backup    BackupSettings
	Metrics   MetricsSettings
	Sentry    SentrySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "unmarshal-config").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}
	resolveDerivedSettings(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// resolveSecrets loads credentials from their *File companions or expands
// ${VAR} references in place.
func resolveSecrets(settings *Settings) error {
	fields := []struct {
		key   string
		file  string
		value *string
	}{
		{"webserver.session.secret", settings.WebServer.Session.SecretFile, &settings.WebServer.Session.Secret},
		{"database.mysql.password", settings.Database.MySQL.PasswordFile, &settings.Database.MySQL.Password},
		{"database.postgres.password", settings.Database.Postgres.PasswordFile, &settings.Database.Postgres.Password},
		{"ebird.apikey", settings.EBird.APIKeyFile, &settings.EBird.APIKey},
	}

	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("setting", f.key).
				Build()
		}
		*f.value = resolved
	}
	return nil
}

// resolveDerivedSettings fills values that depend on other settings
func resolveDerivedSettings(settings *Settings) {
	if settings.Database.Type == "" {
		switch {
		case settings.Database.Postgres.URL != "", settings.Main.Env == EnvProduction:
			settings.Database.Type = DatabasePostgres
		default:
			settings.Database.Type = DatabaseSQLite
		}
	}

	if settings.WebServer.Session.Secret == "" {
		settings.WebServer.Session.Secret = GenerateRandomSecret()
		GetLogger().Warn("no session secret configured, admin sessions will not survive a restart")
	}
}

// initViper initializes viper with default values and reads the configuration file.
// A file set beforehand with viper.SetConfigFile (the --config flag) is used
// as is; otherwise the default config paths are searched.
func initViper() error {
	explicit := viper.ConfigFileUsed()
	viper.SetConfigType("yaml")

	var configPaths []string
	if explicit == "" {
		var err error
		configPaths, err = GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		viper.SetConfigName("config")
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	// function defined in defaults.go
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		missing := errors.As(err, &configFileNotFoundError) || errors.Is(err, fs.ErrNotExist)
		switch {
		case missing && explicit == "":
			return createDefaultConfig(filepath.Join(configPaths[0], "config.yaml"))
		case missing:
			// An explicit --config path that does not exist yet gets the default file
			return createDefaultConfig(explicit)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to configPath and reads it
func createDefaultConfig(configPath string) error {
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	if viper.GetString("webserver.session.secret") == "" {
		viper.Set("webserver.session.secret", GenerateRandomSecret())
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "read-embedded-config").
			Build()
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
// It panics when the configuration cannot be loaded.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// SaveSettings writes the current settings back to the config file in use.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	if settingsInstance == nil {
		return errors.Newf("settings not loaded").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settingsCopy := *settingsInstance

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		var err error
		if configPath, err = FindConfigFile(); err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// SaveYAMLConfig overwrites configPath with settings marshaled as YAML.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file in the same directory so the rename is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // already renamed on success

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// with 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
