package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            // default level for all modules
	Timezone     string            // "Local", "UTC" or an IANA name like "Europe/Helsinki"
	Console      *ConsoleOutput    // console output configuration
	FileOutput   *FileOutput       // file output configuration
	ModuleLevels map[string]string // per-module level overrides, e.g. datastore: trace
}

// ConsoleOutput configures the human-readable console handler.
// Console lines carry no timestamp; the process supervisor adds one.
type ConsoleOutput struct {
	Enabled bool
	Level   string
}

// FileOutput configures the JSON file handler.
type FileOutput struct {
	Enabled bool
	Path    string
	Level   string
}

// Default values for logging configuration.
// These match the defaults in conf/defaults.go.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/hellobirdie.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults fills nil sections so a partial config still logs to the console.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.ModuleLevels == nil {
		cfg.ModuleLevels = make(map[string]string)
	}
}
