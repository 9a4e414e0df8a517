package backup

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the backup package logger scoped to the backup module.
// The logger is fetched from the global logger each time so it picks up the
// central logger configured after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("backup")
}

// Field constructors re-exported for use in this package.
// This avoids import shadowing issues with function parameters named "logger".
var (
	logString = logger.String
	logError  = logger.Error
	logInt    = logger.Int
	logInt64  = logger.Int64
)
