// Package targets provides backup target implementations.
package targets

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the backup targets package logger scoped to the backup module.
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
