// Package conf loads, validates and saves hellobirdie settings.
package conf

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger on every call because settings load before logging is configured.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
