package middleware

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the HTTP middleware logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("http")
}

var (
	logString = logger.String
	logError  = logger.Error
)
