package httpcontroller

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the web server logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("web")
}

var (
	logString = logger.String
	logError  = logger.Error
)
