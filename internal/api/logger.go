package api

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the API module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}
