package observability

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the observability module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
