package ebird

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the ebird module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ebird")
}
