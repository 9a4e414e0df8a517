package datastore

import "github.com/hellobirdie/hellobirdie/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
