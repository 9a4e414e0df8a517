package repository

import "github.com/hellobirdie/hellobirdie/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrBirdNotFound indicates the requested bird does not exist.
	ErrBirdNotFound = errors.NewStd("bird not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)
