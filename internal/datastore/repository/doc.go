// Package repository provides the RecordRepository interface and its GORM
// implementation for bird records.
//
// # Backends
//
// The same implementation serves SQLite, MySQL and PostgreSQL. Search uses
// LOWER(column) LIKE LOWER(?) with '!' as the escape character because it is
// the only form that behaves the same way on all three.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrBirdNotFound, etc.) wrapped in an
// EnhancedError carrying a category, so callers can use errors.Is for the
// failure mode and errors.IsCategory for the HTTP status.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use.
package repository
