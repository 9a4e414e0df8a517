package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// GetLogger returns the auth package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}

// Sentinel errors for authentication failures.
var (
	ErrInvalidCredentials = errors.NewStd("invalid credentials")
	ErrSessionNotFound    = errors.NewStd("session not found or expired")
	ErrLoginDisabled      = errors.NewStd("admin login is disabled")
	ErrLogoutFailed       = errors.NewStd("logout operation failed")
)

// AuthMethod represents the type of authentication used
type AuthMethod int

const (
	AuthMethodUnknown        AuthMethod = iota
	AuthMethodNone                      // authentication not required
	AuthMethodBrowserSession            // admin session cookie
)

// String returns the method name used in logs.
func (m AuthMethod) String() string {
	switch m {
	case AuthMethodNone:
		return "none"
	case AuthMethodBrowserSession:
		return "session"
	default:
		return "unknown"
	}
}

// Service authenticates admin requests.
type Service interface {
	// CheckAccess validates if a request has access to protected resources.
	// Returns nil on success, or ErrSessionNotFound on failure.
	CheckAccess(c echo.Context) error

	// IsAuthRequired checks if authentication is required for this request
	IsAuthRequired(c echo.Context) bool

	// GetUsername retrieves the username of the authenticated user (if available)
	GetUsername(c echo.Context) string

	// GetAuthMethod returns the authentication method used as a defined constant.
	GetAuthMethod(c echo.Context) AuthMethod

	// Login checks the credentials and starts a new session.
	// Returns ErrInvalidCredentials or ErrLoginDisabled on failure.
	Login(c echo.Context, username, password string) error

	// Logout invalidates the current session.
	// Returns nil on success, or ErrLogoutFailed on failure.
	Logout(c echo.Context) error

	// IsAuthenticated reports whether the request carries a valid session or
	// does not need one.
	IsAuthenticated(c echo.Context) bool
}
