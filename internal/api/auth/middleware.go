package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// LoginPath is where anonymous browser requests are sent.
const LoginPath = "/admin/login/"

// NextParam carries the originally requested path through the login form.
const NextParam = "next"

// Context keys for authentication values stored in echo.Context.
// Using named constants prevents typos and provides centralized documentation.
// These keys are prefixed with "auth:" to prevent collisions with other packages.
const (
	// CtxKeyIsAuthenticated indicates whether the request is authenticated.
	CtxKeyIsAuthenticated = "auth:isAuthenticated"
	// CtxKeyAuthMethod indicates the authentication method used.
	CtxKeyAuthMethod = "auth:authMethod"
	// CtxKeyUsername contains the authenticated user's username (if available).
	CtxKeyUsername = "auth:username"
)

// Middleware provides authentication middleware with the Service
type Middleware struct {
	AuthService Service

	// Browser sends every anonymous request to the login page instead of
	// answering API clients with 401.
	Browser bool
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(service Service) *Middleware {
	return &Middleware{
		AuthService: service,
	}
}

// Authenticate is the main middleware function for authentication
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := m.validateAuthService(c); err != nil {
			return err
		}

		if m.shouldBypassAuth(c) {
			return next(c)
		}

		if m.trySessionAuth(c) {
			return next(c)
		}

		// Authentication failed, determine appropriate response
		return m.handleUnauthenticated(c)
	}
}

// validateAuthService rejects the request when no AuthService is configured.
// The returned error always stops the chain.
func (m *Middleware) validateAuthService(c echo.Context) error {
	if m.AuthService == nil {
		m.log().Error("Authentication middleware called with nil AuthService",
			logger.String("path", c.Request().URL.Path),
			logger.String("ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusInternalServerError,
			"Internal configuration error: authentication service not available")
	}
	return nil
}

// shouldBypassAuth checks if authentication should be bypassed for this request.
// A bypassed request is treated as authenticated.
func (m *Middleware) shouldBypassAuth(c echo.Context) bool {
	if !m.AuthService.IsAuthRequired(c) {
		m.log().Debug("Authentication not required for this client",
			logger.String("ip", c.RealIP()),
			logger.String("path", c.Request().URL.Path))
		c.Set(CtxKeyIsAuthenticated, true) // Bypassed = effectively authenticated
		c.Set(CtxKeyAuthMethod, AuthMethodNone)
		return true
	}
	return false
}

// trySessionAuth attempts to authenticate using session-based authentication.
func (m *Middleware) trySessionAuth(c echo.Context) bool {
	path := c.Request().URL.Path
	ip := c.RealIP()
	log := m.log()
	log.Debug("Attempting session authentication",
		logger.String("path", path),
		logger.String("ip", ip))

	if err := m.AuthService.CheckAccess(c); err != nil {
		return false
	}

	log.Debug("Session authentication successful",
		logger.String("path", path),
		logger.String("ip", ip))
	c.Set(CtxKeyIsAuthenticated, true)
	c.Set(CtxKeyAuthMethod, m.AuthService.GetAuthMethod(c))
	c.Set(CtxKeyUsername, m.AuthService.GetUsername(c))
	return true
}

// log returns the auth package logger.
func (m *Middleware) log() logger.Logger {
	return GetLogger()
}

// handleUnauthenticated determines the appropriate response for unauthenticated requests
func (m *Middleware) handleUnauthenticated(c echo.Context) error {
	ip := c.RealIP()
	path := c.Request().URL.Path

	m.log().Info("Authentication required but not provided/valid",
		logger.String("path", path),
		logger.String("ip", ip))

	if m.isBrowserRequest(c) {
		return m.redirectToLogin(c, path, ip)
	}

	return m.returnAPIUnauthorized(c, path, ip)
}

// isBrowserRequest determines if the request is from a browser or an API client.
func (m *Middleware) isBrowserRequest(c echo.Context) bool {
	if m.Browser {
		return true
	}
	acceptHeader := c.Request().Header.Get("Accept")
	return strings.Contains(acceptHeader, "text/html")
}

// redirectToLogin handles browser requests by redirecting to the login page.
func (m *Middleware) redirectToLogin(c echo.Context, path, ip string) error {
	m.log().Info("Redirecting unauthenticated browser client to login page",
		logger.String("path", path),
		logger.String("ip", ip))

	finalLoginPath := m.buildLoginRedirectURL(c, ip)
	return c.Redirect(http.StatusFound, finalLoginPath)
}

// buildLoginRedirectURL constructs the login URL with a safe next parameter.
// Supports reverse proxy prefixes via X-Forwarded-Prefix.
func (m *Middleware) buildLoginRedirectURL(c echo.Context, ip string) string {
	basePath := requestBasePath(c)

	originURL := c.Request().URL
	safeRedirectPath := m.getSafeRedirectPath(originURL.Path, originURL.RawQuery, LoginPath, ip)
	return basePath + LoginPath + "?" + NextParam + "=" + url.QueryEscape(safeRedirectPath)
}

// requestBasePath returns the reverse proxy base path from X-Forwarded-Prefix.
func requestBasePath(c echo.Context) string {
	p := strings.TrimRight(c.Request().Header.Get("X-Forwarded-Prefix"), "/")
	if p != "" && !IsSafeRedirect(p) {
		return ""
	}
	return p
}

// getSafeRedirectPath validates and returns a safe redirect path.
func (m *Middleware) getSafeRedirectPath(originPath, originQuery, loginPath, ip string) string {
	if originPath == "" || strings.HasPrefix(originPath, loginPath) {
		return "/"
	}

	if !IsSafeRedirect(originPath) {
		m.log().Warn("Invalid redirect path detected during unauthenticated request, defaulting to '/'",
			logger.String("invalid_path", originPath),
			logger.String("ip", ip))
		return "/"
	}

	if originQuery != "" {
		return originPath + "?" + originQuery
	}
	return originPath
}

// returnAPIUnauthorized returns a JSON error response for API clients.
func (m *Middleware) returnAPIUnauthorized(c echo.Context, path, ip string) error {
	acceptHeader := c.Request().Header.Get("Accept")
	m.log().Info("Returning 401 Unauthorized for unauthenticated API client",
		logger.String("path", path),
		logger.String("ip", ip),
		logger.String("accept_header", acceptHeader))

	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "Authentication required",
	})
}

// IsSafeRedirect reports whether target is a local absolute path. It rejects
// scheme-relative URLs, backslashes and anything with a scheme or host.
func IsSafeRedirect(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
