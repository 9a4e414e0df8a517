package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hellobirdie/hellobirdie/internal/logger"
)

const (
	// CSRFContextKey is the key used to store CSRF token in the context.
	CSRFContextKey = "csrf"

	// CSRFFormField is the hidden form field carrying the token.
	CSRFFormField = "_csrf"

	// csrfCookieName is the name of the CSRF cookie.
	csrfCookieName = "csrf"

	// csrfCookieMaxAge is the max age of the CSRF cookie in seconds (30 minutes).
	csrfCookieMaxAge = 1800

	// csrfTokenLength is the length of the generated CSRF token in bytes.
	csrfTokenLength = 32
)

// IsSecureRequest determines if the request is over HTTPS.
// Checks direct TLS connection and X-Forwarded-Proto header (standard proxy header).
// This is used to set the Secure flag on cookies appropriately.
func IsSecureRequest(r *http.Request) bool {
	// Direct TLS connection
	if r.TLS != nil {
		return true
	}
	// Standard proxy header (used by Cloudflare, nginx, etc.)
	if r.Header.Get("X-Forwarded-Proto") == "https" {
		return true
	}
	return false
}

// CSRFConfig holds configuration for the CSRF middleware.
type CSRFConfig struct {
	// Skipper defines a function to skip the middleware.
	// If nil, DefaultCSRFSkipper is used.
	Skipper middleware.Skipper

	// TokenLength is the length of the generated token.
	// Default is 32.
	TokenLength uint8

	// TokenLookup is a string in the form of "<source>:<key>" or "<source>:<key>,<source>:<key>"
	// that is used to extract token from the request.
	// Default is "header:X-CSRF-Token,form:_csrf".
	TokenLookup string

	// CookieName is the name of the CSRF cookie.
	// Default is "csrf".
	CookieName string

	// CookieMaxAge is the max age (in seconds) of the CSRF cookie.
	// Default is 1800 (30 minutes).
	CookieMaxAge int

	// CookieSecure sets the Secure flag on the CSRF cookie.
	CookieSecure bool
}

// DefaultCSRFSkipper exempts the JSON API, the metrics endpoint and
// static assets. API clients do not carry the CSRF cookie and API sessions
// use SameSite=Lax cookies.
func DefaultCSRFSkipper(c echo.Context) bool {
	path := c.Request().URL.Path

	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/static/") {
		return true
	}

	return path == "/metrics"
}

// NewCSRF creates a CSRF middleware with the given configuration.
// If config is nil, the defaults above are used.
func NewCSRF(config *CSRFConfig) echo.MiddlewareFunc {
	// Apply defaults
	if config == nil {
		config = &CSRFConfig{}
	}

	skipper := config.Skipper
	if skipper == nil {
		skipper = DefaultCSRFSkipper
	}

	tokenLength := config.TokenLength
	if tokenLength == 0 {
		tokenLength = csrfTokenLength
	}

	tokenLookup := config.TokenLookup
	if tokenLookup == "" {
		tokenLookup = "header:X-CSRF-Token,form:" + CSRFFormField
	}

	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = csrfCookieName
	}

	cookieMaxAge := config.CookieMaxAge
	if cookieMaxAge == 0 {
		cookieMaxAge = csrfCookieMaxAge
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        skipper,
		TokenLength:    tokenLength,
		TokenLookup:    tokenLookup,
		ContextKey:     CSRFContextKey,
		CookieName:     cookieName,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   config.CookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   cookieMaxAge,
		ErrorHandler: func(err error, c echo.Context) error {
			GetLogger().Warn("CSRF validation failed",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.String("remote_ip", c.RealIP()),
				logger.Error(err))

			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// EnsureCSRFToken returns the token a rendered form should submit.
// Echo does not issue a token for same-origin requests that carry
// Sec-Fetch-Site, so pages fall back to the cookie and finally mint one.
func EnsureCSRFToken(c echo.Context) (string, error) {
	if token, ok := c.Get(CSRFContextKey).(string); ok && token != "" {
		return token, nil
	}

	token := ""
	if cookie, err := c.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		token = cookie.Value
	} else {
		buf := make([]byte, csrfTokenLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		token = base64.RawURLEncoding.EncodeToString(buf)
		GetLogger().Debug("issued form token", logger.String("path", c.Request().URL.Path))
	}

	// Re-set on reuse too so the cookie lives as long as the form is open.
	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   IsSecureRequest(c.Request()),
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(CSRFContextKey, token)
	return token, nil
}
