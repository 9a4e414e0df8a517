package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Write rate limit defaults, per client IP.
const (
	DefaultWriteRate      = 5
	DefaultWriteBurst     = 20
	DefaultRateLimitTTL   = 3 * time.Minute
	rateLimitRetrySeconds = "1"
)

// RateLimitConfig configures NewRateLimiter. Zero values take the defaults.
type RateLimitConfig struct {
	Rate      rate.Limit // requests per second
	Burst     int
	ExpiresIn time.Duration // idle visitors are forgotten after this
}

// NewRateLimiter limits requests per client IP with an in-memory token
// bucket store. Denied requests get a JSON 429.
func NewRateLimiter(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Rate <= 0 {
		config.Rate = DefaultWriteRate
	}
	if config.Burst <= 0 {
		config.Burst = DefaultWriteBurst
	}
	if config.ExpiresIn <= 0 {
		config.ExpiresIn = DefaultRateLimitTTL
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      config.Rate,
		Burst:     config.Burst,
		ExpiresIn: config.ExpiresIn,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:               store,
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "unable to identify client",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			GetLogger().Warn("rate limit exceeded",
				logString("ip", identifier),
				logString("method", c.Request().Method),
				logString("path", c.Request().URL.Path))
			c.Response().Header().Set("Retry-After", rateLimitRetrySeconds)
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
		},
	})
}
