package httpcontroller

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apimw "github.com/hellobirdie/hellobirdie/internal/api/middleware"
)

// configureMiddleware sets up middleware for the server. The /api group
// carries its own recover, request ID and logging chain.
func (s *Server) configureMiddleware() {
	s.Echo.Use(apimw.NewRecover())
	s.Echo.Use(skipAPI(apimw.NewRequestID()))
	s.Echo.Use(apimw.NewRequestLoggerWithSkipper(s.logger.Module("access"), isAPIRequest))
	if s.metrics != nil {
		s.Echo.Use(s.metrics.Middleware())
	}
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(apimw.NewSecureHeaders(apimw.DefaultSecurityConfig()))
	s.Echo.Use(s.CacheControlMiddleware())
	s.Echo.Use(apimw.NewCSRF(&apimw.CSRFConfig{
		CookieSecure: s.Settings.WebServer.Session.Secure,
	}))
}

func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// skipAPI runs mw for everything outside /api.
func skipAPI(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if isAPIRequest(c) {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

// GzipMiddleware configures Gzip compression for the server
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == metricsPath
		},
	})
}

// CacheControlMiddleware sets cache headers based on the request path.
// Pages and API responses carry session or record state and are never cached.
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			header := c.Response().Header()

			switch {
			case strings.HasPrefix(path, staticPrefix+"/"):
				header.Set("Cache-Control", "public, max-age=3600, must-revalidate")
			case strings.HasPrefix(path, "/api/"):
				header.Set("Cache-Control", "no-store")
				header.Set("Pragma", "no-cache")
				header.Set("Expires", "0")
			default:
				header.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
