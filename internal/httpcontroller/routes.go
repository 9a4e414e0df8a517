package httpcontroller

import (
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/api/auth"
)

const (
	staticPrefix = "/static"
	metricsPath  = "/metrics"
	adminListURL = "/admin/birds/"
)

// PageRouteConfig defines the structure for each HTML page route
type PageRouteConfig struct {
	Path    string
	Method  string
	Handler echo.HandlerFunc
	Admin   bool
}

// initRoutes initializes the page routes. The /api group is registered by
// the API controller.
func (s *Server) initRoutes() {
	routes := []PageRouteConfig{
		{Path: "/", Method: http.MethodGet, Handler: s.handleHome},
		{Path: "/", Method: http.MethodPost, Handler: s.handleHomeSearch},
		{Path: auth.LoginPath, Method: http.MethodGet, Handler: s.handleLoginPage},
		{Path: auth.LoginPath, Method: http.MethodPost, Handler: s.handleLogin},
		{Path: "/admin/logout/", Method: http.MethodPost, Handler: s.handleLogout},
		{Path: "/birds/", Method: http.MethodGet, Handler: s.handleAdminList, Admin: true},
		{Path: "/birds/add/", Method: http.MethodPost, Handler: s.handleAdminAdd, Admin: true},
		{Path: "/birds/:id/delete/", Method: http.MethodPost, Handler: s.handleAdminDelete, Admin: true},
	}

	adminMiddleware := &auth.Middleware{AuthService: s.Auth, Browser: true}
	admin := s.Echo.Group("/admin", adminMiddleware.Authenticate)

	for _, route := range routes {
		if route.Admin {
			admin.Add(route.Method, route.Path, route.Handler)
			continue
		}
		s.Echo.Add(route.Method, route.Path, route.Handler)
	}

	redirect := func(c echo.Context) error {
		return c.Redirect(http.StatusFound, adminListURL)
	}
	s.Echo.GET("/admin", redirect)
	s.Echo.GET("/admin/", redirect)

	static, err := fs.Sub(StaticFs, "static")
	if err != nil {
		s.logger.Error("failed to mount static files", logError(err))
	} else {
		s.Echo.StaticFS(staticPrefix, static)
	}

	if s.metrics != nil {
		s.Echo.GET(metricsPath, echo.WrapHandler(s.metrics.Handler()))
	}
}
