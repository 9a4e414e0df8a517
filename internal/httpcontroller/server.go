// Package httpcontroller serves the HTML pages and mounts the JSON API on
// the same echo instance.
package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/api"
	"github.com/hellobirdie/hellobirdie/internal/api/auth"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability"
)

// HTTP server timeouts.
const (
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second

	// HomeMatchLimit caps the matches listed under a home page search.
	HomeMatchLimit = 10
	// AdminPageSize is the number of rows per admin list page.
	AdminPageSize = 100
)

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	Repo     repository.RecordRepository
	Auth     *auth.SessionService
	API      *api.Controller

	metrics    *observability.Metrics
	apiOptions []api.Option
	logger     logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics sets the metrics instance. Without one, a new registry is
// created when metrics are enabled.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAPIOptions passes options through to the API controller.
func WithAPIOptions(opts ...api.Option) ServerOption {
	return func(s *Server) {
		s.apiOptions = append(s.apiOptions, opts...)
	}
}

// New builds the server with pages, admin and API routes. It does not
// listen until Start.
func New(settings *conf.Settings, repo repository.RecordRepository, opts ...ServerOption) (*Server, error) {
	if settings == nil || repo == nil {
		return nil, errors.Newf("web server requires settings and a record repository").
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		Repo:     repo,
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initializeServer(); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() error {
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Debug = s.Settings.WebServer.Debug
	s.Echo.Logger = logger.NewEchoLoggerAdapter(s.logger.Module("echo"))
	s.Echo.Server.ReadTimeout = DefaultReadTimeout
	s.Echo.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	s.Echo.Server.WriteTimeout = DefaultWriteTimeout
	s.Echo.Server.IdleTimeout = DefaultIdleTimeout

	if s.Settings.Metrics.Enabled && s.metrics == nil {
		m, err := observability.NewMetrics()
		if err != nil {
			return errors.New(err).
				Component("httpcontroller").
				Category(errors.CategoryConfiguration).
				Context("operation", "create-metrics").
				Build()
		}
		s.metrics = m
	}

	renderer, err := newTemplateRenderer(ViewsFs, GetTemplateFunctions(), s.Echo.Logger)
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryFileParsing).
			Build()
	}
	s.Echo.Renderer = renderer

	s.Auth = auth.NewSessionService(&s.Settings.WebServer)

	s.configureMiddleware()
	s.initRoutes()

	authMiddleware := &auth.Middleware{AuthService: s.Auth}
	apiOpts := append([]api.Option{api.WithAuthMiddleware(authMiddleware.Authenticate)}, s.apiOptions...)
	s.API, err = api.New(s.Echo, s.Repo, s.Settings, apiOpts...)
	if err != nil {
		return err
	}
	return nil
}

// Start listens on settings.WebServer.Port and blocks until the server
// stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	addr := ":" + s.Settings.WebServer.Port
	s.logger.Info("HTTP server started",
		logger.String("address", addr),
		logger.Bool("metrics", s.metrics != nil))

	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("address", addr).
			Build()
	}
	return nil
}

// Shutdown stops the API background work and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	if s.API != nil {
		s.API.Shutdown()
	}

	if err := s.Echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("operation", "shutdown").
			Build()
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Metrics returns the metrics instance, or nil when metrics are disabled.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}
