// Package api implements the JSON API: health, bird records and the name
// formatter.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	apimw "github.com/hellobirdie/hellobirdie/internal/api/middleware"
	"github.com/hellobirdie/hellobirdie/internal/birds"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Repo      repository.RecordRepository
	Settings  *conf.Settings
	formatter birds.Formatter
	logger    logger.Logger

	// Write endpoints run behind these, in order.
	authMiddleware echo.MiddlewareFunc
	rateLimit      apimw.RateLimitConfig

	// filterRefresh re-reads the filter values in the background so a
	// cached repository never serves them cold. Zero disables it.
	filterRefresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthMiddleware protects the write endpoints.
func WithAuthMiddleware(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.authMiddleware = mw
	}
}

// WithRateLimit overrides the write rate limit.
func WithRateLimit(config apimw.RateLimitConfig) Option {
	return func(c *Controller) {
		c.rateLimit = config
	}
}

// WithFilterRefresh enables the background filter value refresh.
func WithFilterRefresh(interval time.Duration) Option {
	return func(c *Controller) {
		c.filterRefresh = interval
	}
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New mounts the API under /api on e.
func New(e *echo.Echo, repo repository.RecordRepository, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if repo == nil {
		return nil, errors.Newf("api controller requires a record repository").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		settings = &conf.Settings{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Echo:      e,
		Repo:      repo,
		Settings:  settings,
		formatter: birds.Formatter{Strict: true},
		logger:    GetLogger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api",
		apimw.NewRecover(),
		apimw.NewRequestID(),
		apimw.NewRequestLogger(c.logger),
		apimw.NewCORS(apimw.DefaultSecurityConfig()),
		apimw.NewBodyLimit(apimw.DefaultBodyLimit),
	)
	c.initRoutes()

	if c.filterRefresh > 0 {
		c.wg.Go(c.refreshFilters)
	}

	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func(*echo.Group)
	}{
		{"bird routes", c.initBirdRoutes},
		{"name routes", c.initNameRoutes},
	}

	v1 := c.Group.Group("/v1")
	for _, initializer := range routeInitializers {
		initializer.fn(v1)
		c.logger.Debug("initialized API routes", logger.String("group", initializer.name))
	}
}

// writeMiddleware returns the chain for endpoints that modify records.
func (c *Controller) writeMiddleware() []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{apimw.NewRateLimiter(c.rateLimit)}
	if c.authMiddleware != nil {
		chain = append(chain, c.authMiddleware)
	}
	return chain
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// refreshFilters keeps the distinct genus and species lists warm until
// Shutdown.
func (c *Controller) refreshFilters() {
	ticker := time.NewTicker(c.filterRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			for _, field := range []repository.FilterField{repository.FieldGenus, repository.FieldSpecies} {
				if _, err := c.Repo.DistinctValues(c.ctx, field); err != nil && c.ctx.Err() == nil {
					c.logger.Warn("filter refresh failed",
						logger.String("field", string(field)),
						logger.Error(err))
				}
			}
		}
	}
}

// Shutdown stops background work and waits for it to finish.
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Debug("API controller shut down")
}
