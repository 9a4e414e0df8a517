// Package serve provides the command that runs the web server.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hellobirdie/hellobirdie/internal/api"
	"github.com/hellobirdie/hellobirdie/internal/buildinfo"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/httpcontroller"
	"github.com/hellobirdie/hellobirdie/internal/logger"
	"github.com/hellobirdie/hellobirdie/internal/observability"
	"github.com/hellobirdie/hellobirdie/internal/observability/metrics"
)

const (
	shutdownTimeout     = 10 * time.Second
	sentryFlushTimeout  = 2 * time.Second
	filterRefreshPeriod = time.Minute
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long:  "Serve the home page, the record admin and the JSON API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	cmd.Flags().String("port", "", "Port to listen on (overrides webserver.port)")
	_ = viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port"))

	return cmd
}

func run(parent context.Context, settings *conf.Settings) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().Module("main")
	info := buildinfo.Current()
	log.Info("starting hellobirdie",
		logger.String("version", info.Version()),
		logger.String("env", settings.Main.Env))

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, settings.Main.Env, info.Version()); err != nil {
			log.Warn("error telemetry disabled", logger.Error(err))
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	var m *observability.Metrics
	var recorder metrics.Recorder
	if settings.Metrics.Enabled {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return err
		}
		recorder = m.Datastore
	}

	store, err := datastore.Open(settings, recorder)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close database", logger.Error(err))
		}
	}()

	server, err := httpcontroller.New(settings, store.Repo,
		httpcontroller.WithMetrics(m),
		httpcontroller.WithAPIOptions(api.WithFilterRefresh(filterRefreshPeriod)),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
