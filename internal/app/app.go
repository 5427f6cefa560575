package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"aemo-price-feed/internal/config"
	"aemo-price-feed/internal/engine"
	"aemo-price-feed/internal/metrics"
	"aemo-price-feed/internal/nemweb"
	"aemo-price-feed/internal/store"
	"aemo-price-feed/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() (*nemweb.Client, error) {
	return nemweb.New(nemweb.Options{
		BaseURL:        a.Config.Feed.BaseURL,
		Timeout:        a.Config.Feed.RequestTimeout,
		UserAgent:      a.Config.Feed.UserAgent,
		RetryAttempts:  a.Config.Feed.RetryAttempts,
		RetryBackoff:   a.Config.Feed.RetryBackoff,
		CacheSize:      a.Config.Feed.CacheSize,
		RequestsPerSec: a.Config.Feed.RequestsPerSec,
		Burst:          a.Config.Feed.Burst,
	}, a.Logger)
}

func (a *App) newStore() *store.Store {
	return store.New(store.Options{
		FailureThreshold: a.Config.Engine.FailureThreshold,
		StaleAfter:       a.Config.StaleWindows(),
	}, a.Logger)
}

// Run executes the long-running ingestion engine.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := a.newClient()
	if err != nil {
		return err
	}

	set := metrics.New("nemwatch")
	eng := engine.New(a.Config, client, a.newStore(), set, a.Logger)

	var metricsSrv *http.Server
	if a.Config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", set.Handler())
		metricsSrv = &http.Server{Addr: a.Config.Metrics.Listen, Handler: mux}
		go func() {
			a.Logger.Info().Str("listen", a.Config.Metrics.Listen).Msg("metrics endpoint listening")
			if serveErr := metricsSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				a.Logger.Error().Err(serveErr).Msg("metrics endpoint failed")
			}
		}()
	}

	a.Logger.Info().Str("version", version.String()).Msg("starting ingestion engine")
	err = eng.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := metricsSrv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.Logger.Warn().Err(shutdownErr).Msg("metrics endpoint shutdown failed")
		}
		shutdownCancel()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("engine terminated with error")
		return err
	}

	a.Logger.Info().Msg("ingestion engine stopped")
	return nil
}

// SpotOptions configure the spot command.
type SpotOptions struct {
	Regions []string
}

// ExportOptions hold parameters for exporting a forecast series.
type ExportOptions struct {
	Region    string
	Product   string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// InspectOptions configure the inspect command.
type InspectOptions struct {
	Path    string
	Product string
	Region  string
	Limit   int
}
