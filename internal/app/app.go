package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/config"
	"github.com/shaibs3/PriceTracker/internal/display"
	"github.com/shaibs3/PriceTracker/internal/extractor"
	"github.com/shaibs3/PriceTracker/internal/fetcher"
	"github.com/shaibs3/PriceTracker/internal/handlers"
	"github.com/shaibs3/PriceTracker/internal/router"
	"github.com/shaibs3/PriceTracker/internal/scheduler"
	"github.com/shaibs3/PriceTracker/internal/scrape"
	"github.com/shaibs3/PriceTracker/internal/store"
	"github.com/shaibs3/PriceTracker/internal/telemetry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// queueSize bounds the scrape message queue between the scheduler and the display
const queueSize = 256

// App represents the main application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	scheduler *scheduler.Scheduler
	presenter *display.Presenter
	server    *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		return nil, err
	}

	// Use the factory to create the store provider
	factory := store.NewDbProviderFactory(logger, clock.NewRealClock())
	st, err := factory.CreateProvider(cfg.StoreConfig)
	if err != nil {
		return nil, err
	}

	metrics, err := scrape.NewMetrics(tel.Meter)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pageFetcher := fetcher.NewPageFetcher(fetcher.Options{
		Attempts:  cfg.FetchAttempts,
		Delay:     cfg.FetchRetryDelay,
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.FetchUserAgent,
	}, logger)

	// the scheduler side only sends, the presenter only receives
	queue := make(chan scrape.Message, queueSize)
	cycle := scrape.NewCycle(st, pageFetcher, extractor.NewExtractor(logger), queue, metrics, logger)
	sched := scheduler.New(cycle, queue, logger)
	presenter := display.NewPresenter(st, queue, cfg.DisplayPollInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Initialize router with handlers
	limiter := rate.NewLimiter(rate.Limit(cfg.RPSLimit), cfg.RPSBurst)
	handlerList := []router.Handler{
		handlers.NewTrackerHandler(ctx, st, sched, presenter, cfg.TrackingInterval, logger),
	}
	appRouter := router.NewRouter(limiter, tel, logger, handlerList)
	server := appRouter.CreateServer(":" + cfg.Port)

	return &App{
		config:    cfg,
		logger:    logger,
		telemetry: tel,
		store:     st,
		scheduler: sched,
		presenter: presenter,
		server:    server,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// start launches the HTTP server, the display loop and optionally tracking
func (app *App) start() error {
	app.logger.Info("starting server", zap.String("port", app.config.Port))

	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	go app.presenter.Run(app.ctx)

	if app.config.TrackingAutoStart {
		if err := app.scheduler.Start(app.ctx, app.config.TrackingInterval); err != nil {
			return err
		}
	}
	return nil
}

// stop ends tracking, waits for the in-flight cycle and releases resources
func (app *App) stop() error {
	app.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs error
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server forced to shutdown", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	app.scheduler.Stop()
	select {
	case <-app.scheduler.Done():
	case <-shutdownCtx.Done():
		app.logger.Warn("scrape cycle still running at shutdown")
	}
	app.cancel()

	errs = multierr.Append(errs, app.store.Close())
	errs = multierr.Append(errs, app.telemetry.Shutdown(shutdownCtx))

	if errs == nil {
		app.logger.Info("exited gracefully")
	}
	return errs
}

// Run starts the application and waits for shutdown signals
func (app *App) Run() error {
	if err := app.start(); err != nil {
		app.cancel()
		return err
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return app.stop()
}
