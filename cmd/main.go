package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/http/api"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/http/swagger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/repository/memory"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/adapters/repository/postgres"
	app "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/app"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/config"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		loggerInstance.Error(ctx, "server exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
	loggerInstance.Info(ctx, "server stopped")
}

// run starts the service and serves HTTP until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg *config.Config) error {
	loggerInstance := logger.Get()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := app.New(
		app.WithStore(store),
		app.WithLogger(loggerInstance.Named("service")),
		app.WithWorkerCount(cfg.AchievementWorkers),
		app.WithQueueSize(cfg.AchievementQueueSize),
		app.WithDedupeSize(cfg.IdempotencyCacheSize),
		app.WithSettleTimeout(cfg.SettleTimeout()),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithSeasonDefaults(cfg.DefaultInitialScore, cfg.DefaultKFactor),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := newHTTPServer(ctx, cfg, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loggerInstance.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		loggerInstance.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	return g.Wait()
}

// openStore selects the persistence layer named by cfg.StorageDriver.
func openStore(ctx context.Context, cfg *config.Config) (app.Store, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL,
			postgres.WithConnectTimeout(cfg.DBConnectTimeout()),
			postgres.WithLogger(logger.Named("postgres")),
		)
		if err != nil {
			return nil, func() {}, err
		}
		return pg, pg.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	docs := swagger.Handler(ctx)
	apiServer := api.NewServer(svc,
		api.WithLogger(logger.Named("api")),
		api.WithCORSOrigins(cfg.CORSAllowedOrigins),
		api.WithMount("/api-docs", docs),
		api.WithMount("/openapi.yaml", docs),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics pushes the service's stats into the gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
