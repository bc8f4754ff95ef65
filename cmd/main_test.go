package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
	app "github.com/thor-coding-cowboys/scorebrawl-sub001/internal/app"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/config"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithWriter(os.Stderr))
	os.Exit(m.Run())
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			setEnv(t, map[string]string{
				"SCOREBRAWL_ADDR":                   ":9090",
				"SCOREBRAWL_ACHIEVEMENT_QUEUE_SIZE": "1000",
				"SCOREBRAWL_ACHIEVEMENT_WORKERS":    "4",
			})

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.AchievementQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.AchievementWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
			})
		})

		convey.Convey("When opening the default store", func() {
			cfg := config.New(context.Background())
			store, closeStore, err := openStore(context.Background(), cfg)
			defer closeStore()

			convey.Convey("Then the in-memory store is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the postgres driver points at nothing", func() {
			cfg := config.New(context.Background())
			cfg.StorageDriver = config.DriverPostgres
			cfg.DatabaseURL = "postgres://nobody@127.0.0.1:1/none?sslmode=disable"
			cfg.DBConnectTimeoutMS = 200
			_, closeStore, err := openStore(context.Background(), cfg)
			defer closeStore()

			convey.Convey("Then opening fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("When updating metrics directly", func() {
			svc := app.New()
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		store, closeStore, err := openStore(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer closeStore()

		svc := app.New(app.WithStore(store), app.WithWorkerCount(1), app.WithQueueSize(16))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := newHTTPServer(ctx, cfg, svc)
		convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
		convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

		convey.Convey("Then health, docs and spec routes answer", func() {
			for _, path := range []string{"/healthz", "/api-docs", "/openapi.yaml", "/metrics"} {
				rec := httptest.NewRecorder()
				srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then writes without a user are rejected", func() {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/players", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	convey.Convey("Given run with a free port", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg) }()

		convey.Convey("When the context is cancelled", func() {
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run returns without error", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})
}
