package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JeevanMahesha/studio/internal/config"
	"github.com/JeevanMahesha/studio/internal/filterstate"
	"github.com/JeevanMahesha/studio/internal/querycache"
	"github.com/JeevanMahesha/studio/internal/service"
	"github.com/JeevanMahesha/studio/internal/storage"
	"github.com/JeevanMahesha/studio/internal/storage/memory"
	psmongo "github.com/JeevanMahesha/studio/internal/storage/mongo"
	httptransport "github.com/JeevanMahesha/studio/internal/transport/http"
	"github.com/JeevanMahesha/studio/internal/transport/http/middleware"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting profiles-service", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	store, err := openStorage(rootCtx, cfg)
	if err != nil {
		log.Error("storage_open_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("storage_opened")

	sessions, closeSessions, err := openSessions(cfg)
	if err != nil {
		log.Error("redis_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		_ = store.Close(context.Background())
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cache := querycache.New(querycache.Options{
		StaleTime:      cfg.Cache.StaleTime,
		GCTime:         cfg.Cache.GCTime,
		RefreshTimeout: cfg.Cache.RefreshTimeout,
		Metrics:        querycache.NewMetrics(reg),
	})
	go cache.Run(rootCtx)

	svc := service.New(store, cache, filterstate.NewRegistry(sessions), *cfg, reg)
	go svc.Run(rootCtx)

	seedCtx, seedCancel := context.WithTimeout(rootCtx, 10*time.Second)
	seeded, err := svc.SeedStatuses(seedCtx)
	seedCancel()
	if err != nil {
		log.Error("status_seed_failed", slog.String("err", err.Error()))
		rootCancel()
		closeSessions()
		_ = store.Close(context.Background())
		os.Exit(1)
	}
	log.Info("service_initialized", "seeded_statuses", seeded)

	// readiness/liveness/metrics
	pingers := map[string]httptransport.Pinger{}
	if p, ok := store.(httptransport.Pinger); ok {
		pingers["storage"] = p
	}
	if p, ok := sessions.(httptransport.Pinger); ok {
		pingers["redis"] = p
	}
	health := httptransport.NewHealth(log, 2*time.Second, pingers)

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           health.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics_listen_start", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_serve_failed", slog.String("err", err.Error()))
		}
	}()

	apiSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httptransport.NewRouter(svc, httptransport.Options{
			Logger:  log,
			Timeout: cfg.Timeouts.Service,
			Metrics: middleware.NewHTTPMetrics(reg),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	health.SetReady(true)

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = apiSrv.Close()
	}
	shutdownCancel()
	_ = metricsSrv.Shutdown(context.Background())

	rootCancel()
	closeSessions()
	_ = store.Close(context.Background())

	log.Info("service_stopped")
	os.Exit(0)
}

// openStorage выбирает хранилище по cfg.DB.Driver.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.DB.Driver == config.DriverMemory {
		return memory.New(
			memory.WithRejectedID(cfg.Statuses.RejectedID),
			memory.WithLimits(cfg.Limits.Default, cfg.Limits.Max),
			memory.WithMaxPageTokens(cfg.Cache.MaxPageTokens),
		), nil
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	m, err := psmongo.New(dbCtx, cfg)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// openSessions — фильтры в Redis, если задан REDIS_URL, иначе в памяти процесса.
func openSessions(cfg *config.Config) (filterstate.Sessions, func(), error) {
	if cfg.Redis.URL == "" {
		return filterstate.NewMemorySessions(), func() {}, nil
	}

	rs, err := filterstate.NewRedisSessions(cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL)
	if err != nil {
		return nil, nil, err
	}

	return rs, func() { _ = rs.Close() }, nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
