package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotengine/internal/api"
	"slotengine/internal/availability"
	"slotengine/internal/config"
	"slotengine/internal/database"
	"slotengine/internal/domain"
	"slotengine/internal/events"
	"slotengine/internal/logging"
	"slotengine/internal/metrics"
	"slotengine/internal/repository"
	"slotengine/internal/rules"
	"slotengine/internal/service"
	"slotengine/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, configPath, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := base.With().Str("component", "api-main").Logger()

	loc := cfg.Location()
	clock := domain.ClockFunc(func() time.Time { return time.Now().In(loc) })

	db, err := database.NewDB(cfg.Database.Path, logging.Component(base, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()
	db.SetLocation(loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := service.NewCatalogService(db, cfg.Services, logging.Component(base, "catalog"))
	if err := catalog.SyncToDB(ctx, cfg.Services); err != nil {
		return fmt.Errorf("sync services: %w", err)
	}
	provider := rules.NewStaticProvider(cfg.Rules)

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store := initStore(cfg, redisClient, clock, base)

	facade := availability.NewFacade(provider, db, catalog, clock, store, base)

	bus := events.NewEventBus(logging.Component(base, "events"))
	bus.Subscribe(facade.HandleBookingEvent, events.BookingEvents...)

	go watchReload(ctx, configPath, provider, catalog, facade, logging.Component(base, "reload"))

	bookings := service.NewBookingService(db, provider, catalog, clock, bus, logging.Component(base, "bookings"))

	startMetrics(ctx, cfg, &logger)

	if cfg.Preload.Enabled {
		preloader := worker.NewPreloader(
			facade,
			clock,
			cfg.Preload.HorizonDays,
			cfg.Preload.Interval,
			worker.DefaultRetryPolicy,
			logging.Component(base, "preloader"),
		)
		go preloader.Start(ctx)
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(cfg.API, facade, bookings, catalog, clock, base)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, string, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, configPath, logger, closer, nil
}

// watchReload re-reads rules and services on SIGHUP and drops every cached
// availability result computed under the old ones.
func watchReload(
	ctx context.Context,
	configPath string,
	provider *rules.StaticProvider,
	catalog *service.CatalogService,
	facade *availability.Facade,
	logger *zerolog.Logger,
) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			logger.Error().Err(err).Str("path", configPath).Msg("reload config, keeping current rules")
			continue
		}
		provider.Update(cfg.Rules)
		if err := catalog.SyncToDB(ctx, cfg.Services); err != nil {
			logger.Error().Err(err).Msg("reload services")
		}
		facade.InvalidateAll(ctx)
		logger.Info().Int("services", len(cfg.Services)).Msg("config reloaded")
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, availability store will start on memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

// initStore returns the shared second-level store, or nil when Redis is off.
func initStore(cfg *config.Config, client *redis.Client, clock domain.Clock, base *zerolog.Logger) domain.AvailabilityStore {
	if client == nil {
		return nil
	}
	return repository.NewFailoverAvailabilityStore(
		repository.NewRedisAvailabilityStore(client, cfg.Redis.KeyPrefix),
		repository.NewMemoryAvailabilityStore(clock),
		logging.Component(base, "availability-store"),
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
