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

	"bookinggate/internal/api"
	"bookinggate/internal/config"
	"bookinggate/internal/domain"
	"bookinggate/internal/events"
	"bookinggate/internal/logging"
	"bookinggate/internal/metrics"
	"bookinggate/internal/repository"
	"bookinggate/internal/service"
	"bookinggate/internal/upstream"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout   = 10 * time.Second
	readinessInterval = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	services, err := initServices(cfg, redisClient, base)
	if err != nil {
		return err
	}

	ready := readinessCheck(redisClient)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, base)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.App, services, ready, base)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, ready, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Cache.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	policy := repository.RetryPolicy{
		MaxRetries:   cfg.Redis.ConnectRetries,
		InitialDelay: cfg.Redis.ConnectRetryDelay,
		MaxDelay:     5 * time.Second,
	}
	if err := repository.PingWithRetry(pingCtx, client, policy, logger); err != nil {
		// the failover cache keeps retrying redis in the background
		logger.Warn().Err(err).Msg("redis connection failed, starting on the memory cache")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	memory := repository.NewMemoryCache()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverCache(repository.NewRedisCache(redisClient), memory, logging.Component(logger, "cache"))
}

func initEvents(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	eventLogger := logging.Component(logger, "events")
	bus.SubscribeAll(func(e *events.Event) error {
		metrics.IncEvent(e.Type)
		eventLogger.Info().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
		return nil
	})
	return bus
}

func initServices(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (api.Services, error) {
	display, err := cfg.Booking.Location()
	if err != nil {
		return api.Services{}, fmt.Errorf("load display timezone: %w", err)
	}

	client, err := upstream.New(cfg.Upstream, nil, logging.Component(logger, "upstream"))
	if err != nil {
		return api.Services{}, fmt.Errorf("init upstream client: %w", err)
	}

	bus := initEvents(logger)
	lookup := service.NewLookupService(client, initCache(cfg, redisClient, logger), cfg.Cache.TTL, logging.Component(logger, "lookup"))
	schedules := service.NewScheduleService(client, lookup, bus, cfg.Reconciler.Concurrency, logging.Component(logger, "schedules"))
	provisioning := service.NewProvisioningService(client, lookup, schedules, bus, nil, logging.Component(logger, "provisioning"))
	bookings := service.NewBookingService(client, bus, service.BookingOptions{
		ConformanceCheck: cfg.Booking.ConformanceEnabled(),
		Display:          display,
	}, logging.Component(logger, "bookings"))

	logger.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Bool("conformance_check", cfg.Booking.ConformanceEnabled()).
		Str("display_timezone", display.String()).
		Bool("cache", cfg.Cache.Enabled).
		Msg("services initialized")

	return api.Services{
		Lookup:       lookup,
		Schedules:    schedules,
		Provisioning: provisioning,
		Bookings:     bookings,
		Display:      display,
	}, nil
}

// readinessCheck pings redis when it is configured; the memory fallback keeps the
// gateway usable, so a redis outage only degrades readiness.
func readinessCheck(redisClient *redis.Client) api.ReadinessCheck {
	if redisClient == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return repository.Ping(ctx, redisClient)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	ready api.ReadinessCheck,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		go grpcServer.WatchReadiness(ctx, ready, readinessInterval)
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("http_enabled", cfg.API.HTTP.Enabled)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
