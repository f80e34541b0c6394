package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medbook/internal/api"
	"medbook/internal/booking"
	"medbook/internal/calendar"
	"medbook/internal/catalog"
	"medbook/internal/config"
	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/logging"
	"medbook/internal/metrics"
	"medbook/internal/repository"
	"medbook/internal/share"
	"medbook/internal/slot"
	"medbook/internal/token"

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
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.Catalog.Path).Msg("load catalog")
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	sessions := initSessionStore(ctx, cfg, redisClient, &logger)

	bus := events.NewEventBus()
	subscribeEvents(bus, &logger)

	store := booking.NewStore(
		sessions,
		cat,
		token.NewGenerator(nil),
		slot.NewResolver(loc),
		logging.Component(&logger, "booking"),
	)

	httpServer := api.NewHTTPServer(cfg, api.Deps{
		Store:    store,
		Catalog:  cat,
		Sessions: sessions,
		Events:   bus,
		Encoder:  calendar.NewEncoder(cfg.Calendar.ProdID, cfg.Calendar.UIDDomain),
		Sharer:   share.NewEventSharer(bus),
	}, logging.Component(&logger, "http"))

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis address not configured, sessions are kept in memory")
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(ctx, redisClient); err != nil {
		// the failover store takes over and keeps probing
		logger.Warn().Err(err).Msg("redis connection failed, starting on the memory store")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initSessionStore(ctx context.Context, cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.SessionStore {
	memory := repository.NewMemorySessionStore(cfg.Session.TTL)
	go sweepSessions(ctx, memory, cfg.Session.TTL, logger)

	if client == nil {
		return memory
	}
	return repository.NewFailoverSessionStore(
		repository.NewRedisSessionStore(client, cfg.Session.TTL),
		memory,
		logging.Component(logger, "session-store"),
	)
}

func sweepSessions(ctx context.Context, memory *repository.MemorySessionStore, ttl time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memory.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	eventLogger := logging.Component(logger, "events")
	bus.SubscribeAll(func(e *events.Event) error {
		metrics.IncBookingEvent(e.Type)
		eventLogger.Info().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("booking event")
		return nil
	},
		events.EventBookingCommitted,
		events.EventBookingPaid,
		events.EventBookingVisitTypeChanged,
		events.EventBookingShared,
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
