package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airsupport/internal/api"
	"airsupport/internal/config"
	"airsupport/internal/database"
	"airsupport/internal/domain"
	"airsupport/internal/events"
	"airsupport/internal/logging"
	"airsupport/internal/metrics"
	"airsupport/internal/repository"
	"airsupport/internal/retriever"
	"airsupport/internal/service"
	"airsupport/internal/tools"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	quotaMessage = "Embedding API Error: You have exceeded your current quota. " +
		"Please check your plan and billing details to continue using the policy lookup tool. " +
		"The application cannot start without a valid API key."
	setupMessage = "An unexpected error occurred during vector store setup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, config.CredentialsHelp())
		}
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	policy, closeEmbedder, err := initRetriever(ctx, cfg, &logger)
	if err != nil {
		if errors.Is(err, retriever.ErrQuotaExceeded) {
			fmt.Fprintln(os.Stderr, quotaMessage)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", setupMessage, err)
		}
		return err
	}
	defer closeEmbedder()

	redisClient, approvalRepo := initApprovalRepository(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	eventBus := events.NewEventBus()
	subscribeEvents(eventBus, &logger)

	serviceLogger := logging.Component(&logger, "service")
	reservationService := service.NewReservationService(db, eventBus, serviceLogger)
	approvalService := service.NewApprovalService(approvalRepo, eventBus, serviceLogger)

	toolsLogger := logging.Component(&logger, "tools")
	registry := tools.NewRegistry(reservationService, policy, toolsLogger)
	gate := tools.NewGate(registry, approvalService, cfg.Approvals.Required, toolsLogger)

	httpServer := api.NewHTTPServer(cfg.API, db, gate, reservationService, logging.Component(&logger, "api"))

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

// initDatabase refreshes the working copy from the snapshot and opens it.
func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	bootstrapper := database.NewBootstrapper(cfg.Data, logging.Component(logger, "bootstrap"))
	result, err := bootstrapper.Prepare(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("prepare working database")
		return nil, err
	}
	metrics.SetDateShift(result.Shift.Offset)

	db, err := database.NewDB(result.WorkingPath, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", result.WorkingPath).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRetriever(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.PolicyLookup, func(), error) {
	var (
		embedder retriever.Embedder
		closeFn  = func() {}
	)

	switch cfg.Retriever.Provider {
	case "gemini":
		gemini, err := retriever.NewGeminiEmbedder(ctx, cfg.Credentials.GoogleAPIKey, cfg.Retriever.Model)
		if err != nil {
			return nil, nil, err
		}
		embedder = gemini
		closeFn = func() { _ = gemini.Close() }
	default:
		embedder = retriever.NewOpenAIEmbedder(cfg.Credentials.OpenAIAPIKey, cfg.Retriever.Model)
	}

	r, err := retriever.New(ctx, cfg.Retriever, embedder, logging.Component(logger, "retriever"))
	if err != nil {
		closeFn()
		logger.Error().Err(err).Str("provider", cfg.Retriever.Provider).Msg("init retriever")
		return nil, nil, err
	}
	metrics.SetRetrieverChunks(r.Len())
	return r, closeFn, nil
}

// initApprovalRepository prefers Redis and keeps an in-memory store behind
// it. Without a Redis address only the memory store is used.
func initApprovalRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.ApprovalRepository) {
	memoryRepo := repository.NewMemoryApprovalRepository(cfg.Approvals.TTL)
	if cfg.Redis.Address == "" {
		return nil, memoryRepo
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primaryRepo := repository.NewRedisApprovalRepository(redisClient, cfg.Approvals.TTL)
	return redisClient, repository.NewFailoverApprovalRepository(primaryRepo, memoryRepo, logger)
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	eventLogger := logging.Component(logger, "events")

	reservationHandler := func(ev *events.Event) error {
		var payload events.ReservationEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			eventLogger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		eventLogger.Info().
			Str("event", ev.Type).
			Str("kind", payload.Kind).
			Int64("id", payload.ID).
			Msg(payload.Message)
		return nil
	}

	approvalHandler := func(ev *events.Event) error {
		var payload events.ApprovalEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			eventLogger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		entry := eventLogger.Info().Str("event", ev.Type).Str("approval_id", payload.ApprovalID).Str("tool", payload.Tool)
		if payload.Approved != nil {
			entry = entry.Bool("approved", *payload.Approved)
		}
		entry.Msg("approval event")
		return nil
	}

	bus.Subscribe(events.EventReservationBooked, reservationHandler)
	bus.Subscribe(events.EventReservationUpdated, reservationHandler)
	bus.Subscribe(events.EventReservationCanceled, reservationHandler)
	bus.Subscribe(events.EventApprovalRequested, approvalHandler)
	bus.Subscribe(events.EventApprovalResolved, approvalHandler)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("approvals_required", cfg.Approvals.Required).Msg("API server started")

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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
