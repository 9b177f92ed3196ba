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

	"camrent/internal/api"
	"camrent/internal/config"
	"camrent/internal/contract"
	"camrent/internal/dialog"
	"camrent/internal/domain"
	"camrent/internal/events"
	"camrent/internal/gateway"
	"camrent/internal/journal"
	"camrent/internal/logging"
	"camrent/internal/metrics"
	"camrent/internal/notify"
	"camrent/internal/repository"
	"camrent/internal/status"
	"camrent/internal/store"
	"camrent/internal/workload"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	loc := cfg.App.Location()
	gw := gateway.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, &logger)
	bookings := store.New(gw, cfg.Backend.Endpoints, store.RetryPolicy{
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
	}, &logger)

	if cfg.Session.Token != "" {
		if err := bookings.Refresh(ctx, domain.Credential{Token: cfg.Session.Token}); err != nil {
			logger.Warn().Err(err).Msg("initial booking refresh failed, starting with an empty store")
		}
	}

	blobs := contract.NewRegistry()
	repo, redisClient := initDialogRepository(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	jr, err := initJournal(cfg, &logger)
	if err != nil {
		return err
	}
	var opJournal domain.OperationJournal
	if jr != nil {
		defer jr.Close()
		opJournal = jr
	}

	bus := events.NewEventBus(&logger)
	bus.Subscribe(events.EventWorkflowFailed, func(ev *events.Event) error {
		logger.Debug().Str("event_id", ev.ID).RawJSON("payload", ev.Payload).Msg("workflow failed")
		return nil
	})

	inbox := notify.NewInbox(0)
	controller := dialog.New(dialog.Deps{
		Store:     bookings,
		Machine:   status.NewMachine(gw, cfg.Backend.Endpoints, &logger),
		Assigner:  workload.NewAssigner(gw, cfg.Backend.Endpoints, loc, &logger),
		Pipeline:  contract.NewPipeline(gw, cfg.Backend.Endpoints, blobs, bookings, &logger),
		Repo:      repo,
		Notifier:  notify.Multi{notify.NewLog(&logger), inbox},
		Events:    bus,
		Journal:   opJournal,
		CartLabel: cfg.Backend.CartLabel,
		Logger:    &logger,
	})
	go sweepIdleDialogs(ctx, controller, cfg.Redis.TTL, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Console:  controller,
		Store:    bookings,
		Blobs:    blobs,
		Inbox:    inbox,
		Location: loc,
		Logger:   &logger,
	})

	return serve(ctx, httpServer, &logger)
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
	logger := baseLogger.With().Str("component", "opsd-main").Logger()

	return cfg, logger, closer, nil
}

// initDialogRepository prefers Redis with an in-memory fallback. Without a
// configured address dialog state lives in memory only.
func initDialogRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.DialogStateRepository, *redis.Client) {
	memory := repository.NewMemoryDialogRepository(cfg.Redis.TTL)
	if cfg.Redis.Address == "" {
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	primary := repository.NewRedisDialogRepository(client, cfg.Redis.TTL)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, dialog state falls back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return repository.NewFailoverDialogRepository(primary, memory, logger), client
}

func initJournal(cfg *config.Config, logger *zerolog.Logger) (*journal.Journal, error) {
	if cfg.Journal.Path == "" {
		return nil, nil
	}
	jr, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Error().Err(err).Str("journal_path", cfg.Journal.Path).Msg("open journal")
		return nil, err
	}
	return jr, nil
}

func sweepIdleDialogs(ctx context.Context, c *dialog.Controller, maxAge time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(maxAge / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CloseIdle(ctx, maxAge); n > 0 {
				logger.Info().Int("closed", n).Msg("closed idle dialogs")
			}
		}
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("opsd stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
