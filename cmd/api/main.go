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

	"fbs/internal/api"
	"fbs/internal/bot"
	"fbs/internal/catalog"
	"fbs/internal/config"
	"fbs/internal/database"
	"fbs/internal/domain"
	"fbs/internal/events"
	"fbs/internal/export"
	"fbs/internal/google"
	"fbs/internal/logging"
	"fbs/internal/metrics"
	"fbs/internal/models"
	"fbs/internal/repository"
	"fbs/internal/service"
	"fbs/internal/worker"

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

	cat := catalog.New(cfg.Catalog.ToFacilities())
	logger.Info().Int("facilities", len(cat.All())).Msg("catalog loaded")

	store, sqliteDB, err := initStore(ctx, cfg, cat.All(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sessions := initSessions(redisClient, logger)

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler error")
	})
	if forwarder := initForwarder(cfg, redisClient, logger); forwarder != nil {
		bus.Subscribe(events.EventBookingCreated, forwarder.Handle)
		go forwarder.Start(ctx)
		defer forwarder.Close()
	}

	if mirror := initSheetsMirror(ctx, cfg, logger); mirror != nil {
		bus.Subscribe(events.EventBookingCreated, mirror.Handle)
		go mirror.Start(ctx)
	}

	if notifier := initNotifier(cfg, cat, logger); notifier != nil {
		bus.Subscribe(events.EventBookingCreated, notifier.Handle)
		go notifier.Start(ctx)
	}

	if sqliteDB != nil && cfg.Backup.Enabled {
		go database.NewBackupService(sqliteDB, cfg.Backup, logger).Start(ctx)
	}

	svc := api.Services{
		Bookings:     service.NewBookingService(store, cat, bus, logging.Component(logger, "booking")),
		Availability: service.NewAvailabilityService(store, cat, cfg.Booking, logging.Component(logger, "availability")),
		Auth:         service.NewAuthService(sessions, cfg.Auth, logging.Component(logger, "auth")),
		Catalog:      cat,
		Store:        store,
		Exporter:     export.NewScheduleExporter(store, cat, cfg.Booking, cfg.Exports.MaxFacilities, logging.Component(logger, "export")),
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, api.NewAvailabilityService(svc.Availability, cat, cfg.Booking.MaxGlimpseIDs), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, cfg.Booking.MaxGlimpseIDs, logger)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

// initStore opens the configured booking store and mirrors the catalog into it.
// The *database.DB is returned separately so SQLite-only services (backups) can use it.
func initStore(ctx context.Context, cfg *config.Config, facilities []models.Facility, logger *zerolog.Logger) (domain.BookingRepository, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory booking store; bookings are lost on restart")
		return repository.NewMemoryBookingRepository(), nil, nil

	case config.DriverPostgres:
		pg, err := database.NewPostgresStore(ctx, cfg.Database.PostgresURL, database.PostgresOptions{
			MaxConns:  int32(cfg.Database.MaxConnections),
			TxTimeout: cfg.Database.TxTimeout,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, nil, err
		}
		if err := pg.SyncFacilities(ctx, facilities); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("sync facilities: %w", err)
		}
		return pg, nil, nil

	default:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		db.SetTxTimeout(cfg.Database.TxTimeout)
		if err := db.SyncFacilities(ctx, facilities); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("sync facilities: %w", err)
		}
		return db, db, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, sessions fall back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initSessions(redisClient *redis.Client, logger *zerolog.Logger) domain.SessionRepository {
	memory := repository.NewMemorySessionRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSessionRepository(repository.NewRedisSessionRepository(redisClient), memory, logger)
}

func initForwarder(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *worker.EventForwarder {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka event forwarding enabled")
	return worker.NewEventForwarder(
		worker.NewKafkaWriter(cfg.Kafka),
		redisClient,
		worker.RetryPolicyFromConfig(cfg.Kafka),
		cfg.Kafka.QueueSize,
		cfg.Kafka.DeadLetterKey,
		logger,
	)
}

// initSheetsMirror returns nil when the mirror is disabled or the spreadsheet is unreachable;
// bookings are never blocked on it.
func initSheetsMirror(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsMirror {
	if !cfg.Sheets.Enabled {
		return nil
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Sheets, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("sheets mirror disabled")
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mirror.TestConnection(initCtx); err != nil {
		logger.Warn().Err(err).Msg("sheets mirror disabled")
		return nil
	}
	if err := mirror.EnsureHeader(initCtx); err != nil {
		logger.Warn().Err(err).Msg("write sheet header")
	}
	if err := mirror.WarmUpCache(initCtx); err != nil {
		logger.Warn().Err(err).Msg("warm up sheet cache")
	}

	logger.Info().Str("spreadsheet_id", cfg.Sheets.SpreadsheetID).Str("sheet", cfg.Sheets.SheetName).Msg("sheets mirror enabled")
	return mirror
}

func initNotifier(cfg *config.Config, cat *catalog.Catalog, logger *zerolog.Logger) *bot.ManagerNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}

	botAPI, err := bot.NewBotAPI(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifications disabled")
		return nil
	}
	logger.Info().Str("username", botAPI.Self.UserName).Int("managers", len(cfg.Telegram.Managers)).Msg("telegram notifications enabled")
	return bot.NewManagerNotifier(botAPI, cfg.Telegram, cat, logger)
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

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().
		Bool("grpc", grpcServer != nil).
		Int("grpc_port", cfg.API.GRPC.Port).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
