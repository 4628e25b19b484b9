package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking-bot/internal/api/router"
	"github.com/wolfman30/clinic-booking-bot/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking-bot/internal/bot"
	"github.com/wolfman30/clinic-booking-bot/internal/channels/telegram"
	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	appconfig "github.com/wolfman30/clinic-booking-bot/internal/config"
	"github.com/wolfman30/clinic-booking-bot/internal/export"
	"github.com/wolfman30/clinic-booking-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-bot/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-bot/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, logger); err != nil {
		logger.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Info("starting clinic booking bot", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := storage.NewStore(pool)
	if err := store.CreateSchema(ctx); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()
	audit := compliance.NewAuditService(sqlDB)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	sessions, memSessions := bootstrap.BuildSessionStore(cfg, redisClient, logger)
	geocoder := bootstrap.BuildGeocoder(cfg, redisClient, logger)

	archiver, err := bootstrap.BuildArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}
	exporter := export.NewExporter(store, cfg.ExportDir, archiver, logger)

	metricsHandler, botMetrics := setupMetrics()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	dispatcher, err := bot.NewDispatcher(bot.Config{
		StartCommand: cfg.StartCommand,
		AdminUserID:  cfg.AdminUserID,
		Store:        store,
		Sessions:     sessions,
		Geocoder:     geocoder,
		Exporter:     exporter,
		Sender:       telegram.NewSender(api, logger),
		Audit:        audit,
		Metrics:      botMetrics,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	adminLimiter := httpmiddleware.NewRateLimiter(1, 5)
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:          logger,
			Health:          handlers.NewHealthHandler(store, logger),
			MetricsHandler:  metricsHandler,
			AdminAuthSecret: cfg.AdminJWTSecret,
			AdminExports:    handlers.NewAdminExportsHandler(exporter, audit, botMetrics, logger),
			AdminAudit:      handlers.NewAdminAuditHandler(audit, logger),
			AdminLimiter:    adminLimiter,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if memSessions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			memSessions.RunJanitor(ctx, cfg.SessionSweepInterval, func(removed int) {
				if removed > 0 {
					logger.Debug("expired sessions swept", "removed", removed)
				}
			})
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		adminLimiter.RunEviction(ctx, 5*time.Minute, 10*time.Minute)
	}()

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	poller := telegram.NewPoller(api, dispatcher, cfg.PollTimeout, logger)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		if err := poller.Run(ctx); err != nil {
			errCh <- fmt.Errorf("telegram poller: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-pollDone:
		logger.Warn("telegram poller stopped unexpectedly")
		stop()
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}
	<-pollDone
	wg.Wait()
	return runErr
}

func setupMetrics() (http.Handler, *metrics.BotMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBotMetrics(reg)
}
