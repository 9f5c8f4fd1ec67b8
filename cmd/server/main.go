package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/app"
	"github.com/team4job/marketplace-backend/internal/config"
	"github.com/team4job/marketplace-backend/internal/db"
	"github.com/team4job/marketplace-backend/internal/goroutine"
	httpHandlers "github.com/team4job/marketplace-backend/internal/http/handlers"
	"github.com/team4job/marketplace-backend/internal/http/middleware"
	httpRouter "github.com/team4job/marketplace-backend/internal/http/router"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/service"
	"github.com/team4job/marketplace-backend/internal/storage"
)

const (
	cacheCleanupInterval = 5 * time.Minute
	aiCachePurgeInterval = time.Hour
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось инициализировать приложение")
	}
	defer a.Close()

	applied, err := db.RunMigrations(ctx, a.DB, cfg.MigrationsPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка миграций")
	}
	if len(applied) > 0 {
		logger.Log.WithField("migrations", applied).Info("main: миграции применены")
	}

	attachments, err := storage.NewAttachmentStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	limiterStore, err := middleware.NewLimiterStore(a.Redis)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось создать хранилище лимитов")
	}

	// Фоновые задачи.
	cleanupDone := a.Cache.StartCleanup(ctx, cacheCleanupInterval)
	purgeDone := goroutine.Every(ctx, aiCachePurgeInterval, a.AICache.Purge)
	monitorDone := goroutine.Every(ctx, cfg.MonitorInterval, func(ctx context.Context) {
		runMonitor(ctx, a.Monitor)
	})

	// HTTP хэндлеры.
	healthChecks := map[string]httpHandlers.HealthCheck{
		"database": httpHandlers.DatabaseCheck(a.DB),
	}
	if a.Redis != nil {
		healthChecks["redis"] = httpHandlers.RedisCheck(a.Redis)
	}

	h := httpRouter.Handlers{
		Jobs:        httpHandlers.NewJobHandler(a.Jobs),
		Bids:        httpHandlers.NewBidHandler(a.Bids),
		Attachments: httpHandlers.NewAttachmentHandler(a.Jobs, attachments),
		Payments:    httpHandlers.NewPaymentHandler(a.Payments),
		Disputes:    httpHandlers.NewDisputeHandler(a.Disputes),
		Reputation:  httpHandlers.NewReputationHandler(a.Reputation),
		AI:          httpHandlers.NewAIHandler(a.AI),
		Admin:       httpHandlers.NewAdminHandler(a.Monitor, a.Flags, a.Audit),
		Webhooks:    httpHandlers.NewWebhookHandler(cfg.CashfreeWebhookSecret, a.Audit, a.Metrics),
		E2E:         httpHandlers.NewE2EHandler(a.Payments),
		Health:      httpHandlers.NewHealthHandler(healthChecks),
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, h, httpRouter.Deps{
		Tokens:       a.Tokens,
		LimiterStore: limiterStore,
		Metrics:      a.Metrics,
		Gatherer:     a.Registry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.Log.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.WithError(err).Error("main: сервер завершился с ошибкой")
		stop()
	}

	<-cleanupDone
	<-purgeDone
	<-monitorDone
}

// runMonitor прогоняет проверки по расписанию, алерты пишет сам сервис.
func runMonitor(ctx context.Context, monitor *service.MonitorService) {
	if _, err := monitor.Run(ctx, time.Now()); err != nil {
		logger.Log.WithError(err).Error("main: мониторинг завершился с ошибкой")
	}
}
