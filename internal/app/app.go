package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/config"
	"github.com/team4job/marketplace-backend/internal/db"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/payments"
	"github.com/team4job/marketplace-backend/internal/repository"
	"github.com/team4job/marketplace-backend/internal/service"
)

// App соединения и сервисы, общие для сервера и marketctl.
type App struct {
	Config   *config.Config
	DB       *sqlx.DB
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	Users *repository.UserRepository

	Cache        *service.CacheService
	Flags        *service.FeatureFlagService
	Audit        *service.AuditService
	Payments     *service.PaymentService
	Jobs         *service.JobService
	Bids         *service.BidService
	Disputes     *service.DisputeService
	Reputation   *service.ReputationService
	Monitor      *service.MonitorService
	AICache      *service.AICacheService
	AIRateLimits *service.AIRateLimitService
	AI           *service.AIService
	Tokens       *service.TokenManager
}

// New подключается к Postgres и Redis и собирает сервисы.
// AI провайдер необязателен: при ошибке конфигурации генерация отвечает внутренней ошибкой.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: postgres: %w", err)
	}

	rdb, err := db.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("app: redis: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	a := &App{
		Config:   cfg,
		DB:       conn,
		Redis:    rdb,
		Registry: reg,
		Metrics:  collector,
		Tokens:   service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL),
	}

	// Репозитории.
	jobRepo := repository.NewJobRepository(conn)
	bidRepo := repository.NewBidRepository(conn)
	txnRepo := repository.NewTransactionRepository(conn)
	disputeRepo := repository.NewDisputeRepository(conn)
	a.Users = repository.NewUserRepository(conn)
	flagRepo := repository.NewFeatureFlagRepository(conn)
	aiCacheRepo := repository.NewAICacheRepository(conn)
	auditRepo := repository.NewAuditRepository(conn)

	// Сервисы.
	a.Cache = service.NewCacheService()
	a.Flags = service.NewFeatureFlagService(flagRepo, a.Cache)
	a.Audit = service.NewAuditService(auditRepo, cfg.Env)

	gateway := payments.NewCashfreeClient(cfg.CashfreeBaseURL, cfg.CashfreeAppID, cfg.CashfreeSecretKey)
	if gateway.Mock() {
		logger.Log.Warn("app: Cashfree credentials are not set, payment gateway runs in mock mode")
	}

	a.Payments = service.NewPaymentService(txnRepo, jobRepo, a.Users, gateway, a.Flags, a.Audit, collector, service.FeeSettings{
		CommissionRate:  cfg.CommissionRate,
		JobGiverFeeRate: cfg.JobGiverFeeRate,
	})
	a.Reputation = service.NewReputationService(a.Users, a.Audit)
	a.Jobs = service.NewJobService(jobRepo, bidRepo, a.Users, a.Payments, a.Reputation, a.Audit, collector, cfg.FundingWindow)
	a.Bids = service.NewBidService(bidRepo, jobRepo, a.Audit, collector)
	a.Disputes = service.NewDisputeService(disputeRepo, jobRepo, a.Flags, a.Audit)
	a.Monitor = service.NewMonitorService(jobRepo, disputeRepo, a.Audit, collector)

	a.AICache = service.NewAICacheService(aiCacheRepo, cfg.AICacheEnabled, cfg.AICacheTTL)
	a.AIRateLimits = service.NewAIRateLimitService(service.CounterFromRedis(rdb), a.Users)

	provider, err := ai.NewProvider(cfg.AIProvider, cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"provider": cfg.AIProvider, "error": err.Error()}).Error("app: AI provider is not configured")
	}
	a.AI = service.NewAIService(provider, a.AICache, a.AIRateLimits, a.Flags, collector)

	return a, nil
}

// Close закрывает соединения.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.WithError(err).Warn("app: redis close")
		}
	}
	if err := a.DB.Close(); err != nil {
		logger.Log.WithError(err).Warn("app: postgres close")
	}
}
