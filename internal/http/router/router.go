package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"

	"github.com/team4job/marketplace-backend/internal/config"
	"github.com/team4job/marketplace-backend/internal/http/handlers"
	"github.com/team4job/marketplace-backend/internal/http/middleware"
	"github.com/team4job/marketplace-backend/internal/metrics"
)

// Handlers набор обработчиков, которые подключает роутер.
type Handlers struct {
	Jobs        *handlers.JobHandler
	Bids        *handlers.BidHandler
	Attachments *handlers.AttachmentHandler
	Payments    *handlers.PaymentHandler
	Disputes    *handlers.DisputeHandler
	Reputation  *handlers.ReputationHandler
	AI          *handlers.AIHandler
	Admin       *handlers.AdminHandler
	Webhooks    *handlers.WebhookHandler
	E2E         *handlers.E2EHandler
	Health      *handlers.HealthHandler
}

// Deps инфраструктура, общая для всех маршрутов.
type Deps struct {
	Tokens       middleware.AccessTokenParser
	LimiterStore limiter.Store
	Metrics      *metrics.Collector
	Gatherer     prometheus.Gatherer
}

func SetupRouter(cfg *config.Config, h Handlers, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(deps.LimiterStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	public := api.Group("")
	public.Use(middleware.OptionalAuth(deps.Tokens))
	{
		public.GET("/jobs", h.Jobs.ListOpenJobs)
		public.GET("/jobs/:id", middleware.UUIDValidator("id"), h.Jobs.GetJob)
	}

	// подпись проверяет сам обработчик, bearer токена у шлюза нет
	api.POST("/webhooks/cashfree", h.Webhooks.Cashfree)

	if cfg.Env == "development" && h.E2E != nil {
		api.POST("/e2e/fund-job", h.E2E.FundJob)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Tokens))

	jobs := protected.Group("/jobs")
	{
		jobs.POST("", h.Jobs.CreateJob)
		jobs.GET("/my", h.Jobs.ListMyJobs)
		jobs.POST("/start-work", h.Jobs.StartWork)
		jobs.POST("/:id/publish", middleware.UUIDValidator("id"), h.Jobs.PublishJob)
		jobs.POST("/:id/award", middleware.UUIDValidator("id"), h.Jobs.AwardBid)
		jobs.POST("/:id/submit", middleware.UUIDValidator("id"), h.Jobs.SubmitWork)
		jobs.POST("/:id/confirm", middleware.UUIDValidator("id"), h.Jobs.ConfirmCompletion)
		jobs.POST("/:id/decline", middleware.UUIDValidator("id"), h.Jobs.DeclineOffer)
		jobs.POST("/:id/reapply", middleware.UUIDValidator("id"), h.Reputation.Reapply)
		jobs.POST("/:id/cancel", middleware.UUIDValidator("id"), h.Jobs.CancelJob)
		jobs.GET("/:id/history", middleware.UUIDValidator("id"), h.Jobs.History)

		jobs.POST("/:id/attachments", middleware.UUIDValidator("id"), h.Attachments.Upload)
		jobs.GET("/:id/attachments", middleware.UUIDValidator("id"), h.Attachments.List)
		jobs.GET("/:id/attachments/:attachmentId", middleware.UUIDValidator("id", "attachmentId"), h.Attachments.Download)

		jobs.POST("/:id/bids", middleware.UUIDValidator("id"), h.Bids.PlaceBid)
		jobs.GET("/:id/bids", middleware.UUIDValidator("id"), h.Bids.ListBids)
		jobs.DELETE("/:id/bids/:bidId", middleware.UUIDValidator("id", "bidId"), h.Bids.WithdrawBid)
	}

	protected.GET("/bids/my", h.Bids.ListMyBids)
	protected.POST("/users/me/bookmarks/:jobId", middleware.UUIDValidator("jobId"), h.Jobs.ToggleBookmark)

	payments := protected.Group("/payments")
	{
		payments.POST("/orders", h.Payments.CreateOrder)
		payments.POST("/orders/:orderId/verify", h.Payments.VerifyPayment)
		payments.GET("/transactions", h.Payments.ListTransactions)
		payments.POST("/jobs/:id/release", middleware.UUIDValidator("id"), h.Payments.ReleaseFunds)
		payments.POST("/jobs/:id/refund", middleware.UUIDValidator("id"), h.Payments.RefundJob)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.POST("", h.Disputes.CreateDispute)
		disputes.GET("", h.Disputes.ListDisputes)
		disputes.GET("/:id", middleware.UUIDValidator("id"), h.Disputes.GetDispute)
		disputes.POST("/:id/messages", middleware.UUIDValidator("id"), h.Disputes.AddMessage)
		disputes.POST("/:id/resolve", middleware.UUIDValidator("id"), middleware.RequireStaff(), h.Disputes.ResolveDispute)
	}

	protected.POST("/reputation/deduct", middleware.RequireStaff(), h.Reputation.DeductPoints)
	protected.POST("/ai/job-description", h.AI.GenerateJobDescription)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireStaff())
	{
		admin.POST("/monitor/run", h.Admin.RunMonitor)
		admin.GET("/feature-flags", h.Admin.ListFeatureFlags)
		admin.PUT("/feature-flags", h.Admin.SetFeatureFlag)
		admin.GET("/system-logs", h.Admin.ListSystemLogs)
	}

	return r
}
