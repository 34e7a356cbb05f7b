package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bondplatform/bond-backend/internal/config"
	"github.com/bondplatform/bond-backend/internal/http/handlers"
	"github.com/bondplatform/bond-backend/internal/http/middleware"
	"github.com/bondplatform/bond-backend/internal/models"
	"github.com/bondplatform/bond-backend/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	contractHandler *handlers.ContractHandler,
	milestoneHandler *handlers.MilestoneHandler,
	disputeHandler *handlers.DisputeHandler,
	paymentHandler *handlers.PaymentHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/deliverables", http.Dir(cfg.DeliverableStorage))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/sessions", authHandler.ListSessions)
		protectedAuth.DELETE("/sessions/:id", middleware.UUIDValidator("id"), authHandler.DeleteSession)
	}

	api.GET("/ws", wsHandler.Handle)

	// Подтверждения от платёжного адаптера и сервиса проверки результатов.
	webhooks := api.Group("/")
	webhooks.Use(middleware.WebhookAuth(cfg.PaymentWebhookToken))
	{
		webhooks.POST("/payments/confirm", paymentHandler.Confirm)
		webhooks.POST("/milestones/:id/verification", middleware.UUIDValidator("id"), milestoneHandler.SetVerification)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		// Контракты.
		protected.POST("/contracts", contractHandler.Create)
		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.Get)
		protected.DELETE("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.Delete)
		protected.POST("/contracts/:id/send", middleware.UUIDValidator("id"), contractHandler.SendInvitation)
		protected.POST("/contracts/:id/accept", middleware.UUIDValidator("id"), contractHandler.Accept)
		protected.POST("/contracts/:id/reject", middleware.UUIDValidator("id"), contractHandler.Reject)
		protected.POST("/contracts/:id/fund", middleware.UUIDValidator("id"), contractHandler.Fund)
		protected.PATCH("/contracts/:id/status", middleware.UUIDValidator("id"), contractHandler.UpdateStatus)
		protected.POST("/contracts/:id/deletion-request", middleware.UUIDValidator("id"), contractHandler.RequestDeletion)
		protected.POST("/contracts/:id/deletion-confirm", middleware.UUIDValidator("id"), contractHandler.ConfirmDeletion)
		protected.GET("/contracts/:id/escrow", middleware.UUIDValidator("id"), contractHandler.GetEscrow)
		protected.GET("/contracts/:id/transactions", middleware.UUIDValidator("id"), paymentHandler.ListContractTransactions)

		// Вехи.
		protected.POST("/contracts/:id/milestones", middleware.UUIDValidator("id"), milestoneHandler.Create)
		protected.GET("/contracts/:id/milestones", middleware.UUIDValidator("id"), milestoneHandler.List)
		protected.GET("/milestones/:id", middleware.UUIDValidator("id"), milestoneHandler.Get)
		protected.POST("/milestones/:id/submit", middleware.UUIDValidator("id"), milestoneHandler.Submit)
		protected.POST("/milestones/:id/deliverable", middleware.UUIDValidator("id"), milestoneHandler.Upload)
		protected.POST("/milestones/:id/approve", middleware.UUIDValidator("id"), milestoneHandler.Approve)
		protected.POST("/milestones/:id/revision", middleware.UUIDValidator("id"), milestoneHandler.RequestRevision)
		protected.POST("/milestones/:id/payout", middleware.UUIDValidator("id"), milestoneHandler.Payout)

		// Споры.
		protected.POST("/contracts/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.Create)
		protected.GET("/disputes", disputeHandler.ListMy)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)

		// Очередь и решения арбитра.
		arbiter := protected.Group("/")
		arbiter.Use(middleware.RequireRole(models.RoleArbiter))
		{
			arbiter.GET("/disputes/queue/open", disputeHandler.ListOpen)
			arbiter.POST("/disputes/:id/review", middleware.UUIDValidator("id"), disputeHandler.StartReview)
			arbiter.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
			arbiter.POST("/disputes/:id/close", middleware.UUIDValidator("id"), disputeHandler.Close)
		}

		// Платежи.
		protected.GET("/payments/transactions", paymentHandler.ListMyTransactions)

		// Уведомления.
		protected.GET("/notifications", notificationHandler.List)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.Delete)
	}

	return r
}
