package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/auction-backend/internal/config"
	"github.com/ignatzorin/auction-backend/internal/http/handlers"
	"github.com/ignatzorin/auction-backend/internal/http/middleware"
	"github.com/ignatzorin/auction-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	auctionHandler *handlers.AuctionHandler,
	bidHandler *handlers.BidHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	mediaHandler *handlers.MediaHandler,
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
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/auctions/:id", middleware.UUIDValidator("id"), auctionHandler.Get)
	api.GET("/auctions/:id/bids", middleware.UUIDValidator("id"), bidHandler.List)
	api.GET("/auctions/:id/bidders", middleware.UUIDValidator("id"), bidHandler.BidderSummaries)

	// Вебхук шлюза: аутентификация по подписи в заголовке, не по JWT.
	api.POST("/payments/webhook", paymentHandler.Webhook)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/auctions", auctionHandler.Create)
		protected.GET("/auctions/my", auctionHandler.ListMine)
		protected.GET("/auctions/participations", auctionHandler.ListParticipations)
		protected.GET("/auctions/participations/stats", auctionHandler.ParticipationStats)
		protected.PUT("/auctions/:id", middleware.UUIDValidator("id"), auctionHandler.Update)
		protected.DELETE("/auctions/:id", middleware.UUIDValidator("id"), auctionHandler.Delete)
		protected.POST("/auctions/:id/cancel", middleware.UUIDValidator("id"), auctionHandler.Cancel)
		protected.POST("/auctions/:id/item-sent", middleware.UUIDValidator("id"), auctionHandler.MarkItemSent)
		protected.POST("/auctions/:id/confirm-delivery", middleware.UUIDValidator("id"), auctionHandler.ConfirmDelivery)

		protected.POST("/auctions/:id/bids",
			middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod),
			middleware.UUIDValidator("id"), bidHandler.Submit)

		protected.POST("/payments/auctions/:id/seller-deposit", middleware.UUIDValidator("id"), paymentHandler.PaySellerDeposit)
		protected.POST("/payments/auctions/:id/bidder-deposit", middleware.UUIDValidator("id"), paymentHandler.PayBidderDeposit)
		protected.POST("/payments/auctions/:id/purchase", middleware.UUIDValidator("id"), paymentHandler.PayAuction)
		protected.POST("/payments/auctions/:id/buy-now", middleware.UUIDValidator("id"), paymentHandler.BuyNow)

		protected.GET("/wallet/balance", walletHandler.Balance)
		protected.GET("/wallet/transactions", walletHandler.Transactions)
		protected.POST("/wallet/withdraw", walletHandler.Withdraw)

		protected.POST("/media", mediaHandler.Upload)
	}

	return r
}
