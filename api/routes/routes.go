package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/swigpay/qr-payments-backend/internal/config"
	"github.com/swigpay/qr-payments-backend/internal/handlers"
	"github.com/swigpay/qr-payments-backend/internal/middleware"
)

// HandlerDependencies bundles the handlers the router wires up
type HandlerDependencies struct {
	AuthHandler    *handlers.AuthHandler
	PaymentHandler *handlers.PaymentHandler

	// RedisClient enables the initiate idempotency cache when non-nil
	RedisClient *redis.Client
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/auth/login", deps.AuthHandler.Login)

		payments := api.Group("/payments")
		{
			// Client-facing, protected by the frontend API key. The
			// idempotency cache shields the synchronous edge from retries.
			initiate := payments.Group("")
			initiate.Use(middleware.APIKeyAuthMiddleware(cfg))
			if deps.RedisClient != nil {
				initiate.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
			}
			initiate.POST("/initiate", deps.PaymentHandler.InitiatePayment)

			payments.GET("/status/:paymentId", deps.PaymentHandler.GetPaymentStatus)

			// Upstream-facing callbacks. Signature verification runs before
			// any parsing when a callback secret is configured.
			payments.POST("/callback",
				middleware.CallbackSignatureMiddleware(cfg.MPesa.CallbackSecret),
				deps.PaymentHandler.HandleCallback)
			payments.POST("/timeout", deps.PaymentHandler.HandleTimeout)
			payments.POST("/c2b/validation", deps.PaymentHandler.C2BValidation)
			payments.POST("/c2b/confirmation", deps.PaymentHandler.C2BConfirmation)

			// Operator endpoints
			admin := payments.Group("")
			admin.Use(middleware.JWTAuthMiddleware(cfg))
			{
				admin.GET("/history", deps.PaymentHandler.GetPaymentHistory)
				admin.GET("/stk-status/:checkoutRequestId", deps.PaymentHandler.QuerySTKStatus)
				admin.POST("/register-c2b", deps.PaymentHandler.RegisterC2BURLs)
			}
		}
	}

	return router
}
