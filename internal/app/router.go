package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"payrecon/internal/handler"
	"payrecon/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	WebhookHandler      *handler.WebhookHandler
	PaymentOrderHandler *handler.PaymentOrderHandler
	ReviewHandler       *handler.ReviewHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application

	// EnableTestEndpoint registers the unsigned manual reconciliation route.
	EnableTestEndpoint bool
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handler.ErrorResponse{Error: "method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.ErrorResponse{Error: "not found"})
	})

	// Global middleware.
	router.Use(gin.CustomRecovery(handler.RecoveryHandler))
	router.Use(gin.Logger())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/bank", deps.WebhookHandler.Receive)
			if deps.EnableTestEndpoint {
				webhooks.POST("/bank/test",
					middleware.Idempotency(deps.RedisClient, "manual-reconcile"),
					deps.WebhookHandler.TestDelivery,
				)
			}
		}

		orders := v1.Group("/payment-orders")
		{
			orders.GET("/:code", deps.PaymentOrderHandler.GetByCode)
		}

		if deps.ReviewHandler != nil {
			reviews := v1.Group("/reconciliation/reviews")
			{
				reviews.GET("", deps.ReviewHandler.List)
				reviews.DELETE("/:code", deps.ReviewHandler.Resolve)
			}
		}
	}

	return router
}
