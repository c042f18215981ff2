package handler

import (
	"payment-orchestrator/internal/adapter/http/middleware"
	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	HealthSvc      ports.HealthService
	Identity       ports.IdentityClient
	RateLimitStore middleware.Limiter // nil = rate limiting disabled
	Logger         zerolog.Logger
	Mode           string // gin mode, defaults to release
	MaxBodyBytes   int64
	OpenAPISpec    []byte // nil = /swagger not mounted
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	r.GET("/health", HealthCheck(deps.HealthSvc))

	registerSwagger(r, deps.OpenAPISpec)

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	identityAuth := middleware.IdentityAuth(deps.Identity, deps.Logger)

	payments := r.Group("/api/v1/payments")
	{
		// Token verification for writes happens in the service, which
		// needs the caller identity for its own checks.
		payments.POST("/transfer", middleware.RequireBearer(), rl("payments_create"), paymentHandler.CreateTransfer)
		payments.POST("/:payment_id/refund", middleware.RequireBearer(), rl("payments_refund"), paymentHandler.RefundPayment)

		payments.GET("/:payment_id", identityAuth, rl("payments_read"), paymentHandler.GetPayment)
		payments.GET("/:payment_id/status", identityAuth, rl("payments_read"), paymentHandler.GetPaymentStatus)
	}

	return r
}
