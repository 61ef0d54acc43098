package handler

import (
	"pliz-ledger/internal/adapter/http/middleware"
	redisStore "pliz-ledger/internal/adapter/storage/redis"
	"pliz-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	WebhookSvc     ports.WebhookService
	TokenSvc       ports.TokenService
	RequestKeys    ports.RequestKeyStore     // nil = Idempotency-Key not enforced
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	rules := middleware.DefaultRateLimitRules()
	noop := func(c *gin.Context) { c.Next() }

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return noop
		}
		rule, ok := rules[group]
		if !ok {
			return noop
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	idem := noop
	if deps.RequestKeys != nil {
		idem = middleware.Idempotency(deps.RequestKeys, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Partner callbacks (HMAC verified by the webhook service) ---
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	v1.POST("/webhooks/:partner", rl("webhooks"), webhookHandler.Receive)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	paymentHandler := NewPaymentHandler(deps.SettlementSvc)
	walletHandler := NewWalletHandler(deps.SettlementSvc)
	transactionHandler := NewTransactionHandler(deps.SettlementSvc)

	authed := v1.Group("", jwtAuth)
	{
		authed.POST("/transfers", rl("transfers"), idem, paymentHandler.SendMoney)
		authed.POST("/topups", rl("topups"), idem, paymentHandler.TopUp)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("/merchant", rl("payments"), idem, paymentHandler.PayMerchant)
		payments.POST("/merchant-initiated", rl("payments"), idem, paymentHandler.ChargeCustomer)
	}

	authed.GET("/wallet/balance", rl("reads"), walletHandler.GetBalance)

	transactions := authed.Group("/transactions")
	{
		transactions.GET("", rl("reads"), transactionHandler.ListTransactions)
		transactions.GET("/:order_id", rl("reads"), transactionHandler.GetTransaction)
	}

	return r
}
