package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tipstream/tip_service/docs"
	"github.com/tipstream/tip_service/internal/api/handlers"
	"github.com/tipstream/tip_service/internal/api/middleware"
	"github.com/tipstream/tip_service/internal/infrastructure/di"
	"github.com/tipstream/tip_service/pkg/idempotency"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing(container.Tracer))
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))

	healthHandler := handlers.NewHealthHandler(container.HealthChecks(), container.ZapLog, di.Version)
	tipHandlers := handlers.NewTipHandlers(container.SettlementService, container.ZapLog)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(container.Metrics.Handler()))
	RegisterDocs(router, container.Config.Environment)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	v1.Use(idempotency.Middleware(container.Idempotency, container.ZapLog))
	RegisterTipRoutes(v1, tipHandlers)

	return router
}

// RegisterDocs serves the Swagger UI outside production
func RegisterDocs(router *gin.Engine, environment string) {
	if environment == "production" {
		return
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// RegisterTipRoutes mounts the tip endpoints on group
func RegisterTipRoutes(group *gin.RouterGroup, h *handlers.TipHandlers) {
	tips := group.Group("/tips")
	{
		tips.POST("", h.SendTip)
		tips.GET("", h.ListTips)
		tips.DELETE("", h.ClearTips)
		tips.GET("/pending", h.ListPendingTips)
		tips.GET("/:id", h.GetTip)
		tips.POST("/:id/retry", h.RetryTip)
	}
}
