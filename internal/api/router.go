package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/api/handler"
	"github.com/qs3c/booking_go_server/internal/api/middleware"
)

type Router struct {
	subscriptionHandler *handler.SubscriptionHandler
	planHandler         *handler.PlanHandler
	webhookHandler      *handler.WebhookHandler
	healthHandler       *handler.HealthHandler
	cfg                 *config.Config
}

func NewRouter(
	subscriptionHandler *handler.SubscriptionHandler,
	planHandler *handler.PlanHandler,
	webhookHandler *handler.WebhookHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		subscriptionHandler: subscriptionHandler,
		planHandler:         planHandler,
		webhookHandler:      webhookHandler,
		healthHandler:       healthHandler,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// 公开接口
		api.GET("/health", r.healthHandler.Check)
		api.GET("/plans", r.planHandler.List)

		// 网关回调（网关侧鉴权靠回查，不走 JWT）
		api.POST("/payments/webhook", r.webhookHandler.HandleGateway)

		// 需要认证的接口
		subscription := api.Group("/subscription")
		subscription.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			subscription.POST("/change-plan", r.subscriptionHandler.ChangePlan)
			subscription.POST("/cancel", r.subscriptionHandler.Cancel)
			subscription.GET("/current", r.subscriptionHandler.GetCurrent)
		}
	}

	return engine
}
