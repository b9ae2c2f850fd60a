package router

import (
	"context"
	"net/http"
	"time"

	apphttp "leadhandler_backend/internal/http"
	"leadhandler_backend/platform/httpkit"
	"leadhandler_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const webhookBurst = 40

// New builds the gin engine with shared middleware and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(metrics.Middleware())

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := engine.Group("/api/v1")

	perSecond := app.Config.GetWebhookRatePerSecond()
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	limiter := httpkit.NewIPRateLimiter(limit, webhookBurst, app.Logger)

	webhooks := v1.Group("/webhooks")
	webhooks.Use(limiter.RateLimit())

	apiKey := httpkit.APIKeyRequired(app.Config.GetInternalAPIKey())
	internal := v1.Group("")
	internal.Use(apiKey)

	rc := &apphttp.RouterContext{
		Engine:   engine,
		V1:       v1,
		Webhooks: webhooks,
		Internal: internal,
		TwilioSignature: httpkit.ValidateTwilioSignature(
			app.Config.GetWebhookValidateSignature(),
			app.Config.GetTwilioAuthToken(),
			app.Config.GetWebhookPublicURL(),
		),
		APIKey: apiKey,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Info("http module registered", "module", m.Name())
	}

	return engine
}
