package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"msgmon/internal/logger"
	"msgmon/pkg/health"
	"msgmon/pkg/middleware"
	"msgmon/pkg/ratelimit"
)

type RouterOptions struct {
	ServiceName string
	Tracing     bool
	// Limiters enables per-client rate limiting of the API routes.
	Limiters *ratelimit.Limiters
	Health   *health.CheckerRegistry
}

func NewRouter(handler *Handler, opts RouterOptions, log logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.NopLogger()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if opts.Tracing {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log, "/health", "/metrics"))

	registry := opts.Health
	if registry == nil {
		registry = health.NewCheckerRegistry()
	}
	router.GET("/health", func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	if opts.Limiters != nil {
		api.Use(ratelimit.RateLimitMiddleware(opts.Limiters))
	}
	handler.RegisterRoutes(api)

	return router
}
