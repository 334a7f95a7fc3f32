package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rbravo-MCR/car-rental-reservations/pkg/telemetry"
)

// RouterConfig holds router-level settings
type RouterConfig struct {
	ServiceName string
	Version     string
}

// NewRouter assembles the gin engine and mounts every route
func NewRouter(
	cfg *RouterConfig,
	health *HealthHandler,
	reservations *ReservationHandler,
	availability *AvailabilityHandler,
	webhooks *WebhookHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(cfg.ServiceName))

	router.GET("/health", health.Health)
	router.GET("/health/live", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/ready", health.Ready)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": cfg.ServiceName,
				"version": cfg.Version,
			})
		})

		v1.POST("/availability", availability.Search)

		res := v1.Group("/reservations")
		{
			res.POST("", reservations.Create)
			res.GET("", reservations.List)
			res.GET("/:code", reservations.Get)
			res.GET("/:code/status", reservations.Status)
		}

		v1.POST("/webhooks/stripe", webhooks.HandleStripe)
	}

	return router
}
