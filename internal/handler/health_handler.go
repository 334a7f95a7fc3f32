package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/database"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/redis"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db     *database.DB
	redis  *redis.Client
	outbox repository.OutboxRepository
}

// NewHealthHandler creates a new HealthHandler. redis and outbox may be nil.
func NewHealthHandler(db *database.DB, redisClient *redis.Client, outbox repository.OutboxRepository) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, outbox: outbox}
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
	Outbox     map[string]int64  `json:"outbox,omitempty"`
}

// Health is the liveness probe
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready is the readiness probe. The database is required; Redis degrades
// gracefully and only gets reported.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	ready := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			components["database"] = "unhealthy: " + err.Error()
			ready = false
		} else {
			components["database"] = "healthy"
		}
	} else {
		components["database"] = "not configured"
		ready = false
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			components["redis"] = "unhealthy: " + err.Error()
		} else {
			components["redis"] = "healthy"
		}
	} else {
		components["redis"] = "not configured"
	}

	response := ReadyResponse{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	if h.outbox != nil {
		if counts, err := h.outbox.CountByStatus(ctx); err == nil {
			response.Outbox = make(map[string]int64, len(counts))
			for status, n := range counts {
				response.Outbox[status.String()] = n
			}
			if counts[domain.OutboxStatusFailed] > 0 {
				components["outbox"] = "has poison events"
			} else {
				components["outbox"] = "healthy"
			}
		}
	}

	if ready {
		response.Status = "ready"
		c.JSON(http.StatusOK, response)
		return
	}
	response.Status = "not ready"
	c.JSON(http.StatusServiceUnavailable, response)
}
