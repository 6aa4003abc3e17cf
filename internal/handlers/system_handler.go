package handlers

import (
	"context"
	"net/http"
	"time"

	"fiduciaire/internal/services"
	"fiduciaire/pkg/queue"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler health, dashboard and maintenance endpoints
type SystemHandler struct {
	db        *gorm.DB
	queue     *queue.RedisQueue
	stats     *services.StatsService
	scheduler *services.CleanupScheduler
}

// NewSystemHandler q and scheduler may be nil.
func NewSystemHandler(db *gorm.DB, q *queue.RedisQueue, stats *services.StatsService, scheduler *services.CleanupScheduler) *SystemHandler {
	return &SystemHandler{
		db:        db,
		queue:     q,
		stats:     stats,
		scheduler: scheduler,
	}
}

// Health reports the database and redis state. Redis is optional: only the
// database decides the status code.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "disabled"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		healthy = false
	}
	if h.queue != nil {
		checks["redis"] = "ok"
		if err := h.queue.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
		} else if pending, err := h.queue.OutboxLength(ctx); err == nil {
			checks["mail_outbox"] = pending
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "service dégradé",
			Data:    checks,
		})
		return
	}
	checks["status"] = "ok"
	checks["time"] = time.Now().Format(time.RFC3339)
	response.Success(c, checks)
}

// Dashboard counters scoped to the caller.
func (h *SystemHandler) Dashboard(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	dashboard, err := h.stats.Dashboard(actor)
	if err != nil {
		response.FromError(c, err, "statistiques indisponibles")
		return
	}
	response.Success(c, dashboard)
}

// SchedulerStatus ADMIN only.
func (h *SystemHandler) SchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		response.NotFound(c, "planificateur désactivé")
		return
	}
	response.Success(c, h.scheduler.Status())
}

// RunCleanup triggers the maintenance job now. ADMIN only.
func (h *SystemHandler) RunCleanup(c *gin.Context) {
	if h.scheduler == nil {
		response.NotFound(c, "planificateur désactivé")
		return
	}
	report, err := h.scheduler.RunOnce()
	if err != nil {
		response.FromError(c, err, "nettoyage échoué")
		return
	}
	response.SuccessWithMessage(c, "nettoyage effectué", report)
}
