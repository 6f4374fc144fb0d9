package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/database"
	"github.com/fieldstone/opportunity-engine/internal/scheduler"
)

// AdminHandler exposes operational endpoints: health, scheduler status, and
// manual job triggers.
type AdminHandler struct {
	db    *database.DB
	sched *scheduler.Scheduler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *database.DB, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{db: db, sched: sched}
}

// Health reports process and database liveness
func (h *AdminHandler) Health(c *gin.Context) {
	if err := h.db.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	stats := h.db.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"database": gin.H{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	})
}

// SchedulerStatus returns per-job run history (Admin only)
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if h.sched == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"jobs":    h.sched.Stats(),
	})
}

// RunJob triggers one scheduled job immediately (Admin only)
func (h *AdminHandler) RunJob(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if h.sched == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "scheduler is disabled"})
		return
	}

	name := c.Param("name")
	if err := h.sched.RunOnce(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job finished", "job": name})
}
