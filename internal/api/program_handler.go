package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/services"
)

// ProgramHandler handles enrollment lifecycle operations
type ProgramHandler struct {
	lifecycleService services.LifecycleService
}

// NewProgramHandler creates a new program handler with service injection
func NewProgramHandler(lifecycleService services.LifecycleService) *ProgramHandler {
	return &ProgramHandler{
		lifecycleService: lifecycleService,
	}
}

// EnrollRequest carries an enrollment request for one account
type EnrollRequest struct {
	AccountID string                   `json:"account_id" binding:"required,uuid"`
	Targets   models.EnrollmentTargets `json:"targets" binding:"required"`
}

// Enroll creates a live enrollment for an account
func (h *ProgramHandler) Enroll(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	accountID, err := parseUUIDField(req.AccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pa, err := h.lifecycleService.Enroll(ctx, tenantID, accountID, userID, req.Targets)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pa)
}

// ListPrograms returns enrollments, optionally filtered by ?status=a,b
func (h *ProgramHandler) ListPrograms(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	programs, err := h.lifecycleService.ListPrograms(ctx, tenantID, statuses...)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"programs": programs})
}

// GetProgram returns one enrollment record
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	programID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pa, err := h.lifecycleService.GetProgram(ctx, tenantID, programID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pa)
}

// GetSnapshots returns the revenue audit trail for one enrollment
func (h *ProgramHandler) GetSnapshots(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	programID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	snapshots, err := h.lifecycleService.Snapshots(ctx, tenantID, programID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// TransitionRequest names the requested target state
type TransitionRequest struct {
	Status models.ProgramStatus `json:"status" binding:"required,oneof=candidate active at_risk paused graduated"`
}

// Transition applies a manual status change to one enrollment
func (h *ProgramHandler) Transition(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	programID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pa, err := h.lifecycleService.Transition(ctx, tenantID, programID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pa)
}

// Evaluate runs the lifecycle sweep for the tenant on demand (Admin only)
func (h *ProgramHandler) Evaluate(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.lifecycleService.EvaluateLifecycle(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SnapshotRequest bounds one measurement period
type SnapshotRequest struct {
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
	Force       bool      `json:"force"`
}

// GenerateSnapshots measures a period for every live enrollment (Admin only)
func (h *ProgramHandler) GenerateSnapshots(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	batch, err := h.lifecycleService.GenerateSnapshots(ctx, tenantID, req.PeriodStart, req.PeriodEnd, req.Force)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetTiers returns the tenant's rev-share schedule
func (h *ProgramHandler) GetTiers(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	tiers, err := h.lifecycleService.ListTiers(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

// ReplaceTiers swaps the rev-share schedule wholesale (Admin only)
func (h *ProgramHandler) ReplaceTiers(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		Tiers []models.RevShareTier `json:"tiers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.lifecycleService.ReplaceTiers(ctx, tenantID, req.Tiers); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tier schedule replaced"})
}
