package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/services"
)

// AccountHandler handles account metric operations: recompute, read, and
// ranking.
type AccountHandler struct {
	recomputeService services.RecomputeService
}

// NewAccountHandler creates a new account handler with service injection
func NewAccountHandler(recomputeService services.RecomputeService) *AccountHandler {
	return &AccountHandler{
		recomputeService: recomputeService,
	}
}

// RecomputeAccount rebuilds one account's metrics on demand
func (h *AccountHandler) RecomputeAccount(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// Recompute walks two years of history; give it more room than a read.
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.recomputeService.RecomputeAccount(ctx, tenantID, accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecomputeAll rebuilds every account in the tenant (Admin only)
func (h *AccountHandler) RecomputeAll(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	batch, err := h.recomputeService.RecomputeAllAccounts(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetMetrics returns the stored snapshot and gap rows for one account
func (h *AccountHandler) GetMetrics(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	metrics, gaps, err := h.recomputeService.AccountMetrics(ctx, tenantID, accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics": metrics,
		"gaps":    gaps,
	})
}

// GetRanking returns accounts ordered by a metrics column
func (h *AccountHandler) GetRanking(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	sortKey := c.DefaultQuery("sort", "opportunity_score")

	ctx, cancel := requestContext(c)
	defer cancel()

	ranked, err := h.recomputeService.Ranking(ctx, tenantID, limit, sortKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accounts":  ranked,
		"sort":      sortKey,
		"timestamp": time.Now(),
	})
}
