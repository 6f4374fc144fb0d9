package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/services"
)

// ProfileHandler handles segment profile and category operations
type ProfileHandler struct {
	profileService services.ProfileService
}

// NewProfileHandler creates a new profile handler with service injection
func NewProfileHandler(profileService services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// ListProfiles returns all profiles for the tenant
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profiles, err := h.profileService.List(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// GetProfile returns one profile with its category targets
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	profileID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profileService.Get(ctx, tenantID, profileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// ProfileRequest carries profile creation and update fields
type ProfileRequest struct {
	Segment          string  `json:"segment" binding:"required"`
	Name             string  `json:"name" binding:"required"`
	MinAnnualRevenue float64 `json:"min_annual_revenue" binding:"gte=0"`
}

// CreateProfile creates a new draft profile (Admin only)
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile := &models.SegmentProfile{
		TenantID:         tenantID,
		Segment:          req.Segment,
		Name:             req.Name,
		MinAnnualRevenue: req.MinAnnualRevenue,
	}
	if err := h.profileService.Create(ctx, profile); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// UpdateProfile updates a profile's descriptive fields (Admin only)
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	profileID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile := &models.SegmentProfile{
		ID:               profileID,
		TenantID:         tenantID,
		Segment:          req.Segment,
		Name:             req.Name,
		MinAnnualRevenue: req.MinAnnualRevenue,
	}
	if err := h.profileService.Update(ctx, profile); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// DeleteProfile removes a profile (Admin only)
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	profileID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.profileService.Delete(ctx, tenantID, profileID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile deleted"})
}

// ApproveProfile promotes a draft to approved (Admin only)
func (h *ProfileHandler) ApproveProfile(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	profileID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profileService.Approve(ctx, tenantID, profileID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// CategoryTargetRequest is one target row in a replace-categories call
type CategoryTargetRequest struct {
	CategoryID  string  `json:"category_id" binding:"required,uuid"`
	ExpectedPct float64 `json:"expected_pct" binding:"gte=0,lte=100"`
	Importance  float64 `json:"importance"`
	IsRequired  bool    `json:"is_required"`
	Notes       string  `json:"notes"`
}

// ReplaceCategories swaps a profile's category targets (Admin only)
func (h *ProfileHandler) ReplaceCategories(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	profileID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Categories []CategoryTargetRequest `json:"categories" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	categories := make([]models.ProfileCategory, 0, len(req.Categories))
	for _, pc := range req.Categories {
		categoryID, err := parseUUIDField(pc.CategoryID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category_id"})
			return
		}
		categories = append(categories, models.ProfileCategory{
			ProfileID:   profileID,
			CategoryID:  categoryID,
			ExpectedPct: pc.ExpectedPct,
			Importance:  pc.Importance,
			IsRequired:  pc.IsRequired,
			Notes:       pc.Notes,
		})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.profileService.ReplaceCategories(ctx, tenantID, profileID, categories); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile categories replaced"})
}

// ListCategories returns the tenant's category taxonomy
func (h *ProfileHandler) ListCategories(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := h.profileService.ListCategories(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory adds a category to the taxonomy (Admin only)
func (h *ProfileHandler) CreateCategory(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category := &models.Category{TenantID: tenantID, Name: req.Name}
	if err := h.profileService.CreateCategory(ctx, category); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}
