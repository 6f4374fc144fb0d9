package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/limits"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
)

// profileServiceImpl implements ProfileService
type profileServiceImpl struct {
	repos *repository.Repositories
}

// newProfileService creates a new profile service implementation
func newProfileService(repos *repository.Repositories) ProfileService {
	return &profileServiceImpl{repos: repos}
}

func (s *profileServiceImpl) List(ctx context.Context, tenantID uuid.UUID) ([]models.SegmentProfile, error) {
	profiles, err := s.repos.Profiles.List(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to list profiles", err).WithOperation("List")
	}
	return profiles, nil
}

func (s *profileServiceImpl) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.SegmentProfile, error) {
	profile, err := s.repos.Profiles.GetByID(ctx, tenantID, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("profile not found", err)
		}
		return nil, errors.DatabaseError("failed to load profile", err).WithOperation("Get")
	}
	return profile, nil
}

func (s *profileServiceImpl) Create(ctx context.Context, profile *models.SegmentProfile) error {
	if profile.Segment == "" || profile.Name == "" {
		return errors.ValidationError("segment and name are required", nil)
	}
	// New profiles always start as drafts; approval is a separate step.
	profile.Status = string(models.ProfileDraft)
	profile.ApprovedBy = nil
	profile.ApprovedAt = nil
	if err := s.repos.Profiles.Create(ctx, profile); err != nil {
		return errors.DatabaseError("failed to create profile", err).WithOperation("Create")
	}
	return nil
}

func (s *profileServiceImpl) Update(ctx context.Context, profile *models.SegmentProfile) error {
	existing, err := s.Get(ctx, profile.TenantID, profile.ID)
	if err != nil {
		return err
	}
	// Status changes go through Approve, not Update.
	profile.Status = existing.Status
	if err := s.repos.Profiles.Update(ctx, profile); err != nil {
		return errors.DatabaseError("failed to update profile", err).WithOperation("Update")
	}
	return nil
}

func (s *profileServiceImpl) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repos.Profiles.Delete(ctx, tenantID, id); err != nil {
		if err == repository.ErrNotFound {
			return errors.NotFound("profile not found", err)
		}
		return errors.DatabaseError("failed to delete profile", err).WithOperation("Delete")
	}
	return nil
}

// Approve promotes a draft to approved after checking the plan quota and
// that the profile's category targets are well formed.
func (s *profileServiceImpl) Approve(ctx context.Context, tenantID, id, approvedBy uuid.UUID) (*models.SegmentProfile, error) {
	profile, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if profile.IsApproved() {
		return nil, errors.Conflict("profile is already approved", nil)
	}
	if len(profile.Categories) == 0 {
		return nil, errors.ValidationError("profile has no category targets", nil)
	}

	tenant, err := s.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load tenant", err).WithOperation("Approve")
	}
	approved, err := s.repos.Profiles.CountApproved(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to count approved profiles", err).WithOperation("Approve")
	}
	if err := limits.CheckProfileApproval(limits.Plan(tenant.Plan), approved); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.repos.Profiles.Approve(ctx, tenantID, id, approvedBy, now); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.Conflict("profile was approved concurrently", nil)
		}
		return nil, errors.DatabaseError("failed to approve profile", err).WithOperation("Approve")
	}

	profile.Status = string(models.ProfileApproved)
	profile.ApprovedBy = &approvedBy
	profile.ApprovedAt = &now
	return profile, nil
}

// ReplaceCategories swaps the profile's category targets wholesale.
func (s *profileServiceImpl) ReplaceCategories(ctx context.Context, tenantID, profileID uuid.UUID, categories []models.ProfileCategory) error {
	if _, err := s.Get(ctx, tenantID, profileID); err != nil {
		return err
	}
	seen := make(map[uuid.UUID]bool, len(categories))
	for i, pc := range categories {
		if pc.ExpectedPct < 0 || pc.ExpectedPct > 100 {
			return errors.ValidationError(fmt.Sprintf("category %d: expected_pct must be within 0..100", i), nil)
		}
		if seen[pc.CategoryID] {
			return errors.ValidationError(fmt.Sprintf("category %s listed twice", pc.CategoryID), nil)
		}
		seen[pc.CategoryID] = true
	}
	if err := s.repos.Profiles.ReplaceCategories(ctx, tenantID, profileID, categories); err != nil {
		return errors.DatabaseError("failed to replace profile categories", err).WithOperation("ReplaceCategories")
	}
	return nil
}

func (s *profileServiceImpl) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	categories, err := s.repos.Categories.List(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to list categories", err).WithOperation("ListCategories")
	}
	return categories, nil
}

func (s *profileServiceImpl) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return errors.ValidationError("category name is required", nil)
	}
	if err := s.repos.Categories.Create(ctx, category); err != nil {
		return errors.DatabaseError("failed to create category", err).WithOperation("CreateCategory")
	}
	return nil
}
