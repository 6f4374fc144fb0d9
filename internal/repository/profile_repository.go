package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// profileRepository implements ProfileRepository
type profileRepository struct {
	db dbExecutor
}

// NewProfileRepository creates a new segment profile repository
func NewProfileRepository(db dbExecutor) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, tenant_id, segment, name, min_annual_revenue, status, approved_by, approved_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.SegmentProfile, error) {
	p := &models.SegmentProfile{}
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Segment, &p.Name, &p.MinAnnualRevenue,
		&p.Status, &p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID retrieves a profile with its categories
func (r *profileRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.SegmentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM segment_profiles WHERE tenant_id = $1 AND id = $2`
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	categories, err := r.categories(ctx, id)
	if err != nil {
		return nil, err
	}
	profile.Categories = categories
	return profile, nil
}

// List returns all profiles for a tenant, without category detail
func (r *profileRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.SegmentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM segment_profiles WHERE tenant_id = $1 ORDER BY segment, created_at`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.SegmentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	return profiles, rows.Err()
}

// Create inserts a new draft profile
func (r *profileRepository) Create(ctx context.Context, profile *models.SegmentProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Status == "" {
		profile.Status = string(models.ProfileDraft)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segment_profiles (id, tenant_id, segment, name, min_annual_revenue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, profile.ID, profile.TenantID, profile.Segment, profile.Name, profile.MinAnnualRevenue, profile.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update modifies a profile's editable fields
func (r *profileRepository) Update(ctx context.Context, profile *models.SegmentProfile) error {
	profile.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE segment_profiles
		SET segment = $3, name = $4, min_annual_revenue = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`, profile.TenantID, profile.ID, profile.Segment, profile.Name, profile.MinAnnualRevenue, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return requireRow(result)
}

// Delete removes a profile; profile_categories cascades via FK
func (r *profileRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM segment_profiles WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return requireRow(result)
}

// Approve transitions a draft profile to approved
func (r *profileRepository) Approve(ctx context.Context, tenantID, id, approvedBy uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE segment_profiles
		SET status = $3, approved_by = $4, approved_at = $5, updated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND status = $6
	`, tenantID, id, string(models.ProfileApproved), approvedBy, at, string(models.ProfileDraft))
	if err != nil {
		return fmt.Errorf("failed to approve profile: %w", err)
	}
	return requireRow(result)
}

// CountApproved counts approved profiles for plan limit checks
func (r *profileRepository) CountApproved(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM segment_profiles WHERE tenant_id = $1 AND status = $2`,
		tenantID, string(models.ProfileApproved)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approved profiles: %w", err)
	}
	return count, nil
}

// ApprovedForSegment resolves segment matching: most recently approved wins
func (r *profileRepository) ApprovedForSegment(ctx context.Context, tenantID uuid.UUID, segment string) (*models.SegmentProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM segment_profiles
		WHERE tenant_id = $1 AND segment = $2 AND status = $3
		ORDER BY approved_at DESC
		LIMIT 1
	`
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, tenantID, segment, string(models.ProfileApproved)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve profile for segment: %w", err)
	}

	categories, err := r.categories(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	profile.Categories = categories
	return profile, nil
}

// ReplaceCategories swaps a profile's category targets wholesale
func (r *profileRepository) ReplaceCategories(ctx context.Context, tenantID, profileID uuid.UUID, categories []models.ProfileCategory) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE segment_profiles SET updated_at = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, profileID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch profile: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM profile_categories WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("failed to clear profile categories: %w", err)
	}

	for i, pc := range categories {
		importance := pc.Importance
		if importance <= 0 {
			importance = 1.0
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO profile_categories (profile_id, category_id, expected_pct, importance, is_required, notes, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, profileID, pc.CategoryID, pc.ExpectedPct, importance, pc.IsRequired, pc.Notes, i)
		if err != nil {
			return fmt.Errorf("failed to insert profile category: %w", err)
		}
	}

	return nil
}

func (r *profileRepository) categories(ctx context.Context, profileID uuid.UUID) ([]models.ProfileCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT profile_id, category_id, expected_pct, importance, is_required, notes, position
		FROM profile_categories
		WHERE profile_id = $1
		ORDER BY position
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile categories: %w", err)
	}
	defer rows.Close()

	var categories []models.ProfileCategory
	for rows.Next() {
		var pc models.ProfileCategory
		if err := rows.Scan(&pc.ProfileID, &pc.CategoryID, &pc.ExpectedPct, &pc.Importance, &pc.IsRequired, &pc.Notes, &pc.Position); err != nil {
			return nil, fmt.Errorf("failed to scan profile category: %w", err)
		}
		categories = append(categories, pc)
	}

	return categories, rows.Err()
}

// requireRow converts a zero-rows-affected result into ErrNotFound
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// categoryRepository implements CategoryRepository
type categoryRepository struct {
	db dbExecutor
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db dbExecutor) CategoryRepository {
	return &categoryRepository{db: db}
}

// List returns the tenant's category taxonomy
func (r *categoryRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM categories WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// Create inserts a new category; name uniqueness is enforced per tenant
func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, category.ID, category.TenantID, category.Name, category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}
