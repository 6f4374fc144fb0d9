package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// tierRepository implements TierRepository
type tierRepository struct {
	db dbExecutor
}

// NewTierRepository creates a new rev-share tier repository
func NewTierRepository(db dbExecutor) TierRepository {
	return &tierRepository{db: db}
}

// List returns the tenant's tier schedule in band order
func (r *tierRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.RevShareTier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, min_revenue, max_revenue, share_rate, display_order
		FROM rev_share_tiers
		WHERE tenant_id = $1
		ORDER BY display_order, min_revenue
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []models.RevShareTier
	for rows.Next() {
		var t models.RevShareTier
		if err := rows.Scan(&t.ID, &t.TenantID, &t.MinRevenue, &t.MaxRevenue, &t.ShareRate, &t.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}

	return tiers, rows.Err()
}

// ReplaceAll swaps the tenant's tier schedule wholesale. Tier edits take
// effect for the next recompute cycle; already-persisted snapshots keep the
// fees they were computed with.
func (r *tierRepository) ReplaceAll(ctx context.Context, tenantID uuid.UUID, tiers []models.RevShareTier) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rev_share_tiers WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to clear tiers: %w", err)
	}

	for i, t := range tiers {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO rev_share_tiers (id, tenant_id, min_revenue, max_revenue, share_rate, display_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, tenantID, t.MinRevenue, t.MaxRevenue, t.ShareRate, i)
		if err != nil {
			return fmt.Errorf("failed to insert tier: %w", err)
		}
	}

	return nil
}
