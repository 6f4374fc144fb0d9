package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// metricsRepository implements MetricsRepository
type metricsRepository struct {
	db dbExecutor
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db dbExecutor) MetricsRepository {
	return &metricsRepository{db: db}
}

// Get retrieves the metrics snapshot for an account
func (r *metricsRepository) Get(ctx context.Context, tenantID, accountID uuid.UUID) (*models.AccountMetrics, error) {
	query := `
		SELECT account_id, tenant_id, last_12m_revenue, last_3m_revenue, yoy_growth_rate,
		       category_count, category_penetration, category_gap_score, opportunity_score,
		       matched_profile_id, computed_at
		FROM account_metrics WHERE tenant_id = $1 AND account_id = $2
	`

	m := &models.AccountMetrics{}
	err := r.db.QueryRowContext(ctx, query, tenantID, accountID).Scan(
		&m.AccountID, &m.TenantID, &m.Last12mRevenue, &m.Last3mRevenue, &m.YoYGrowthRate,
		&m.CategoryCount, &m.CategoryPenetration, &m.CategoryGapScore, &m.OpportunityScore,
		&m.MatchedProfileID, &m.ComputedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account metrics: %w", err)
	}

	return m, nil
}

// Replace overwrites the metrics row and regenerates the gap set. The delete
// and inserts must run inside the same transaction as this call (the service
// wraps it in WithTransaction) so a reader never sees zero gaps mid-swap.
func (r *metricsRepository) Replace(ctx context.Context, metrics *models.AccountMetrics, gaps []models.AccountCategoryGap) error {
	metrics.ComputedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO account_metrics (account_id, tenant_id, last_12m_revenue, last_3m_revenue, yoy_growth_rate,
			category_count, category_penetration, category_gap_score, opportunity_score,
			matched_profile_id, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id)
		DO UPDATE SET
			last_12m_revenue = $3,
			last_3m_revenue = $4,
			yoy_growth_rate = $5,
			category_count = $6,
			category_penetration = $7,
			category_gap_score = $8,
			opportunity_score = $9,
			matched_profile_id = $10,
			computed_at = $11
	`, metrics.AccountID, metrics.TenantID, metrics.Last12mRevenue, metrics.Last3mRevenue,
		metrics.YoYGrowthRate, metrics.CategoryCount, metrics.CategoryPenetration,
		metrics.CategoryGapScore, metrics.OpportunityScore, metrics.MatchedProfileID, metrics.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert account metrics: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM account_category_gaps WHERE tenant_id = $1 AND account_id = $2`,
		metrics.TenantID, metrics.AccountID)
	if err != nil {
		return fmt.Errorf("failed to delete stale gaps: %w", err)
	}

	for _, g := range gaps {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO account_category_gaps (account_id, tenant_id, category_id, expected_pct, actual_pct, gap_pct, estimated_opportunity, is_required)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, metrics.AccountID, metrics.TenantID, g.CategoryID, g.ExpectedPct, g.ActualPct, g.GapPct, g.EstimatedOpportunity, g.IsRequired)
		if err != nil {
			return fmt.Errorf("failed to insert gap row: %w", err)
		}
	}

	return nil
}

// Gaps returns the persisted gap rows for an account, widest gap first
func (r *metricsRepository) Gaps(ctx context.Context, tenantID, accountID uuid.UUID) ([]models.AccountCategoryGap, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, tenant_id, category_id, expected_pct, actual_pct, gap_pct, estimated_opportunity, is_required
		FROM account_category_gaps
		WHERE tenant_id = $1 AND account_id = $2
		ORDER BY estimated_opportunity DESC
	`, tenantID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gaps: %w", err)
	}
	defer rows.Close()

	var gaps []models.AccountCategoryGap
	for rows.Next() {
		var g models.AccountCategoryGap
		if err := rows.Scan(&g.AccountID, &g.TenantID, &g.CategoryID, &g.ExpectedPct, &g.ActualPct, &g.GapPct, &g.EstimatedOpportunity, &g.IsRequired); err != nil {
			return nil, fmt.Errorf("failed to scan gap: %w", err)
		}
		gaps = append(gaps, g)
	}

	return gaps, rows.Err()
}
