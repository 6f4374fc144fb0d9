package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// accountRepository implements AccountRepository
type accountRepository struct {
	db dbExecutor
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db dbExecutor) AccountRepository {
	return &accountRepository{db: db}
}

// GetByID retrieves an account by ID within the tenant scope
func (r *accountRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Account, error) {
	query := `
		SELECT id, tenant_id, name, segment, region, assigned_owner, status, created_at
		FROM accounts WHERE tenant_id = $1 AND id = $2
	`

	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, tenantID, id).Scan(
		&account.ID, &account.TenantID, &account.Name, &account.Segment,
		&account.Region, &account.AssignedOwner, &account.Status, &account.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// ListIDs returns all account IDs for a tenant
func (r *accountRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM accounts WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpdateAssignment updates the mutable assignment fields of an account
func (r *accountRepository) UpdateAssignment(ctx context.Context, tenantID, id uuid.UUID, owner, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET assigned_owner = $3, status = $4
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, owner, status)
	if err != nil {
		return fmt.Errorf("failed to update account assignment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// OrderHistory loads the account's orders with lines since the cutoff
func (r *accountRepository) OrderHistory(ctx context.Context, tenantID, accountID uuid.UUID, since time.Time) ([]models.Order, map[uuid.UUID][]models.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, account_id, ordered_at, total_amount
		FROM orders
		WHERE tenant_id = $1 AND account_id = $2 AND ordered_at >= $3
		ORDER BY ordered_at
	`, tenantID, accountID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	var orderIDs []uuid.UUID
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.TenantID, &o.AccountID, &o.OrderedAt, &o.TotalAmount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lines := make(map[uuid.UUID][]models.OrderLine)
	if len(orderIDs) == 0 {
		return orders, lines, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, category_id, amount
		FROM order_lines
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l models.OrderLine
		if err := lineRows.Scan(&l.OrderID, &l.CategoryID, &l.Amount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines[l.OrderID] = append(lines[l.OrderID], l)
	}

	return orders, lines, lineRows.Err()
}

// RevenueBetween sums order totals in [start, end)
func (r *accountRepository) RevenueBetween(ctx context.Context, tenantID, accountID uuid.UUID, start, end time.Time) (float64, error) {
	var revenue float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE tenant_id = $1 AND account_id = $2 AND ordered_at >= $3 AND ordered_at < $4
	`, tenantID, accountID, start, end).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return revenue, nil
}

// Benchmarks computes tenant-wide per-account averages used as scoring
// references. Medians would be sturdier against whales but averages keep the
// query on the hot path cheap.
func (r *accountRepository) Benchmarks(ctx context.Context, tenantID uuid.UUID, since time.Time) (float64, float64, error) {
	var orderCount, revenue float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(per_account.order_count), 0), COALESCE(AVG(per_account.revenue), 0)
		FROM (
			SELECT COUNT(*) AS order_count, SUM(total_amount) AS revenue
			FROM orders
			WHERE tenant_id = $1 AND ordered_at >= $2
			GROUP BY account_id
		) per_account
	`, tenantID, since).Scan(&orderCount, &revenue)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute benchmarks: %w", err)
	}
	return orderCount, revenue, nil
}

// Ranking reads accounts joined with metrics ordered by a whitelisted column
func (r *accountRepository) Ranking(ctx context.Context, tenantID uuid.UUID, limit int, sortKey string) ([]RankedAccount, error) {
	column, ok := RankingSortKeys[sortKey]
	if !ok {
		column = RankingSortKeys["opportunity_score"]
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	// column comes from the whitelist above, never from user input directly
	query := fmt.Sprintf(`
		SELECT a.id, a.tenant_id, a.name, a.segment, a.region, a.assigned_owner, a.status, a.created_at,
		       m.account_id, m.tenant_id, m.last_12m_revenue, m.last_3m_revenue, m.yoy_growth_rate,
		       m.category_count, m.category_penetration, m.category_gap_score, m.opportunity_score,
		       m.matched_profile_id, m.computed_at
		FROM accounts a
		JOIN account_metrics m ON m.account_id = a.id AND m.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1
		ORDER BY %s DESC
		LIMIT $2
	`, column)

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var ranked []RankedAccount
	for rows.Next() {
		var ra RankedAccount
		err := rows.Scan(
			&ra.Account.ID, &ra.Account.TenantID, &ra.Account.Name, &ra.Account.Segment,
			&ra.Account.Region, &ra.Account.AssignedOwner, &ra.Account.Status, &ra.Account.CreatedAt,
			&ra.Metrics.AccountID, &ra.Metrics.TenantID, &ra.Metrics.Last12mRevenue, &ra.Metrics.Last3mRevenue,
			&ra.Metrics.YoYGrowthRate, &ra.Metrics.CategoryCount, &ra.Metrics.CategoryPenetration,
			&ra.Metrics.CategoryGapScore, &ra.Metrics.OpportunityScore, &ra.Metrics.MatchedProfileID,
			&ra.Metrics.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked account: %w", err)
		}
		ranked = append(ranked, ra)
	}

	return ranked, rows.Err()
}
