package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// tenantRepository implements TenantRepository
type tenantRepository struct {
	db dbExecutor
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db dbExecutor) TenantRepository {
	return &tenantRepository{db: db}
}

// GetByID retrieves a tenant
func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, plan, active, created_at FROM tenants WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.Plan, &t.Active, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// ListActive returns the tenants the scheduler iterates
func (r *tenantRepository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, plan, active, created_at FROM tenants WHERE active = true ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Plan, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// syncRepository implements SyncRepository
type syncRepository struct {
	db dbExecutor
}

// NewSyncRepository creates a new sync outbox repository
func NewSyncRepository(db dbExecutor) SyncRepository {
	return &syncRepository{db: db}
}

// Enqueue inserts or refreshes the pending push for an account
func (r *syncRepository) Enqueue(ctx context.Context, item *models.SyncItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.Status = string(models.SyncPending)
	item.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_outbox (id, tenant_id, account_id, payload, attempts, last_error, status, updated_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $6)
		ON CONFLICT (tenant_id, account_id)
		DO UPDATE SET payload = $4, attempts = 0, last_error = '', status = $5, updated_at = $6
	`, item.ID, item.TenantID, item.AccountID, item.Payload, item.Status, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	return nil
}

// ListPending returns pending items oldest first
func (r *syncRepository) ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.SyncItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, account_id, payload, attempts, last_error, status, updated_at
		FROM sync_outbox
		WHERE tenant_id = $1 AND status = $2
		ORDER BY updated_at
		LIMIT $3
	`, tenantID, string(models.SyncPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sync items: %w", err)
	}
	defer rows.Close()

	var items []models.SyncItem
	for rows.Next() {
		var item models.SyncItem
		if err := rows.Scan(&item.ID, &item.TenantID, &item.AccountID, &item.Payload,
			&item.Attempts, &item.LastError, &item.Status, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// MarkSent records a successful push
func (r *syncRepository) MarkSent(ctx context.Context, tenantID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = $3, last_error = '', updated_at = $4
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, string(models.SyncSent), time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark sync item sent: %w", err)
	}
	return requireRow(result)
}

// MarkFailed bumps the attempt counter and keeps the item pending until it
// exhausts its retries.
func (r *syncRepository) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, cause string) error {
	const maxAttempts = 5
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_outbox
		SET attempts = attempts + 1,
		    last_error = $3,
		    status = CASE WHEN attempts + 1 >= $4 THEN $5 ELSE status END,
		    updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, cause, maxAttempts, string(models.SyncFailed), time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark sync item failed: %w", err)
	}
	return requireRow(result)
}
