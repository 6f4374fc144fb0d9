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

// programRepository implements ProgramRepository
type programRepository struct {
	db dbExecutor
}

// NewProgramRepository creates a new program repository
func NewProgramRepository(db dbExecutor) ProgramRepository {
	return &programRepository{db: db}
}

const programColumns = `id, tenant_id, account_id, enrolled_by, enrolled_at, baseline_start, baseline_end,
	baseline_revenue, share_rate, status, target_penetration, target_incremental_revenue,
	target_duration_months, graduation_criteria, graduated_at, graduation_notes, graduation_revenue,
	incremental_revenue, enrollment_duration_days, icp_categories_at_enrollment,
	icp_categories_achieved, graduation_penetration, created_at, updated_at`

func scanProgram(row interface{ Scan(...interface{}) error }) (*models.ProgramAccount, error) {
	pa := &models.ProgramAccount{}
	err := row.Scan(
		&pa.ID, &pa.TenantID, &pa.AccountID, &pa.EnrolledBy, &pa.EnrolledAt,
		&pa.BaselineStart, &pa.BaselineEnd, &pa.BaselineRevenue, &pa.ShareRate, &pa.Status,
		&pa.TargetPenetration, &pa.TargetIncrementalRevenue, &pa.TargetDurationMonths,
		&pa.GraduationCriteria, &pa.GraduatedAt, &pa.GraduationNotes, &pa.GraduationRevenue,
		&pa.IncrementalRevenue, &pa.EnrollmentDurationDays, &pa.ICPCategoriesAtEnrollment,
		&pa.ICPCategoriesAchieved, &pa.GraduationPenetration, &pa.CreatedAt, &pa.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pa, nil
}

// GetByID retrieves a program account by ID
func (r *programRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ProgramAccount, error) {
	query := `SELECT ` + programColumns + ` FROM program_accounts WHERE tenant_id = $1 AND id = $2`
	pa, err := scanProgram(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get program account: %w", err)
	}
	return pa, nil
}

// GetLiveByAccount returns the single non-graduated enrollment for an
// account, or ErrNotFound when the account holds no live slot.
func (r *programRepository) GetLiveByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*models.ProgramAccount, error) {
	query := `
		SELECT ` + programColumns + `
		FROM program_accounts
		WHERE tenant_id = $1 AND account_id = $2 AND status = ANY($3)
	`
	pa, err := scanProgram(r.db.QueryRowContext(ctx, query, tenantID, accountID, pq.Array(models.LiveStatuses)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get live enrollment: %w", err)
	}
	return pa, nil
}

// ListByStatus returns enrollments in any of the given statuses
func (r *programRepository) ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error) {
	query := `
		SELECT ` + programColumns + `
		FROM program_accounts
		WHERE tenant_id = $1 AND status = ANY($2)
		ORDER BY enrolled_at
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to list program accounts: %w", err)
	}
	defer rows.Close()

	var programs []models.ProgramAccount
	for rows.Next() {
		pa, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program account: %w", err)
		}
		programs = append(programs, *pa)
	}

	return programs, rows.Err()
}

// CountLive counts live enrollments for plan limit checks
func (r *programRepository) CountLive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM program_accounts WHERE tenant_id = $1 AND status = ANY($2)`,
		tenantID, pq.Array(models.LiveStatuses)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count live enrollments: %w", err)
	}
	return count, nil
}

// Create inserts a new enrollment. The partial unique index on
// (tenant_id, account_id) over live statuses backs the at-most-one-live
// invariant at write time.
func (r *programRepository) Create(ctx context.Context, pa *models.ProgramAccount) error {
	if pa.ID == uuid.Nil {
		pa.ID = uuid.New()
	}
	now := time.Now()
	pa.CreatedAt = now
	pa.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO program_accounts (id, tenant_id, account_id, enrolled_by, enrolled_at,
			baseline_start, baseline_end, baseline_revenue, share_rate, status,
			target_penetration, target_incremental_revenue, target_duration_months,
			graduation_criteria, icp_categories_at_enrollment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, pa.ID, pa.TenantID, pa.AccountID, pa.EnrolledBy, pa.EnrolledAt,
		pa.BaselineStart, pa.BaselineEnd, pa.BaselineRevenue, pa.ShareRate, pa.Status,
		pa.TargetPenetration, pa.TargetIncrementalRevenue, pa.TargetDurationMonths,
		pa.GraduationCriteria, pa.ICPCategoriesAtEnrollment, now, now)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == "ux_program_accounts_live" {
			return ErrDuplicateLive
		}
		return fmt.Errorf("failed to create program account: %w", err)
	}
	return nil
}

// UpdateStatus performs a guarded status transition: the update only applies
// when the row is still in the expected prior state.
func (r *programRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE program_accounts SET status = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`, tenantID, id, from, to, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update program status: %w", err)
	}
	return requireRow(result)
}

// Graduate freezes the graduation fields and seals the record. The WHERE
// clause excludes already-graduated rows so frozen fields can never be
// rewritten.
func (r *programRepository) Graduate(ctx context.Context, pa *models.ProgramAccount) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE program_accounts
		SET status = $3, graduated_at = $4, graduation_notes = $5, graduation_revenue = $6,
		    incremental_revenue = $7, enrollment_duration_days = $8, icp_categories_achieved = $9,
		    graduation_penetration = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2 AND status <> $3
	`, pa.TenantID, pa.ID, string(models.ProgramGraduated), pa.GraduatedAt, pa.GraduationNotes,
		pa.GraduationRevenue, pa.IncrementalRevenue, pa.EnrollmentDurationDays,
		pa.ICPCategoriesAchieved, pa.GraduationPenetration, time.Now())
	if err != nil {
		return fmt.Errorf("failed to graduate program account: %w", err)
	}
	return requireRow(result)
}

// Snapshots returns all snapshots for a program account, oldest first
func (r *programRepository) Snapshots(ctx context.Context, tenantID, programAccountID uuid.UUID) ([]models.RevenueSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, program_account_id, period_start, period_end,
		       period_revenue, baseline_comparison, incremental_revenue, fee_amount, created_at
		FROM revenue_snapshots
		WHERE tenant_id = $1 AND program_account_id = $2
		ORDER BY period_start
	`, tenantID, programAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.RevenueSnapshot
	for rows.Next() {
		var s models.RevenueSnapshot
		err := rows.Scan(&s.ID, &s.TenantID, &s.ProgramAccountID, &s.PeriodStart, &s.PeriodEnd,
			&s.PeriodRevenue, &s.BaselineComparison, &s.IncrementalRevenue, &s.FeeAmount, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// SnapshotExists checks the idempotency key (program account, period)
func (r *programRepository) SnapshotExists(ctx context.Context, tenantID, programAccountID uuid.UUID, periodStart, periodEnd time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM revenue_snapshots
			WHERE tenant_id = $1 AND program_account_id = $2 AND period_start = $3 AND period_end = $4
		)
	`, tenantID, programAccountID, periodStart, periodEnd).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}
	return exists, nil
}

// InsertSnapshot appends a new snapshot row
func (r *programRepository) InsertSnapshot(ctx context.Context, s *models.RevenueSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revenue_snapshots (id, tenant_id, program_account_id, period_start, period_end,
			period_revenue, baseline_comparison, incremental_revenue, fee_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.TenantID, s.ProgramAccountID, s.PeriodStart, s.PeriodEnd,
		s.PeriodRevenue, s.BaselineComparison, s.IncrementalRevenue, s.FeeAmount, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ReplaceSnapshot overwrites an existing period's figures in place. Only the
// explicit force path calls this; the row keeps its identity.
func (r *programRepository) ReplaceSnapshot(ctx context.Context, s *models.RevenueSnapshot) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE revenue_snapshots
		SET period_revenue = $5, baseline_comparison = $6, incremental_revenue = $7, fee_amount = $8
		WHERE tenant_id = $1 AND program_account_id = $2 AND period_start = $3 AND period_end = $4
	`, s.TenantID, s.ProgramAccountID, s.PeriodStart, s.PeriodEnd,
		s.PeriodRevenue, s.BaselineComparison, s.IncrementalRevenue, s.FeeAmount)
	if err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return requireRow(result)
}

// CumulativeIncremental sums incremental revenue across all snapshots
func (r *programRepository) CumulativeIncremental(ctx context.Context, tenantID, programAccountID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(incremental_revenue), 0)
		FROM revenue_snapshots
		WHERE tenant_id = $1 AND program_account_id = $2
	`, tenantID, programAccountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum incremental revenue: %w", err)
	}
	return total, nil
}
