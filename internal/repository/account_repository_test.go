package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevenueBetween(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	tenantID, accountID := uuid.New(), uuid.New()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_amount\), 0\)`).
		WithArgs(tenantID, accountID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(187500.50))

	revenue, err := repo.RevenueBetween(context.Background(), tenantID, accountID, start, end)
	require.NoError(t, err)
	assert.Equal(t, 187500.50, revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRankingUsesWhitelistedColumn(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	tenantID := uuid.New()

	// An unknown sort key falls back to opportunity_score instead of being
	// interpolated into the query.
	mock.ExpectQuery(`ORDER BY m\.opportunity_score DESC`).
		WithArgs(tenantID, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "name", "segment", "region", "assigned_owner", "status", "created_at",
			"account_id", "m_tenant_id", "last_12m_revenue", "last_3m_revenue", "yoy_growth_rate",
			"category_count", "category_penetration", "category_gap_score", "opportunity_score",
			"matched_profile_id", "computed_at",
		}))

	_, err := repo.Ranking(context.Background(), tenantID, 0, "opportunity_score; DROP TABLE accounts")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderHistoryEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	tenantID, accountID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM orders`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "account_id", "ordered_at", "total_amount"}))

	orders, lines, err := repo.OrderHistory(context.Background(), tenantID, accountID, time.Now().AddDate(-2, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, lines)
	// No second query for lines when there are no orders.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssignmentNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`UPDATE accounts SET assigned_owner`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAssignment(context.Background(), uuid.New(), uuid.New(), "pat", "active")
	assert.ErrorIs(t, err, ErrNotFound)
}
