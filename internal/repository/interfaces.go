package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/models"
)

// ErrNotFound is returned when a row does not exist within the tenant scope.
var ErrNotFound = errors.New("not found")

// ErrDuplicateLive is returned when an enrollment insert collides with the
// partial unique index that enforces at most one live enrollment per account.
var ErrDuplicateLive = errors.New("duplicate live enrollment")

// AccountRepository defines the interface for account and order-history access.
// Every method is tenant-scoped; there is no cross-tenant read path.
type AccountRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Account, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	UpdateAssignment(ctx context.Context, tenantID, id uuid.UUID, owner, status string) error

	// OrderHistory loads the account's orders with their category lines on or
	// after the given cutoff, oldest first.
	OrderHistory(ctx context.Context, tenantID, accountID uuid.UUID, since time.Time) ([]models.Order, map[uuid.UUID][]models.OrderLine, error)

	// RevenueBetween sums the account's order totals in [start, end).
	RevenueBetween(ctx context.Context, tenantID, accountID uuid.UUID, start, end time.Time) (float64, error)

	// Benchmarks derives the tenant-wide reference order count and revenue
	// used to normalize the frequency and monetary sub-scores.
	Benchmarks(ctx context.Context, tenantID uuid.UUID, since time.Time) (orderCount float64, revenue float64, err error)

	// Ranking reads accounts joined with their metrics, sorted by a
	// whitelisted metrics column.
	Ranking(ctx context.Context, tenantID uuid.UUID, limit int, sortKey string) ([]RankedAccount, error)
}

// ProfileRepository defines the interface for segment profile access.
type ProfileRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.SegmentProfile, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]models.SegmentProfile, error)
	Create(ctx context.Context, profile *models.SegmentProfile) error
	Update(ctx context.Context, profile *models.SegmentProfile) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Approve(ctx context.Context, tenantID, id, approvedBy uuid.UUID, at time.Time) error
	CountApproved(ctx context.Context, tenantID uuid.UUID) (int, error)

	// ApprovedForSegment resolves the profile an account matches: approved,
	// same segment, most recently approved wins. Returns ErrNotFound when no
	// approved profile exists for the segment.
	ApprovedForSegment(ctx context.Context, tenantID uuid.UUID, segment string) (*models.SegmentProfile, error)

	ReplaceCategories(ctx context.Context, tenantID, profileID uuid.UUID, categories []models.ProfileCategory) error
}

// CategoryRepository defines the interface for the tenant category taxonomy.
type CategoryRepository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

// MetricsRepository owns the derived AccountMetrics row and the gap set.
type MetricsRepository interface {
	Get(ctx context.Context, tenantID, accountID uuid.UUID) (*models.AccountMetrics, error)

	// Replace overwrites the metrics row and swaps the account's gap rows in
	// one transaction so a reader never observes a half-replaced state.
	Replace(ctx context.Context, metrics *models.AccountMetrics, gaps []models.AccountCategoryGap) error

	Gaps(ctx context.Context, tenantID, accountID uuid.UUID) ([]models.AccountCategoryGap, error)
}

// ProgramRepository owns enrollment records and their revenue snapshots.
type ProgramRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ProgramAccount, error)
	GetLiveByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*models.ProgramAccount, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error)
	CountLive(ctx context.Context, tenantID uuid.UUID) (int, error)
	Create(ctx context.Context, pa *models.ProgramAccount) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to string) error
	Graduate(ctx context.Context, pa *models.ProgramAccount) error

	Snapshots(ctx context.Context, tenantID, programAccountID uuid.UUID) ([]models.RevenueSnapshot, error)
	SnapshotExists(ctx context.Context, tenantID, programAccountID uuid.UUID, periodStart, periodEnd time.Time) (bool, error)
	InsertSnapshot(ctx context.Context, s *models.RevenueSnapshot) error
	ReplaceSnapshot(ctx context.Context, s *models.RevenueSnapshot) error
	CumulativeIncremental(ctx context.Context, tenantID, programAccountID uuid.UUID) (float64, error)
}

// TierRepository owns the rev-share tier schedule.
type TierRepository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]models.RevShareTier, error)
	ReplaceAll(ctx context.Context, tenantID uuid.UUID, tiers []models.RevShareTier) error
}

// TenantRepository provides tenant iteration for the scheduler and the plan
// lookup for limit checks.
type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

// SyncRepository is the outbox for pushes to the external system.
type SyncRepository interface {
	Enqueue(ctx context.Context, item *models.SyncItem) error
	ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.SyncItem, error)
	MarkSent(ctx context.Context, tenantID, id uuid.UUID) error
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID, cause string) error
}

// UserRepository defines the interface for operator accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	Accounts   AccountRepository
	Profiles   ProfileRepository
	Categories CategoryRepository
	Metrics    MetricsRepository
	Programs   ProgramRepository
	Tiers      TierRepository
	Tenants    TenantRepository
	Sync       SyncRepository
	Users      UserRepository
	Tx         TransactionManager
}

// RankedAccount is one row of the opportunity ranking read model.
type RankedAccount struct {
	Account models.Account        `json:"account"`
	Metrics models.AccountMetrics `json:"metrics"`
}

// RankingSortKeys are the metrics columns the ranking endpoint may sort by.
var RankingSortKeys = map[string]string{
	"opportunity_score":    "m.opportunity_score",
	"category_gap_score":   "m.category_gap_score",
	"last_12m_revenue":     "m.last_12m_revenue",
	"category_penetration": "m.category_penetration",
}
