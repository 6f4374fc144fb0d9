package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/distlock"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// Services contains all application services
type Services struct {
	Auth      AuthService
	Recompute RecomputeService
	Lifecycle LifecycleService
	Profiles  ProfileService
	Sync      SyncService
}

// RecomputeService owns the derived metrics: recompute, read, and ranking.
type RecomputeService interface {
	// RecomputeAccount rebuilds the account's metrics row and gap set from its
	// trailing order history. Concurrent recomputes of the same account are
	// serialized by a per-account lock.
	RecomputeAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*RecomputeResult, error)

	// RecomputeAllAccounts recomputes every account in the tenant, continuing
	// past per-account failures.
	RecomputeAllAccounts(ctx context.Context, tenantID uuid.UUID) (*BatchResult, error)

	AccountMetrics(ctx context.Context, tenantID, accountID uuid.UUID) (*models.AccountMetrics, []models.AccountCategoryGap, error)
	Ranking(ctx context.Context, tenantID uuid.UUID, limit int, sortKey string) ([]repository.RankedAccount, error)
}

// LifecycleService owns enrollments: creation, evaluation, snapshots, and
// manual transitions.
type LifecycleService interface {
	Enroll(ctx context.Context, tenantID, accountID, enrolledBy uuid.UUID, targets models.EnrollmentTargets) (*models.ProgramAccount, error)
	GetProgram(ctx context.Context, tenantID, programID uuid.UUID) (*models.ProgramAccount, error)
	ListPrograms(ctx context.Context, tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error)

	// EvaluateLifecycle runs graduation and at-risk checks over every active
	// and at-risk enrollment in the tenant.
	EvaluateLifecycle(ctx context.Context, tenantID uuid.UUID) (*LifecycleResult, error)

	// GenerateSnapshots measures one period for every active and at-risk
	// enrollment. Existing (program, period) snapshots are skipped unless
	// force is set, in which case they are corrected in place.
	GenerateSnapshots(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time, force bool) (*SnapshotBatch, error)

	Snapshots(ctx context.Context, tenantID, programID uuid.UUID) ([]models.RevenueSnapshot, error)
	Transition(ctx context.Context, tenantID, programID uuid.UUID, to models.ProgramStatus) (*models.ProgramAccount, error)

	ListTiers(ctx context.Context, tenantID uuid.UUID) ([]models.RevShareTier, error)
	ReplaceTiers(ctx context.Context, tenantID uuid.UUID, tiers []models.RevShareTier) error
}

// ProfileService owns the segment profile catalog and approvals.
type ProfileService interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]models.SegmentProfile, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.SegmentProfile, error)
	Create(ctx context.Context, profile *models.SegmentProfile) error
	Update(ctx context.Context, profile *models.SegmentProfile) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Approve(ctx context.Context, tenantID, id, approvedBy uuid.UUID) (*models.SegmentProfile, error)
	ReplaceCategories(ctx context.Context, tenantID, profileID uuid.UUID, categories []models.ProfileCategory) error

	ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

// SyncService drains the outbox of recomputed metrics toward the external
// system of record.
type SyncService interface {
	Drain(ctx context.Context, tenantID uuid.UUID, limit int) (*SyncResult, error)
}

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	RefreshToken(ctx context.Context, token string) (*LoginResponse, error)
}

// LoginResponse is returned on successful authentication
type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// RegisterRequest carries a new operator signup
type RegisterRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required,min=12"`
	Role     string    `json:"role"`
}

// NewServices creates a new Services instance with all dependencies
func NewServices(db *sql.DB, cfg *config.Config, locker distlock.Locker) *Services {
	repos := repository.NewRepositories(db)

	return &Services{
		Auth:      newAuthService(repos, cfg),
		Recompute: newRecomputeService(repos, locker),
		Lifecycle: newLifecycleService(repos),
		Profiles:  newProfileService(repos),
		Sync:      newSyncService(repos, cfg),
	}
}
