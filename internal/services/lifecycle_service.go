package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/lifecycle"
	"github.com/fieldstone/opportunity-engine/internal/limits"
	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
)

// LifecycleResult reports one evaluation sweep over a tenant's enrollments.
type LifecycleResult struct {
	Evaluated int      `json:"evaluated"`
	Graduated int      `json:"graduated"`
	AtRisk    int      `json:"at_risk"`
	Recovered int      `json:"recovered"`
	Errors    []string `json:"errors,omitempty"`
}

// SnapshotBatch reports one snapshot generation run.
type SnapshotBatch struct {
	Created  int      `json:"created"`
	Replaced int      `json:"replaced"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// lifecycleServiceImpl implements LifecycleService
type lifecycleServiceImpl struct {
	repos  *repository.Repositories
	cfg    lifecycle.Config
	logger logger.Logger
}

// newLifecycleService creates a new lifecycle service implementation
func newLifecycleService(repos *repository.Repositories) LifecycleService {
	return &lifecycleServiceImpl{
		repos:  repos,
		cfg:    lifecycle.DefaultConfig(),
		logger: logger.NewSimpleLogger(),
	}
}

// Enroll creates a live enrollment for the account. The baseline is the
// trailing 12 months of revenue as of enrollment and is never recomputed.
// The share rate recorded here is the band the baseline fell in, kept for
// reporting; snapshot fees re-resolve the band against each period's revenue.
func (s *lifecycleServiceImpl) Enroll(ctx context.Context, tenantID, accountID, enrolledBy uuid.UUID, targets models.EnrollmentTargets) (*models.ProgramAccount, error) {
	if _, err := s.repos.Accounts.GetByID(ctx, tenantID, accountID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("account not found", err)
		}
		return nil, errors.DatabaseError("failed to load account", err).WithOperation("Enroll")
	}

	if _, err := s.repos.Programs.GetLiveByAccount(ctx, tenantID, accountID); err == nil {
		return nil, errors.AlreadyEnrolled("account already holds a live enrollment")
	} else if err != repository.ErrNotFound {
		return nil, errors.DatabaseError("failed to check live enrollment", err).WithOperation("Enroll")
	}

	tenant, err := s.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load tenant", err).WithOperation("Enroll")
	}
	live, err := s.repos.Programs.CountLive(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to count live enrollments", err).WithOperation("Enroll")
	}
	if err := limits.CheckEnrollment(limits.Plan(tenant.Plan), live); err != nil {
		return nil, err
	}

	now := time.Now()
	baselineStart := now.AddDate(-1, 0, 0)
	baseline, err := s.repos.Accounts.RevenueBetween(ctx, tenantID, accountID, baselineStart, now)
	if err != nil {
		return nil, errors.DatabaseError("failed to measure baseline revenue", err).WithOperation("Enroll")
	}

	tiers, err := s.repos.Tiers.List(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load tier schedule", err).WithOperation("Enroll")
	}
	tier, err := lifecycle.TierFor(tiers, baseline)
	if err != nil {
		return nil, err
	}

	pa := &models.ProgramAccount{
		TenantID:                 tenantID,
		AccountID:                accountID,
		EnrolledBy:               enrolledBy,
		EnrolledAt:               now,
		BaselineStart:            baselineStart,
		BaselineEnd:              now,
		BaselineRevenue:          baseline,
		ShareRate:                tier.ShareRate,
		Status:                   string(models.ProgramActive),
		TargetPenetration:        targets.TargetPenetration,
		TargetIncrementalRevenue: targets.TargetIncrementalRevenue,
		TargetDurationMonths:     targets.TargetDurationMonths,
		GraduationCriteria:       string(targets.GraduationCriteria),
	}

	// The current purchased-category count is frozen on the record so the
	// graduation packet can report movement since enrollment.
	if metrics, err := s.repos.Metrics.Get(ctx, tenantID, accountID); err == nil {
		count := metrics.CategoryCount
		pa.ICPCategoriesAtEnrollment = &count
	} else if err != repository.ErrNotFound {
		return nil, errors.DatabaseError("failed to load metrics", err).WithOperation("Enroll")
	}

	if err := s.repos.Programs.Create(ctx, pa); err != nil {
		if err == repository.ErrDuplicateLive {
			// A concurrent enroll won the live slot between our check and the
			// insert; the partial unique index caught it.
			return nil, errors.AlreadyEnrolled("account already holds a live enrollment")
		}
		return nil, errors.DatabaseError("failed to create enrollment", err).WithOperation("Enroll")
	}
	s.logger.Info("account enrolled", "account", accountID, "baseline", baseline, "share_rate", tier.ShareRate)
	return pa, nil
}

// GetProgram returns one enrollment record.
func (s *lifecycleServiceImpl) GetProgram(ctx context.Context, tenantID, programID uuid.UUID) (*models.ProgramAccount, error) {
	pa, err := s.repos.Programs.GetByID(ctx, tenantID, programID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("program account not found", err)
		}
		return nil, errors.DatabaseError("failed to load program account", err).WithOperation("GetProgram")
	}
	return pa, nil
}

// ListPrograms returns enrollments, optionally filtered by status.
func (s *lifecycleServiceImpl) ListPrograms(ctx context.Context, tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error) {
	if len(statuses) == 0 {
		statuses = append(append([]string{}, models.LiveStatuses...), string(models.ProgramGraduated))
	}
	for _, status := range statuses {
		if !validStatus(status) {
			return nil, errors.InvalidInput(fmt.Sprintf("unknown status %q", status), nil)
		}
	}
	programs, err := s.repos.Programs.ListByStatus(ctx, tenantID, statuses...)
	if err != nil {
		return nil, errors.DatabaseError("failed to list program accounts", err).WithOperation("ListPrograms")
	}
	return programs, nil
}

// EvaluateLifecycle checks every active and at-risk enrollment for graduation
// and decline. Per-enrollment failures are recorded and the sweep continues.
func (s *lifecycleServiceImpl) EvaluateLifecycle(ctx context.Context, tenantID uuid.UUID) (*LifecycleResult, error) {
	programs, err := s.repos.Programs.ListByStatus(ctx, tenantID,
		string(models.ProgramActive), string(models.ProgramAtRisk))
	if err != nil {
		return nil, errors.DatabaseError("failed to list enrollments", err).WithOperation("EvaluateLifecycle")
	}

	result := &LifecycleResult{}
	for i := range programs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		pa := &programs[i]
		result.Evaluated++
		if err := s.evaluateOne(ctx, pa, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pa.ID, err))
			s.logger.Error("lifecycle evaluation failed", err, "program", pa.ID)
		}
	}
	s.logger.Info("lifecycle sweep finished", "tenant", tenantID,
		"evaluated", result.Evaluated, "graduated", result.Graduated, "at_risk", result.AtRisk)
	return result, nil
}

func (s *lifecycleServiceImpl) evaluateOne(ctx context.Context, pa *models.ProgramAccount, result *LifecycleResult) error {
	now := time.Now()
	progress := lifecycle.Progress{
		ElapsedDays: int(now.Sub(pa.EnrolledAt).Hours() / 24),
	}

	metrics, err := s.repos.Metrics.Get(ctx, pa.TenantID, pa.AccountID)
	if err != nil && err != repository.ErrNotFound {
		return err
	}
	if metrics != nil {
		progress.Penetration = metrics.CategoryPenetration
	}

	cumulative, err := s.repos.Programs.CumulativeIncremental(ctx, pa.TenantID, pa.ID)
	if err != nil {
		return err
	}
	progress.CumulativeIncremental = cumulative

	check := lifecycle.EvaluateGraduation(pa, progress, s.cfg)
	if check.Graduated {
		if err := s.graduate(ctx, pa, progress, metrics, check, now); err != nil {
			return err
		}
		result.Graduated++
		return nil
	}

	snapshots, err := s.repos.Programs.Snapshots(ctx, pa.TenantID, pa.ID)
	if err != nil {
		return err
	}
	atRisk := lifecycle.DetectAtRisk(snapshots, s.cfg)

	switch {
	case atRisk && pa.Status == string(models.ProgramActive):
		if err := s.repos.Programs.UpdateStatus(ctx, pa.TenantID, pa.ID,
			string(models.ProgramActive), string(models.ProgramAtRisk)); err != nil {
			return err
		}
		result.AtRisk++
	case !atRisk && pa.Status == string(models.ProgramAtRisk):
		if err := s.repos.Programs.UpdateStatus(ctx, pa.TenantID, pa.ID,
			string(models.ProgramAtRisk), string(models.ProgramActive)); err != nil {
			return err
		}
		result.Recovered++
	}
	return nil
}

// graduate freezes the outcome packet onto the record and seals it.
func (s *lifecycleServiceImpl) graduate(ctx context.Context, pa *models.ProgramAccount, progress lifecycle.Progress, metrics *models.AccountMetrics, check lifecycle.GraduationCheck, now time.Time) error {
	var graduationRevenue float64
	var achieved *int
	if metrics != nil {
		graduationRevenue = metrics.Last12mRevenue
		if metrics.MatchedProfileID != nil {
			var err error
			achieved, err = s.achievedCategories(ctx, pa, *metrics.MatchedProfileID)
			if err != nil {
				return err
			}
		}
	}

	notes := graduationNotes(check)
	duration := progress.ElapsedDays
	cumulative := progress.CumulativeIncremental
	penetration := progress.Penetration

	pa.Status = string(models.ProgramGraduated)
	pa.GraduatedAt = &now
	pa.GraduationNotes = &notes
	pa.GraduationRevenue = &graduationRevenue
	pa.IncrementalRevenue = &cumulative
	pa.EnrollmentDurationDays = &duration
	pa.ICPCategoriesAchieved = achieved
	pa.GraduationPenetration = &penetration

	if err := s.repos.Programs.Graduate(ctx, pa); err != nil {
		return err
	}
	s.logger.Info("enrollment graduated", "program", pa.ID, "notes", notes)
	return nil
}

// achievedCategories resolves how many of the matched profile's key
// categories the account covers at graduation: required or above-default
// importance, with no open gap row. Nil when the profile no longer exists.
func (s *lifecycleServiceImpl) achievedCategories(ctx context.Context, pa *models.ProgramAccount, profileID uuid.UUID) (*int, error) {
	profile, err := s.repos.Profiles.GetByID(ctx, pa.TenantID, profileID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	gaps, err := s.repos.Metrics.Gaps(ctx, pa.TenantID, pa.AccountID)
	if err != nil {
		return nil, err
	}
	achieved := lifecycle.AchievedCategories(profile.Categories, gaps)
	return &achieved, nil
}

func graduationNotes(check lifecycle.GraduationCheck) string {
	var met []string
	if check.PenetrationMet {
		met = append(met, "penetration target met")
	}
	if check.IncrementalMet {
		met = append(met, "incremental revenue target met")
	}
	if check.DurationMet {
		met = append(met, "target duration reached")
	}
	return strings.Join(met, "; ")
}

// GenerateSnapshots measures one period for every active and at-risk
// enrollment. The (program, period) pair is the idempotency key: existing
// snapshots are skipped, or corrected in place when force is set.
func (s *lifecycleServiceImpl) GenerateSnapshots(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time, force bool) (*SnapshotBatch, error) {
	if !periodEnd.After(periodStart) {
		return nil, errors.InvalidInput("period end must be after period start", nil)
	}

	programs, err := s.repos.Programs.ListByStatus(ctx, tenantID,
		string(models.ProgramActive), string(models.ProgramAtRisk))
	if err != nil {
		return nil, errors.DatabaseError("failed to list enrollments", err).WithOperation("GenerateSnapshots")
	}

	tiers, err := s.repos.Tiers.List(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load tier schedule", err).WithOperation("GenerateSnapshots")
	}

	batch := &SnapshotBatch{}
	for i := range programs {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		pa := &programs[i]
		if err := s.snapshotOne(ctx, pa, tiers, periodStart, periodEnd, force, batch); err != nil {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", pa.ID, err))
			s.logger.Error("snapshot generation failed", err, "program", pa.ID)
		}
	}
	return batch, nil
}

// snapshotOne measures one period for one enrollment. The fee rate comes from
// the tier band the period's revenue falls in, so an account that crosses a
// band boundary mid-program is billed at the rate its current volume earns.
func (s *lifecycleServiceImpl) snapshotOne(ctx context.Context, pa *models.ProgramAccount, tiers []models.RevShareTier, periodStart, periodEnd time.Time, force bool, batch *SnapshotBatch) error {
	exists, err := s.repos.Programs.SnapshotExists(ctx, pa.TenantID, pa.ID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	if exists && !force {
		batch.Skipped++
		return nil
	}

	periodRevenue, err := s.repos.Accounts.RevenueBetween(ctx, pa.TenantID, pa.AccountID, periodStart, periodEnd)
	if err != nil {
		return err
	}

	tier, err := lifecycle.TierFor(tiers, periodRevenue)
	if err != nil {
		return err
	}

	baseline := lifecycle.ProratedBaseline(pa.BaselineRevenue, periodStart, periodEnd)
	incremental := lifecycle.IncrementalRevenue(periodRevenue, baseline)

	snapshot := &models.RevenueSnapshot{
		TenantID:           pa.TenantID,
		ProgramAccountID:   pa.ID,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		PeriodRevenue:      periodRevenue,
		BaselineComparison: baseline,
		IncrementalRevenue: incremental,
		FeeAmount:          incremental * tier.ShareRate,
	}

	if exists {
		if err := s.repos.Programs.ReplaceSnapshot(ctx, snapshot); err != nil {
			return err
		}
		batch.Replaced++
		return nil
	}
	if err := s.repos.Programs.InsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	batch.Created++
	return nil
}

// Snapshots returns the audit trail for one enrollment, oldest first.
func (s *lifecycleServiceImpl) Snapshots(ctx context.Context, tenantID, programID uuid.UUID) ([]models.RevenueSnapshot, error) {
	if _, err := s.GetProgram(ctx, tenantID, programID); err != nil {
		return nil, err
	}
	snapshots, err := s.repos.Programs.Snapshots(ctx, tenantID, programID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load snapshots", err).WithOperation("Snapshots")
	}
	return snapshots, nil
}

// Transition applies a manual status change after validating it against the
// state machine. Graduated records reject every transition.
func (s *lifecycleServiceImpl) Transition(ctx context.Context, tenantID, programID uuid.UUID, to models.ProgramStatus) (*models.ProgramAccount, error) {
	pa, err := s.GetProgram(ctx, tenantID, programID)
	if err != nil {
		return nil, err
	}

	from := models.ProgramStatus(pa.Status)
	if from == models.ProgramGraduated {
		return nil, errors.GraduatedImmutable("graduated enrollments accept no further changes")
	}
	if !lifecycle.CanTransition(from, to) {
		return nil, errors.ValidationError(fmt.Sprintf("cannot transition from %s to %s", from, to), nil)
	}

	if err := s.repos.Programs.UpdateStatus(ctx, tenantID, programID, string(from), string(to)); err != nil {
		if err == repository.ErrNotFound {
			// The guarded update found no row in the expected state: the
			// record moved underneath us.
			return nil, errors.Conflict("program status changed concurrently", nil)
		}
		return nil, errors.DatabaseError("failed to update status", err).WithOperation("Transition")
	}

	pa.Status = string(to)
	return pa, nil
}

// ListTiers returns the tenant's rev-share schedule.
func (s *lifecycleServiceImpl) ListTiers(ctx context.Context, tenantID uuid.UUID) ([]models.RevShareTier, error) {
	tiers, err := s.repos.Tiers.List(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load tiers", err).WithOperation("ListTiers")
	}
	return tiers, nil
}

// ReplaceTiers swaps the schedule wholesale after validating coverage.
func (s *lifecycleServiceImpl) ReplaceTiers(ctx context.Context, tenantID uuid.UUID, tiers []models.RevShareTier) error {
	if err := lifecycle.ValidateTiers(tiers); err != nil {
		return err
	}
	if err := s.repos.Tiers.ReplaceAll(ctx, tenantID, tiers); err != nil {
		return errors.DatabaseError("failed to replace tiers", err).WithOperation("ReplaceTiers")
	}
	return nil
}

func validStatus(status string) bool {
	switch models.ProgramStatus(status) {
	case models.ProgramCandidate, models.ProgramActive, models.ProgramAtRisk,
		models.ProgramPaused, models.ProgramGraduated:
		return true
	}
	return false
}
