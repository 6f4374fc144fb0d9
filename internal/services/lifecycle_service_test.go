package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
)

func enrollTargets() models.EnrollmentTargets {
	return models.EnrollmentTargets{
		TargetPenetration:        0.6,
		TargetIncrementalRevenue: 50000,
		TargetDurationMonths:     12,
		GraduationCriteria:       models.GraduateAny,
	}
}

func standardTiers(tenantID uuid.UUID) []models.RevShareTier {
	max1 := 100000.0
	max2 := 500000.0
	return []models.RevShareTier{
		{TenantID: tenantID, MinRevenue: 0, MaxRevenue: &max1, ShareRate: 0.05},
		{TenantID: tenantID, MinRevenue: 100000, MaxRevenue: &max2, ShareRate: 0.04},
		{TenantID: tenantID, MinRevenue: 500000, MaxRevenue: nil, ShareRate: 0.03},
	}
}

func TestEnrollFreezesBaselineAndShareRate(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()
	userID := uuid.New()

	var created *models.ProgramAccount
	programs := &fakeProgramRepo{
		create: func(pa *models.ProgramAccount) error {
			created = pa
			return nil
		},
	}
	metrics := &fakeMetricsRepo{
		get: func(_, _ uuid.UUID) (*models.AccountMetrics, error) {
			return &models.AccountMetrics{CategoryCount: 4}, nil
		},
	}
	repos := testRepos(
		&fakeAccountRepo{
			getByID: func(_, id uuid.UUID) (*models.Account, error) {
				return &models.Account{ID: id, TenantID: tenantID, Segment: "mid_market"}, nil
			},
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) {
				return 150000, nil
			},
		},
		&fakeProfileRepo{},
		metrics,
		programs,
		&fakeTierRepo{list: func(uuid.UUID) ([]models.RevShareTier, error) {
			return standardTiers(tenantID), nil
		}},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID, Plan: "growth"}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	pa, err := svc.Enroll(context.Background(), tenantID, accountID, userID, enrollTargets())
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, 150000.0, pa.BaselineRevenue)
	assert.Equal(t, 0.04, pa.ShareRate, "150k baseline falls in the second band")
	assert.Equal(t, string(models.ProgramActive), pa.Status)
	require.NotNil(t, pa.ICPCategoriesAtEnrollment)
	assert.Equal(t, 4, *pa.ICPCategoriesAtEnrollment)
	assert.Equal(t, userID, pa.EnrolledBy)
	assert.WithinDuration(t, pa.EnrolledAt, pa.BaselineEnd, time.Second)
	assert.WithinDuration(t, pa.EnrolledAt.AddDate(-1, 0, 0), pa.BaselineStart, time.Second)
}

func TestEnrollRejectsSecondLiveEnrollment(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repos := testRepos(
		&fakeAccountRepo{
			getByID: func(_, id uuid.UUID) (*models.Account, error) {
				return &models.Account{ID: id, TenantID: tenantID}, nil
			},
		},
		&fakeProfileRepo{},
		&fakeMetricsRepo{},
		&fakeProgramRepo{
			getLiveByAccount: func(_, _ uuid.UUID) (*models.ProgramAccount, error) {
				return &models.ProgramAccount{Status: string(models.ProgramPaused)}, nil
			},
		},
		&fakeTierRepo{},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID, Plan: "growth"}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	_, err := svc.Enroll(context.Background(), tenantID, accountID, uuid.New(), enrollTargets())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyEnrolled))
}

func TestEnrollConcurrentInsertReportsAlreadyEnrolled(t *testing.T) {
	tenantID := uuid.New()

	// The pre-insert check sees no live enrollment, but the insert loses the
	// race and hits the unique index.
	repos := testRepos(
		&fakeAccountRepo{
			getByID: func(_, id uuid.UUID) (*models.Account, error) {
				return &models.Account{ID: id, TenantID: tenantID}, nil
			},
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) {
				return 50000, nil
			},
		},
		&fakeProfileRepo{},
		&fakeMetricsRepo{},
		&fakeProgramRepo{
			create: func(*models.ProgramAccount) error {
				return repository.ErrDuplicateLive
			},
		},
		&fakeTierRepo{},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID, Plan: "growth"}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	_, err := svc.Enroll(context.Background(), tenantID, uuid.New(), uuid.New(), enrollTargets())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAlreadyEnrolled))
}

func TestEnrollEnforcesPlanLimit(t *testing.T) {
	tenantID := uuid.New()

	repos := testRepos(
		&fakeAccountRepo{
			getByID: func(_, id uuid.UUID) (*models.Account, error) {
				return &models.Account{ID: id, TenantID: tenantID}, nil
			},
		},
		&fakeProfileRepo{},
		&fakeMetricsRepo{},
		&fakeProgramRepo{
			countLive: func(uuid.UUID) (int, error) { return 25, nil },
		},
		&fakeTierRepo{},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID, Plan: "starter"}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	_, err := svc.Enroll(context.Background(), tenantID, uuid.New(), uuid.New(), enrollTargets())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeLimitExceeded))
}

func TestEnrollFailsWhenNoTierCoversBaseline(t *testing.T) {
	tenantID := uuid.New()
	max1 := 100000.0

	repos := testRepos(
		&fakeAccountRepo{
			getByID: func(_, id uuid.UUID) (*models.Account, error) {
				return &models.Account{ID: id, TenantID: tenantID}, nil
			},
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) {
				return 250000, nil
			},
		},
		&fakeProfileRepo{},
		&fakeMetricsRepo{},
		&fakeProgramRepo{},
		&fakeTierRepo{list: func(uuid.UUID) ([]models.RevShareTier, error) {
			return []models.RevShareTier{
				{MinRevenue: 0, MaxRevenue: &max1, ShareRate: 0.05},
			}, nil
		}},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID, Plan: "enterprise"}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	_, err := svc.Enroll(context.Background(), tenantID, uuid.New(), uuid.New(), enrollTargets())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeTierGap))
}

func TestEvaluateLifecycleGraduatesAndFreezesPacket(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()
	programID := uuid.New()
	profileID := uuid.New()

	// The profile names two required categories and one weighted above the
	// default; one required category still carries an open gap.
	requiredMet := uuid.New()
	requiredGapped := uuid.New()
	important := uuid.New()
	ordinary := uuid.New()

	active := models.ProgramAccount{
		ID:                       programID,
		TenantID:                 tenantID,
		AccountID:                accountID,
		EnrolledAt:               time.Now().AddDate(0, -3, 0),
		BaselineRevenue:          120000,
		ShareRate:                0.04,
		Status:                   string(models.ProgramActive),
		TargetPenetration:        0.5,
		TargetIncrementalRevenue: 40000,
		TargetDurationMonths:     12,
		GraduationCriteria:       string(models.GraduateAny),
	}

	var sealed *models.ProgramAccount
	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{active}, nil
		},
		cumulative: func(_, _ uuid.UUID) (float64, error) { return 45000, nil },
		graduate: func(pa *models.ProgramAccount) error {
			sealed = pa
			return nil
		},
	}
	repos := testRepos(
		&fakeAccountRepo{},
		&fakeProfileRepo{
			getByID: func(_, id uuid.UUID) (*models.SegmentProfile, error) {
				return &models.SegmentProfile{
					ID: id, TenantID: tenantID,
					Categories: []models.ProfileCategory{
						{CategoryID: requiredMet, IsRequired: true, Importance: 1.0},
						{CategoryID: requiredGapped, IsRequired: true, Importance: 1.0},
						{CategoryID: important, Importance: 1.5},
						{CategoryID: ordinary, Importance: 1.0},
					},
				}, nil
			},
		},
		&fakeMetricsRepo{
			get: func(_, _ uuid.UUID) (*models.AccountMetrics, error) {
				return &models.AccountMetrics{
					Last12mRevenue:      180000,
					CategoryCount:       6,
					CategoryPenetration: 0.55,
					MatchedProfileID:    &profileID,
				}, nil
			},
			gaps: func(_, _ uuid.UUID) ([]models.AccountCategoryGap, error) {
				return []models.AccountCategoryGap{
					{CategoryID: requiredGapped, GapPct: 12, IsRequired: true},
				}, nil
			},
		},
		programs,
		&fakeTierRepo{},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}},
		&fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	result, err := svc.EvaluateLifecycle(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Graduated)

	require.NotNil(t, sealed)
	assert.Equal(t, string(models.ProgramGraduated), sealed.Status)
	require.NotNil(t, sealed.GraduatedAt)
	require.NotNil(t, sealed.GraduationRevenue)
	assert.Equal(t, 180000.0, *sealed.GraduationRevenue)
	require.NotNil(t, sealed.IncrementalRevenue)
	assert.Equal(t, 45000.0, *sealed.IncrementalRevenue)
	// The achieved count covers the profile's key categories with no open
	// gap: one required category met plus the above-default-importance one.
	// The gapped required category and the ordinary one do not count.
	require.NotNil(t, sealed.ICPCategoriesAchieved)
	assert.Equal(t, 2, *sealed.ICPCategoriesAchieved)
	require.NotNil(t, sealed.GraduationNotes)
	assert.Contains(t, *sealed.GraduationNotes, "penetration target met")
	assert.Contains(t, *sealed.GraduationNotes, "incremental revenue target met")
}

func TestEvaluateLifecycleFlagsDecline(t *testing.T) {
	tenantID := uuid.New()
	programID := uuid.New()

	active := models.ProgramAccount{
		ID:                       programID,
		TenantID:                 tenantID,
		AccountID:                uuid.New(),
		EnrolledAt:               time.Now().AddDate(0, -4, 0),
		BaselineRevenue:          120000,
		Status:                   string(models.ProgramActive),
		TargetPenetration:        0.9,
		TargetIncrementalRevenue: 500000,
		TargetDurationMonths:     24,
		GraduationCriteria:       string(models.GraduateAll),
	}

	// Two trailing periods more than 15% under the pro-rated baseline.
	declining := []models.RevenueSnapshot{
		{PeriodStart: monthStart(-2), PeriodRevenue: 5000, BaselineComparison: 10000},
		{PeriodStart: monthStart(-1), PeriodRevenue: 5200, BaselineComparison: 10000},
	}

	var transition [2]string
	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{active}, nil
		},
		snapshots: func(_, _ uuid.UUID) ([]models.RevenueSnapshot, error) {
			return declining, nil
		},
		updateStatus: func(_, _ uuid.UUID, from, to string) error {
			transition = [2]string{from, to}
			return nil
		},
	}
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		programs, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	result, err := svc.EvaluateLifecycle(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AtRisk)
	assert.Equal(t, [2]string{"active", "at_risk"}, transition)
}

func TestEvaluateLifecycleRecoversFromAtRisk(t *testing.T) {
	tenantID := uuid.New()

	atRisk := models.ProgramAccount{
		ID:                       uuid.New(),
		TenantID:                 tenantID,
		AccountID:                uuid.New(),
		EnrolledAt:               time.Now().AddDate(0, -4, 0),
		BaselineRevenue:          120000,
		Status:                   string(models.ProgramAtRisk),
		TargetPenetration:        0.9,
		TargetIncrementalRevenue: 500000,
		TargetDurationMonths:     24,
		GraduationCriteria:       string(models.GraduateAll),
	}

	recovered := []models.RevenueSnapshot{
		{PeriodStart: monthStart(-2), PeriodRevenue: 5000, BaselineComparison: 10000},
		{PeriodStart: monthStart(-1), PeriodRevenue: 11000, BaselineComparison: 10000},
	}

	var transition [2]string
	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{atRisk}, nil
		},
		snapshots: func(_, _ uuid.UUID) ([]models.RevenueSnapshot, error) {
			return recovered, nil
		},
		updateStatus: func(_, _ uuid.UUID, from, to string) error {
			transition = [2]string{from, to}
			return nil
		},
	}
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		programs, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	result, err := svc.EvaluateLifecycle(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recovered)
	assert.Equal(t, [2]string{"at_risk", "active"}, transition)
}

func TestGenerateSnapshotsFeeFollowsPeriodTier(t *testing.T) {
	tenantID := uuid.New()
	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Enrolled in the 5% band; the period's volume lands in the 10% band.
	pa := models.ProgramAccount{
		ID:              uuid.New(),
		TenantID:        tenantID,
		AccountID:       uuid.New(),
		BaselineRevenue: 365000,
		ShareRate:       0.05,
		Status:          string(models.ProgramActive),
	}

	boundary := 100000.0
	var inserted *models.RevenueSnapshot
	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{pa}, nil
		},
		insertSnapshot: func(s *models.RevenueSnapshot) error {
			inserted = s
			return nil
		},
	}
	repos := testRepos(
		&fakeAccountRepo{
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) {
				return 150000, nil
			},
		},
		&fakeProfileRepo{}, &fakeMetricsRepo{}, programs,
		&fakeTierRepo{list: func(uuid.UUID) ([]models.RevShareTier, error) {
			return []models.RevShareTier{
				{TenantID: tenantID, MinRevenue: 0, MaxRevenue: &boundary, ShareRate: 0.05},
				{TenantID: tenantID, MinRevenue: 100000, ShareRate: 0.10},
			}, nil
		}},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	batch, err := svc.GenerateSnapshots(context.Background(), tenantID, periodStart, periodEnd, false)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Created)

	require.NotNil(t, inserted)
	// 31 days of a 365k annual baseline pro-rates to 31k.
	assert.InDelta(t, 31000, inserted.BaselineComparison, 0.01)
	assert.InDelta(t, 119000, inserted.IncrementalRevenue, 0.01)
	// The fee is billed at the rate the period's revenue earns, not the
	// band the baseline fell in at enrollment.
	assert.InDelta(t, 11900, inserted.FeeAmount, 0.01)
}

func TestGenerateSnapshotsRecordsTierGap(t *testing.T) {
	tenantID := uuid.New()
	boundary := 100000.0

	pa := models.ProgramAccount{
		ID: uuid.New(), TenantID: tenantID, AccountID: uuid.New(),
		BaselineRevenue: 80000, ShareRate: 0.05, Status: string(models.ProgramActive),
	}

	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{pa}, nil
		},
	}
	repos := testRepos(
		&fakeAccountRepo{
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) { return 150000, nil },
		},
		&fakeProfileRepo{}, &fakeMetricsRepo{}, programs,
		&fakeTierRepo{list: func(uuid.UUID) ([]models.RevShareTier, error) {
			// A schedule with no top band leaves the period's revenue uncovered.
			return []models.RevShareTier{
				{TenantID: tenantID, MinRevenue: 0, MaxRevenue: &boundary, ShareRate: 0.05},
			}, nil
		}},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	batch, err := svc.GenerateSnapshots(context.Background(), tenantID, monthStart(-1), monthStart(0), false)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Created)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0], "no rev-share tier covers")
}

func TestGenerateSnapshotsSkipsExistingPeriod(t *testing.T) {
	tenantID := uuid.New()
	pa := models.ProgramAccount{ID: uuid.New(), TenantID: tenantID, Status: string(models.ProgramActive)}

	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{pa}, nil
		},
		snapshotExists: func(_, _ uuid.UUID, _, _ time.Time) (bool, error) { return true, nil },
	}
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		programs, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	batch, err := svc.GenerateSnapshots(context.Background(), tenantID, monthStart(-1), monthStart(0), false)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Skipped)
	assert.Equal(t, 0, batch.Created)
}

func TestGenerateSnapshotsForceReplacesExistingPeriod(t *testing.T) {
	tenantID := uuid.New()
	pa := models.ProgramAccount{
		ID: uuid.New(), TenantID: tenantID, AccountID: uuid.New(),
		BaselineRevenue: 120000, ShareRate: 0.04, Status: string(models.ProgramActive),
	}

	replaced := false
	programs := &fakeProgramRepo{
		listByStatus: func(_ uuid.UUID, _ ...string) ([]models.ProgramAccount, error) {
			return []models.ProgramAccount{pa}, nil
		},
		snapshotExists: func(_, _ uuid.UUID, _, _ time.Time) (bool, error) { return true, nil },
		replaceSnapshot: func(*models.RevenueSnapshot) error {
			replaced = true
			return nil
		},
	}
	repos := testRepos(
		&fakeAccountRepo{
			revenueBetween: func(_, _ uuid.UUID, _, _ time.Time) (float64, error) { return 12000, nil },
		},
		&fakeProfileRepo{}, &fakeMetricsRepo{}, programs, &fakeTierRepo{},
		&fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{},
	)

	svc := newLifecycleService(repos)
	batch, err := svc.GenerateSnapshots(context.Background(), tenantID, monthStart(-1), monthStart(0), true)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Replaced)
	assert.True(t, replaced)
}

func TestGenerateSnapshotsRejectsInvertedPeriod(t *testing.T) {
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{}, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	_, err := svc.GenerateSnapshots(context.Background(), uuid.New(), monthStart(0), monthStart(-1), false)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestTransitionRejectsGraduated(t *testing.T) {
	tenantID := uuid.New()
	programID := uuid.New()

	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{
			getByID: func(_, id uuid.UUID) (*models.ProgramAccount, error) {
				return &models.ProgramAccount{ID: id, Status: string(models.ProgramGraduated)}, nil
			},
		},
		&fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	_, err := svc.Transition(context.Background(), tenantID, programID, models.ProgramPaused)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeGraduatedFrozen))
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	tenantID := uuid.New()

	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{
			getByID: func(_, id uuid.UUID) (*models.ProgramAccount, error) {
				return &models.ProgramAccount{ID: id, Status: string(models.ProgramPaused)}, nil
			},
		},
		&fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	_, err := svc.Transition(context.Background(), tenantID, uuid.New(), models.ProgramGraduated)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationError))
}

func TestTransitionReportsConcurrentChange(t *testing.T) {
	tenantID := uuid.New()

	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{
			getByID: func(_, id uuid.UUID) (*models.ProgramAccount, error) {
				return &models.ProgramAccount{ID: id, Status: string(models.ProgramActive)}, nil
			},
			updateStatus: func(_, _ uuid.UUID, _, _ string) error {
				return repository.ErrNotFound
			},
		},
		&fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{ID: tenantID}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	_, err := svc.Transition(context.Background(), tenantID, uuid.New(), models.ProgramPaused)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeConflict))
}

func TestReplaceTiersValidatesSchedule(t *testing.T) {
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{}, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{}}, &fakeSyncRepo{})

	svc := newLifecycleService(repos)
	max1 := 100000.0
	err := svc.ReplaceTiers(context.Background(), uuid.New(), []models.RevShareTier{
		{MinRevenue: 50000, MaxRevenue: &max1, ShareRate: 0.05},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationError))
}

func monthStart(offset int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
}
