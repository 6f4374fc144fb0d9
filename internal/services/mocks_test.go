package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/distlock"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
)

// Function-field fakes for the repository interfaces. Tests set only the
// methods they expect to be called; anything else returns the zero value.

type fakeAccountRepo struct {
	getByID        func(tenantID, id uuid.UUID) (*models.Account, error)
	listIDs        func(tenantID uuid.UUID) ([]uuid.UUID, error)
	orderHistory   func(tenantID, accountID uuid.UUID, since time.Time) ([]models.Order, map[uuid.UUID][]models.OrderLine, error)
	revenueBetween func(tenantID, accountID uuid.UUID, start, end time.Time) (float64, error)
	benchmarks     func(tenantID uuid.UUID) (float64, float64, error)
	ranking        func(tenantID uuid.UUID, limit int, sortKey string) ([]repository.RankedAccount, error)
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Account, error) {
	return f.getByID(tenantID, id)
}

func (f *fakeAccountRepo) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	return f.listIDs(tenantID)
}

func (f *fakeAccountRepo) UpdateAssignment(ctx context.Context, tenantID, id uuid.UUID, owner, status string) error {
	return nil
}

func (f *fakeAccountRepo) OrderHistory(ctx context.Context, tenantID, accountID uuid.UUID, since time.Time) ([]models.Order, map[uuid.UUID][]models.OrderLine, error) {
	if f.orderHistory == nil {
		return nil, map[uuid.UUID][]models.OrderLine{}, nil
	}
	return f.orderHistory(tenantID, accountID, since)
}

func (f *fakeAccountRepo) RevenueBetween(ctx context.Context, tenantID, accountID uuid.UUID, start, end time.Time) (float64, error) {
	return f.revenueBetween(tenantID, accountID, start, end)
}

func (f *fakeAccountRepo) Benchmarks(ctx context.Context, tenantID uuid.UUID, since time.Time) (float64, float64, error) {
	if f.benchmarks == nil {
		return 10, 100000, nil
	}
	return f.benchmarks(tenantID)
}

func (f *fakeAccountRepo) Ranking(ctx context.Context, tenantID uuid.UUID, limit int, sortKey string) ([]repository.RankedAccount, error) {
	return f.ranking(tenantID, limit, sortKey)
}

type fakeProfileRepo struct {
	approvedForSegment func(tenantID uuid.UUID, segment string) (*models.SegmentProfile, error)
	getByID            func(tenantID, id uuid.UUID) (*models.SegmentProfile, error)
	approve            func(tenantID, id, approvedBy uuid.UUID) error
	countApproved      func(tenantID uuid.UUID) (int, error)
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.SegmentProfile, error) {
	if f.getByID == nil {
		return nil, repository.ErrNotFound
	}
	return f.getByID(tenantID, id)
}

func (f *fakeProfileRepo) List(ctx context.Context, tenantID uuid.UUID) ([]models.SegmentProfile, error) {
	return nil, nil
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.SegmentProfile) error { return nil }
func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.SegmentProfile) error { return nil }
func (f *fakeProfileRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error         { return nil }

func (f *fakeProfileRepo) Approve(ctx context.Context, tenantID, id, approvedBy uuid.UUID, at time.Time) error {
	return f.approve(tenantID, id, approvedBy)
}

func (f *fakeProfileRepo) CountApproved(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if f.countApproved == nil {
		return 0, nil
	}
	return f.countApproved(tenantID)
}

func (f *fakeProfileRepo) ApprovedForSegment(ctx context.Context, tenantID uuid.UUID, segment string) (*models.SegmentProfile, error) {
	if f.approvedForSegment == nil {
		return nil, repository.ErrNotFound
	}
	return f.approvedForSegment(tenantID, segment)
}

func (f *fakeProfileRepo) ReplaceCategories(ctx context.Context, tenantID, profileID uuid.UUID, categories []models.ProfileCategory) error {
	return nil
}

type fakeMetricsRepo struct {
	get      func(tenantID, accountID uuid.UUID) (*models.AccountMetrics, error)
	gaps     func(tenantID, accountID uuid.UUID) ([]models.AccountCategoryGap, error)
	replace  func(metrics *models.AccountMetrics, gaps []models.AccountCategoryGap) error
	replaced []*models.AccountMetrics
}

func (f *fakeMetricsRepo) Get(ctx context.Context, tenantID, accountID uuid.UUID) (*models.AccountMetrics, error) {
	if f.get == nil {
		return nil, repository.ErrNotFound
	}
	return f.get(tenantID, accountID)
}

func (f *fakeMetricsRepo) Replace(ctx context.Context, metrics *models.AccountMetrics, gaps []models.AccountCategoryGap) error {
	f.replaced = append(f.replaced, metrics)
	if f.replace == nil {
		return nil
	}
	return f.replace(metrics, gaps)
}

func (f *fakeMetricsRepo) Gaps(ctx context.Context, tenantID, accountID uuid.UUID) ([]models.AccountCategoryGap, error) {
	if f.gaps == nil {
		return nil, nil
	}
	return f.gaps(tenantID, accountID)
}

type fakeProgramRepo struct {
	getByID          func(tenantID, id uuid.UUID) (*models.ProgramAccount, error)
	getLiveByAccount func(tenantID, accountID uuid.UUID) (*models.ProgramAccount, error)
	listByStatus     func(tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error)
	countLive        func(tenantID uuid.UUID) (int, error)
	create           func(pa *models.ProgramAccount) error
	updateStatus     func(tenantID, id uuid.UUID, from, to string) error
	graduate         func(pa *models.ProgramAccount) error
	snapshots        func(tenantID, programAccountID uuid.UUID) ([]models.RevenueSnapshot, error)
	snapshotExists   func(tenantID, programAccountID uuid.UUID, start, end time.Time) (bool, error)
	insertSnapshot   func(s *models.RevenueSnapshot) error
	replaceSnapshot  func(s *models.RevenueSnapshot) error
	cumulative       func(tenantID, programAccountID uuid.UUID) (float64, error)
}

func (f *fakeProgramRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ProgramAccount, error) {
	return f.getByID(tenantID, id)
}

func (f *fakeProgramRepo) GetLiveByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*models.ProgramAccount, error) {
	if f.getLiveByAccount == nil {
		return nil, repository.ErrNotFound
	}
	return f.getLiveByAccount(tenantID, accountID)
}

func (f *fakeProgramRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses ...string) ([]models.ProgramAccount, error) {
	return f.listByStatus(tenantID, statuses...)
}

func (f *fakeProgramRepo) CountLive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if f.countLive == nil {
		return 0, nil
	}
	return f.countLive(tenantID)
}

func (f *fakeProgramRepo) Create(ctx context.Context, pa *models.ProgramAccount) error {
	return f.create(pa)
}

func (f *fakeProgramRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to string) error {
	return f.updateStatus(tenantID, id, from, to)
}

func (f *fakeProgramRepo) Graduate(ctx context.Context, pa *models.ProgramAccount) error {
	return f.graduate(pa)
}

func (f *fakeProgramRepo) Snapshots(ctx context.Context, tenantID, programAccountID uuid.UUID) ([]models.RevenueSnapshot, error) {
	if f.snapshots == nil {
		return nil, nil
	}
	return f.snapshots(tenantID, programAccountID)
}

func (f *fakeProgramRepo) SnapshotExists(ctx context.Context, tenantID, programAccountID uuid.UUID, start, end time.Time) (bool, error) {
	if f.snapshotExists == nil {
		return false, nil
	}
	return f.snapshotExists(tenantID, programAccountID, start, end)
}

func (f *fakeProgramRepo) InsertSnapshot(ctx context.Context, s *models.RevenueSnapshot) error {
	return f.insertSnapshot(s)
}

func (f *fakeProgramRepo) ReplaceSnapshot(ctx context.Context, s *models.RevenueSnapshot) error {
	return f.replaceSnapshot(s)
}

func (f *fakeProgramRepo) CumulativeIncremental(ctx context.Context, tenantID, programAccountID uuid.UUID) (float64, error) {
	if f.cumulative == nil {
		return 0, nil
	}
	return f.cumulative(tenantID, programAccountID)
}

type fakeTierRepo struct {
	list func(tenantID uuid.UUID) ([]models.RevShareTier, error)
}

func (f *fakeTierRepo) List(ctx context.Context, tenantID uuid.UUID) ([]models.RevShareTier, error) {
	if f.list == nil {
		// A single unbounded band so tests that exercise other concerns
		// always resolve a tier.
		return []models.RevShareTier{{TenantID: tenantID, MinRevenue: 0, ShareRate: 0.04}}, nil
	}
	return f.list(tenantID)
}

func (f *fakeTierRepo) ReplaceAll(ctx context.Context, tenantID uuid.UUID, tiers []models.RevShareTier) error {
	return nil
}

type fakeTenantRepo struct {
	tenant *models.Tenant
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return f.tenant, nil
}

func (f *fakeTenantRepo) ListActive(ctx context.Context) ([]models.Tenant, error) {
	return []models.Tenant{*f.tenant}, nil
}

type fakeSyncRepo struct {
	listPending func(tenantID uuid.UUID, limit int) ([]models.SyncItem, error)
	enqueued    []*models.SyncItem
	sent        []uuid.UUID
	failed      map[uuid.UUID]string
}

func (f *fakeSyncRepo) Enqueue(ctx context.Context, item *models.SyncItem) error {
	f.enqueued = append(f.enqueued, item)
	return nil
}

func (f *fakeSyncRepo) ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.SyncItem, error) {
	if f.listPending == nil {
		return nil, nil
	}
	return f.listPending(tenantID, limit)
}

func (f *fakeSyncRepo) MarkSent(ctx context.Context, tenantID, id uuid.UUID) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSyncRepo) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, cause string) error {
	if f.failed == nil {
		f.failed = map[uuid.UUID]string{}
	}
	f.failed[id] = cause
	return nil
}

type fakeCategoryRepo struct {
	categories []models.Category
	created    []*models.Category
}

func (f *fakeCategoryRepo) List(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	f.created = append(f.created, category)
	return nil
}

// fakeTxManager runs the transaction body against the same repositories.
type fakeTxManager struct {
	repos *repository.Repositories
}

func (f *fakeTxManager) WithTransaction(ctx context.Context, fn func(*repository.Repositories) error) error {
	return fn(f.repos)
}

// fakeLocker always grants the lock unless told otherwise.
type fakeLocker struct {
	denied bool
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if f.denied {
		return nil, distlock.ErrNotAcquired
	}
	return func(context.Context) error { return nil }, nil
}

func testRepos(accounts *fakeAccountRepo, profiles *fakeProfileRepo, metrics *fakeMetricsRepo,
	programs *fakeProgramRepo, tiers *fakeTierRepo, tenants *fakeTenantRepo, sync *fakeSyncRepo) *repository.Repositories {
	repos := &repository.Repositories{
		Accounts:   accounts,
		Profiles:   profiles,
		Categories: &fakeCategoryRepo{},
		Metrics:    metrics,
		Programs:   programs,
		Tiers:      tiers,
		Tenants:    tenants,
		Sync:       sync,
	}
	repos.Tx = &fakeTxManager{repos: repos}
	return repos
}
