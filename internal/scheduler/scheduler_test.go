package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/models"
)

type fakeTenantRepo struct {
	tenants []models.Tenant
	err     error
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	for i := range f.tenants {
		if f.tenants[i].ID == id {
			return &f.tenants[i], nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (f *fakeTenantRepo) ListActive(ctx context.Context) ([]models.Tenant, error) {
	return f.tenants, f.err
}

func newTestScheduler(tenants *fakeTenantRepo, jobs ...Job) *Scheduler {
	s := &Scheduler{
		tenants: tenants,
		jobs:    jobs,
		logger:  logger.NewSimpleLogger(),
		stats:   make(map[string]*JobStats),
	}
	for _, job := range jobs {
		s.stats[job.Name] = &JobStats{}
	}
	return s
}

func TestRunForTenantsVisitsEveryTenant(t *testing.T) {
	tenants := &fakeTenantRepo{tenants: []models.Tenant{
		{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()},
	}}

	var visited []uuid.UUID
	job := Job{
		Name:    "visit",
		Timeout: time.Second,
		Run: func(ctx context.Context, tenantID uuid.UUID) error {
			visited = append(visited, tenantID)
			return nil
		},
	}

	s := newTestScheduler(tenants, job)
	require.NoError(t, s.runForTenants(context.Background(), job))
	assert.Len(t, visited, 3)
}

func TestTenantFailureDoesNotStopSweep(t *testing.T) {
	bad := uuid.New()
	tenants := &fakeTenantRepo{tenants: []models.Tenant{
		{ID: bad}, {ID: uuid.New()}, {ID: uuid.New()},
	}}

	var visited int
	job := Job{
		Name:    "partial",
		Timeout: time.Second,
		Run: func(ctx context.Context, tenantID uuid.UUID) error {
			visited++
			if tenantID == bad {
				return fmt.Errorf("boom")
			}
			return nil
		},
	}

	s := newTestScheduler(tenants, job)
	err := s.runForTenants(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 3, visited)
	assert.Equal(t, 1, s.Stats()["partial"].TenantFailures)
}

func TestPanicInJobIsIsolated(t *testing.T) {
	tenants := &fakeTenantRepo{tenants: []models.Tenant{
		{ID: uuid.New()}, {ID: uuid.New()},
	}}

	var visited int
	job := Job{
		Name:    "panicky",
		Timeout: time.Second,
		Run: func(ctx context.Context, tenantID uuid.UUID) error {
			visited++
			if visited == 1 {
				panic("unexpected state")
			}
			return nil
		},
	}

	s := newTestScheduler(tenants, job)
	err := s.runForTenants(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 2, visited)
}

func TestJobTimeoutPropagates(t *testing.T) {
	tenants := &fakeTenantRepo{tenants: []models.Tenant{{ID: uuid.New()}}}

	job := Job{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context, tenantID uuid.UUID) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		},
	}

	s := newTestScheduler(tenants, job)
	err := s.runForTenants(context.Background(), job)
	assert.Error(t, err)
}

func TestRunOnceUnknownJob(t *testing.T) {
	s := newTestScheduler(&fakeTenantRepo{})
	assert.Error(t, s.RunOnce(context.Background(), "no-such-job"))
}

func TestPreviousMonth(t *testing.T) {
	start, end := previousMonth(time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), end)

	// Year boundary.
	start, end = previousMonth(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}
