package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

func newSyncForTest(sync *fakeSyncRepo, cfg *config.Config) *syncServiceImpl {
	repos := testRepos(&fakeAccountRepo{}, &fakeProfileRepo{}, &fakeMetricsRepo{},
		&fakeProgramRepo{}, &fakeTierRepo{}, &fakeTenantRepo{tenant: &models.Tenant{}}, sync)
	return &syncServiceImpl{
		repos:  repos,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger.NewSimpleLogger(),
	}
}

func pendingItems(tenantID uuid.UUID, n int) []models.SyncItem {
	items := make([]models.SyncItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, models.SyncItem{
			ID:        uuid.New(),
			TenantID:  tenantID,
			AccountID: uuid.New(),
			Payload:   models.SyncPayload{"opportunity_score": float64(40 + i)},
			Status:    string(models.SyncPending),
		})
	}
	return items
}

func TestDrainPushesPendingItems(t *testing.T) {
	tenantID := uuid.New()
	items := pendingItems(tenantID, 2)

	var gotAuth string
	var gotPayloads []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotPayloads = append(gotPayloads, payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sync := &fakeSyncRepo{
		listPending: func(_ uuid.UUID, _ int) ([]models.SyncItem, error) { return items, nil },
	}
	svc := newSyncForTest(sync, &config.Config{SyncEndpoint: server.URL, SyncAPIKey: "sk-test"})

	result, err := svc.Drain(context.Background(), tenantID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	require.Len(t, gotPayloads, 2)
	assert.Equal(t, 40.0, gotPayloads[0]["opportunity_score"])
	assert.ElementsMatch(t, []uuid.UUID{items[0].ID, items[1].ID}, sync.sent)
}

func TestDrainRecordsRejectedPushes(t *testing.T) {
	tenantID := uuid.New()
	items := pendingItems(tenantID, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sync := &fakeSyncRepo{
		listPending: func(_ uuid.UUID, _ int) ([]models.SyncItem, error) { return items, nil },
	}
	svc := newSyncForTest(sync, &config.Config{SyncEndpoint: server.URL})

	result, err := svc.Drain(context.Background(), tenantID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, sync.failed[items[0].ID], "status 502")
}

func TestDrainWithoutEndpointLeavesItemsPending(t *testing.T) {
	listed := false
	sync := &fakeSyncRepo{
		listPending: func(_ uuid.UUID, _ int) ([]models.SyncItem, error) {
			listed = true
			return nil, nil
		},
	}
	svc := newSyncForTest(sync, &config.Config{})

	result, err := svc.Drain(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.False(t, listed, "outbox should not be read when no endpoint is configured")
}

func TestDrainClampsLimit(t *testing.T) {
	var gotLimit int
	sync := &fakeSyncRepo{
		listPending: func(_ uuid.UUID, limit int) ([]models.SyncItem, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc := newSyncForTest(sync, &config.Config{SyncEndpoint: "http://localhost:1"})

	_, err := svc.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)

	_, err = svc.Drain(context.Background(), uuid.New(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

var _ repository.SyncRepository = (*fakeSyncRepo)(nil)
