package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// SyncResult reports one drain of the outbox.
type SyncResult struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// syncServiceImpl implements SyncService. Recompute enqueues into the outbox;
// this service pushes pending items to the configured endpoint and records
// per-item outcomes. A failed push stays pending until its attempt budget is
// spent, at which point the repository marks it failed.
type syncServiceImpl struct {
	repos  *repository.Repositories
	cfg    *config.Config
	client *http.Client
	logger logger.Logger
}

// newSyncService creates a new sync service implementation
func newSyncService(repos *repository.Repositories, cfg *config.Config) SyncService {
	return &syncServiceImpl{
		repos:  repos,
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.NewSimpleLogger(),
	}
}

// Drain pushes up to limit pending items. Individual failures never stop the
// drain.
func (s *syncServiceImpl) Drain(ctx context.Context, tenantID uuid.UUID, limit int) (*SyncResult, error) {
	result := &SyncResult{}
	if !s.cfg.HasSyncEndpoint() {
		// Nothing to push to; items stay pending until an endpoint appears.
		return result, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	items, err := s.repos.Sync.ListPending(ctx, tenantID, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list pending sync items", err).WithOperation("Drain")
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := s.push(ctx, item.Payload); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, err))
			if markErr := s.repos.Sync.MarkFailed(ctx, tenantID, item.ID, err.Error()); markErr != nil {
				s.logger.Error("failed to record sync failure", markErr, "item", item.ID)
			}
			continue
		}
		if err := s.repos.Sync.MarkSent(ctx, tenantID, item.ID); err != nil {
			s.logger.Error("failed to mark sync item sent", err, "item", item.ID)
			continue
		}
		result.Sent++
	}
	return result, nil
}

func (s *syncServiceImpl) push(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SyncEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.SyncAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.SyncAPIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push rejected with status %d", resp.StatusCode)
	}
	return nil
}
