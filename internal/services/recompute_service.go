package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/distlock"
	"github.com/fieldstone/opportunity-engine/internal/engine"
	"github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
)

// recomputeLockTTL bounds how long a crashed worker can hold an account.
const recomputeLockTTL = 2 * time.Minute

// RecomputeResult is the outcome of one account recompute.
type RecomputeResult struct {
	Metrics         models.AccountMetrics      `json:"metrics"`
	Gaps            []models.AccountCategoryGap `json:"gaps"`
	MissingRequired []uuid.UUID                `json:"missing_required,omitempty"`
}

// BatchResult reports a tenant-wide recompute run. Failed accounts do not
// stop the batch; their errors are collected.
type BatchResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// recomputeServiceImpl implements RecomputeService
type recomputeServiceImpl struct {
	repos  *repository.Repositories
	engine *engine.Engine
	locker distlock.Locker
	logger logger.Logger
}

// newRecomputeService creates a new recompute service implementation
func newRecomputeService(repos *repository.Repositories, locker distlock.Locker) RecomputeService {
	return &recomputeServiceImpl{
		repos:  repos,
		engine: engine.New(engine.DefaultConfig()),
		locker: locker,
		logger: logger.NewSimpleLogger(),
	}
}

// RecomputeAccount rebuilds the metrics snapshot and gap set for one account.
func (s *recomputeServiceImpl) RecomputeAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*RecomputeResult, error) {
	account, err := s.repos.Accounts.GetByID(ctx, tenantID, accountID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("account not found", err)
		}
		return nil, errors.DatabaseError("failed to load account", err).WithOperation("RecomputeAccount")
	}

	release, err := s.locker.Acquire(ctx, distlock.AccountKey(tenantID, accountID), recomputeLockTTL)
	if err != nil {
		if err == distlock.ErrNotAcquired {
			return nil, errors.Conflict("recompute already in progress for account", nil)
		}
		return nil, errors.ServiceError("failed to acquire recompute lock", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("failed to release recompute lock", "account", accountID)
		}
	}()

	now := time.Now()
	result, err := s.compute(ctx, account, now)
	if err != nil {
		return nil, err
	}

	metrics := models.AccountMetrics{
		AccountID:           accountID,
		TenantID:            tenantID,
		Last12mRevenue:      result.Metrics.Last12mRevenue,
		Last3mRevenue:       result.Metrics.Last3mRevenue,
		YoYGrowthRate:       result.Metrics.YoYGrowthRate,
		CategoryCount:       result.Metrics.CategoryCount,
		CategoryPenetration: result.Metrics.CategoryPenetration,
		CategoryGapScore:    result.Metrics.CategoryGapScore,
		OpportunityScore:    result.Metrics.OpportunityScore,
		MatchedProfileID:    result.Metrics.MatchedProfileID,
		ComputedAt:          now,
	}
	gaps := make([]models.AccountCategoryGap, 0, len(result.Gaps))
	for _, g := range result.Gaps {
		gaps = append(gaps, models.AccountCategoryGap{
			AccountID:            accountID,
			TenantID:             tenantID,
			CategoryID:           g.CategoryID,
			ExpectedPct:          g.ExpectedPct,
			ActualPct:            g.ActualPct,
			GapPct:               g.GapPct,
			EstimatedOpportunity: g.EstimatedOpportunity,
			IsRequired:           g.IsRequired,
		})
	}

	// Metrics swap and outbox enqueue commit together so the pushed payload
	// always matches a state that was actually stored.
	err = s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Metrics.Replace(ctx, &metrics, gaps); err != nil {
			return err
		}
		return tx.Sync.Enqueue(ctx, &models.SyncItem{
			TenantID:  tenantID,
			AccountID: accountID,
			Payload:   syncPayload(&metrics),
			Status:    string(models.SyncPending),
		})
	})
	if err != nil {
		return nil, errors.DatabaseError("failed to store recomputed metrics", err).WithOperation("RecomputeAccount")
	}

	return &RecomputeResult{
		Metrics:         metrics,
		Gaps:            gaps,
		MissingRequired: result.MissingRequired,
	}, nil
}

// RecomputeAllAccounts recomputes every account in the tenant. One bad
// account must not poison the batch, so failures are recorded and skipped.
func (s *recomputeServiceImpl) RecomputeAllAccounts(ctx context.Context, tenantID uuid.UUID) (*BatchResult, error) {
	ids, err := s.repos.Accounts.ListIDs(ctx, tenantID)
	if err != nil {
		return nil, errors.DatabaseError("failed to list accounts", err).WithOperation("RecomputeAllAccounts")
	}

	batch := &BatchResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		if _, err := s.RecomputeAccount(ctx, tenantID, id); err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", id, err))
			s.logger.Error("account recompute failed", err, "account", id)
			continue
		}
		batch.Processed++
	}

	s.logger.Info("recompute batch finished", "tenant", tenantID, "processed", batch.Processed, "failed", batch.Failed)
	return batch, nil
}

// AccountMetrics returns the stored snapshot and its gap rows.
func (s *recomputeServiceImpl) AccountMetrics(ctx context.Context, tenantID, accountID uuid.UUID) (*models.AccountMetrics, []models.AccountCategoryGap, error) {
	metrics, err := s.repos.Metrics.Get(ctx, tenantID, accountID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, errors.NotFound("no metrics computed for account", err)
		}
		return nil, nil, errors.DatabaseError("failed to load metrics", err).WithOperation("AccountMetrics")
	}
	gaps, err := s.repos.Metrics.Gaps(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, errors.DatabaseError("failed to load gaps", err).WithOperation("AccountMetrics")
	}
	return metrics, gaps, nil
}

// Ranking reads the opportunity ranking sorted by a whitelisted key.
func (s *recomputeServiceImpl) Ranking(ctx context.Context, tenantID uuid.UUID, limit int, sortKey string) ([]repository.RankedAccount, error) {
	if sortKey == "" {
		sortKey = "opportunity_score"
	}
	if _, ok := repository.RankingSortKeys[sortKey]; !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown sort key %q", sortKey), nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ranked, err := s.repos.Accounts.Ranking(ctx, tenantID, limit, sortKey)
	if err != nil {
		return nil, errors.DatabaseError("failed to read ranking", err).WithOperation("Ranking")
	}
	return ranked, nil
}

// compute loads the engine inputs and runs the pure calculation.
func (s *recomputeServiceImpl) compute(ctx context.Context, account *models.Account, now time.Time) (*engine.Result, error) {
	// Two years of history: the trailing year for the metrics themselves and
	// the year before it for the growth comparison.
	since := now.AddDate(-2, 0, 0)
	orders, lines, err := s.repos.Accounts.OrderHistory(ctx, account.TenantID, account.ID, since)
	if err != nil {
		return nil, errors.DatabaseError("failed to load order history", err).WithOperation("RecomputeAccount")
	}

	activity := engine.AccountActivity{AccountID: account.ID}
	for _, o := range orders {
		summary := engine.OrderSummary{OrderedAt: o.OrderedAt, Total: o.TotalAmount}
		for _, l := range lines[o.ID] {
			summary.Lines = append(summary.Lines, engine.LineItem{CategoryID: l.CategoryID, Amount: l.Amount})
		}
		activity.Orders = append(activity.Orders, summary)
	}

	var profile *engine.Profile
	stored, err := s.repos.Profiles.ApprovedForSegment(ctx, account.TenantID, account.Segment)
	switch {
	case err == repository.ErrNotFound:
		// No approved profile for the segment. Metrics still compute; gaps
		// and the mix signal are skipped.
	case err != nil:
		return nil, errors.DatabaseError("failed to match profile", err).WithOperation("RecomputeAccount")
	default:
		profile = &engine.Profile{ID: stored.ID, Segment: stored.Segment}
		for _, pc := range stored.Categories {
			profile.Categories = append(profile.Categories, engine.ProfileCategory{
				CategoryID:  pc.CategoryID,
				ExpectedPct: pc.ExpectedPct,
				Importance:  pc.Importance,
				IsRequired:  pc.IsRequired,
			})
		}
	}

	refCount, refRevenue, err := s.repos.Accounts.Benchmarks(ctx, account.TenantID, now.AddDate(-1, 0, 0))
	if err != nil {
		return nil, errors.DatabaseError("failed to load benchmarks", err).WithOperation("RecomputeAccount")
	}

	result := s.engine.Compute(activity, profile, engine.Benchmarks{
		ReferenceOrderCount: refCount,
		ReferenceRevenue:    refRevenue,
	}, now)
	return &result, nil
}

// syncPayload shapes the outbox document pushed to the external system.
func syncPayload(m *models.AccountMetrics) models.SyncPayload {
	payload := models.SyncPayload{
		"account_id":           m.AccountID.String(),
		"opportunity_score":    m.OpportunityScore,
		"category_gap_score":   m.CategoryGapScore,
		"category_penetration": m.CategoryPenetration,
		"last_12m_revenue":     m.Last12mRevenue,
		"computed_at":          m.ComputedAt.UTC().Format(time.RFC3339),
	}
	if m.MatchedProfileID != nil {
		payload["matched_profile_id"] = m.MatchedProfileID.String()
	}
	return payload
}
