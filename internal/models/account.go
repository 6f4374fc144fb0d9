package models

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a customer account tracked against a segment profile.
// Identity fields (tenant, name, segment) are set by import and treated as
// immutable; assignment and status are mutable.
type Account struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name          string    `json:"name" db:"name"`
	Segment       string    `json:"segment" db:"segment"`
	Region        string    `json:"region" db:"region"`
	AssignedOwner string    `json:"assigned_owner" db:"assigned_owner"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AccountStatus represents account status values
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// Category represents a purchasable product category. Immutable once
// referenced by a profile or an order line; name is unique per tenant.
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AccountMetrics is the derived snapshot for an account. The whole row is
// owned and overwritten by the recompute step; it is never edited directly.
// YoYGrowthRate is nil when no prior-window data exists (missing data, not
// zero growth). MatchedProfileID is nil when no approved profile matches the
// account's segment.
type AccountMetrics struct {
	AccountID           uuid.UUID  `json:"account_id" db:"account_id"`
	TenantID            uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Last12mRevenue      float64    `json:"last_12m_revenue" db:"last_12m_revenue"`
	Last3mRevenue       float64    `json:"last_3m_revenue" db:"last_3m_revenue"`
	YoYGrowthRate       *float64   `json:"yoy_growth_rate" db:"yoy_growth_rate"`
	CategoryCount       int        `json:"category_count" db:"category_count"`
	CategoryPenetration float64    `json:"category_penetration" db:"category_penetration"`
	CategoryGapScore    float64    `json:"category_gap_score" db:"category_gap_score"`
	OpportunityScore    float64    `json:"opportunity_score" db:"opportunity_score"`
	MatchedProfileID    *uuid.UUID `json:"matched_profile_id" db:"matched_profile_id"`
	ComputedAt          time.Time  `json:"computed_at" db:"computed_at"`
}

// AccountCategoryGap is one under-purchased category for an account. Rows are
// regenerated wholesale on each recompute; GapPct is always positive because
// zero-gap categories are not persisted.
type AccountCategoryGap struct {
	AccountID            uuid.UUID `json:"account_id" db:"account_id"`
	TenantID             uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CategoryID           uuid.UUID `json:"category_id" db:"category_id"`
	ExpectedPct          float64   `json:"expected_pct" db:"expected_pct"`
	ActualPct            float64   `json:"actual_pct" db:"actual_pct"`
	GapPct               float64   `json:"gap_pct" db:"gap_pct"`
	EstimatedOpportunity float64   `json:"estimated_opportunity" db:"estimated_opportunity"`
	IsRequired           bool      `json:"is_required" db:"is_required"`
}
