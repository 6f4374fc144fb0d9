package models

import (
	"time"

	"github.com/google/uuid"
)

// ProfileStatus represents segment profile status values
type ProfileStatus string

const (
	ProfileDraft    ProfileStatus = "draft"
	ProfileApproved ProfileStatus = "approved"
)

// SegmentProfile is an Ideal Customer Profile for a segment: a target
// percentage distribution over categories. Only approved profiles participate
// in scoring; drafts are visible but inert.
type SegmentProfile struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	TenantID         uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Segment          string     `json:"segment" db:"segment"`
	Name             string     `json:"name" db:"name"`
	MinAnnualRevenue float64    `json:"min_annual_revenue" db:"min_annual_revenue"`
	Status           string     `json:"status" db:"status"`
	ApprovedBy       *uuid.UUID `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`

	Categories []ProfileCategory `json:"categories,omitempty" db:"-"`
}

// IsApproved returns true if the profile participates in scoring
func (p *SegmentProfile) IsApproved() bool {
	return p.Status == string(ProfileApproved)
}

// ProfileCategory is one target category within a profile. ExpectedPct is in
// [0,100]; the per-profile sum is not required to reach 100 because a profile
// may enumerate only part of the catalog. Importance weights the category in
// the mix sub-score (default 1.0, roughly 0.5-2.0).
type ProfileCategory struct {
	ProfileID   uuid.UUID `json:"profile_id" db:"profile_id"`
	CategoryID  uuid.UUID `json:"category_id" db:"category_id"`
	ExpectedPct float64   `json:"expected_pct" db:"expected_pct"`
	Importance  float64   `json:"importance" db:"importance"`
	IsRequired  bool      `json:"is_required" db:"is_required"`
	Notes       string    `json:"notes" db:"notes"`
	Position    int       `json:"position" db:"position"`
}

// RevShareTier is one revenue band of the fee schedule. Bands are contiguous
// and ordered; lookup is by revenue falling within [MinRevenue, MaxRevenue).
// The top tier has MaxRevenue nil, meaning unbounded.
type RevShareTier struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	MinRevenue   float64   `json:"min_revenue" db:"min_revenue"`
	MaxRevenue   *float64  `json:"max_revenue" db:"max_revenue"`
	ShareRate    float64   `json:"share_rate" db:"share_rate"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
}

// Contains reports whether revenue falls inside this tier's band.
func (t *RevShareTier) Contains(revenue float64) bool {
	if revenue < t.MinRevenue {
		return false
	}
	return t.MaxRevenue == nil || revenue < *t.MaxRevenue
}
