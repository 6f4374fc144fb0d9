package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgramStatus represents program account status values
type ProgramStatus string

const (
	ProgramCandidate ProgramStatus = "candidate"
	ProgramActive    ProgramStatus = "active"
	ProgramAtRisk    ProgramStatus = "at_risk"
	ProgramPaused    ProgramStatus = "paused"
	ProgramGraduated ProgramStatus = "graduated"
)

// LiveStatuses are the program states that count as a live enrollment; at
// most one live record may exist per account.
var LiveStatuses = []string{
	string(ProgramCandidate),
	string(ProgramActive),
	string(ProgramAtRisk),
	string(ProgramPaused),
}

// GraduationCriteria selects how graduation clauses combine
type GraduationCriteria string

const (
	GraduateAny GraduationCriteria = "any"
	GraduateAll GraduationCriteria = "all"
)

// ProgramAccount is the enrollment record tracking an account's participation
// in the revenue-recovery program. BaselineRevenue is fixed at enrollment and
// never recomputed. Graduation is terminal: the graduation* fields are frozen
// when set and a graduated record accepts no further transitions.
type ProgramAccount struct {
	ID                       uuid.UUID  `json:"id" db:"id"`
	TenantID                 uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	AccountID                uuid.UUID  `json:"account_id" db:"account_id"`
	EnrolledBy               uuid.UUID  `json:"enrolled_by" db:"enrolled_by"`
	EnrolledAt               time.Time  `json:"enrolled_at" db:"enrolled_at"`
	BaselineStart            time.Time  `json:"baseline_start" db:"baseline_start"`
	BaselineEnd              time.Time  `json:"baseline_end" db:"baseline_end"`
	BaselineRevenue          float64    `json:"baseline_revenue" db:"baseline_revenue"`
	ShareRate                float64    `json:"share_rate" db:"share_rate"`
	Status                   string     `json:"status" db:"status"`
	TargetPenetration        float64    `json:"target_penetration" db:"target_penetration"`
	TargetIncrementalRevenue float64    `json:"target_incremental_revenue" db:"target_incremental_revenue"`
	TargetDurationMonths     int        `json:"target_duration_months" db:"target_duration_months"`
	GraduationCriteria       string     `json:"graduation_criteria" db:"graduation_criteria"`
	GraduatedAt              *time.Time `json:"graduated_at,omitempty" db:"graduated_at"`
	GraduationNotes          *string    `json:"graduation_notes,omitempty" db:"graduation_notes"`
	GraduationRevenue        *float64   `json:"graduation_revenue,omitempty" db:"graduation_revenue"`
	IncrementalRevenue       *float64   `json:"incremental_revenue,omitempty" db:"incremental_revenue"`
	EnrollmentDurationDays   *int       `json:"enrollment_duration_days,omitempty" db:"enrollment_duration_days"`
	ICPCategoriesAtEnrollment *int      `json:"icp_categories_at_enrollment,omitempty" db:"icp_categories_at_enrollment"`
	ICPCategoriesAchieved    *int       `json:"icp_categories_achieved,omitempty" db:"icp_categories_achieved"`
	GraduationPenetration    *float64   `json:"graduation_penetration,omitempty" db:"graduation_penetration"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at" db:"updated_at"`
}

// IsLive returns true while the enrollment occupies the account's single
// live-enrollment slot.
func (p *ProgramAccount) IsLive() bool {
	return p.Status != string(ProgramGraduated)
}

// IsGraduated returns true once the record is a frozen historical snapshot.
func (p *ProgramAccount) IsGraduated() bool {
	return p.Status == string(ProgramGraduated)
}

// RevenueSnapshot is one periodic measurement for a program account.
// Append-only: rows are never mutated after creation and form the audit trail
// for incremental-revenue accounting. IncrementalRevenue is floored at zero
// because the rev-share fee cannot be negative.
type RevenueSnapshot struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	TenantID           uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ProgramAccountID   uuid.UUID `json:"program_account_id" db:"program_account_id"`
	PeriodStart        time.Time `json:"period_start" db:"period_start"`
	PeriodEnd          time.Time `json:"period_end" db:"period_end"`
	PeriodRevenue      float64   `json:"period_revenue" db:"period_revenue"`
	BaselineComparison float64   `json:"baseline_comparison" db:"baseline_comparison"`
	IncrementalRevenue float64   `json:"incremental_revenue" db:"incremental_revenue"`
	FeeAmount          float64   `json:"fee_amount" db:"fee_amount"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// EnrollmentTargets are the operator-supplied graduation targets captured at
// enrollment time.
type EnrollmentTargets struct {
	TargetPenetration        float64            `json:"target_penetration" binding:"required,gt=0"`
	TargetIncrementalRevenue float64            `json:"target_incremental_revenue" binding:"required,gt=0"`
	TargetDurationMonths     int                `json:"target_duration_months" binding:"required,gt=0"`
	GraduationCriteria       GraduationCriteria `json:"graduation_criteria" binding:"required,oneof=any all"`
}
