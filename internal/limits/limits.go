// Package limits enforces per-plan quotas on enrollments and approved
// profiles. Quotas are checked at the service layer before writes; the
// counts come from the repository so concurrent requests near the limit
// may briefly overshoot by one, which is acceptable for billing plans.
package limits

import (
	"fmt"

	"github.com/fieldstone/opportunity-engine/internal/errors"
)

// Plan is the billing tier recorded on each tenant.
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanGrowth     Plan = "growth"
	PlanEnterprise Plan = "enterprise"
)

// Quota describes the ceilings for one plan. A zero value means unlimited.
type Quota struct {
	MaxEnrolledAccounts int
	MaxApprovedProfiles int
}

var planQuotas = map[Plan]Quota{
	PlanStarter:    {MaxEnrolledAccounts: 25, MaxApprovedProfiles: 3},
	PlanGrowth:     {MaxEnrolledAccounts: 250, MaxApprovedProfiles: 20},
	PlanEnterprise: {},
}

// QuotaFor returns the quota for a plan, defaulting unknown plans to
// starter so a mistyped plan never grants unlimited use.
func QuotaFor(plan Plan) Quota {
	if q, ok := planQuotas[plan]; ok {
		return q
	}
	return planQuotas[PlanStarter]
}

// CheckEnrollment returns LIMIT_EXCEEDED when enrolling one more account
// would pass the plan ceiling. currentLive counts candidate, active,
// at_risk and paused enrollments; graduated ones do not count.
func CheckEnrollment(plan Plan, currentLive int) error {
	q := QuotaFor(plan)
	if q.MaxEnrolledAccounts > 0 && currentLive >= q.MaxEnrolledAccounts {
		return errors.LimitExceeded(fmt.Sprintf("plan %s allows at most %d enrolled accounts", plan, q.MaxEnrolledAccounts))
	}
	return nil
}

// CheckProfileApproval returns LIMIT_EXCEEDED when approving one more
// profile would pass the plan ceiling.
func CheckProfileApproval(plan Plan, currentApproved int) error {
	q := QuotaFor(plan)
	if q.MaxApprovedProfiles > 0 && currentApproved >= q.MaxApprovedProfiles {
		return errors.LimitExceeded(fmt.Sprintf("plan %s allows at most %d approved profiles", plan, q.MaxApprovedProfiles))
	}
	return nil
}
