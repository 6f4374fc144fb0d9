package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/errors"
	"github.com/fieldstone/opportunity-engine/internal/models"
)

// Config holds the lifecycle heuristics. The at-risk threshold comes from
// operator tuning, not a fixed formula, so it is configuration.
type Config struct {
	// AtRiskDeclinePct is the fractional shortfall versus the pro-rated
	// baseline that counts as "materially below". 0.15 means a period must
	// come in more than 15% under baseline.
	AtRiskDeclinePct float64 `json:"at_risk_decline_pct"`

	// AtRiskConsecutivePeriods is how many trailing snapshots must all show
	// the shortfall before an enrollment is flagged.
	AtRiskConsecutivePeriods int `json:"at_risk_consecutive_periods"`

	// DaysPerMonth converts targetDurationMonths into the elapsed-days clause.
	DaysPerMonth int `json:"days_per_month"`
}

// DefaultConfig returns the stock lifecycle parameters.
func DefaultConfig() Config {
	return Config{
		AtRiskDeclinePct:         0.15,
		AtRiskConsecutivePeriods: 2,
		DaysPerMonth:             30,
	}
}

// Progress is the measured state of an active enrollment at evaluation time.
type Progress struct {
	Penetration           float64
	CumulativeIncremental float64
	ElapsedDays           int
}

// GraduationCheck reports which clauses held and the combined verdict.
type GraduationCheck struct {
	PenetrationMet bool
	IncrementalMet bool
	DurationMet    bool
	Graduated      bool
}

// EvaluateGraduation applies the enrollment's graduation criteria to the
// measured progress. Under "any" a single met clause graduates; under "all"
// every clause must hold.
func EvaluateGraduation(pa *models.ProgramAccount, p Progress, cfg Config) GraduationCheck {
	targetDays := pa.TargetDurationMonths * cfg.DaysPerMonth
	check := GraduationCheck{
		PenetrationMet: p.Penetration >= pa.TargetPenetration,
		IncrementalMet: p.CumulativeIncremental >= pa.TargetIncrementalRevenue,
		DurationMet:    p.ElapsedDays >= targetDays,
	}
	if pa.GraduationCriteria == string(models.GraduateAll) {
		check.Graduated = check.PenetrationMet && check.IncrementalMet && check.DurationMet
	} else {
		check.Graduated = check.PenetrationMet || check.IncrementalMet || check.DurationMet
	}
	return check
}

// DetectAtRisk reports whether the trailing snapshots show a declining trend:
// the configured number of most recent periods all materially below their
// pro-rated baseline. Advisory only; it gates nothing else.
func DetectAtRisk(snapshots []models.RevenueSnapshot, cfg Config) bool {
	need := cfg.AtRiskConsecutivePeriods
	if need <= 0 {
		need = 2
	}
	if len(snapshots) < need {
		return false
	}

	ordered := make([]models.RevenueSnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PeriodStart.Before(ordered[j].PeriodStart)
	})

	for _, s := range ordered[len(ordered)-need:] {
		floor := s.BaselineComparison * (1 - cfg.AtRiskDeclinePct)
		if s.PeriodRevenue >= floor {
			return false
		}
	}
	return true
}

// ProratedBaseline scales the fixed annual baseline down to the snapshot
// period's length.
func ProratedBaseline(baselineRevenue float64, periodStart, periodEnd time.Time) float64 {
	days := periodEnd.Sub(periodStart).Hours() / 24
	if days <= 0 {
		return 0
	}
	return baselineRevenue * days / 365
}

// IncrementalRevenue floors the period's gain over baseline at zero. Negative
// incremental is reported as zero because the rev-share fee cannot be
// negative.
func IncrementalRevenue(periodRevenue, baselineComparison float64) float64 {
	inc := periodRevenue - baselineComparison
	if inc < 0 {
		return 0
	}
	return inc
}

// TierFor finds the tier whose [min, max) band contains the revenue. Exactly
// one tier matches any non-negative revenue when the schedule is valid; a
// miss means the bands do not cover the value and is an invariant violation.
func TierFor(tiers []models.RevShareTier, revenue float64) (*models.RevShareTier, error) {
	for i := range tiers {
		if tiers[i].Contains(revenue) {
			return &tiers[i], nil
		}
	}
	return nil, errors.TierGap(fmt.Sprintf("no rev-share tier covers revenue %.2f", revenue))
}

// ValidateTiers checks that a tier schedule is ordered, contiguous, and
// capped by a single unbounded top tier.
func ValidateTiers(tiers []models.RevShareTier) error {
	if len(tiers) == 0 {
		return errors.ValidationError("tier schedule is empty", nil)
	}

	ordered := make([]models.RevShareTier, len(tiers))
	copy(ordered, tiers)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].MinRevenue < ordered[j].MinRevenue
	})

	if ordered[0].MinRevenue != 0 {
		return errors.ValidationError("first tier must start at 0", nil)
	}
	for i, t := range ordered {
		last := i == len(ordered)-1
		if last {
			if t.MaxRevenue != nil {
				return errors.ValidationError("top tier must be unbounded", nil)
			}
			continue
		}
		if t.MaxRevenue == nil {
			return errors.ValidationError(fmt.Sprintf("tier %d is unbounded but not the top tier", i), nil)
		}
		if *t.MaxRevenue <= t.MinRevenue {
			return errors.ValidationError(fmt.Sprintf("tier %d has an empty band", i), nil)
		}
		if ordered[i+1].MinRevenue != *t.MaxRevenue {
			return errors.ValidationError(fmt.Sprintf("gap between tier %d and tier %d", i, i+1), nil)
		}
	}
	return nil
}

// AchievedCategories counts the profile's key categories, the required ones
// plus those weighted above the default importance of 1.0, that carry no open
// gap row. A key category with no gap is purchased at or above its expected
// share of the account's mix.
func AchievedCategories(categories []models.ProfileCategory, gaps []models.AccountCategoryGap) int {
	gapped := make(map[uuid.UUID]bool, len(gaps))
	for _, g := range gaps {
		gapped[g.CategoryID] = true
	}
	achieved := 0
	for _, pc := range categories {
		if !pc.IsRequired && pc.Importance <= 1.0 {
			continue
		}
		if !gapped[pc.CategoryID] {
			achieved++
		}
	}
	return achieved
}

// CanTransition reports whether a manual or evaluated status change is legal.
// Graduated is terminal; recovery (at_risk -> active) and resume
// (paused -> active) are allowed.
func CanTransition(from, to models.ProgramStatus) bool {
	if from == models.ProgramGraduated {
		return false
	}
	switch to {
	case models.ProgramActive:
		return from == models.ProgramCandidate || from == models.ProgramAtRisk || from == models.ProgramPaused
	case models.ProgramAtRisk:
		return from == models.ProgramActive
	case models.ProgramPaused:
		return from == models.ProgramActive || from == models.ProgramAtRisk
	case models.ProgramGraduated:
		return from == models.ProgramActive || from == models.ProgramAtRisk
	default:
		return false
	}
}
