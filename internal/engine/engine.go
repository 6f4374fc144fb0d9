package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Engine computes account metrics, category gaps, and the composite
// opportunity score. It is a pure calculator: callers supply the trailing
// order history, the matched profile, and tenant-wide benchmarks; persistence
// belongs to the service layer.
type Engine struct {
	cfg Config
}

// Config holds the tunable parameters of the calculator. The thresholds are
// configuration, not constants, so tenants can adjust them without a deploy.
type Config struct {
	Weights Weights `json:"weights"`

	// RecencyHorizonDays is the age at which the recency sub-score reaches
	// zero. An order today scores 100.
	RecencyHorizonDays int `json:"recency_horizon_days"`
}

// Weights are the relative weights of the four composite sub-scores.
type Weights struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Monetary  float64 `json:"monetary"`
	Mix       float64 `json:"mix"`
}

// DefaultConfig returns the stock scoring parameters.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Recency:   0.2,
			Frequency: 0.2,
			Monetary:  0.3,
			Mix:       0.3,
		},
		RecencyHorizonDays: 365,
	}
}

// New creates an engine with the given config. Zero-valued weights fall back
// to the defaults so a partially filled config stays usable.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.RecencyHorizonDays <= 0 {
		cfg.RecencyHorizonDays = def.RecencyHorizonDays
	}
	return &Engine{cfg: cfg}
}

// OrderSummary is one order within the account's trailing history.
type OrderSummary struct {
	OrderedAt time.Time
	Total     float64
	Lines     []LineItem
}

// LineItem is the per-category portion of an order.
type LineItem struct {
	CategoryID uuid.UUID
	Amount     float64
}

// AccountActivity is the raw input for one account: the full order history
// the caller chose to load, typically the trailing 24 months so the prior-year
// growth window is available.
type AccountActivity struct {
	AccountID uuid.UUID
	Orders    []OrderSummary
}

// ProfileCategory is one target category of the matched profile.
type ProfileCategory struct {
	CategoryID  uuid.UUID
	ExpectedPct float64
	Importance  float64
	IsRequired  bool
}

// Profile is the approved segment profile matched to the account. A nil
// profile (no approved profile for the segment) is a valid input: metrics are
// still computed, gaps are skipped, and the score stays neutral.
type Profile struct {
	ID         uuid.UUID
	Segment    string
	Categories []ProfileCategory
}

// Benchmarks are tenant-wide reference points used to normalize the frequency
// and monetary sub-scores. Values at or above the reference score 100.
type Benchmarks struct {
	ReferenceOrderCount float64
	ReferenceRevenue    float64
}

// Metrics is the recomputed snapshot for the account.
type Metrics struct {
	Last12mRevenue      float64
	Last3mRevenue       float64
	YoYGrowthRate       *float64
	CategoryCount       int
	CategoryPenetration float64
	CategoryGapScore    float64
	OpportunityScore    float64
	MatchedProfileID    *uuid.UUID
}

// Gap is one under-purchased category. Only categories with a positive gap
// are emitted; over-purchasing produces no row.
type Gap struct {
	CategoryID           uuid.UUID
	ExpectedPct          float64
	ActualPct            float64
	GapPct               float64
	EstimatedOpportunity float64
	IsRequired           bool
}

// Result bundles the outputs of one recompute.
type Result struct {
	Metrics Metrics
	Gaps    []Gap
	// MissingRequired lists required profile categories the account has never
	// purchased, so consumers can highlight must-fix gaps distinctly.
	MissingRequired []uuid.UUID
}

// Compute derives the full metrics snapshot and gap set for one account as of
// the given instant. Calling it twice with identical inputs yields identical
// results.
func (e *Engine) Compute(activity AccountActivity, profile *Profile, bench Benchmarks, now time.Time) Result {
	windows := aggregateWindows(activity.Orders, now)

	m := Metrics{
		Last12mRevenue: windows.last12m,
		Last3mRevenue:  windows.last3m,
		YoYGrowthRate:  growthRate(windows.last12m, windows.prior12m, windows.hasPrior),
		CategoryCount:  len(windows.categoryRevenue),
	}

	res := Result{}

	var mixScore float64
	mixDefined := false

	if profile != nil {
		m.MatchedProfileID = &profile.ID
	}

	if profile != nil && len(profile.Categories) > 0 {
		dist := distribution(windows.categoryRevenue, windows.last12m)

		var totalImportance, achievedImportance, gapWeighted float64
		purchased := 0
		for _, pc := range profile.Categories {
			importance := pc.Importance
			if importance <= 0 {
				importance = 1.0
			}
			actual := dist[pc.CategoryID]
			gapPct := pc.ExpectedPct - actual
			if gapPct < 0 {
				gapPct = 0
			}

			totalImportance += importance
			gapWeighted += gapPct * importance
			if actual > 0 {
				purchased++
				achievedImportance += importance
			} else if pc.IsRequired {
				res.MissingRequired = append(res.MissingRequired, pc.CategoryID)
			}

			if gapPct > 0 {
				res.Gaps = append(res.Gaps, Gap{
					CategoryID:           pc.CategoryID,
					ExpectedPct:          pc.ExpectedPct,
					ActualPct:            actual,
					GapPct:               gapPct,
					EstimatedOpportunity: windows.last12m * gapPct / 100,
					IsRequired:           pc.IsRequired,
				})
			}
		}

		m.CategoryPenetration = clamp01(float64(purchased)/float64(len(profile.Categories))) * 100
		m.CategoryGapScore = gapWeighted / totalImportance
		mixScore = clampScore(achievedImportance / totalImportance * 100)
		mixDefined = true
	}

	m.OpportunityScore = e.composite(windows, bench, now, mixScore, mixDefined)
	res.Metrics = m
	return res
}

// composite blends the four sub-scores. When the mix signal is undefined (no
// matched profile or an empty one) its weight is redistributed over the RFM
// signals so unmatched accounts still rank, just on revenue behavior alone.
func (e *Engine) composite(w windows, bench Benchmarks, now time.Time, mixScore float64, mixDefined bool) float64 {
	if w.last12m <= 0 {
		return 0
	}

	recency := e.recencyScore(w.lastOrderAt, now)
	frequency := ratioScore(float64(w.orderCount12m), bench.ReferenceOrderCount)
	monetary := ratioScore(w.last12m, bench.ReferenceRevenue)

	wt := e.cfg.Weights
	total := wt.Recency + wt.Frequency + wt.Monetary
	sum := recency*wt.Recency + frequency*wt.Frequency + monetary*wt.Monetary
	if mixDefined {
		total += wt.Mix
		sum += mixScore * wt.Mix
	}
	if total <= 0 {
		return 0
	}
	return round2(sum / total)
}

// recencyScore maps days-since-last-order onto 0..100, inverted and scaled
// over the configured horizon.
func (e *Engine) recencyScore(lastOrderAt time.Time, now time.Time) float64 {
	if lastOrderAt.IsZero() {
		return 0
	}
	days := now.Sub(lastOrderAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	horizon := float64(e.cfg.RecencyHorizonDays)
	return clampScore((1 - days/horizon) * 100)
}

type windows struct {
	last12m         float64
	last3m          float64
	prior12m        float64
	hasPrior        bool
	orderCount12m   int
	lastOrderAt     time.Time
	categoryRevenue map[uuid.UUID]float64
}

func aggregateWindows(orders []OrderSummary, now time.Time) windows {
	w := windows{categoryRevenue: make(map[uuid.UUID]float64)}
	start12m := now.AddDate(-1, 0, 0)
	start3m := now.AddDate(0, -3, 0)
	startPrior := now.AddDate(-2, 0, 0)

	for _, o := range orders {
		if o.OrderedAt.After(now) {
			continue
		}
		if o.OrderedAt.After(w.lastOrderAt) {
			w.lastOrderAt = o.OrderedAt
		}
		switch {
		case o.OrderedAt.After(start12m):
			w.last12m += o.Total
			w.orderCount12m++
			if o.OrderedAt.After(start3m) {
				w.last3m += o.Total
			}
			for _, l := range o.Lines {
				w.categoryRevenue[l.CategoryID] += l.Amount
			}
		case o.OrderedAt.After(startPrior):
			w.prior12m += o.Total
			w.hasPrior = true
		}
	}
	return w
}

// growthRate returns the trailing-12m percentage change versus the prior 12m
// window, or nil when no prior-window data exists. Absent history is a
// missing-data case, not zero growth.
func growthRate(current, prior float64, hasPrior bool) *float64 {
	if !hasPrior || prior <= 0 {
		return nil
	}
	g := round2((current - prior) / prior * 100)
	return &g
}

// distribution converts per-category dollars into percentages of the
// trailing-12m total.
func distribution(categoryRevenue map[uuid.UUID]float64, total float64) map[uuid.UUID]float64 {
	dist := make(map[uuid.UUID]float64, len(categoryRevenue))
	if total <= 0 {
		return dist
	}
	for id, amount := range categoryRevenue {
		dist[id] = amount / total * 100
	}
	return dist
}

// ratioScore scales value against a tenant-wide reference onto 0..100.
func ratioScore(value, reference float64) float64 {
	if value <= 0 || reference <= 0 {
		return 0
	}
	return clampScore(value / reference * 100)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return round2(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
