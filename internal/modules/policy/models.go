// Package policy owns investment policy statements: the versioned
// append-only store per account and the pure allocation validation rules.
package policy

// TargetAllocation is the target split across the four asset buckets,
// each in percent of the portfolio. An absent bucket is zero.
type TargetAllocation struct {
	Equities     float64 `json:"equities"`
	FixedIncome  float64 `json:"fixed_income"`
	Treasury     float64 `json:"treasury"`
	Alternatives float64 `json:"alternatives"`
}

// Bucket names, in canonical order.
const (
	BucketEquities     = "equities"
	BucketFixedIncome  = "fixed_income"
	BucketTreasury     = "treasury"
	BucketAlternatives = "alternatives"
)

// Values returns the bucket percentages in canonical order.
func (a TargetAllocation) Values() []float64 {
	return []float64{a.Equities, a.FixedIncome, a.Treasury, a.Alternatives}
}

// Buckets returns the bucket names in canonical order.
func Buckets() []string {
	return []string{BucketEquities, BucketFixedIncome, BucketTreasury, BucketAlternatives}
}

// Constraints are the policy's conformance constraints.
type Constraints struct {
	// MaxDriftPct is the per-bucket drift tolerance in percentage points.
	// Nil means the policy states none and the default applies.
	MaxDriftPct *float64 `json:"max_drift_pct,omitempty"`
}

// Statement is one version of an account's investment policy statement.
// Versions are append-only; the current statement is the highest version.
type Statement struct {
	AccountID   string           `json:"account_id"`
	Version     int              `json:"version"`
	RiskProfile string           `json:"risk_profile"`
	TimeHorizon string           `json:"time_horizon"`
	Objectives  []string         `json:"investment_objectives"`
	Target      TargetAllocation `json:"target_allocation"`
	Constraints Constraints      `json:"constraints"`
	CreatedAt   string           `json:"created_at"` // RFC 3339
}

// BucketDeviation is the per-bucket result of a conformance check.
type BucketDeviation struct {
	Bucket    string  `json:"bucket"`
	TargetPct float64 `json:"target_pct"`
	ActualPct float64 `json:"actual_pct"`
	Deviation float64 `json:"deviation"`
	Breached  bool    `json:"breached"`
}

// ConformanceResult is the outcome of validating a portfolio against a
// policy: overall pass/fail plus per-bucket deviations.
type ConformanceResult struct {
	Pass        bool              `json:"pass"`
	MaxDriftPct float64           `json:"max_drift_pct"`
	Deviations  []BucketDeviation `json:"deviations"`
}
