package decision

import "orderflow-edge-lab/internal/domain"

// Verdict is the per-record edge call.
type Verdict string

const (
	VerdictEdge     Verdict = "EDGE"
	VerdictNegative Verdict = "NEGATIVE"
	VerdictNone     Verdict = "NONE"
)

// Tier is the confidence attached to a verdict.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Assessment is the verdict and confidence of one record.
// It is presentation only and never changes the record it refers to.
type Assessment struct {
	Record   *domain.ConditionStatRecord
	Verdict  Verdict
	Tier     Tier
	Criteria []CriterionResult // sample, edge, significance, regime
}

// Summary counts assessments by verdict and tier.
type Summary struct {
	Total    int
	Edge     int
	Negative int
	None     int
	High     int
	Medium   int
	Low      int
}
