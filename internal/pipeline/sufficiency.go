package pipeline

import (
	"fmt"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/loader"
	"orderflow-edge-lab/internal/reporting"
)

// Sufficiency thresholds.
const (
	maxDroppedPct = 1.0
	maxFilledPct  = 10.0
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all 5 checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// CheckSufficiency runs the data sufficiency checks on a loaded table and its labels.
// Failing checks do not stop a run; they are reported next to the statistics.
func CheckSufficiency(res *loader.Result, labels []domain.OrderflowState, horizons []domain.Horizon, minSample int) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 5),
		AllPass: true,
	}

	result.Checks = append(result.Checks,
		checkRowCount(res.Table.Len(), horizons, minSample),
		checkTimeline(res.Table),
		checkDropped(res.Dropped, res.Read),
		checkFilled(res.Filled, res.Table.Len()),
		checkStateSample(labels, minSample),
	)

	for _, c := range result.Checks {
		if !c.Pass {
			result.AllPass = false
		}
	}
	return result
}

// DataQuality converts the result to its report section.
func (r *SufficiencyResult) DataQuality() *reporting.DataQuality {
	rows := make([]reporting.SufficiencyCheckRow, len(r.Checks))
	for i, c := range r.Checks {
		rows[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return &reporting.DataQuality{Checks: rows, AllPass: r.AllPass}
}

// checkRowCount requires enough rows for the longest horizon plus a minimum sample.
func checkRowCount(rows int, horizons []domain.Horizon, minSample int) SufficiencyCheck {
	var longest domain.Horizon
	for _, h := range horizons {
		if h > longest {
			longest = h
		}
	}
	need := int(longest) + minSample
	return SufficiencyCheck{
		Name:      "Row count",
		Threshold: fmt.Sprintf(">= %d", need),
		Actual:    fmt.Sprintf("%d", rows),
		Pass:      rows >= need,
	}
}

// checkTimeline fails on a synthetic index timeline, where horizons are row counts rather than seconds.
func checkTimeline(table *domain.FeatureTable) SufficiencyCheck {
	actual := "timestamps present"
	if table.Synthetic {
		actual = "synthetic"
	}
	return SufficiencyCheck{
		Name:      "Real timeline",
		Threshold: "timestamps present",
		Actual:    actual,
		Pass:      !table.Synthetic,
	}
}

func checkDropped(dropped, read int) SufficiencyCheck {
	pct := 0.0
	if read > 0 {
		pct = float64(dropped) / float64(read) * 100
	}
	return SufficiencyCheck{
		Name:      "Dropped rows",
		Threshold: fmt.Sprintf("<= %.1f%%", maxDroppedPct),
		Actual:    fmt.Sprintf("%.2f%% (%d)", pct, dropped),
		Pass:      pct <= maxDroppedPct,
	}
}

func checkFilled(filled, rows int) SufficiencyCheck {
	pct := 0.0
	if rows > 0 {
		pct = float64(filled) / float64(rows) * 100
	}
	return SufficiencyCheck{
		Name:      "Gap-filled rows",
		Threshold: fmt.Sprintf("<= %.1f%%", maxFilledPct),
		Actual:    fmt.Sprintf("%.2f%% (%d)", pct, filled),
		Pass:      pct <= maxFilledPct,
	}
}

// checkStateSample requires at least one non-neutral state with a usable sample.
func checkStateSample(labels []domain.OrderflowState, minSample int) SufficiencyCheck {
	counts := make(map[domain.OrderflowState]int)
	for _, l := range labels {
		counts[l]++
	}

	best, bestN := domain.OrderflowState(""), 0
	for _, s := range domain.AllStates() {
		if s == domain.NeutralChop {
			continue
		}
		if counts[s] > bestN {
			best, bestN = s, counts[s]
		}
	}

	actual := "none"
	if best != "" {
		actual = fmt.Sprintf("%s (%d)", best, bestN)
	}
	return SufficiencyCheck{
		Name:      "Non-neutral state sample",
		Threshold: fmt.Sprintf(">= %d rows", minSample),
		Actual:    actual,
		Pass:      bestN >= minSample,
	}
}
