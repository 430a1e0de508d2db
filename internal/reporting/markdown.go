package reporting

import (
	"fmt"
	"strings"
	"time"

	"orderflow-edge-lab/internal/decision"
)

// RenderEdgeMarkdown renders the edge report as Markdown string.
func RenderEdgeMarkdown(r *EdgeReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Condition Edge Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Data version: %s\n\n", r.Run.RunID, r.Run.DataVersion))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Source | %s |\n", r.Run.Source))
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Run.RowCount))
	sb.WriteString(fmt.Sprintf("| Synthetic Timeline | %t |\n", r.Run.Synthetic))
	sb.WriteString(fmt.Sprintf("| Conditions With Records | %d |\n", r.Run.Conditions))
	sb.WriteString(fmt.Sprintf("| Failed Conditions | %d |\n", r.Run.Failed))
	sb.WriteString(fmt.Sprintf("| Records | %d |\n", r.Run.Records))
	sb.WriteString("\n")

	// Data Quality
	if r.DataQuality != nil {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range r.DataQuality.Checks {
			status := "PASS"
			if !c.Pass {
				status = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
		}
		sb.WriteString("\n")
		if !r.DataQuality.AllPass {
			sb.WriteString("**Warning:** some sufficiency checks failed; treat the statistics below with caution.\n\n")
		}
	}

	// Condition Stats
	sb.WriteString("## Condition Stats\n\n")
	if len(r.Conditions) > 0 || len(r.Insufficient) > 0 {
		sb.WriteString("| Condition | Horizon | N | WinRate | Mean | Median | Std | NetExp | Kelly | t | p | Sig | LowN |\n")
		sb.WriteString("|-----------|---------|---|---------|------|--------|-----|--------|-------|---|---|-----|------|\n")
		for _, res := range r.Conditions {
			for _, h := range r.Horizons {
				rec := res.Record(h)
				if rec == nil {
					continue
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.1f%% | %+.2f | %+.2f | %.2f | %+.2f | %.3f | %.2f | %.4f | %s | %s |\n",
					rec.Condition, h.Label(), rec.SampleCount, rec.WinRate*100,
					rec.MeanBps, rec.MedianBps, rec.StdBps, rec.NetExpectancy, rec.KellyFraction,
					rec.TStat, rec.PValue, yesNo(rec.IsSignificant), yesNo(rec.LowSampleFlag)))
			}
		}
		for _, in := range r.Insufficient {
			sb.WriteString(fmt.Sprintf("| %s | all | %d | (insufficient data) | - | - | - | - | - | - | - | - | - |\n",
				in.Condition, in.Matches))
		}
	} else {
		sb.WriteString("No condition reached the minimum sample size.\n")
	}
	sb.WriteString("\n")

	// Consistency
	sb.WriteString("## Cross-Horizon Consistency\n\n")
	if len(r.Conditions) > 0 {
		sb.WriteString("| Condition | Matches | Consistency | Regime |\n")
		sb.WriteString("|-----------|---------|-------------|--------|\n")
		for _, res := range r.Conditions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.3f | %s |\n", res.Name, matches(res.MatchCount), res.Consistency, res.Regime))
		}
	} else {
		sb.WriteString("No consistency data available.\n")
	}
	sb.WriteString("\n")

	// Failures
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Conditions\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Condition, f.Error))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(decision.RenderMarkdown(r.Assessments))
	sb.WriteString("\n")

	return sb.String()
}

// RenderStateMarkdown renders the state report as Markdown string.
func RenderStateMarkdown(r *StateReport) string {
	var sb strings.Builder

	sb.WriteString("# Orderflow State Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Source | %s |\n", r.Source))
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.RowCount))
	sb.WriteString(fmt.Sprintf("| Synthetic Timeline | %t |\n", r.Synthetic))
	sb.WriteString(fmt.Sprintf("| Start (ms) | %d |\n", r.StartMs))
	sb.WriteString(fmt.Sprintf("| End (ms) | %d |\n", r.EndMs))
	sb.WriteString("\n")

	// Distribution
	sb.WriteString("## State Distribution\n\n")
	sb.WriteString("| State | Rows | Share |\n")
	sb.WriteString("|-------|------|-------|\n")
	for _, d := range r.Distribution {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% |\n", d.State, d.Count, d.Pct))
	}
	sb.WriteString("\n")

	// Forward returns per state
	sb.WriteString("## Forward Returns by State\n\n")
	header := "| State |"
	sep := "|-------|"
	for _, h := range r.Horizons {
		header += fmt.Sprintf(" %s N | %s Win | %s Mean | %s NetExp |", h.Label(), h.Label(), h.Label(), h.Label())
		sep += "---|---|---|---|"
	}
	sb.WriteString(header + " Regime |\n")
	sb.WriteString(sep + "--------|\n")
	for _, res := range r.States {
		sb.WriteString(fmt.Sprintf("| %s |", stateName(res.Name)))
		for _, h := range r.Horizons {
			rec := res.Record(h)
			if rec == nil {
				sb.WriteString(" - | - | - | - |")
				continue
			}
			sb.WriteString(fmt.Sprintf(" %d | %.1f%% | %+.2f | %+.2f |",
				rec.SampleCount, rec.WinRate*100, rec.MeanBps, rec.NetExpectancy))
		}
		sb.WriteString(fmt.Sprintf(" %s |\n", res.Regime))
	}
	sb.WriteString("\n")

	// Reversals
	sb.WriteString("## Reversal Analysis\n\n")
	if len(r.Reversals) == 0 {
		sb.WriteString("No reversal targets configured.\n")
	}
	for _, rev := range r.Reversals {
		direction := "up"
		if rev.Target.Direction < 0 {
			direction = "down"
		}
		sb.WriteString(fmt.Sprintf("### %s (expects %s move)\n\n", rev.Target.State, direction))
		if rev.Insufficient {
			sb.WriteString(fmt.Sprintf("Insufficient sample: %d rows.\n\n", rev.Count))
			continue
		}
		if len(rev.Horizons) == 0 {
			sb.WriteString("No horizon had enough defined returns.\n\n")
			continue
		}
		sb.WriteString("| Horizon | N | Reversal % | Mean (bps) | Verdict |\n")
		sb.WriteString("|---------|---|------------|------------|---------|\n")
		for _, st := range rev.Horizons {
			verdict := "NO_EDGE"
			if st.Edge {
				verdict = "REVERSAL_EDGE"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f | %+.2f | %s |\n",
				st.Horizon.Label(), st.N, st.ReversalPct, st.MeanBps, verdict))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderHistoryMarkdown renders a condition's records across runs.
func RenderHistoryMarkdown(condition string, rows []HistoryRow) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# History: %s\n\n", condition))
	if len(rows) == 0 {
		sb.WriteString("No stored records.\n")
		return sb.String()
	}

	sb.WriteString("| Run | Started | Horizon | N | Mean | NetExp | p | Regime |\n")
	sb.WriteString("|-----|---------|---------|---|------|--------|---|--------|\n")
	for _, row := range rows {
		rec := row.Record
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %+.2f | %+.2f | %.4f | %s |\n",
			row.RunID, time.UnixMilli(row.StartedAt).UTC().Format(time.RFC3339),
			rec.Horizon.Label(), rec.SampleCount, rec.MeanBps, rec.NetExpectancy, rec.PValue, rec.Regime))
	}

	return sb.String()
}

// stateName strips the condition prefix from a state condition name.
func stateName(name string) string {
	return strings.TrimPrefix(name, "of_state = ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// matches renders a match count; 0 means the count was not available (report loaded from a store).
func matches(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
