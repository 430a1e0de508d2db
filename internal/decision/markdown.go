package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the ranked verdicts as a Markdown section.
func RenderMarkdown(assessments []*Assessment) string {
	var sb strings.Builder

	summary := Summarize(assessments)
	sb.WriteString("## Verdicts\n\n")
	sb.WriteString(fmt.Sprintf("Records: %d | EDGE: %d | NEGATIVE: %d | NONE: %d\n\n",
		summary.Total, summary.Edge, summary.Negative, summary.None))
	sb.WriteString(fmt.Sprintf("Confidence: HIGH %d | MEDIUM %d | LOW %d\n\n",
		summary.High, summary.Medium, summary.Low))

	ranked := Ranked(assessments)
	if len(ranked) == 0 {
		sb.WriteString("No condition cleared the edge threshold.\n")
		return sb.String()
	}

	sb.WriteString("| # | Condition | Horizon | Verdict | Confidence | Net Exp (bps) | Failed criteria |\n")
	sb.WriteString("|---|-----------|---------|---------|------------|---------------|-----------------|\n")
	for i, a := range ranked {
		var failed []string
		for _, c := range a.Criteria {
			if !c.Pass {
				failed = append(failed, c.Name)
			}
		}
		failedStr := "-"
		if len(failed) > 0 {
			failedStr = strings.Join(failed, ", ")
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %+.2f | %s |\n",
			i+1, a.Record.Condition, a.Record.Horizon.Label(), a.Verdict, a.Tier,
			a.Record.NetExpectancy, failedStr))
	}

	return sb.String()
}
