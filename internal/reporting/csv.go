package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"orderflow-edge-lab/internal/domain"
)

// ConditionStatsHeader is the column order of condition_stats.csv.
var ConditionStatsHeader = []string{
	"condition", "horizon", "sample_count", "win_rate", "mean_bps", "median_bps", "std_bps",
	"net_expectancy", "avg_win", "avg_loss", "kelly_fraction", "t_stat", "p_value",
	"is_significant", "low_sample_flag", "consistency_score", "regime",
}

// RenderConditionStatsCSV renders records as CSV in the given order.
// Horizons are written as labels ("5s", "1m").
func RenderConditionStatsCSV(records []*domain.ConditionStatRecord) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(ConditionStatsHeader); err != nil {
		return "", err
	}

	for _, r := range records {
		row := []string{
			r.Condition,
			r.Horizon.Label(),
			strconv.Itoa(r.SampleCount),
			formatFloat(r.WinRate),
			formatFloat(r.MeanBps),
			formatFloat(r.MedianBps),
			formatFloat(r.StdBps),
			formatFloat(r.NetExpectancy),
			formatFloat(r.AvgWin),
			formatFloat(r.AvgLoss),
			formatFloat(r.KellyFraction),
			formatFloat(r.TStat),
			formatFloat(r.PValue),
			strconv.FormatBool(r.IsSignificant),
			strconv.FormatBool(r.LowSampleFlag),
			formatFloat(r.ConsistencyScore),
			string(r.Regime),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderStatesCSV renders one row per feature row with its state and the rule that fired.
// labels and rules must be aligned with table rows.
func RenderStatesCSV(table *domain.FeatureTable, labels []domain.OrderflowState, rules []string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"timestamp", "price", "state", "rule"}); err != nil {
		return "", err
	}

	for i := range table.Rows {
		var state domain.OrderflowState
		if i < len(labels) {
			state = labels[i]
		}
		var rule string
		if i < len(rules) {
			rule = rules[i]
		}
		row := []string{
			strconv.FormatInt(table.Rows[i].TimestampMs, 10),
			strconv.FormatFloat(table.Rows[i].Price, 'f', -1, 64),
			string(state),
			rule,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
