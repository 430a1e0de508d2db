package domain

// Regime describes how a condition's mean forward return behaves across horizons.
type Regime string

// Regime constants.
const (
	RegimeTrending   Regime = "TRENDING"
	RegimeMeanRevert Regime = "MEAN_REVERT"
	RegimeFlip       Regime = "FLIP"
	RegimeNoise      Regime = "NOISE"
)

// ConditionStatRecord is the result of evaluating one condition at one horizon.
// Corresponds to a row of condition_stats.csv and the condition_stats table.
// Records are built once and never mutated after they are published.
type ConditionStatRecord struct {
	Condition string
	Horizon   Horizon

	// Sample
	SampleCount   int
	LowSampleFlag bool // SampleCount < low_n_warn_threshold, confidence tiering only

	// Return distribution (bps)
	WinRate   float64 // fraction of returns > 0
	MeanBps   float64
	MedianBps float64
	StdBps    float64 // sample stddev (n-1)
	AvgWin    float64 // mean of positive returns, 0 if none
	AvgLoss   float64 // mean of |returns <= 0|, 0 if none

	// Edge
	Expectancy    float64 // win_rate*avg_win - (1-win_rate)*avg_loss
	NetExpectancy float64 // mean - round-trip cost
	KellyFraction float64 // clamped to [0, 0.25]
	Sharpe        float64 // mean/std, 0 if std == 0

	// Significance
	TStat         float64
	PValue        float64
	IsSignificant bool

	// Cross-horizon, identical for every horizon of a condition
	ConsistencyScore float64
	Regime           Regime
}

// ConditionResult groups a condition's per-horizon records.
// A horizon with too few samples has no entry in Records.
type ConditionResult struct {
	Name        string
	MatchCount  int // rows where the predicate held
	Records     map[Horizon]*ConditionStatRecord
	Consistency float64
	Regime      Regime
}

// Record returns the record for h, or nil when absent.
func (c *ConditionResult) Record(h Horizon) *ConditionStatRecord {
	if c == nil {
		return nil
	}
	return c.Records[h]
}

// EvaluationRun describes one evaluation run.
// Corresponds to the evaluation_runs table in PostgreSQL.
type EvaluationRun struct {
	RunID       string
	StartedAt   int64 // Unix ms
	Source      string
	RowCount    int
	Synthetic   bool
	Conditions  int // conditions with at least one record
	Failed      int // conditions omitted because evaluation failed
	Records     int
	DataVersion string
}

// RunStat is a ConditionStatRecord persisted under an evaluation run.
// Corresponds to a row of the condition_stats table, keyed by (RunID, Condition, Horizon).
type RunStat struct {
	RunID string
	ConditionStatRecord
}
