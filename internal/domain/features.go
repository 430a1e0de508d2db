package domain

// FeatureRow represents one time step of the market-data stream.
// Corresponds to one row of the daily snapshot CSV and to the feature_rows table in ClickHouse.
type FeatureRow struct {
	TimestampMs int64   // Unix timestamp in milliseconds
	Price       float64 // last trade price, must be > 0

	// Classifier features
	OIDelta   float64 // rolling 1m open-interest change
	Delta1s   float64 // signed aggressive taker imbalance, 0 means unavailable
	CVD       float64 // cumulative volume delta (absolute level)
	CVDChange float64 // row-to-row change of CVD
	OBScore   float64 // orderbook imbalance score

	// Upstream signal fields, used only by conditions
	OI          float64
	FinalScore  float64
	Score1m     float64
	Score5m     float64
	Score15m    float64
	Score1h     float64
	ActionHint  string // WATCH_LONG | WATCH_SHORT | WAIT_DIP | WAIT_RALLY | NO_TRADE
	HTFBias     string // BULLISH | BEARISH | RANGE
	MarketState string // TRENDING_UP | PULLBACK_IN_UPTREND | ...
	Behavior    int    // OI behavior code: 1 long buildup, 2 short buildup, ...
	EventFlags  uint32
}

// FeatureTable is an ordered, immutable sequence of feature rows.
// Rows are sorted by TimestampMs ASC and spaced one second apart when resampled.
type FeatureTable struct {
	Rows      []FeatureRow
	Source    string // file path or "clickhouse"
	Synthetic bool   // true when timestamps were synthesised from the row index
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Prices returns the price column.
func (t *FeatureTable) Prices() []float64 {
	prices := make([]float64, t.Len())
	for i := range t.Rows {
		prices[i] = t.Rows[i].Price
	}
	return prices
}

// CVDs returns the cvd column.
func (t *FeatureTable) CVDs() []float64 {
	cvd := make([]float64, t.Len())
	for i := range t.Rows {
		cvd[i] = t.Rows[i].CVD
	}
	return cvd
}

// TimeRange returns the first and last timestamps, or (0, 0) for an empty table.
func (t *FeatureTable) TimeRange() (int64, int64) {
	if t.Len() == 0 {
		return 0, 0
	}
	return t.Rows[0].TimestampMs, t.Rows[len(t.Rows)-1].TimestampMs
}
