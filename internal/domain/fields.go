package domain

// Canonical column names of the feature table.
const (
	FieldTimestamp   = "timestamp"
	FieldPrice       = "price"
	FieldOIDelta     = "oi_delta"
	FieldDelta1s     = "delta_1s"
	FieldCVD         = "cvd"
	FieldCVDChange   = "cvd_change"
	FieldOBScore     = "ob_score"
	FieldOI          = "oi"
	FieldFinalScore  = "final_score"
	FieldScore1m     = "score_1m"
	FieldScore5m     = "score_5m"
	FieldScore15m    = "score_15m"
	FieldScore1h     = "score_1h"
	FieldActionHint  = "action_hint"
	FieldHTFBias     = "htf_bias"
	FieldMarketState = "market_state"
	FieldBehavior    = "behavior"
	FieldEventFlags  = "event_flags"
)

// Numeric returns the value of a numeric canonical field.
// The second result is false if the field is unknown or not numeric.
func (r *FeatureRow) Numeric(field string) (float64, bool) {
	switch field {
	case FieldTimestamp:
		return float64(r.TimestampMs), true
	case FieldPrice:
		return r.Price, true
	case FieldOIDelta:
		return r.OIDelta, true
	case FieldDelta1s:
		return r.Delta1s, true
	case FieldCVD:
		return r.CVD, true
	case FieldCVDChange:
		return r.CVDChange, true
	case FieldOBScore:
		return r.OBScore, true
	case FieldOI:
		return r.OI, true
	case FieldFinalScore:
		return r.FinalScore, true
	case FieldScore1m:
		return r.Score1m, true
	case FieldScore5m:
		return r.Score5m, true
	case FieldScore15m:
		return r.Score15m, true
	case FieldScore1h:
		return r.Score1h, true
	case FieldBehavior:
		return float64(r.Behavior), true
	case FieldEventFlags:
		return float64(r.EventFlags), true
	}
	return 0, false
}

// Text returns the value of a label canonical field.
// The second result is false if the field is unknown or not a label.
func (r *FeatureRow) Text(field string) (string, bool) {
	switch field {
	case FieldActionHint:
		return r.ActionHint, true
	case FieldHTFBias:
		return r.HTFBias, true
	case FieldMarketState:
		return r.MarketState, true
	}
	return "", false
}
