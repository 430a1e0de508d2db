package loader

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"orderflow-edge-lab/internal/domain"
)

// ErrMissingColumns is returned when a required canonical field cannot be resolved.
var ErrMissingColumns = errors.New("missing required columns")

// MissingColumnsError lists the unresolved canonical fields and the columns actually present.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%v: missing %s; available columns: %s",
		ErrMissingColumns, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// RequiredFields must resolve for a table to load.
var RequiredFields = []string{
	domain.FieldPrice,
	domain.FieldOIDelta,
	domain.FieldDelta1s,
	domain.FieldCVD,
}

// aliases maps each canonical field to the source names accepted for it.
// Matching is case-insensitive; the canonical name itself always matches first.
var aliases = map[string][]string{
	domain.FieldTimestamp:   {"ts", "time", "timestamp_ms", "time_ms"},
	domain.FieldPrice:       {"close", "last_price", "last", "mid"},
	domain.FieldOIDelta:     {"oi_delta_1m", "oi_change", "delta_oi"},
	domain.FieldDelta1s:     {"taker_delta", "delta", "agg_delta"},
	domain.FieldCVD:         {"cum_delta", "cumulative_delta"},
	domain.FieldCVDChange:   {"cvd_delta", "cvd_diff"},
	domain.FieldOBScore:     {"orderbook_score", "book_score"},
	domain.FieldOI:          {"open_interest"},
	domain.FieldFinalScore:  {"finalscore", "score"},
	domain.FieldScore1m:     {"score1m"},
	domain.FieldScore5m:     {"score5m"},
	domain.FieldScore15m:    {"score15m"},
	domain.FieldScore1h:     {"score1h"},
	domain.FieldActionHint:  {"action", "actionhint"},
	domain.FieldHTFBias:     {"htf", "htfbias", "bias"},
	domain.FieldMarketState: {"marketstate", "regime_state"},
	domain.FieldBehavior:    {"oi_behavior"},
	domain.FieldEventFlags:  {"flags", "eventflags"},
}

// canonicalFields lists every field the loader can fill.
func canonicalFields() []string {
	fields := make([]string, 0, len(aliases))
	for f := range aliases {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ResolveColumns maps canonical field names to column indexes of header.
// Fields that resolve to no column are absent from the result.
// Returns a *MissingColumnsError if a required field is unresolved.
func ResolveColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	resolved := make(map[string]int)
	for _, field := range canonicalFields() {
		candidates := append([]string{field}, aliases[field]...)
		for _, c := range candidates {
			if i, ok := index[c]; ok {
				resolved[field] = i
				break
			}
		}
	}

	var missing []string
	for _, f := range RequiredFields {
		if _, ok := resolved[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		available := make([]string, len(header))
		for i, h := range header {
			available[i] = strings.TrimSpace(h)
		}
		return nil, &MissingColumnsError{Missing: missing, Available: available}
	}

	return resolved, nil
}
