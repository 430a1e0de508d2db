package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/features"
)

// ErrNoCSV is returned when the logs directory holds no CSV file.
var ErrNoCSV = errors.New("no csv file found")

// ErrEmptyTable is returned when no row with a valid price remains.
var ErrEmptyTable = errors.New("no valid rows")

// Timestamps below this are taken as Unix seconds rather than milliseconds.
const secondsCutoff = 1e11

// Options configures a load.
type Options struct {
	Resample bool // bucket rows to a 1s grid
}

// Result is a loaded feature table and what happened to the input rows.
type Result struct {
	Table   *domain.FeatureTable
	Read    int // data rows read from the source
	Dropped int // rows dropped for an invalid price or timestamp
	Filled  int // rows synthesised by resampling
}

// Loader reads daily snapshot CSV files into feature tables.
type Loader struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a new Loader.
func New(opts Options, logger zerolog.Logger) *Loader {
	return &Loader{opts: opts, logger: logger}
}

// LoadFile loads the CSV at path.
func (l *Loader) LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.Load(f, path)
}

// Load reads a CSV stream. source names the table in reports.
func (l *Loader) Load(r io.Reader, source string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", source, ErrEmptyTable)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}
	_, hasTimestamp := cols[domain.FieldTimestamp]
	_, hasCVDChange := cols[domain.FieldCVDChange]

	res := &Result{}
	var rows []domain.FeatureRow
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", res.Read+1, err)
		}
		res.Read++

		row, ok := parseRow(rec, cols, hasTimestamp)
		if !ok {
			res.Dropped++
			continue
		}
		if !hasTimestamp {
			row.TimestampMs = int64(len(rows)) * 1000
		}
		rows = append(rows, row)
	}

	if res.Dropped > 0 {
		l.logger.Warn().
			Str("source", source).
			Int("dropped", res.Dropped).
			Msg("dropped rows with invalid price or timestamp")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyTable)
	}
	if !hasTimestamp {
		l.logger.Warn().Str("source", source).Msg("no timestamp column, using synthetic 1s index timeline")
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TimestampMs < rows[j].TimestampMs
	})

	if !hasCVDChange {
		cvd := make([]float64, len(rows))
		for i := range rows {
			cvd[i] = rows[i].CVD
		}
		for i, c := range features.CVDChange(cvd) {
			rows[i].CVDChange = c
		}
	}

	table := &domain.FeatureTable{Rows: rows, Source: source, Synthetic: !hasTimestamp}
	if l.opts.Resample && hasTimestamp {
		table, res.Filled = Resample1s(table)
	}
	res.Table = table

	l.logger.Info().
		Str("source", source).
		Int("read", res.Read).
		Int("rows", table.Len()).
		Int("filled", res.Filled).
		Bool("synthetic", table.Synthetic).
		Msg("feature table loaded")

	return res, nil
}

// parseRow converts one record. ok is false when the price or timestamp is invalid.
func parseRow(rec []string, cols map[string]int, hasTimestamp bool) (domain.FeatureRow, bool) {
	var row domain.FeatureRow

	price, ok := number(rec, cols, domain.FieldPrice)
	if !ok || !(price > 0) || math.IsInf(price, 0) {
		return row, false
	}
	row.Price = price

	if hasTimestamp {
		ts, ok := timestampMs(field(rec, cols, domain.FieldTimestamp))
		if !ok {
			return row, false
		}
		row.TimestampMs = ts
	}

	row.OIDelta = numberOrZero(rec, cols, domain.FieldOIDelta)
	row.Delta1s = numberOrZero(rec, cols, domain.FieldDelta1s)
	row.CVD = numberOrZero(rec, cols, domain.FieldCVD)
	row.CVDChange = numberOrZero(rec, cols, domain.FieldCVDChange)
	row.OBScore = numberOrZero(rec, cols, domain.FieldOBScore)
	row.OI = numberOrZero(rec, cols, domain.FieldOI)
	row.FinalScore = numberOrZero(rec, cols, domain.FieldFinalScore)
	row.Score1m = numberOrZero(rec, cols, domain.FieldScore1m)
	row.Score5m = numberOrZero(rec, cols, domain.FieldScore5m)
	row.Score15m = numberOrZero(rec, cols, domain.FieldScore15m)
	row.Score1h = numberOrZero(rec, cols, domain.FieldScore1h)
	row.ActionHint = strings.ToUpper(field(rec, cols, domain.FieldActionHint))
	row.HTFBias = strings.ToUpper(field(rec, cols, domain.FieldHTFBias))
	row.MarketState = strings.ToUpper(field(rec, cols, domain.FieldMarketState))
	row.Behavior = int(numberOrZero(rec, cols, domain.FieldBehavior))
	if v, err := strconv.ParseUint(field(rec, cols, domain.FieldEventFlags), 10, 32); err == nil {
		row.EventFlags = uint32(v)
	}

	return row, true
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func number(rec []string, cols map[string]int, name string) (float64, bool) {
	v, err := strconv.ParseFloat(field(rec, cols, name), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// numberOrZero parses an optional numeric field; empty or unparsable is 0.
func numberOrZero(rec []string, cols map[string]int, name string) float64 {
	v, ok := number(rec, cols, name)
	if !ok || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// timestampMs accepts Unix milliseconds, Unix seconds or RFC 3339.
func timestampMs(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, false
		}
		if v < secondsCutoff {
			v *= 1000
		}
		return int64(v), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// Resample1s buckets rows by second (last row wins, cvd_change accumulates) and
// forward-fills gaps. Filled rows copy the previous row with the flow fields delta_1s and cvd_change zeroed.
// Returns the new table and the number of filled rows. rows must be sorted by timestamp.
func Resample1s(table *domain.FeatureTable) (*domain.FeatureTable, int) {
	out := &domain.FeatureTable{Source: table.Source, Synthetic: table.Synthetic}
	if table.Len() == 0 {
		return out, 0
	}

	var (
		rows   []domain.FeatureRow
		filled int
	)
	for _, r := range table.Rows {
		sec := r.TimestampMs / 1000
		r.TimestampMs = sec * 1000

		if n := len(rows); n > 0 {
			lastSec := rows[n-1].TimestampMs / 1000
			if sec == lastSec {
				r.CVDChange += rows[n-1].CVDChange
				rows[n-1] = r
				continue
			}
			for s := lastSec + 1; s < sec; s++ {
				fill := rows[len(rows)-1]
				fill.TimestampMs = s * 1000
				fill.Delta1s = 0
				fill.CVDChange = 0
				rows = append(rows, fill)
				filled++
			}
		}
		rows = append(rows, r)
	}

	out.Rows = rows
	return out, filled
}

// LatestCSV returns the lexically last *.csv file in dir.
// Daily files are named YYYY-MM-DD.csv, so the last name is the newest day.
func LatestCSV(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", dir, ErrNoCSV)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
