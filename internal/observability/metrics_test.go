package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"orderflow-edge-lab/internal/domain"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)

	m.RecordLoad(100, 3)
	m.RecordClassification(map[domain.OrderflowState]int{
		domain.LongBuildup: 40,
		domain.NeutralChop: 60,
	})
	m.RecordEvaluation(20, 1, 45, 15)
	m.RecordRun("edge", "success", 1700000000)
	m.RecordDBQuery("postgres", "insert_bulk", 0.02, errors.New("boom"))

	assert.Equal(t, 100.0, testutil.ToFloat64(m.RowsLoaded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsDropped))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.RowsClassified.WithLabelValues("LONG_BUILDUP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConditionsFailed))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.RecordsProduced))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessfulRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_bulk")))
}

func TestMetrics_FreshRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("", prometheus.NewRegistry())
		NewMetrics("", prometheus.NewRegistry())
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordLoad(5, 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_loader_rows_loaded_total 5"))
}
